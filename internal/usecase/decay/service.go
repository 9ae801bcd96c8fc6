package decay

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Guyuepp/popularity-service/domain"
)

type Config struct {
	// MaxCatchup bounds the buckets processed by one Run. Older due buckets are skipped.
	MaxCatchup int
	// Parallelism bounds concurrent item writes within a bucket.
	Parallelism int
	// WriteRPS paces item writes; zero or less disables pacing.
	WriteRPS float64
}

type Service struct {
	facts       domain.FactStore
	projections domain.ProjectionStore
	cursors     domain.DecayCursorRepository
	writer      domain.ProjectionWriter
	repair      domain.RepairWorker
	reporter    domain.DriftReporter
	limiter     *rate.Limiter
	cfg         Config
}

var _ domain.DecayUsecase = (*Service)(nil)

// NewService will create a new decay service object
func NewService(f domain.FactStore, p domain.ProjectionStore, c domain.DecayCursorRepository, w domain.ProjectionWriter,
	r domain.RepairWorker, dr domain.DriftReporter, cfg Config) *Service {
	if cfg.MaxCatchup <= 0 {
		cfg.MaxCatchup = 24
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 8
	}
	limit := rate.Inf
	if cfg.WriteRPS > 0 {
		limit = rate.Limit(cfg.WriteRPS)
	}
	return &Service{
		facts:       f,
		projections: p,
		cursors:     c,
		writer:      w,
		repair:      r,
		reporter:    dr,
		limiter:     rate.NewLimiter(limit, max(cfg.Parallelism, 1)),
		cfg:         cfg,
	}
}

// Run retires every bucket of w that aged out by now and was not claimed before.
// Bucket [b, b+1h) is due once b+1h+W <= now, truncated to the hour. Each bucket is
// claimed by advancing the cursor before it is applied, so no bucket is applied twice.
func (s *Service) Run(ctx context.Context, w domain.Window, now time.Time) ([]domain.DecayResult, error) {
	if w.Duration() == 0 {
		return nil, domain.ErrBadParamInput
	}
	target := now.UTC().Truncate(domain.BucketWidth).Add(-w.Duration())

	from, err := s.cursors.GetCursor(ctx, w)
	start := from
	if errors.Is(err, domain.ErrNotFound) {
		// first run: nothing older than the bucket ending at target is known to be counted
		from = time.Time{}
		start = target.Add(-domain.BucketWidth)
	} else if err != nil {
		return nil, fmt.Errorf("get %s decay cursor: %w", w, err)
	}

	due := int(target.Sub(start) / domain.BucketWidth)
	if due <= 0 {
		return nil, nil
	}
	if due > s.cfg.MaxCatchup {
		skipped := due - s.cfg.MaxCatchup
		start = start.Add(time.Duration(skipped) * domain.BucketWidth)
		logrus.Warnf("decay %s is %d buckets behind, skipping the oldest %d", w, due, skipped)
	}

	var results []domain.DecayResult
	for b := start; !b.Add(domain.BucketWidth).After(target); b = b.Add(domain.BucketWidth) {
		counts, err := s.countBucket(ctx, b)
		if err != nil {
			return results, err
		}

		end := b.Add(domain.BucketWidth)
		if err := s.cursors.AdvanceCursor(ctx, w, from, end); err != nil {
			return results, err
		}
		from = end

		res := s.apply(ctx, w, b, counts)
		s.reporter.DecayBucketProcessed(res)
		results = append(results, res)
	}
	return results, nil
}

func (s *Service) DecayBucket(ctx context.Context, w domain.Window, start time.Time) (domain.DecayResult, error) {
	if w.Duration() == 0 {
		return domain.DecayResult{}, domain.ErrBadParamInput
	}
	start = start.UTC()
	counts, err := s.countBucket(ctx, start)
	if err != nil {
		return domain.DecayResult{}, err
	}
	res := s.apply(ctx, w, start, counts)
	s.reporter.DecayBucketProcessed(res)
	return res, nil
}

// countBucket returns the number of likes each item received in [start, start+1h).
func (s *Service) countBucket(ctx context.Context, start time.Time) (map[string]int64, error) {
	facts, err := s.facts.QueryLikeFactsInRange(ctx, start, start.Add(domain.BucketWidth))
	if err != nil {
		return nil, fmt.Errorf("query bucket %s: %w", start.Format(time.RFC3339), err)
	}
	counts := make(map[string]int64)
	for _, f := range facts {
		counts[f.ItemID]++
	}
	return counts, nil
}

func (s *Service) apply(ctx context.Context, w domain.Window, start time.Time, counts map[string]int64) domain.DecayResult {
	var failed atomic.Int32

	var g errgroup.Group
	g.SetLimit(s.cfg.Parallelism)
	for itemID, n := range counts {
		itemID, n := itemID, n
		g.Go(func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				s.fail(w, itemID, err)
				failed.Add(1)
				return nil
			}
			if err := s.decayItem(ctx, w, itemID, n); err != nil {
				s.fail(w, itemID, err)
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return domain.DecayResult{
		Window:      w,
		BucketStart: start,
		Items:       len(counts),
		Failed:      int(failed.Load()),
	}
}

func (s *Service) decayItem(ctx context.Context, w domain.Window, itemID string, n int64) error {
	return s.writer.Do(ctx, itemID, func(ctx context.Context) error {
		p, err := s.projections.Get(ctx, itemID)
		if err != nil {
			return err
		}
		var u domain.ProjectionUpdate
		switch w {
		case domain.WindowDay:
			v := max(p.LikesDay-n, 0)
			u.LikesDay = &v
		case domain.WindowWeek:
			v := max(p.LikesWeek-n, 0)
			u.LikesWeek = &v
		}
		return s.projections.UpdateFields(ctx, itemID, u)
	})
}

func (s *Service) fail(w domain.Window, itemID string, err error) {
	op := "decay_" + string(w)
	if errors.Is(err, domain.ErrProjectionNotFound) {
		logrus.Errorf("decay %s: projection of item %s is missing", w, itemID)
		s.reporter.ProjectionMissing(op)
	} else {
		logrus.Warnf("decay %s: failed to update item %s: %v", w, itemID, err)
		s.reporter.ProjectionWriteFailed(op)
	}
	s.repair.Send(itemID)
}
