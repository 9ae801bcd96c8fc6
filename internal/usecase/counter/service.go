package counter

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Guyuepp/popularity-service/domain"
)

type Service struct {
	facts       domain.FactStore
	projections domain.ProjectionStore
	cursors     domain.DecayCursorRepository
	writer      domain.ProjectionWriter
	repair      domain.RepairWorker
	reporter    domain.DriftReporter
	syncTimeout time.Duration
	now         func() time.Time
	group       singleflight.Group
}

var _ domain.CounterSyncer = (*Service)(nil)

// NewService creates the counter sync service. Call SetRepairWorker before serving traffic.
func NewService(f domain.FactStore, p domain.ProjectionStore, c domain.DecayCursorRepository,
	w domain.ProjectionWriter, r domain.DriftReporter, syncTimeout time.Duration) *Service {
	return &Service{
		facts:       f,
		projections: p,
		cursors:     c,
		writer:      w,
		repair:      nopRepair{},
		reporter:    r,
		syncTimeout: syncTimeout,
		now:         time.Now,
	}
}

// SetRepairWorker wires the worker that runs Reconcile for drifted items. The worker
// itself depends on this service, so it can't be a constructor argument.
func (s *Service) SetRepairWorker(r domain.RepairWorker) {
	s.repair = r
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) ApplyLikeDelta(ctx context.Context, d domain.LikeDelta) error {
	if s.syncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.syncTimeout)
		defer cancel()
	}
	op := "like"
	if d.Action == domain.Unlike {
		op = "unlike"
	}

	err := s.writer.Do(ctx, d.ItemID, func(ctx context.Context) error {
		p, err := s.projections.Get(ctx, d.ItemID)
		if err != nil {
			return err
		}
		// d.Likes was read at commit time and may already be stale
		it, err := s.facts.GetItem(ctx, d.ItemID)
		if err != nil {
			return err
		}
		return s.projections.UpdateFields(ctx, d.ItemID, likeUpdate(p, d, it.Likes, s.now()))
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrProjectionNotFound):
		logrus.WithFields(logrus.Fields{
			"item":   d.ItemID,
			"user":   d.UserID,
			"action": d.Action.String(),
		}).Error("projection document is missing for an existing item")
		s.reporter.ProjectionMissing(op)
		s.repair.Send(d.ItemID)
		return domain.ErrProjectionNotFound
	default:
		logrus.WithFields(logrus.Fields{
			"item":   d.ItemID,
			"user":   d.UserID,
			"action": d.Action.String(),
		}).Warnf("projection sync failed: %v", err)
		s.reporter.ProjectionWriteFailed(op)
		s.repair.Send(d.ItemID)
		return nil
	}
}

// likeUpdate derives the partial update for one like or unlike of p, given the
// authoritative like count. The window counters only move when the list changes, so a
// delta that lands after a reconcile already counted its fact is not applied twice.
func likeUpdate(p domain.Projection, d domain.LikeDelta, likes int64, now time.Time) domain.ProjectionUpdate {
	likes = max(likes, 0)
	day, week := p.LikesDay, p.LikesWeek
	list := slices.Clone(p.LikesList)
	if list == nil {
		list = []string{}
	}
	listed := slices.Contains(list, d.UserID)

	switch d.Action {
	case domain.Like:
		if !listed {
			list = append(list, d.UserID)
			day++
			week++
		}
	case domain.Unlike:
		if listed {
			list = slices.DeleteFunc(list, func(u string) bool { return u == d.UserID })
			if inWindow(d.FactCreatedAt, domain.WindowDay, now) {
				day--
			}
			if inWindow(d.FactCreatedAt, domain.WindowWeek, now) {
				week--
			}
		}
	}

	day, week = max(day, 0), max(week, 0)
	return domain.ProjectionUpdate{
		Likes:     &likes,
		LikesList: list,
		LikesDay:  &day,
		LikesWeek: &week,
	}
}

// inWindow reports whether a fact created at t still counts towards w.
func inWindow(t time.Time, w domain.Window, now time.Time) bool {
	return t.After(now.Add(-w.Duration()))
}

func (s *Service) Reconcile(ctx context.Context, itemID string) error {
	_, err, shared := s.group.Do(itemID, func() (any, error) {
		return nil, s.reconcile(ctx, itemID)
	})
	if shared {
		logrus.Debugf("reconcile of item %s merged with a concurrent call", itemID)
	}
	return err
}

func (s *Service) reconcile(ctx context.Context, itemID string) error {
	return s.writer.Do(ctx, itemID, func(ctx context.Context) error {
		it, err := s.facts.GetItem(ctx, itemID)
		if errors.Is(err, domain.ErrNotFound) {
			// the item is gone, so must be its projection
			if err := s.projections.Delete(ctx, itemID); err != nil {
				return err
			}
			return domain.ErrNotFound
		} else if err != nil {
			return err
		}

		facts, err := s.facts.FetchItemLikeFacts(ctx, itemID)
		if err != nil {
			return err
		}
		p := domain.NewProjection(it)
		for _, f := range facts {
			p.LikesList = append(p.LikesList, f.UserID)
		}

		for _, w := range domain.Windows {
			counted, err := s.windowFilter(ctx, w)
			if err != nil {
				return err
			}
			var n int64
			for _, f := range facts {
				if counted(f.CreatedAt) {
					n++
				}
			}
			if w == domain.WindowDay {
				p.LikesDay = n
			} else {
				p.LikesWeek = n
			}
		}

		err = s.projections.UpdateFields(ctx, itemID, domain.ProjectionUpdate{
			Likes:     &p.Likes,
			LikesList: p.LikesList,
			LikesDay:  &p.LikesDay,
			LikesWeek: &p.LikesWeek,
		})
		if errors.Is(err, domain.ErrProjectionNotFound) {
			logrus.Warnf("rebuilding missing projection of item %s", itemID)
			return s.projections.Add(ctx, p)
		}
		return err
	})
}

// windowFilter returns the predicate selecting facts that decay has not retired from w yet.
func (s *Service) windowFilter(ctx context.Context, w domain.Window) (func(time.Time) bool, error) {
	cursor, err := s.cursors.GetCursor(ctx, w)
	if errors.Is(err, domain.ErrNotFound) {
		now := s.now()
		return func(t time.Time) bool { return inWindow(t, w, now) }, nil
	} else if err != nil {
		return nil, err
	}
	return func(t time.Time) bool { return !t.Before(cursor) }, nil
}

type nopRepair struct{}

func (nopRepair) Start(context.Context) {}
func (nopRepair) Send(itemID string) {
	logrus.Warnf("no repair worker configured, projection of item %s stays drifted", itemID)
}
