package workers

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Guyuepp/popularity-service/domain"
	"github.com/Guyuepp/popularity-service/internal/retry"
)

// Reconciler rebuilds one projection from the fact store.
type Reconciler interface {
	Reconcile(ctx context.Context, itemID string) error
}

type RepairConfig struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	Parallelism   int
	Policy        retry.Policy
}

type repairWorker struct {
	reconciler Reconciler
	reporter   domain.DriftReporter
	cfg        RepairConfig
	ch         chan string
}

var _ domain.RepairWorker = (*repairWorker)(nil)

func NewRepairWorker(r Reconciler, reporter domain.DriftReporter, cfg RepairConfig) *repairWorker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	return &repairWorker{
		reconciler: r,
		reporter:   reporter,
		cfg:        cfg,
		ch:         make(chan string, cfg.QueueSize),
	}
}

func (w *repairWorker) Send(itemID string) {
	select {
	case w.ch <- itemID:
	default:
		logrus.Errorf("repair queue is full, projection of item %s stays drifted", itemID)
		w.reporter.RepairDropped()
	}
}

// Start consumes the queue until ctx is done. One batch is repaired at a time in its own
// goroutine, so the queue keeps draining into the next batch while retries back off.
// The pending batch holds at most QueueSize distinct items.
func (w *repairWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	pending := make([]string, 0, w.cfg.BatchSize)
	queued := make(map[string]struct{}, w.cfg.BatchSize)
	var flushing chan struct{} // non-nil while a batch is being repaired

	flush := func() {
		if flushing != nil || len(pending) == 0 {
			return
		}
		batch := pending
		pending = make([]string, 0, w.cfg.BatchSize)
		queued = make(map[string]struct{}, w.cfg.BatchSize)

		done := make(chan struct{})
		flushing = done
		go func() {
			defer close(done)
			w.flush(ctx, batch, w.cfg.Policy)
		}()
	}

	for {
		in := w.ch
		if len(pending) >= w.cfg.QueueSize {
			in = nil
		}

		select {
		case id := <-in:
			if _, ok := queued[id]; !ok {
				queued[id] = struct{}{}
				pending = append(pending, id)
			}
			if len(pending) >= w.cfg.BatchSize {
				flush()
			}
		case <-flushing:
			flushing = nil
			if len(pending) >= w.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			logrus.Info("shutting down repair worker, flushing remaining items...")
			if flushing != nil {
				<-flushing
			}
		drain:
			for {
				select {
				case id := <-w.ch:
					pending = append(pending, id)
				default:
					break drain
				}
			}
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			w.flush(drainCtx, pending, retry.Policy{MaxAttempts: 1})
			cancel()
			return
		}
	}
}

func (w *repairWorker) flush(ctx context.Context, batch []string, policy retry.Policy) {
	if len(batch) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(batch))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Parallelism)
	for _, id := range batch {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		id := id
		g.Go(func() error {
			w.repair(ctx, id, policy)
			return nil
		})
	}
	_ = g.Wait()
}

func (w *repairWorker) repair(ctx context.Context, itemID string, policy retry.Policy) {
	err := policy.Do(ctx, "reconcile "+itemID, func(ctx context.Context) error {
		err := w.reconciler.Reconcile(ctx, itemID)
		if errors.Is(err, domain.ErrNotFound) {
			return retry.Permanent(err)
		}
		return err
	})
	switch {
	case err == nil:
		logrus.Debugf("projection of item %s reconciled", itemID)
	case errors.Is(err, domain.ErrNotFound):
		logrus.Debugf("item %s is gone, nothing to repair", itemID)
	default:
		logrus.Errorf("giving up on projection of item %s: %v", itemID, err)
		w.reporter.RepairDropped()
	}
}
