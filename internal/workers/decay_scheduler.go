package workers

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/popularity-service/domain"
)

type decayScheduler struct {
	decay    domain.DecayUsecase
	interval time.Duration
	now      func() time.Time
}

// NewDecayScheduler triggers decay for every window on start and then every interval.
// Runs are cheap when nothing is due, so the interval may be shorter than a bucket.
func NewDecayScheduler(d domain.DecayUsecase, interval time.Duration) *decayScheduler {
	if interval <= 0 {
		interval = domain.BucketWidth
	}
	return &decayScheduler{decay: d, interval: interval, now: time.Now}
}

func (s *decayScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			logrus.Info("decay scheduler stopped")
			return
		}
	}
}

func (s *decayScheduler) tick(ctx context.Context) {
	now := s.now()
	for _, w := range domain.Windows {
		results, err := s.decay.Run(ctx, w, now)
		switch {
		case errors.Is(err, domain.ErrCursorConflict):
			logrus.Infof("decay %s: another runner got the bucket first", w)
		case errors.Is(err, context.Canceled):
			return
		case err != nil:
			logrus.Errorf("decay %s failed: %v", w, err)
		}
		for _, r := range results {
			logrus.WithFields(logrus.Fields{
				"window": r.Window,
				"bucket": r.BucketStart.Format(time.RFC3339),
				"items":  r.Items,
				"failed": r.Failed,
			}).Info("decay bucket processed")
		}
	}
}
