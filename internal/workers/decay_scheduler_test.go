package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/Guyuepp/popularity-service/domain"
)

type mockDecayUsecase struct {
	mock.Mock
	mu sync.Mutex
}

func (m *mockDecayUsecase) Run(ctx context.Context, w domain.Window, now time.Time) ([]domain.DecayResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called(ctx, w, now)
	res, _ := args.Get(0).([]domain.DecayResult)
	return res, args.Error(1)
}

func (m *mockDecayUsecase) DecayBucket(ctx context.Context, w domain.Window, start time.Time) (domain.DecayResult, error) {
	args := m.Called(ctx, w, start)
	return args.Get(0).(domain.DecayResult), args.Error(1)
}

func TestDecaySchedulerTick(t *testing.T) {
	now := time.Date(2026, 10, 18, 10, 5, 0, 0, time.UTC)
	uc := &mockDecayUsecase{}
	uc.On("Run", mock.Anything, domain.WindowDay, now).
		Return([]domain.DecayResult{{Window: domain.WindowDay, BucketStart: now.Add(-25 * time.Hour), Items: 3}}, nil).Once()
	uc.On("Run", mock.Anything, domain.WindowWeek, now).
		Return(nil, domain.ErrCursorConflict).Once()

	s := NewDecayScheduler(uc, time.Hour)
	s.now = func() time.Time { return now }
	s.tick(context.Background())

	uc.AssertExpectations(t)
}

func TestDecaySchedulerKeepsGoingAfterFailure(t *testing.T) {
	uc := &mockDecayUsecase{}
	uc.On("Run", mock.Anything, domain.WindowDay, mock.Anything).Return(nil, errors.New("db down"))
	uc.On("Run", mock.Anything, domain.WindowWeek, mock.Anything).Return(nil, nil)

	s := NewDecayScheduler(uc, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		uc.mu.Lock()
		defer uc.mu.Unlock()
		n := 0
		for _, c := range uc.Calls {
			if c.Arguments.Get(1) == domain.WindowWeek {
				n++
			}
		}
		return n >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
