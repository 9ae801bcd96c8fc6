package like

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Guyuepp/popularity-service/domain"
	"github.com/Guyuepp/popularity-service/internal/repository/memory"
	"github.com/Guyuepp/popularity-service/internal/repository/sqldb"
	"github.com/Guyuepp/popularity-service/internal/testutil"
	"github.com/Guyuepp/popularity-service/internal/usecase/counter"
	"github.com/Guyuepp/popularity-service/internal/workers"
)

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) ApplyLikeDelta(ctx context.Context, d domain.LikeDelta) error {
	return m.Called(ctx, d).Error(0)
}

func (m *mockSyncer) Reconcile(ctx context.Context, itemID string) error {
	return m.Called(ctx, itemID).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, e domain.Event) error {
	return m.Called(ctx, e).Error(0)
}

var now = time.Date(2026, 10, 18, 10, 30, 0, 0, time.UTC)

func newItem(t *testing.T, facts domain.FactStore, projections domain.ProjectionStore) domain.Item {
	t.Helper()
	it := domain.Item{OwnerID: faker.UUIDHyphenated(), Title: faker.Word()}
	require.NoError(t, facts.StoreItem(context.Background(), &it))
	if projections != nil {
		require.NoError(t, projections.Add(context.Background(), domain.NewProjection(it)))
	}
	return it
}

func TestLikePropagatesAfterCommit(t *testing.T) {
	facts := sqldb.NewFactStore(testutil.OpenSQLite(t))
	it := newItem(t, facts, nil)
	syncer := &mockSyncer{}
	events := &mockPublisher{}
	svc := NewService(facts, syncer, events).WithClock(func() time.Time { return now })

	syncer.On("ApplyLikeDelta", mock.Anything, domain.LikeDelta{
		ItemID: it.ID, UserID: "a", Action: domain.Like, Likes: 1,
	}).Return(nil).Once()
	events.On("Publish", mock.Anything, mock.MatchedBy(func(e domain.Event) bool {
		return e.Type == domain.EventItemLiked && e.ItemID == it.ID && e.Likes == 1
	})).Return(errors.New("nats: no servers available")).Once()

	got, err := svc.Like(context.Background(), it.ID, "a")
	require.NoError(t, err, "a failed notification does not fail the like")
	assert.Equal(t, int64(1), got.Likes)

	syncer.On("ApplyLikeDelta", mock.Anything, mock.MatchedBy(func(d domain.LikeDelta) bool {
		return d.ItemID == it.ID && d.Action == domain.Unlike && d.Likes == 0 && d.FactCreatedAt.Equal(now)
	})).Return(domain.ErrProjectionNotFound).Once()
	events.On("Publish", mock.Anything, mock.MatchedBy(func(e domain.Event) bool {
		return e.Type == domain.EventItemUnliked
	})).Return(nil).Once()

	got, err = svc.Unlike(context.Background(), it.ID, "a")
	require.NoError(t, err, "a missing projection does not fail the unlike")
	assert.Equal(t, int64(0), got.Likes)

	syncer.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestLikeRejections(t *testing.T) {
	facts := sqldb.NewFactStore(testutil.OpenSQLite(t))
	it := newItem(t, facts, nil)
	syncer := &mockSyncer{}
	events := &mockPublisher{}
	svc := NewService(facts, syncer, events)

	_, err := svc.Like(context.Background(), "missing", "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Unlike(context.Background(), it.ID, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Like(context.Background(), it.ID, "")
	assert.ErrorIs(t, err, domain.ErrBadParamInput)

	syncer.AssertNotCalled(t, "ApplyLikeDelta", mock.Anything, mock.Anything)
	events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

type scenario struct {
	facts       domain.FactStore
	projections *memory.ProjectionStore
	repair      *testutil.RepairQueue
	clock       *testutil.Clock
	svc         *Service
}

func newScenario(t *testing.T) *scenario {
	t.Helper()
	db := testutil.OpenSQLite(t)
	s := &scenario{
		facts:       sqldb.NewFactStore(db),
		projections: memory.NewProjectionStore(),
		repair:      &testutil.RepairQueue{},
		clock:       testutil.NewClock(now),
	}
	writer := workers.NewProjectionWriter(2, 8)
	testutil.Run(t, writer)

	syncer := counter.NewService(s.facts, s.projections, sqldb.NewDecayCursorRepository(db), writer,
		&testutil.Reporter{}, time.Second).WithClock(s.clock.Now)
	syncer.SetRepairWorker(s.repair)
	s.svc = NewService(s.facts, syncer, &nopPublisher{}).WithClock(s.clock.Now)
	return s
}

type nopPublisher struct{}

func (*nopPublisher) Publish(context.Context, domain.Event) error { return nil }

func TestLikeUnlikeScenario(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()
	it := newItem(t, s.facts, s.projections)

	_, err := s.svc.Like(ctx, it.ID, "A")
	require.NoError(t, err)
	s.clock.Advance(time.Minute)
	_, err = s.svc.Like(ctx, it.ID, "B")
	require.NoError(t, err)
	s.clock.Advance(time.Minute)
	got, err := s.svc.Unlike(ctx, it.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Likes)

	p, err := s.projections.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Likes)
	assert.Equal(t, int64(1), p.LikesDay)
	assert.Equal(t, int64(1), p.LikesWeek)
	assert.Equal(t, []string{"B"}, p.LikesList)
}

func TestRepeatedLikeLeavesProjectionAlone(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()
	it := newItem(t, s.facts, s.projections)

	_, err := s.svc.Like(ctx, it.ID, "A")
	require.NoError(t, err)
	before, err := s.projections.Get(ctx, it.ID)
	require.NoError(t, err)

	_, err = s.svc.Like(ctx, it.ID, "A")
	assert.ErrorIs(t, err, domain.ErrConflict)

	after, err := s.projections.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	stored, err := s.facts.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Likes)
}

func TestUnlikeWithoutLikeLeavesProjectionAlone(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()
	it := newItem(t, s.facts, s.projections)

	_, err := s.svc.Unlike(ctx, it.ID, "A")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	p, err := s.projections.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.NewProjection(it), p)
}

func TestLikeSucceedsWhileProjectionStoreIsDown(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()
	it := newItem(t, s.facts, s.projections)
	s.projections.Fail = func(string, string) error { return errors.New("connection refused") }

	got, err := s.svc.Like(ctx, it.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Likes)
	assert.Equal(t, []string{it.ID}, s.repair.Sent())
}

func TestCountersNeverNegative(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()
	it := newItem(t, s.facts, s.projections)
	users := []string{"A", "B", "C"}

	for _, u := range users {
		_, err := s.svc.Like(ctx, it.ID, u)
		require.NoError(t, err)
	}
	// the projection drifted low, e.g. after a lost write
	zero := int64(0)
	require.NoError(t, s.projections.UpdateFields(ctx, it.ID, domain.ProjectionUpdate{LikesDay: &zero, LikesWeek: &zero}))

	for _, u := range users {
		_, err := s.svc.Unlike(ctx, it.ID, u)
		require.NoError(t, err)

		p, err := s.projections.Get(ctx, it.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p.Likes, int64(0))
		assert.GreaterOrEqual(t, p.LikesDay, int64(0))
		assert.GreaterOrEqual(t, p.LikesWeek, int64(0))
	}
}

func TestConcurrentLikesKeepAuthoritativeCount(t *testing.T) {
	s := newScenario(t)
	ctx := context.Background()
	it := newItem(t, s.facts, s.projections)

	const users = 12
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.Like(ctx, it.ID, fmt.Sprintf("user-%02d", i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := s.facts.GetItem(ctx, it.ID)
	require.NoError(t, err)
	p, err := s.projections.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(users), stored.Likes)
	assert.Equal(t, stored.Likes, p.Likes)
	assert.Equal(t, int64(users), p.LikesDay)
	assert.Len(t, p.LikesList, users)
}
