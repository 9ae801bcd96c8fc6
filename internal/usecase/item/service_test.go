package item

import (
	"context"
	"errors"
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
	"github.com/Guyuepp/popularity-service/internal/workers"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, e domain.Event) error {
	return m.Called(ctx, e).Error(0)
}

type fixture struct {
	facts       domain.FactStore
	projections *memory.ProjectionStore
	repair      *testutil.RepairQueue
	reporter    *testutil.Reporter
	events      *mockPublisher
	svc         *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		facts:       sqldb.NewFactStore(testutil.OpenSQLite(t)),
		projections: memory.NewProjectionStore(),
		repair:      &testutil.RepairQueue{},
		reporter:    &testutil.Reporter{},
		events:      &mockPublisher{},
	}
	writer := workers.NewProjectionWriter(2, 8)
	testutil.Run(t, writer)
	f.svc = NewService(f.facts, f.projections, writer, f.repair, f.reporter, f.events, time.Second)
	return f
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.events.On("Publish", mock.Anything, mock.MatchedBy(func(e domain.Event) bool {
		return e.Type == domain.EventItemCreated
	})).Return(nil).Once()

	it := domain.Item{OwnerID: faker.UUIDHyphenated(), Title: " " + faker.Word() + " ", Description: faker.Sentence(), Likes: 42}
	require.NoError(t, f.svc.Create(ctx, &it))
	assert.NotEmpty(t, it.ID)
	assert.Equal(t, int64(0), it.Likes)

	p, err := f.projections.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, it.Title, p.Title)
	assert.Equal(t, int64(0), p.Likes)
	assert.Equal(t, int64(0), p.LikesDay)
	assert.Equal(t, int64(0), p.LikesWeek)
	assert.Equal(t, []string{}, p.LikesList)
	f.events.AssertExpectations(t)
}

func TestCreateValidates(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.svc.Create(context.Background(), &domain.Item{OwnerID: "u", Title: "  "}), domain.ErrBadParamInput)
	assert.ErrorIs(t, f.svc.Create(context.Background(), &domain.Item{Title: "t"}), domain.ErrBadParamInput)
	f.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestCreateQueuesRepairWhenProjectionAddFails(t *testing.T) {
	f := newFixture(t)
	f.projections.Fail = func(op, _ string) error {
		if op == "add" {
			return errors.New("connection refused")
		}
		return nil
	}
	f.events.On("Publish", mock.Anything, mock.Anything).Return(nil)

	it := domain.Item{OwnerID: "owner", Title: "title"}
	require.NoError(t, f.svc.Create(context.Background(), &it))

	_, err := f.facts.GetItem(context.Background(), it.ID)
	require.NoError(t, err, "the item is stored regardless")
	assert.Equal(t, []string{it.ID}, f.repair.Sent())
	assert.Equal(t, int32(1), f.reporter.WriteFailed.Load())
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.events.On("Publish", mock.Anything, mock.Anything).Return(nil)

	it := domain.Item{OwnerID: "owner", Title: "title"}
	require.NoError(t, f.svc.Create(ctx, &it))
	require.NoError(t, f.facts.InsertLikeFact(ctx, domain.LikeFact{ItemID: it.ID, UserID: "fan"}))

	view, err := f.svc.Get(ctx, it.ID, "fan")
	require.NoError(t, err)
	assert.True(t, view.UserLiked)

	view, err = f.svc.Get(ctx, it.ID, "stranger")
	require.NoError(t, err)
	assert.False(t, view.UserLiked)

	_, err = f.svc.Get(ctx, "missing", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.events.On("Publish", mock.Anything, mock.Anything).Return(nil)

	it := domain.Item{OwnerID: "owner", Title: "title"}
	require.NoError(t, f.svc.Create(ctx, &it))
	require.NoError(t, f.facts.InsertLikeFact(ctx, domain.LikeFact{ItemID: it.ID, UserID: "fan"}))

	assert.ErrorIs(t, f.svc.Delete(ctx, it.ID, "someone-else"), domain.ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, it.ID, "owner"))

	_, err := f.facts.GetItem(ctx, it.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.facts.GetLikeFact(ctx, it.ID, "fan")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.projections.Get(ctx, it.ID)
	assert.ErrorIs(t, err, domain.ErrProjectionNotFound)

	assert.ErrorIs(t, f.svc.Delete(ctx, it.ID, "owner"), domain.ErrNotFound)
}
