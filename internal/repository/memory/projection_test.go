package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guyuepp/popularity-service/domain"
)

func TestProjectionStore(t *testing.T) {
	s := NewProjectionStore()
	ctx := context.Background()

	two := int64(2)
	assert.ErrorIs(t, s.UpdateFields(ctx, "a", domain.ProjectionUpdate{Likes: &two}), domain.ErrProjectionNotFound,
		"partial updates never create a document")
	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrProjectionNotFound)

	require.NoError(t, s.Add(ctx, domain.Projection{ID: "a"}))
	list := []string{"u1", "u2"}
	require.NoError(t, s.UpdateFields(ctx, "a", domain.ProjectionUpdate{Likes: &two, LikesList: list}))
	list[0] = "mutated"

	p, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Likes)
	assert.Equal(t, int64(0), p.LikesDay)
	assert.Equal(t, []string{"u1", "u2"}, p.LikesList)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
}

func TestProjectionStoreTop(t *testing.T) {
	s := NewProjectionStore()
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, domain.Projection{ID: "a", Likes: 10, LikesDay: 1}))
	require.NoError(t, s.Add(ctx, domain.Projection{ID: "b", Likes: 5, LikesDay: 4}))
	require.NoError(t, s.Add(ctx, domain.Projection{ID: "c", Likes: 7, LikesDay: 2}))

	res, err := s.Top(ctx, domain.SortByLikesDay, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "b", res[0].ID)
	assert.Equal(t, "c", res[1].ID)

	res, err = s.Top(ctx, domain.SortByLikes, 10)
	require.NoError(t, err)
	assert.Len(t, res, 3)
	assert.Equal(t, "a", res[0].ID)
}

func TestProjectionStoreFail(t *testing.T) {
	s := NewProjectionStore()
	down := errors.New("connection refused")
	s.Fail = func(op, id string) error {
		if op == "add" {
			return down
		}
		return nil
	}

	assert.ErrorIs(t, s.Add(context.Background(), domain.Projection{ID: "a"}), down)
	_, err := s.Get(context.Background(), "a")
	assert.ErrorIs(t, err, domain.ErrProjectionNotFound)
}
