package domain

import (
	"context"
	"time"
)

// LikeFact records that a user liked an item at a point in time.
// At most one fact exists per (ItemID, UserID).
type LikeFact struct {
	ItemID    string
	UserID    string
	CreatedAt time.Time
}

type LikeAction int8

const (
	Like   LikeAction = 1
	Unlike LikeAction = -1
)

func (l LikeAction) String() string {
	switch l {
	case Like:
		return "LIKE"
	case Unlike:
		return "UNLIKE"
	default:
		return "UNKNOWN"
	}
}

// LikeDelta is the input of the counter sync protocol. It is built after the fact store
// mutation committed.
type LikeDelta struct {
	ItemID string
	UserID string
	Action LikeAction
	// Likes is the counter right after the commit. Sync re-reads the fact store instead.
	Likes int64
	// FactCreatedAt is the creation time of the removed fact. Only set for Unlike.
	FactCreatedAt time.Time
}

// LikeUsecase is the caller-facing like/unlike API. Its outcome depends only on the fact store.
type LikeUsecase interface {
	// Like returns ErrNotFound for an unknown item and ErrConflict for a repeated like.
	Like(ctx context.Context, itemID, userID string) (Item, error)
	// Unlike returns ErrNotFound for an unknown item or when the user never liked it.
	Unlike(ctx context.Context, itemID, userID string) (Item, error)
}

// CounterSyncer keeps a projection in step with the fact store after every like/unlike.
type CounterSyncer interface {
	// ApplyLikeDelta only returns ErrProjectionNotFound. Store outages are absorbed.
	ApplyLikeDelta(ctx context.Context, d LikeDelta) error
	// Reconcile rebuilds every derived field of the item's projection from the fact store.
	Reconcile(ctx context.Context, itemID string) error
}
