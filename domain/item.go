package domain

import (
	"context"
	"time"
)

// Item is a content record whose popularity is tracked.
type Item struct {
	ID          string    // Immutable identifier
	OwnerID     string    // Identifier of the submitting user
	Title       string    // Item title
	Description string    // Item description
	Likes       int64     // Authoritative cumulative like count
	CreatedAt   time.Time // Creation timestamp
	UpdatedAt   time.Time // Last update timestamp
}

// ItemView is an item as seen by a specific viewer.
type ItemView struct {
	Item
	UserLiked bool
}

// ItemUsecase covers the item lifecycle. Every item owns exactly one projection document,
// created and deleted together with it.
type ItemUsecase interface {
	Create(ctx context.Context, it *Item) error
	Get(ctx context.Context, id string, viewerID string) (ItemView, error)

	// Delete removes the item, its like facts and its projection.
	// Returns ErrForbidden if callerID does not own the item.
	Delete(ctx context.Context, id string, callerID string) error
}
