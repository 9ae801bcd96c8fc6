package domain

import (
	"context"
	"time"
)

// FactStore is the authoritative store for items and like facts.
type FactStore interface {
	// StoreItem inserts a new item and backfills its timestamps.
	StoreItem(ctx context.Context, it *Item) error

	// GetItem returns ErrNotFound if the item doesn't exist.
	GetItem(ctx context.Context, id string) (Item, error)

	// DeleteItem removes the item and all of its like facts.
	// Returns ErrNotFound if not exists.
	DeleteItem(ctx context.Context, id string) error

	// IncrementItemLikes atomically adds delta to the item's likes and returns the new value.
	// A decrement never takes the counter below zero.
	IncrementItemLikes(ctx context.Context, id string, delta int64) (int64, error)

	// InsertLikeFact returns ErrConflict if the user already likes the item.
	InsertLikeFact(ctx context.Context, f LikeFact) error

	// DeleteLikeFact removes and returns the fact, or ErrNotFound.
	DeleteLikeFact(ctx context.Context, itemID, userID string) (LikeFact, error)

	// GetLikeFact returns ErrNotFound if the user does not like the item.
	GetLikeFact(ctx context.Context, itemID, userID string) (LikeFact, error)

	// QueryLikeFactsInRange returns facts with start <= CreatedAt < end.
	QueryLikeFactsInRange(ctx context.Context, start, end time.Time) ([]LikeFact, error)

	// FetchItemLikeFacts returns every live fact of one item, oldest first.
	FetchItemLikeFacts(ctx context.Context, itemID string) ([]LikeFact, error)

	// Transaction runs fn against a store bound to a single database transaction.
	Transaction(ctx context.Context, fn func(tx FactStore) error) error
}
