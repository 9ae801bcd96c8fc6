package domain

import (
	"context"
	"time"
)

type EventType string

const (
	EventItemCreated EventType = "item.created"
	EventItemDeleted EventType = "item.deleted"
	EventItemLiked   EventType = "item.liked"
	EventItemUnliked EventType = "item.unliked"
)

// Event notifies downstream consumers about a committed fact store change.
type Event struct {
	Type       EventType `json:"type"`
	ItemID     string    `json:"itemId"`
	UserID     string    `json:"userId,omitempty"`
	Likes      int64     `json:"likes"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventPublisher delivers events on a best-effort basis.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

// DriftReporter makes projection drift observable from outside the process.
type DriftReporter interface {
	ProjectionWriteFailed(op string)
	ProjectionMissing(op string)
	RepairDropped()
	DecayBucketProcessed(r DecayResult)
}
