package domain

import "context"

// ProjectionWriter serializes read-modify-write cycles per item.
type ProjectionWriter interface {
	Start(ctx context.Context)

	// Do runs fn after every earlier fn of the same item finished, and returns its error.
	Do(ctx context.Context, itemID string, fn func(ctx context.Context) error) error
}

// RepairWorker heals drifted projections in the background.
type RepairWorker interface {
	Start(ctx context.Context)

	// Send queues an item for reconciliation. It never blocks; a full queue drops the item.
	Send(itemID string)
}
