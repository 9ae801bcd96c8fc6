package domain

import (
	"context"
	"time"
)

// BucketWidth is the unit of both window accrual and decay.
const BucketWidth = time.Hour

// Window is a trailing time span with an approximate like counter on the projection.
type Window string

const (
	WindowDay  Window = "day"
	WindowWeek Window = "week"
)

// Windows lists every maintained window.
var Windows = []Window{WindowDay, WindowWeek}

// Duration returns the span of the window.
func (w Window) Duration() time.Duration {
	switch w {
	case WindowDay:
		return 24 * time.Hour
	case WindowWeek:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// Field returns the projection counter the window maintains.
func (w Window) Field() SortField {
	if w == WindowWeek {
		return SortByLikesWeek
	}
	return SortByLikesDay
}

// ParseWindow returns ErrBadParamInput for unknown windows.
func ParseWindow(s string) (Window, error) {
	switch Window(s) {
	case WindowDay, WindowWeek:
		return Window(s), nil
	default:
		return "", ErrBadParamInput
	}
}

// DecayCursorRepository persists, per window, the end of the last bucket claimed by decay.
type DecayCursorRepository interface {
	// GetCursor returns ErrNotFound if the window was never processed.
	GetCursor(ctx context.Context, w Window) (time.Time, error)

	// AdvanceCursor moves the cursor from `from` to `to` if it still equals `from`.
	// A zero `from` means the cursor does not exist yet. Returns ErrCursorConflict otherwise.
	AdvanceCursor(ctx context.Context, w Window, from, to time.Time) error
}

// DecayResult summarizes one processed bucket.
type DecayResult struct {
	Window      Window
	BucketStart time.Time
	Items       int
	Failed      int
}

// DecayUsecase retires aged-out buckets from the window counters.
type DecayUsecase interface {
	// Run processes every due bucket of the window at most once and returns what it did.
	Run(ctx context.Context, w Window, now time.Time) ([]DecayResult, error)

	// DecayBucket subtracts the facts of [start, start+BucketWidth) from the window counters.
	// It does not consult or move the cursor.
	DecayBucket(ctx context.Context, w Window, start time.Time) (DecayResult, error)
}
