package domain

import (
	"context"
	"time"
)

// Projection is the denormalized, possibly stale search/sort document of an item.
type Projection struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Likes       int64     `json:"likes"`
	LikesList   []string  `json:"likesList"`
	LikesDay    int64     `json:"likesDay"`
	LikesWeek   int64     `json:"likesWeek"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewProjection builds the initial document of a freshly stored item.
func NewProjection(it Item) Projection {
	return Projection{
		ID:          it.ID,
		OwnerID:     it.OwnerID,
		Title:       it.Title,
		Description: it.Description,
		Likes:       it.Likes,
		LikesList:   []string{},
		CreatedAt:   it.CreatedAt,
	}
}

// ProjectionUpdate is a partial update. Nil fields are left untouched; a non-nil empty
// LikesList clears the list.
type ProjectionUpdate struct {
	Likes     *int64
	LikesList []string
	LikesDay  *int64
	LikesWeek *int64
}

// IsEmpty reports whether the update changes nothing.
func (u ProjectionUpdate) IsEmpty() bool {
	return u.Likes == nil && u.LikesList == nil && u.LikesDay == nil && u.LikesWeek == nil
}

// SortField names a sortable projection counter.
type SortField string

const (
	SortByLikes     SortField = "likes"
	SortByLikesDay  SortField = "likesDay"
	SortByLikesWeek SortField = "likesWeek"
)

// ParseSortField returns ErrBadParamInput for unknown fields.
func ParseSortField(s string) (SortField, error) {
	switch SortField(s) {
	case SortByLikes, SortByLikesDay, SortByLikesWeek:
		return SortField(s), nil
	default:
		return "", ErrBadParamInput
	}
}

// ProjectionStore is the secondary, independently writable document store.
// Errors are returned only for transport or store failures and for a missing document.
type ProjectionStore interface {
	// Get returns ErrProjectionNotFound if the document doesn't exist.
	Get(ctx context.Context, id string) (Projection, error)

	// UpdateFields applies a partial update. It never creates a document and returns
	// ErrProjectionNotFound if there is none.
	UpdateFields(ctx context.Context, id string, u ProjectionUpdate) error

	// Add stores a full document, replacing any previous one.
	Add(ctx context.Context, p Projection) error

	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, id string) error

	// Top returns up to limit documents ordered by field, highest first.
	Top(ctx context.Context, field SortField, limit int64) ([]Projection, error)
}

// ProjectionUsecase is the read side of the projection.
type ProjectionUsecase interface {
	Get(ctx context.Context, id string) (Projection, error)
	Top(ctx context.Context, field SortField, limit int64) ([]Projection, error)
}
