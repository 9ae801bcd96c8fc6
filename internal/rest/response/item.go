package response

import (
	"time"

	"github.com/Guyuepp/popularity-service/domain"
)

type Item struct {
	ID          string `json:"id"`
	OwnerID     string `json:"userId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Likes       int64  `json:"likes"`
	UserLiked   *bool  `json:"userLiked,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// NewItemFromDomain: Domain -> Response
func NewItemFromDomain(it *domain.Item) Item {
	return Item{
		ID:          it.ID,
		OwnerID:     it.OwnerID,
		Title:       it.Title,
		Description: it.Description,
		Likes:       it.Likes,
		CreatedAt:   it.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   it.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func NewItemViewFromDomain(v *domain.ItemView) Item {
	res := NewItemFromDomain(&v.Item)
	liked := v.UserLiked
	res.UserLiked = &liked
	return res
}

type LikeState struct {
	ID    string `json:"id"`
	Likes int64  `json:"likes"`
	Liked bool   `json:"liked"`
}
