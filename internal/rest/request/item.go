package request

import "github.com/Guyuepp/popularity-service/domain"

type Item struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description" binding:"max=4000"`
}

// ToDomain: Request -> Domain
func (r *Item) ToDomain(ownerID string) domain.Item {
	return domain.Item{
		OwnerID:     ownerID,
		Title:       r.Title,
		Description: r.Description,
	}
}

type Top struct {
	Sort  string `form:"sort" binding:"omitempty,oneof=likes likesDay likesWeek"`
	Limit int64  `form:"limit" binding:"omitempty,min=1,max=100"`
}
