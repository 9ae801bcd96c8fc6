package model

import (
	"time"

	"github.com/Guyuepp/popularity-service/domain"
)

type Item struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	OwnerID     string    `gorm:"column:owner_id;type:varchar(64);not null;index"`
	Title       string    `gorm:"type:varchar(120);not null"`
	Description string    `gorm:"type:text"`
	Likes       int64     `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (Item) TableName() string {
	return "items"
}

func (m *Item) ToDomain() domain.Item {
	return domain.Item{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Title:       m.Title,
		Description: m.Description,
		Likes:       m.Likes,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

func NewItemFromDomain(it *domain.Item) *Item {
	return &Item{
		ID:          it.ID,
		OwnerID:     it.OwnerID,
		Title:       it.Title,
		Description: it.Description,
		Likes:       it.Likes,
		CreatedAt:   it.CreatedAt.UTC(),
		UpdatedAt:   it.UpdatedAt.UTC(),
	}
}
