package model

import (
	"time"

	"github.com/Guyuepp/popularity-service/domain"
)

// LikeFact is keyed by (item_id, user_id), so a user holds at most one live like per item.
type LikeFact struct {
	ItemID    string    `gorm:"column:item_id;primaryKey;type:varchar(36)"`
	UserID    string    `gorm:"column:user_id;primaryKey;type:varchar(64)"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index"`
}

func (LikeFact) TableName() string {
	return "like_facts"
}

func (m *LikeFact) ToDomain() domain.LikeFact {
	return domain.LikeFact{
		ItemID:    m.ItemID,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func NewLikeFactFromDomain(f domain.LikeFact) LikeFact {
	return LikeFact{
		ItemID:    f.ItemID,
		UserID:    f.UserID,
		CreatedAt: f.CreatedAt.UTC(),
	}
}
