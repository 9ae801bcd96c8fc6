package sqldb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Guyuepp/popularity-service/domain"
	"github.com/Guyuepp/popularity-service/internal/repository/sqldb/model"
)

type factStore struct {
	DB  *gorm.DB
	now func() time.Time
}

var _ domain.FactStore = (*factStore)(nil)

// NewFactStore creates the gorm backed fact store
func NewFactStore(db *gorm.DB) *factStore {
	return &factStore{DB: db, now: time.Now}
}

func (s *factStore) Transaction(ctx context.Context, fn func(tx domain.FactStore) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&factStore{DB: tx, now: s.now})
	})
}

func (s *factStore) StoreItem(ctx context.Context, it *domain.Item) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	now := s.now().UTC()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	it.UpdatedAt = now

	itemModel := model.NewItemFromDomain(it)
	result := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(itemModel)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *factStore) GetItem(ctx context.Context, id string) (domain.Item, error) {
	var it model.Item
	err := s.DB.WithContext(ctx).First(&it, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Item{}, domain.ErrNotFound
	} else if err != nil {
		return domain.Item{}, err
	}
	return it.ToDomain(), nil
}

func (s *factStore) DeleteItem(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("item_id = ?", id).Delete(&model.LikeFact{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&model.Item{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (s *factStore) IncrementItemLikes(ctx context.Context, id string, delta int64) (int64, error) {
	if delta != 0 {
		q := s.DB.WithContext(ctx).Model(&model.Item{}).Where("id = ?", id)
		if delta < 0 {
			q = q.Where("likes >= ?", -delta)
		}
		result := q.UpdateColumn("likes", gorm.Expr("likes + ?", delta))
		if result.Error != nil {
			return 0, fmt.Errorf("increment likes of %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			it, err := s.GetItem(ctx, id)
			if err != nil {
				return 0, err
			}
			logrus.Warnf("likes of item %s clamped at %d, delta %d not applied", id, it.Likes, delta)
			return it.Likes, nil
		}
	}

	it, err := s.GetItem(ctx, id)
	if err != nil {
		return 0, err
	}
	return it.Likes, nil
}

func (s *factStore) InsertLikeFact(ctx context.Context, f domain.LikeFact) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now()
	}
	factModel := model.NewLikeFactFromDomain(f)
	result := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&factModel)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *factStore) GetLikeFact(ctx context.Context, itemID, userID string) (domain.LikeFact, error) {
	var f model.LikeFact
	err := s.DB.WithContext(ctx).
		Where("item_id = ? AND user_id = ?", itemID, userID).
		First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.LikeFact{}, domain.ErrNotFound
	} else if err != nil {
		return domain.LikeFact{}, err
	}
	return f.ToDomain(), nil
}

func (s *factStore) DeleteLikeFact(ctx context.Context, itemID, userID string) (domain.LikeFact, error) {
	f, err := s.GetLikeFact(ctx, itemID, userID)
	if err != nil {
		return domain.LikeFact{}, err
	}

	result := s.DB.WithContext(ctx).
		Where("item_id = ? AND user_id = ?", itemID, userID).
		Delete(&model.LikeFact{})
	if result.Error != nil {
		return domain.LikeFact{}, result.Error
	}

	// a concurrent unlike removed it between the read and the delete
	if result.RowsAffected == 0 {
		return domain.LikeFact{}, domain.ErrNotFound
	}
	return f, nil
}

func (s *factStore) QueryLikeFactsInRange(ctx context.Context, start, end time.Time) ([]domain.LikeFact, error) {
	var facts []model.LikeFact
	err := s.DB.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", start.UTC(), end.UTC()).
		Order("created_at").
		Find(&facts).Error
	if err != nil {
		return nil, err
	}

	res := make([]domain.LikeFact, len(facts))
	for i := range facts {
		res[i] = facts[i].ToDomain()
	}
	return res, nil
}

func (s *factStore) FetchItemLikeFacts(ctx context.Context, itemID string) ([]domain.LikeFact, error) {
	var facts []model.LikeFact
	err := s.DB.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at").
		Find(&facts).Error
	if err != nil {
		return nil, err
	}

	res := make([]domain.LikeFact, len(facts))
	for i := range facts {
		res[i] = facts[i].ToDomain()
	}
	return res, nil
}
