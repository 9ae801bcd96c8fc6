package sqldb

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Guyuepp/popularity-service/domain"
	"github.com/Guyuepp/popularity-service/internal/repository/sqldb/model"
)

type decayCursorRepository struct {
	DB *gorm.DB
}

var _ domain.DecayCursorRepository = (*decayCursorRepository)(nil)

func NewDecayCursorRepository(db *gorm.DB) *decayCursorRepository {
	return &decayCursorRepository{DB: db}
}

func (r *decayCursorRepository) GetCursor(ctx context.Context, w domain.Window) (time.Time, error) {
	var c model.DecayCursor
	err := r.DB.WithContext(ctx).First(&c, "window_name = ?", string(w)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, domain.ErrNotFound
	} else if err != nil {
		return time.Time{}, err
	}
	return c.BucketEnd.UTC(), nil
}

func (r *decayCursorRepository) AdvanceCursor(ctx context.Context, w domain.Window, from, to time.Time) error {
	if from.IsZero() {
		result := r.DB.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.DecayCursor{WindowName: string(w), BucketEnd: to.UTC()})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrCursorConflict
		}
		return nil
	}

	result := r.DB.WithContext(ctx).
		Model(&model.DecayCursor{}).
		Where("window_name = ? AND bucket_end = ?", string(w), from.UTC()).
		Updates(map[string]any{
			"bucket_end": to.UTC(),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrCursorConflict
	}
	return nil
}
