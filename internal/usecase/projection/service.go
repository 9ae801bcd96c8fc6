package projection

import (
	"context"

	"github.com/Guyuepp/popularity-service/domain"
)

const (
	DefaultTopLimit = 10
	MaxTopLimit     = 100
)

type Service struct {
	projections domain.ProjectionStore
}

var _ domain.ProjectionUsecase = (*Service)(nil)

func NewService(p domain.ProjectionStore) *Service {
	return &Service{projections: p}
}

func (s *Service) Get(ctx context.Context, id string) (domain.Projection, error) {
	p, err := s.projections.Get(ctx, id)
	if err != nil {
		return domain.Projection{}, err
	}
	return p, nil
}

// Top returns the highest ranked documents. The limit is clamped to [1, MaxTopLimit].
func (s *Service) Top(ctx context.Context, field domain.SortField, limit int64) ([]domain.Projection, error) {
	if _, err := domain.ParseSortField(string(field)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	limit = min(limit, MaxTopLimit)

	res, err := s.projections.Top(ctx, field, limit)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = []domain.Projection{}
	}
	return res, nil
}
