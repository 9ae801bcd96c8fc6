package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/Guyuepp/popularity-service/domain"
)

// ProjectionStore keeps projections in process memory. It backs local runs with
// PROJECTION_BACKEND=memory and the usecase tests.
type ProjectionStore struct {
	mu   sync.RWMutex
	docs map[string]domain.Projection

	// Fail, when set, is consulted before every call and its error returned.
	Fail func(op, id string) error
}

var _ domain.ProjectionStore = (*ProjectionStore)(nil)

func NewProjectionStore() *ProjectionStore {
	return &ProjectionStore{docs: make(map[string]domain.Projection)}
}

func (s *ProjectionStore) fail(op, id string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op, id)
}

func (s *ProjectionStore) Get(_ context.Context, id string) (domain.Projection, error) {
	if err := s.fail("get", id); err != nil {
		return domain.Projection{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.docs[id]
	if !ok {
		return domain.Projection{}, domain.ErrProjectionNotFound
	}
	return clone(p), nil
}

func (s *ProjectionStore) UpdateFields(_ context.Context, id string, u domain.ProjectionUpdate) error {
	if err := s.fail("update", id); err != nil {
		return err
	}
	if u.IsEmpty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.docs[id]
	if !ok {
		return domain.ErrProjectionNotFound
	}
	if u.Likes != nil {
		p.Likes = *u.Likes
	}
	if u.LikesDay != nil {
		p.LikesDay = *u.LikesDay
	}
	if u.LikesWeek != nil {
		p.LikesWeek = *u.LikesWeek
	}
	if u.LikesList != nil {
		p.LikesList = slices.Clone(u.LikesList)
	}
	s.docs[id] = p
	return nil
}

func (s *ProjectionStore) Add(_ context.Context, p domain.Projection) error {
	if err := s.fail("add", p.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[p.ID] = clone(p)
	return nil
}

func (s *ProjectionStore) Delete(_ context.Context, id string) error {
	if err := s.fail("delete", id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, id)
	return nil
}

func (s *ProjectionStore) Top(_ context.Context, field domain.SortField, limit int64) ([]domain.Projection, error) {
	if err := s.fail("top", ""); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	res := make([]domain.Projection, 0, len(s.docs))
	for _, p := range s.docs {
		res = append(res, clone(p))
	}
	s.mu.RUnlock()

	score := func(p domain.Projection) int64 {
		switch field {
		case domain.SortByLikesDay:
			return p.LikesDay
		case domain.SortByLikesWeek:
			return p.LikesWeek
		default:
			return p.Likes
		}
	}
	sort.Slice(res, func(i, j int) bool {
		si, sj := score(res[i]), score(res[j])
		if si != sj {
			return si > sj
		}
		return res[i].ID > res[j].ID
	})
	if int64(len(res)) > limit {
		res = res[:limit]
	}
	return res, nil
}

func clone(p domain.Projection) domain.Projection {
	p.LikesList = slices.Clone(p.LikesList)
	if p.LikesList == nil {
		p.LikesList = []string{}
	}
	return p
}
