package item

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/popularity-service/domain"
)

type Service struct {
	facts       domain.FactStore
	projections domain.ProjectionStore
	writer      domain.ProjectionWriter
	repair      domain.RepairWorker
	reporter    domain.DriftReporter
	events      domain.EventPublisher
	syncTimeout time.Duration
}

var _ domain.ItemUsecase = (*Service)(nil)

// NewService will create a new item service object
func NewService(f domain.FactStore, p domain.ProjectionStore, w domain.ProjectionWriter, r domain.RepairWorker,
	dr domain.DriftReporter, e domain.EventPublisher, syncTimeout time.Duration) *Service {
	return &Service{
		facts:       f,
		projections: p,
		writer:      w,
		repair:      r,
		reporter:    dr,
		events:      e,
		syncTimeout: syncTimeout,
	}
}

func (s *Service) Create(ctx context.Context, it *domain.Item) error {
	it.Title = strings.TrimSpace(it.Title)
	if it.OwnerID == "" || it.Title == "" {
		return domain.ErrBadParamInput
	}
	it.Likes = 0

	if err := s.facts.StoreItem(ctx, it); err != nil {
		return err
	}

	err := s.writeProjection(ctx, it.ID, func(ctx context.Context) error {
		return s.projections.Add(ctx, domain.NewProjection(*it))
	})
	if err != nil {
		logrus.Warnf("failed to add projection of item %s: %v", it.ID, err)
		s.reporter.ProjectionWriteFailed("create")
		s.repair.Send(it.ID)
	}

	s.publish(ctx, domain.Event{Type: domain.EventItemCreated, ItemID: it.ID, UserID: it.OwnerID})
	return nil
}

func (s *Service) Get(ctx context.Context, id string, viewerID string) (domain.ItemView, error) {
	it, err := s.facts.GetItem(ctx, id)
	if err != nil {
		return domain.ItemView{}, err
	}
	view := domain.ItemView{Item: it}
	if viewerID == "" {
		return view, nil
	}

	_, err = s.facts.GetLikeFact(ctx, id, viewerID)
	switch {
	case err == nil:
		view.UserLiked = true
	case errors.Is(err, domain.ErrNotFound):
	default:
		return domain.ItemView{}, err
	}
	return view, nil
}

func (s *Service) Delete(ctx context.Context, id string, callerID string) error {
	it, err := s.facts.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if it.OwnerID != callerID {
		return domain.ErrForbidden
	}
	if err := s.facts.DeleteItem(ctx, id); err != nil {
		return err
	}

	err = s.writeProjection(ctx, id, func(ctx context.Context) error {
		return s.projections.Delete(ctx, id)
	})
	if err != nil {
		// reconciling a deleted item removes its projection
		logrus.Warnf("failed to delete projection of item %s: %v", id, err)
		s.reporter.ProjectionWriteFailed("delete")
		s.repair.Send(id)
	}

	s.publish(ctx, domain.Event{Type: domain.EventItemDeleted, ItemID: id, UserID: callerID, Likes: it.Likes})
	return nil
}

func (s *Service) writeProjection(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	if s.syncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.syncTimeout)
		defer cancel()
	}
	return s.writer.Do(ctx, id, fn)
}

func (s *Service) publish(ctx context.Context, e domain.Event) {
	e.OccurredAt = time.Now().UTC()
	if err := s.events.Publish(ctx, e); err != nil {
		logrus.Warnf("failed to publish %s event for item %s: %v", e.Type, e.ItemID, err)
	}
}
