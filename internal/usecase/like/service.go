package like

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/popularity-service/domain"
)

type Service struct {
	facts  domain.FactStore
	syncer domain.CounterSyncer
	events domain.EventPublisher
	now    func() time.Time
}

var _ domain.LikeUsecase = (*Service)(nil)

// NewService will create a new like service object
func NewService(f domain.FactStore, s domain.CounterSyncer, e domain.EventPublisher) *Service {
	return &Service{
		facts:  f,
		syncer: s,
		events: e,
		now:    time.Now,
	}
}

// WithClock replaces the time source used to stamp new like facts.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Like(ctx context.Context, itemID, userID string) (domain.Item, error) {
	if itemID == "" || userID == "" {
		return domain.Item{}, domain.ErrBadParamInput
	}

	var it domain.Item
	err := s.facts.Transaction(ctx, func(tx domain.FactStore) error {
		var err error
		if it, err = tx.GetItem(ctx, itemID); err != nil {
			return err
		}
		fact := domain.LikeFact{ItemID: itemID, UserID: userID, CreatedAt: s.now().UTC()}
		if err := tx.InsertLikeFact(ctx, fact); err != nil {
			return err
		}
		it.Likes, err = tx.IncrementItemLikes(ctx, itemID, 1)
		return err
	})
	if err != nil {
		return domain.Item{}, err
	}

	s.afterCommit(ctx, domain.LikeDelta{
		ItemID: itemID,
		UserID: userID,
		Action: domain.Like,
		Likes:  it.Likes,
	})
	return it, nil
}

func (s *Service) Unlike(ctx context.Context, itemID, userID string) (domain.Item, error) {
	if itemID == "" || userID == "" {
		return domain.Item{}, domain.ErrBadParamInput
	}

	var (
		it   domain.Item
		fact domain.LikeFact
	)
	err := s.facts.Transaction(ctx, func(tx domain.FactStore) error {
		var err error
		if it, err = tx.GetItem(ctx, itemID); err != nil {
			return err
		}
		if fact, err = tx.DeleteLikeFact(ctx, itemID, userID); err != nil {
			return err
		}
		it.Likes, err = tx.IncrementItemLikes(ctx, itemID, -1)
		return err
	})
	if err != nil {
		return domain.Item{}, err
	}

	s.afterCommit(ctx, domain.LikeDelta{
		ItemID:        itemID,
		UserID:        userID,
		Action:        domain.Unlike,
		Likes:         it.Likes,
		FactCreatedAt: fact.CreatedAt,
	})
	return it, nil
}

// afterCommit propagates a committed like change. Neither step can fail the caller.
func (s *Service) afterCommit(ctx context.Context, d domain.LikeDelta) {
	// a missing projection is already logged and queued for repair by the syncer
	_ = s.syncer.ApplyLikeDelta(ctx, d)

	eventType := domain.EventItemLiked
	if d.Action == domain.Unlike {
		eventType = domain.EventItemUnliked
	}
	err := s.events.Publish(ctx, domain.Event{
		Type:       eventType,
		ItemID:     d.ItemID,
		UserID:     d.UserID,
		Likes:      d.Likes,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		logrus.Warnf("failed to publish %s event for item %s: %v", eventType, d.ItemID, err)
	}
}
