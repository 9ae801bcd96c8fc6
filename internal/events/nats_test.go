package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guyuepp/popularity-service/domain"
)

type recorder struct {
	msgs []*nats.Msg
	err  error
}

func (r *recorder) PublishMsg(m *nats.Msg) error {
	r.msgs = append(r.msgs, m)
	return r.err
}

func TestNATSPublisher(t *testing.T) {
	rec := &recorder{}
	p := &natsPublisher{conn: rec, prefix: "popularity"}
	at := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), domain.Event{
		Type:       domain.EventItemLiked,
		ItemID:     "item-1",
		UserID:     "user-1",
		Likes:      3,
		OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, rec.msgs, 1)

	msg := rec.msgs[0]
	assert.Equal(t, "popularity.item.liked", msg.Subject)
	assert.NotEmpty(t, msg.Header.Get(nats.MsgIdHdr))

	var got domain.Event
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "item-1", got.ItemID)
	assert.Equal(t, int64(3), got.Likes)
	assert.True(t, at.Equal(got.OccurredAt))
}

func TestNATSPublisherErrors(t *testing.T) {
	down := errors.New("nats: connection closed")
	p := &natsPublisher{conn: &recorder{err: down}, prefix: "popularity"}

	err := p.Publish(context.Background(), domain.Event{Type: domain.EventItemDeleted, ItemID: "item-1"})
	assert.ErrorIs(t, err, down)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, domain.Event{Type: domain.EventItemDeleted}), context.Canceled)

	assert.NoError(t, Discard.Publish(context.Background(), domain.Event{}))
}
