package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/Guyuepp/popularity-service/domain"
)

type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

type natsPublisher struct {
	conn   msgPublisher
	prefix string
}

var _ domain.EventPublisher = (*natsPublisher)(nil)

// Connect dials NATS with unlimited reconnects. The caller owns the returned connection.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("popularity-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logrus.Warnf("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logrus.Infof("nats reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

// NewNATSPublisher publishes every event as JSON on "<prefix>.<event type>".
func NewNATSPublisher(conn *nats.Conn, prefix string) *natsPublisher {
	return &natsPublisher{conn: conn, prefix: prefix}
}

func (p *natsPublisher) Publish(ctx context.Context, e domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}

	msg := nats.NewMsg(p.prefix + "." + string(e.Type))
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	msg.Data = data
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s event: %w", e.Type, err)
	}
	return nil
}

type discard struct{}

// Discard drops every event. It is used when no NATS_URL is configured.
var Discard domain.EventPublisher = discard{}

func (discard) Publish(context.Context, domain.Event) error { return nil }
