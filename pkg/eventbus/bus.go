// Package eventbus publishes and subscribes to JSON events over NATS and
// names the ledger subjects for committed and undone transactions. The
// ledger workflows do not publish; Publish is available to any caller.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/richxcame/bus-ledger/pkg/logger"
)

// Event is one message on the bus: a subject-scoped, JSON-encoded payload.
type Event struct {
	Subject string
	Data    []byte
}

// Handler processes one delivered Event.
type Handler func(ctx context.Context, event *Event) error

// Bus wraps a NATS connection with a JSON publish helper and a durable
// queue-subscribe helper, mirroring the connect/reconnect and
// subscribe-with-queue-group shape a NATS-backed service needs.
type Bus struct {
	conn *nats.Conn
}

// Connect dials url with reconnect-on-disconnect behavior: unlimited
// reconnect attempts, two seconds apart, with disconnects and reconnects
// logged.
func Connect(url string) (*Bus, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("eventbus: disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(*nats.Conn) {
			logger.Info("eventbus: reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect: %w", err)
	}
	return &Bus{conn: conn}, nil
}

// Close closes the underlying connection without draining it.
func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// Publish marshals payload as JSON and publishes it on subject.
func (b *Bus) Publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("eventbus: marshal %s event: %w", subject, err)
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("eventbus: publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers handler on subject within queue group queue, so
// multiple instances of the same consumer load-balance deliveries instead
// of each receiving every message.
func (b *Bus) Subscribe(ctx context.Context, subject, queue string, handler Handler) error {
	_, err := b.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		if err := handler(ctx, &Event{Subject: msg.Subject, Data: msg.Data}); err != nil {
			logger.Error(fmt.Sprintf("eventbus: handler for %s failed", subject), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("eventbus: subscribe %s: %w", subject, err)
	}
	return nil
}
