// Package bus consumes core change events from NATS.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ocpi/internal/config"
	"ocpi/internal/logging"
	"ocpi/internal/metrics"
	"ocpi/internal/models"

	"github.com/nats-io/nats.go"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, ev models.ChangeEvent)
}

func Connect(cfg config.NATSConfig, log *logging.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("ocpi-adapter"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", logging.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

// Subscriber feeds change events to the dispatcher. Messages of one
// subscription are handled one at a time, in delivery order.
type Subscriber struct {
	conn       *nats.Conn
	subject    string
	queue      string
	dispatcher Dispatcher
	log        *logging.Logger

	ctx context.Context
	sub *nats.Subscription
}

func NewSubscriber(conn *nats.Conn, subject, queue string, d Dispatcher, log *logging.Logger) *Subscriber {
	return &Subscriber{conn: conn, subject: subject, queue: queue, dispatcher: d, log: log}
}

// Start subscribes. Handlers get ctx's values but not its cancellation, so
// messages drained by Stop still complete.
func (s *Subscriber) Start(ctx context.Context) error {
	s.ctx = context.WithoutCancel(ctx)
	sub, err := s.conn.QueueSubscribe(s.subject, s.queue, s.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	s.sub = sub
	s.log.InfoContext(ctx, "subscribed to change events", "subject", s.subject, "queue", s.queue)
	return nil
}

// Stop drains pending messages before unsubscribing.
func (s *Subscriber) Stop() error {
	if s.sub == nil {
		return nil
	}
	err := s.sub.Drain()
	s.sub = nil
	return err
}

func (s *Subscriber) handle(msg *nats.Msg) {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ev, err := Decode(msg)
	if err != nil {
		metrics.ChangeEventsTotal.WithLabelValues("", "", "malformed").Inc()
		s.log.WarnContext(ctx, "dropping malformed change event", "subject", msg.Subject, logging.Error(err))
		return
	}
	s.dispatcher.Dispatch(ctx, ev)
}

// Decode reads a change event. Entity and event type missing from the body
// are taken from a subject of the form <prefix>.<Entity>.<EVENT>; the id
// falls back to the Nats-Msg-Id header.
func Decode(msg *nats.Msg) (models.ChangeEvent, error) {
	var ev models.ChangeEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return ev, err
	}
	if ev.EntityType == "" || ev.EventType == "" {
		parts := strings.Split(msg.Subject, ".")
		if len(parts) >= 2 {
			if ev.EntityType == "" {
				ev.EntityType = models.EntityType(parts[len(parts)-2])
			}
			if ev.EventType == "" {
				ev.EventType = models.EventType(strings.ToUpper(parts[len(parts)-1]))
			}
		}
	}
	if ev.ID == "" && msg.Header != nil {
		ev.ID = msg.Header.Get(nats.MsgIdHdr)
	}
	if ev.EntityType == "" || ev.EventType == "" {
		return ev, errors.New("change event without entity or event type")
	}
	if len(ev.New) == 0 {
		return ev, errors.New("change event without payload")
	}
	return ev, nil
}
