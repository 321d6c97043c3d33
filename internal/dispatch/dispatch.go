// Package dispatch routes core change events to the handler registered for
// their (event type, entity type) pair.
package dispatch

import (
	"context"
	"fmt"

	"ocpi/internal/logging"
	"ocpi/internal/metrics"
	"ocpi/internal/models"
)

type Key struct {
	Event  models.EventType
	Entity models.EntityType
}

type HandlerFunc func(ctx context.Context, ev models.ChangeEvent)

// Registry is filled once at startup and read-only afterwards.
type Registry struct {
	handlers map[Key]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Key]HandlerFunc)}
}

// Register panics on a duplicate key: two handlers for one key is a wiring bug.
func (r *Registry) Register(event models.EventType, entity models.EntityType, h HandlerFunc) {
	k := Key{Event: event, Entity: entity}
	if _, dup := r.handlers[k]; dup {
		panic(fmt.Sprintf("dispatch: duplicate handler for %s %s", event, entity))
	}
	r.handlers[k] = h
}

func (r *Registry) Lookup(event models.EventType, entity models.EntityType) (HandlerFunc, bool) {
	h, ok := r.handlers[Key{Event: event, Entity: entity}]
	return h, ok
}

func (r *Registry) Len() int { return len(r.handlers) }

type Dispatcher struct {
	registry *Registry
	log      *logging.Logger
}

func NewDispatcher(registry *Registry, log *logging.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, log: log}
}

// Dispatch runs the matching handler. Events without a handler are dropped.
// A panicking handler is contained to its event.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.ChangeEvent) {
	log := d.log.With(
		logging.EventID(ev.ID),
		logging.EventType(string(ev.EventType)),
		logging.EntityType(string(ev.EntityType)),
		logging.TenantID(ev.TenantID))

	h, ok := d.registry.Lookup(ev.EventType, ev.EntityType)
	if !ok {
		metrics.ChangeEventsTotal.WithLabelValues(string(ev.EntityType), string(ev.EventType), "unhandled").Inc()
		log.DebugContext(ctx, "no handler for change event")
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			metrics.ChangeEventsTotal.WithLabelValues(string(ev.EntityType), string(ev.EventType), "panic").Inc()
			log.ErrorContext(ctx, "change event handler panicked", "panic", fmt.Sprint(rec))
		}
	}()
	h(ctx, ev)
	metrics.ChangeEventsTotal.WithLabelValues(string(ev.EntityType), string(ev.EventType), "handled").Inc()
}
