package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"raywatch/internal/domain"
	"raywatch/internal/log"
)

// Sink receives events from the bus
type Sink interface {
	Emit(ctx context.Context, ev domain.Event) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, ev domain.Event) error

// Emit calls f
func (f SinkFunc) Emit(ctx context.Context, ev domain.Event) error {
	return f(ctx, ev)
}

type subscriber struct {
	name     string
	sink     Sink
	required bool
}

// EventBus fans events out to every registered sink. Sinks are called one
// after another in registration order, so each sink sees the stream in
// publish order.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe adds an optional sink. Its failures are logged and otherwise
// ignored.
func (eb *EventBus) Subscribe(name string, s Sink) {
	eb.subscribe(subscriber{name: name, sink: s})
}

// SubscribeRequired adds a sink whose failures are reported by Publish
func (eb *EventBus) SubscribeRequired(name string, s Sink) {
	eb.subscribe(subscriber{name: name, sink: s, required: true})
}

func (eb *EventBus) subscribe(s subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, s)
}

// Publish delivers ev to every sink. Every sink is tried even when an
// earlier one fails. The returned error joins the failures of required
// sinks.
func (eb *EventBus) Publish(ctx context.Context, ev domain.Event) error {
	eb.mu.RLock()
	subs := eb.subscribers
	eb.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := s.sink.Emit(ctx, ev); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "event sink failed",
				slog.String("sink", s.name),
				slog.String("event", string(ev.Type)),
				slog.Any("error", err))
			if s.required {
				errs = append(errs, fmt.Errorf("sink %s: %w", s.name, err))
			}
		}
	}
	return errors.Join(errs...)
}

type cycleIDKey struct{}

// WithCycleID returns a context carrying the ID of the running cycle
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey{}, id)
}

// CycleID returns the ID of the cycle ctx belongs to, or ""
func CycleID(ctx context.Context) string {
	id, _ := ctx.Value(cycleIDKey{}).(string)
	return id
}
