// Package events provides a small synchronous event dispatcher for wiring
// application callbacks to lifecycle moments such as pool creation or
// record changes.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Handler receives dispatched events
type Handler func(ctx context.Context, payload any)

// Dispatcher routes events to subscribed handlers. Dispatch is
// synchronous: handlers run on the caller's goroutine in subscription
// order.
type Dispatcher struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	handlers map[string][]subscription
}

type subscription struct {
	token   string
	handler Handler
}

// NewDispatcher creates an empty dispatcher. The logger receives handler
// panics; nil discards them.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		handlers: make(map[string][]subscription),
	}
}

// Subscribe registers fn for event and returns a token for Unsubscribe
func (d *Dispatcher) Subscribe(event string, fn Handler) string {
	token := uuid.NewString()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[event] = append(d.handlers[event], subscription{token: token, handler: fn})
	return token
}

// Unsubscribe removes the handler registered under token. Unknown tokens
// are ignored.
func (d *Dispatcher) Unsubscribe(token string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for event, subs := range d.handlers {
		for i, sub := range subs {
			if sub.token != token {
				continue
			}
			d.handlers[event] = append(subs[:i:i], subs[i+1:]...)
			if len(d.handlers[event]) == 0 {
				delete(d.handlers, event)
			}
			return
		}
	}

	if d.logger != nil {
		d.logger.Warn("unsubscribe for unknown token",
			slog.String("token", token),
		)
	}
}

// Subscribers returns the number of handlers registered for event
func (d *Dispatcher) Subscribers(event string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[event])
}

// Dispatch delivers payload to every handler subscribed to event. A
// panicking handler is logged and does not stop delivery to the rest.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, payload any) {
	d.mu.RLock()
	subs := make([]subscription, len(d.handlers[event]))
	copy(subs, d.handlers[event])
	d.mu.RUnlock()

	if len(subs) == 0 {
		if d.logger != nil {
			d.logger.Debug("no handlers for event",
				slog.String("event", event),
			)
		}
		return
	}

	for _, sub := range subs {
		d.deliver(ctx, event, sub, payload)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event string, sub subscription, payload any) {
	defer func() {
		if r := recover(); r != nil && d.logger != nil {
			d.logger.Error("event handler panicked",
				slog.String("event", event),
				slog.Any("panic", r),
			)
		}
	}()
	sub.handler(ctx, payload)
}
