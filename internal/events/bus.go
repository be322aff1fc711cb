package events

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// ErrRecursivePublish is returned when a handler republishes the event type it
// is currently handling. The nested event is dropped.
var ErrRecursivePublish = errors.New("recursive publish")

// Handler reacts to a published event. Returned errors and panics are logged
// by the bus and never reach the publisher.
type Handler interface {
	HandleEvent(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler. Function values cannot be
// compared, so a HandlerFunc is never deduplicated and can only be removed
// through the Subscription returned by Subscribe.
type HandlerFunc func(ctx context.Context, event Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler Handler) *Subscription
	Unsubscribe(eventType EventType, handler Handler)
}

// Subscription is a single registration on a Bus.
type Subscription struct {
	bus       *Bus
	id        uint64
	eventType EventType
	handler   Handler
}

// EventType returns the subscribed type, AllEvents for wildcard subscriptions.
func (s *Subscription) EventType() EventType { return s.eventType }

// Unsubscribe removes the registration. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.remove(func(candidate *Subscription) bool { return candidate.id == s.id })
}

// Bus is a synchronous in-process publish/subscribe primitive. One Bus is
// built at process start and injected into every publisher and subscriber.
//
// Handlers run on the publisher's goroutine, in subscription order. A handler
// that publishes again must pass on the context it received: the bus tracks
// the event types in delivery through that context and drops republication of
// an in-flight type instead of recursing. Publishing with a fresh context
// bypasses the guard.
type Bus struct {
	mu     sync.RWMutex
	logger *zap.Logger
	subs   []*Subscription
	nextID uint64
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

// Subscribe registers handler for eventType, or for every event when eventType
// is AllEvents. Subscribing the same comparable handler to the same type again
// returns the existing subscription.
func (b *Bus) Subscribe(eventType EventType, handler Handler) *Subscription {
	if handler == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if sub.eventType == eventType && sameHandler(sub.handler, handler) {
			return sub
		}
	}
	b.nextID++
	sub := &Subscription{bus: b, id: b.nextID, eventType: eventType, handler: handler}
	b.subs = append(b.subs, sub)
	return sub
}

// Unsubscribe removes the registration of handler for eventType. It is safe to
// call for handlers that are not registered.
func (b *Bus) Unsubscribe(eventType EventType, handler Handler) {
	if handler == nil {
		return
	}
	removed := b.remove(func(sub *Subscription) bool {
		return sub.eventType == eventType && sameHandler(sub.handler, handler)
	})
	if removed == 0 {
		b.logger.Debug("unsubscribe matched no registration",
			zap.String("event_type", string(eventType)),
			zap.String("handler_type", fmt.Sprintf("%T", handler)))
	}
}

// Clear removes every registration.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}

// Len returns the number of registrations.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers event to every matching handler before returning. Handler
// failures are logged and never returned; the only errors are for malformed
// events and dropped recursive publication.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if event.Type == "" || event.Type == AllEvents {
		return fmt.Errorf("publish: invalid event type %q", event.Type)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if inFlight(ctx, event.Type) {
		b.logger.Warn("dropping recursive publish",
			zap.String("event_type", string(event.Type)),
			zap.String("entity_id", event.EntityID))
		return ErrRecursivePublish
	}

	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.eventType == event.Type || sub.eventType == AllEvents {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	handlerCtx := context.WithValue(ctx, deliveryKey{}, &delivery{eventType: event.Type, parent: deliveryFrom(ctx)})
	for _, sub := range targets {
		b.deliver(handlerCtx, sub, event)
	}
	return nil
}

func (b *Bus) deliver(ctx context.Context, sub *Subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event_type", string(event.Type)),
				zap.String("entity_id", event.EntityID),
				zap.Uint64("subscription", sub.id),
				zap.Any("panic", r))
		}
	}()
	if err := sub.handler.HandleEvent(ctx, event); err != nil {
		b.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("entity_id", event.EntityID),
			zap.Uint64("subscription", sub.id),
			zap.Error(err))
	}
}

func (b *Bus) remove(match func(*Subscription) bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subs[:0]
	for _, sub := range b.subs {
		if !match(sub) {
			kept = append(kept, sub)
		}
	}
	removed := len(b.subs) - len(kept)
	for i := len(kept); i < len(b.subs); i++ {
		b.subs[i] = nil
	}
	b.subs = kept
	return removed
}

// sameHandler compares handlers without panicking on uncomparable dynamic types.
func sameHandler(a, b Handler) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

type deliveryKey struct{}

type delivery struct {
	eventType EventType
	parent    *delivery
}

func deliveryFrom(ctx context.Context) *delivery {
	d, _ := ctx.Value(deliveryKey{}).(*delivery)
	return d
}

func inFlight(ctx context.Context, eventType EventType) bool {
	for d := deliveryFrom(ctx); d != nil; d = d.parent {
		if d.eventType == eventType {
			return true
		}
	}
	return false
}
