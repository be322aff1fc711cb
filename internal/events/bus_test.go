package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fixbench/repair-desk/internal/events"
)

type recorder struct {
	name  string
	calls *[]string
	err   error
}

func (r *recorder) HandleEvent(_ context.Context, event events.Event) error {
	*r.calls = append(*r.calls, r.name+":"+string(event.Type))
	return r.err
}

func statusChanged() events.Event {
	return events.Event{
		Type:     events.EventTicketStatusChanged,
		EntityID: "ticket-1",
		Actor:    events.StaffActor("tech-1"),
	}
}

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t))
	var calls []string
	h1 := &recorder{name: "h1", calls: &calls}
	h2 := &recorder{name: "h2", calls: &calls}

	bus.Subscribe(events.EventTicketStatusChanged, h1)
	bus.Subscribe(events.EventTicketStatusChanged, h2)

	require.NoError(t, bus.Publish(context.Background(), statusChanged()))
	assert.Equal(t, []string{"h1:ticket_status_changed", "h2:ticket_status_changed"}, calls)

	calls = calls[:0]
	bus.Unsubscribe(events.EventTicketStatusChanged, h1)
	require.NoError(t, bus.Publish(context.Background(), statusChanged()))
	assert.Equal(t, []string{"h2:ticket_status_changed"}, calls)
}

func TestBus_DeduplicatesIdenticalSubscriptions(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t))
	var calls []string
	h := &recorder{name: "h", calls: &calls}

	first := bus.Subscribe(events.EventTicketStatusChanged, h)
	second := bus.Subscribe(events.EventTicketStatusChanged, h)
	assert.Same(t, first, second)
	assert.Equal(t, 1, bus.Len())

	require.NoError(t, bus.Publish(context.Background(), statusChanged()))
	assert.Len(t, calls, 1)
}

func TestBus_UnsubscribeIsIdempotent(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t))
	var calls []string
	h := &recorder{name: "h", calls: &calls}

	bus.Unsubscribe(events.EventTicketStatusChanged, h)
	sub := bus.Subscribe(events.EventTicketStatusChanged, h)
	bus.Unsubscribe(events.EventTicketStatusChanged, h)
	bus.Unsubscribe(events.EventTicketStatusChanged, h)
	sub.Unsubscribe()
	sub.Unsubscribe()

	assert.Zero(t, bus.Len())
	require.NoError(t, bus.Publish(context.Background(), statusChanged()))
	assert.Empty(t, calls)
}

func TestBus_WildcardReceivesEveryType(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t))
	var calls []string
	exact := &recorder{name: "exact", calls: &calls}
	all := &recorder{name: "all", calls: &calls}

	bus.Subscribe(events.AllEvents, all)
	bus.Subscribe(events.EventInvoiceCreated, exact)

	require.NoError(t, bus.Publish(context.Background(), events.Event{Type: events.EventInvoiceCreated}))
	require.NoError(t, bus.Publish(context.Background(), events.Event{Type: events.EventCustomerDeleted}))

	assert.Equal(t, []string{
		"all:invoice_created",
		"exact:invoice_created",
		"all:customer_deleted",
	}, calls)
}

func TestBus_HandlerFailuresAreIsolated(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t))
	var calls []string

	bus.Subscribe(events.EventTicketStatusChanged, events.HandlerFunc(func(context.Context, events.Event) error {
		panic("view closed underneath us")
	}))
	bus.Subscribe(events.EventTicketStatusChanged, &recorder{name: "failing", calls: &calls, err: errors.New("boom")})
	bus.Subscribe(events.EventTicketStatusChanged, &recorder{name: "last", calls: &calls})

	err := bus.Publish(context.Background(), statusChanged())
	require.NoError(t, err)
	assert.Equal(t, []string{"failing:ticket_status_changed", "last:ticket_status_changed"}, calls)
}

func TestBus_HandlerFuncSubscriptionsAreDistinct(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t))
	count := 0
	fn := events.HandlerFunc(func(context.Context, events.Event) error {
		count++
		return nil
	})

	sub := bus.Subscribe(events.EventTicketUpdated, fn)
	bus.Subscribe(events.EventTicketUpdated, fn)
	bus.Unsubscribe(events.EventTicketUpdated, fn)
	assert.Equal(t, 2, bus.Len())

	sub.Unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), events.Event{Type: events.EventTicketUpdated}))
	assert.Equal(t, 1, count)
}

func TestBus_DropsRecursivePublish(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t))
	var nestedErr error
	deliveries := 0
	invoiceUpdates := 0

	bus.Subscribe(events.EventTicketUpdated, events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		deliveries++
		nestedErr = bus.Publish(ctx, event)
		return bus.Publish(ctx, events.Event{Type: events.EventInvoiceUpdated})
	}))
	bus.Subscribe(events.EventInvoiceUpdated, events.HandlerFunc(func(context.Context, events.Event) error {
		invoiceUpdates++
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), events.Event{Type: events.EventTicketUpdated}))
	assert.Equal(t, 1, deliveries)
	assert.ErrorIs(t, nestedErr, events.ErrRecursivePublish)
	assert.Equal(t, 1, invoiceUpdates)
}

func TestBus_ClearAndInvalidTypes(t *testing.T) {
	bus := events.NewBus(nil)
	var calls []string
	bus.Subscribe(events.EventTicketCreated, &recorder{name: "h", calls: &calls})
	bus.Clear()

	require.NoError(t, bus.Publish(context.Background(), events.Event{Type: events.EventTicketCreated}))
	assert.Empty(t, calls)
	assert.Error(t, bus.Publish(context.Background(), events.Event{}))
	assert.Error(t, bus.Publish(context.Background(), events.Event{Type: events.AllEvents}))
}

func TestBus_UnmatchedUnsubscribeIsLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	bus := events.NewBus(zap.New(core))
	var calls []string
	fn := events.HandlerFunc(func(context.Context, events.Event) error {
		calls = append(calls, "fn")
		return nil
	})
	bus.Subscribe(events.EventTicketStatusChanged, fn)

	bus.Unsubscribe(events.EventTicketStatusChanged, fn)
	assert.Equal(t, 1, bus.Len(), "func handlers are never matched by value")
	entries := logs.FilterMessage("unsubscribe matched no registration").All()
	require.Len(t, entries, 1)
	assert.Equal(t, string(events.EventTicketStatusChanged), entries[0].ContextMap()["event_type"])
	assert.Equal(t, "events.HandlerFunc", entries[0].ContextMap()["handler_type"])

	h := &recorder{name: "h", calls: &calls}
	bus.Subscribe(events.EventTicketStatusChanged, h)
	bus.Unsubscribe(events.EventTicketStatusChanged, h)
	assert.Equal(t, 1, bus.Len())
	assert.Equal(t, 1, logs.FilterMessage("unsubscribe matched no registration").Len())
}
