package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fixbench/repair-desk/internal/domain"
	"github.com/fixbench/repair-desk/internal/events"
	"github.com/fixbench/repair-desk/internal/repository"
)

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

func defaultClock() time.Time {
	return time.Now().UTC()
}

// publishEvents runs after the transaction commits, so subscribers only ever
// observe committed state. Publish errors never affect the caller.
func publishEvents(ctx context.Context, dispatcher events.Dispatcher, now time.Time, list ...events.Event) {
	if dispatcher == nil {
		return
	}
	for _, event := range list {
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = now
		}
		_ = dispatcher.Publish(ctx, event)
	}
}

// loadMutableTicket locks a live ticket and loads its device.
func loadMutableTicket(ctx context.Context, tx repository.Tx, ticketID string) (*domain.Ticket, *domain.Device, error) {
	ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if ticket.Deleted() {
		return nil, nil, fmt.Errorf("ticket %s: %w", ticketID, domain.ErrNotFound)
	}
	device, err := tx.Devices().GetByID(ctx, ticket.DeviceID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, device, nil
}

func ensureDeviceUnlocked(device *domain.Device) error {
	if device.Status.Locked() {
		return fmt.Errorf("%w: device %s has been returned", domain.ErrDeviceLocked, device.ID)
	}
	return nil
}

func ticketUpdated(ticket *domain.Ticket, actor events.Actor, reason string) events.Event {
	return events.Event{
		Type:     events.EventTicketUpdated,
		EntityID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketUpdatedPayload{
			Reason:     reason,
			ActualCost: ticket.ActualCost,
		},
	}
}

func invoiceEvent(eventType events.EventType, invoice *domain.Invoice, actor events.Actor) events.Event {
	return events.Event{
		Type:     eventType,
		EntityID: invoice.ID,
		Actor:    actor,
		Payload: events.InvoicePayload{
			TicketID:   invoice.TicketID,
			Status:     invoice.Status,
			Total:      invoice.Total,
			BalanceDue: invoice.BalanceDue(),
		},
	}
}
