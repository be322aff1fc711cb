package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fixbench/repair-desk/internal/domain"
	"github.com/fixbench/repair-desk/internal/events"
	"github.com/fixbench/repair-desk/internal/repository"
)

// PartsService is the parts ledger: it moves inventory onto tickets and keeps
// ticket.ActualCost equal to the raw total of the ticket's part items.
type PartsService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        Clock
}

// PartsDependencies bundles collaborators for the parts service.
type PartsDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      Clock
}

// PartCreateInput describes an inventory item.
type PartCreateInput struct {
	SKU       string
	Name      string
	UnitPrice int64
	Stock     int64
}

// NewPartsService constructs the service.
func NewPartsService(deps PartsDependencies) *PartsService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = defaultClock
	}
	return &PartsService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// CreatePart adds an item to inventory.
func (s *PartsService) CreatePart(ctx context.Context, input PartCreateInput) (*domain.Part, error) {
	part := &domain.Part{
		SKU:       strings.TrimSpace(input.SKU),
		Name:      strings.TrimSpace(input.Name),
		UnitPrice: input.UnitPrice,
		Stock:     input.Stock,
		UpdatedAt: s.now(),
	}
	if part.SKU == "" || part.Name == "" {
		return nil, fmt.Errorf("%w: sku and name are required", domain.ErrValidation)
	}
	if part.UnitPrice < 0 || part.Stock < 0 {
		return nil, fmt.Errorf("%w: price and stock must not be negative", domain.ErrInvalidAmount)
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Parts().Create(ctx, part)
	})
	if err != nil {
		return nil, err
	}
	return part, nil
}

// GetPart returns an inventory item.
func (s *PartsService) GetPart(ctx context.Context, partID string) (*domain.Part, error) {
	var part *domain.Part
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		part, err = tx.Parts().GetByID(ctx, partID)
		return err
	})
	return part, err
}

// AddPart reserves quantity units of the part for the ticket. The stock
// decrement is conditional, so a failure leaves ticket and stock unchanged.
func (s *PartsService) AddPart(ctx context.Context, actor events.Actor, ticketID, partID string, quantity int64) (*domain.TicketPartItem, *domain.Ticket, error) {
	if quantity <= 0 {
		return nil, nil, fmt.Errorf("%w: quantity must be positive, got %d", domain.ErrInsufficientStock, quantity)
	}

	var (
		ticket *domain.Ticket
		item   *domain.TicketPartItem
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var (
			device *domain.Device
			err    error
		)
		ticket, device, err = loadMutableTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if err := ensureDeviceUnlocked(device); err != nil {
			return err
		}
		part, err := tx.Parts().GetByID(ctx, partID)
		if err != nil {
			return err
		}
		if err := tx.Parts().Reserve(ctx, part.ID, quantity); err != nil {
			return err
		}

		now := s.now()
		item = &domain.TicketPartItem{
			TicketID:  ticket.ID,
			PartID:    part.ID,
			Quantity:  quantity,
			UnitPrice: part.UnitPrice,
			Total:     quantity * part.UnitPrice,
			CreatedAt: now,
		}
		if err := tx.TicketParts().Create(ctx, item); err != nil {
			return err
		}
		return s.recomputeActualCost(ctx, tx, ticket)
	})
	if err != nil {
		return nil, nil, err
	}

	publishEvents(ctx, s.dispatcher, ticket.UpdatedAt, ticketUpdated(ticket, actor, events.ReasonPartAdded))
	return item, ticket, nil
}

// RemovePart returns the item's quantity to stock and drops it from the ticket.
func (s *PartsService) RemovePart(ctx context.Context, actor events.Actor, ticketID, itemID string) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var (
			device *domain.Device
			err    error
		)
		ticket, device, err = loadMutableTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if err := ensureDeviceUnlocked(device); err != nil {
			return err
		}
		item, err := tx.TicketParts().GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		if item.TicketID != ticket.ID {
			return fmt.Errorf("ticket part %s on ticket %s: %w", itemID, ticket.ID, domain.ErrNotFound)
		}
		if err := tx.Parts().Release(ctx, item.PartID, item.Quantity); err != nil {
			return err
		}
		if err := tx.TicketParts().Delete(ctx, item.ID); err != nil {
			return err
		}
		return s.recomputeActualCost(ctx, tx, ticket)
	})
	if err != nil {
		return nil, err
	}

	publishEvents(ctx, s.dispatcher, ticket.UpdatedAt, ticketUpdated(ticket, actor, events.ReasonPartRemoved))
	return ticket, nil
}

// ListParts returns the part items consumed by the ticket.
func (s *PartsService) ListParts(ctx context.Context, ticketID string) ([]domain.TicketPartItem, error) {
	var items []domain.TicketPartItem
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.Tickets().GetByID(ctx, ticketID); err != nil {
			return err
		}
		var err error
		items, err = tx.TicketParts().ListByTicket(ctx, ticketID)
		return err
	})
	return items, err
}

// recomputeActualCost sets ActualCost to the sum of the stored items.
func (s *PartsService) recomputeActualCost(ctx context.Context, tx repository.Tx, ticket *domain.Ticket) error {
	items, err := tx.TicketParts().ListByTicket(ctx, ticket.ID)
	if err != nil {
		return err
	}
	ticket.ActualCost = domain.SumPartTotals(items)
	ticket.UpdatedAt = s.now()
	return tx.Tickets().Update(ctx, ticket)
}
