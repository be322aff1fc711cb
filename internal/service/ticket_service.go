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

// TicketService is the ticket state machine. Every mutation runs in one store
// transaction and publishes its events after commit.
type TicketService struct {
	store      repository.Store
	workLogs   *WorkLogService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        Clock
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	WorkLogs   *WorkLogService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      Clock
}

// TicketCreateInput describes a repair intake.
type TicketCreateInput struct {
	CustomerID    string
	DeviceID      string
	Priority      domain.TicketPriority
	Description   string
	EstimatedCost int64
	DepositPaid   int64
	TechnicianID  *string
}

// TicketUpdateInput carries editable ticket details. Nil fields are left as is.
type TicketUpdateInput struct {
	Priority      *domain.TicketPriority
	Description   *string
	EstimatedCost *int64
	DepositPaid   *int64
}

// TicketDetail is the re-fetch view of one ticket.
type TicketDetail struct {
	Ticket   *domain.Ticket          `json:"ticket"`
	Device   *domain.Device          `json:"device"`
	Parts    []domain.TicketPartItem `json:"parts"`
	WorkLogs []domain.WorkLog        `json:"work_logs"`
	Invoice  *domain.Invoice         `json:"invoice,omitempty"`
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = defaultClock
	}
	return &TicketService{
		store:      deps.Store,
		workLogs:   deps.WorkLogs,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// Create opens a ticket for a customer's device.
func (s *TicketService) Create(ctx context.Context, actor events.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityNormal
	}
	if !input.Priority.Valid() {
		return nil, fmt.Errorf("%w: priority %q", domain.ErrUnknownKey, input.Priority)
	}
	if input.EstimatedCost < 0 || input.DepositPaid < 0 {
		return nil, fmt.Errorf("%w: costs must not be negative", domain.ErrInvalidAmount)
	}

	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		customer, err := tx.Customers().GetByID(ctx, input.CustomerID)
		if err != nil {
			return err
		}
		if customer.DeletedAt != nil {
			return fmt.Errorf("customer %s: %w", customer.ID, domain.ErrNotFound)
		}
		device, err := tx.Devices().GetByID(ctx, input.DeviceID)
		if err != nil {
			return err
		}
		if device.CustomerID != customer.ID {
			return fmt.Errorf("%w: device %s does not belong to customer %s", domain.ErrValidation, device.ID, customer.ID)
		}
		if err := ensureDeviceUnlocked(device); err != nil {
			return err
		}

		now := s.now()
		ticket = &domain.Ticket{
			CustomerID:    customer.ID,
			DeviceID:      device.ID,
			Status:        domain.TicketStatusOpen,
			Priority:      input.Priority,
			TechnicianID:  input.TechnicianID,
			Description:   strings.TrimSpace(input.Description),
			EstimatedCost: input.EstimatedCost,
			DepositPaid:   input.DepositPaid,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return tx.Tickets().Create(ctx, ticket)
	})
	if err != nil {
		return nil, err
	}

	publishEvents(ctx, s.dispatcher, ticket.CreatedAt, events.Event{
		Type:     events.EventTicketCreated,
		EntityID: ticket.ID,
		Actor:    actor,
		Payload:  events.NewTicketCreatedPayload(ticket),
	})
	return ticket, nil
}

// Update edits ticket details. The deposit is frozen once the ticket is invoiced.
func (s *TicketService) Update(ctx context.Context, actor events.Actor, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, fmt.Errorf("%w: priority %q", domain.ErrUnknownKey, *input.Priority)
	}
	if (input.EstimatedCost != nil && *input.EstimatedCost < 0) || (input.DepositPaid != nil && *input.DepositPaid < 0) {
		return nil, fmt.Errorf("%w: costs must not be negative", domain.ErrInvalidAmount)
	}

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
		if input.DepositPaid != nil && ticket.InvoiceID != nil && *input.DepositPaid != ticket.DepositPaid {
			return fmt.Errorf("%w: deposit cannot change after invoicing", domain.ErrValidation)
		}
		if input.Priority != nil {
			ticket.Priority = *input.Priority
		}
		if input.Description != nil {
			ticket.Description = strings.TrimSpace(*input.Description)
		}
		if input.EstimatedCost != nil {
			ticket.EstimatedCost = *input.EstimatedCost
		}
		if input.DepositPaid != nil {
			ticket.DepositPaid = *input.DepositPaid
		}
		ticket.UpdatedAt = s.now()
		return tx.Tickets().Update(ctx, ticket)
	})
	if err != nil {
		return nil, err
	}

	publishEvents(ctx, s.dispatcher, ticket.UpdatedAt, ticketUpdated(ticket, actor, events.ReasonDetailsEdited))
	return ticket, nil
}

// Get returns the ticket with its device, parts, labor and invoice.
func (s *TicketService) Get(ctx context.Context, ticketID string) (*TicketDetail, error) {
	detail := &TicketDetail{}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		ticket, err := tx.Tickets().GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		detail.Ticket = ticket
		if detail.Device, err = tx.Devices().GetByID(ctx, ticket.DeviceID); err != nil {
			return err
		}
		if detail.Parts, err = tx.TicketParts().ListByTicket(ctx, ticket.ID); err != nil {
			return err
		}
		if detail.WorkLogs, err = tx.WorkLogs().ListByTicket(ctx, ticket.ID); err != nil {
			return err
		}
		if ticket.InvoiceID != nil {
			if detail.Invoice, err = tx.Invoices().GetByID(ctx, *ticket.InvoiceID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// List returns tickets matching the filter, most recently updated first.
func (s *TicketService) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: status %q", domain.ErrUnknownKey, status)
		}
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	var tickets []domain.Ticket
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		tickets, err = tx.Tickets().List(ctx, filter)
		return err
	})
	return tickets, err
}

// Transition moves the ticket to newStatus. Entering completed or cancelled
// stops every open work log; a failure there is logged and the transition
// still commits.
func (s *TicketService) Transition(ctx context.Context, actor events.Actor, ticketID string, newStatus domain.TicketStatus, notes string) (*domain.Ticket, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: status %q", domain.ErrUnknownKey, newStatus)
	}

	var (
		ticket    *domain.Ticket
		oldStatus domain.TicketStatus
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
		if device.Status.Locked() {
			return fmt.Errorf("%w: device %s has been returned", domain.ErrInvalidTransition, device.ID)
		}
		if ticket.Status.IsTerminal() {
			return fmt.Errorf("%w: ticket %s is %s", domain.ErrInvalidTransition, ticket.ID, ticket.Status)
		}

		now := s.now()
		oldStatus = ticket.Status
		ticket.Status = newStatus
		ticket.UpdatedAt = now
		if newStatus.IsTerminal() {
			ticket.CompletedAt = &now
		}
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		if newStatus.StopsWorkLogs() && s.workLogs != nil {
			s.workLogs.stopAllInTx(ctx, tx, ticket.ID, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ticket status changed",
		zap.String("ticket_id", ticket.ID),
		zap.String("old_status", string(oldStatus)),
		zap.String("new_status", string(newStatus)))
	publishEvents(ctx, s.dispatcher, ticket.UpdatedAt, events.Event{
		Type:     events.EventTicketStatusChanged,
		EntityID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Notes:     strings.TrimSpace(notes),
		},
	})
	return ticket, nil
}

// AssignTechnician sets the ticket's technician.
func (s *TicketService) AssignTechnician(ctx context.Context, actor events.Actor, ticketID, technicianID string) (*domain.Ticket, error) {
	technicianID = strings.TrimSpace(technicianID)
	if technicianID == "" {
		return nil, fmt.Errorf("%w: technician_id is required", domain.ErrValidation)
	}

	var (
		ticket   *domain.Ticket
		previous *string
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
		previous = ticket.TechnicianID
		ticket.TechnicianID = &technicianID
		ticket.UpdatedAt = s.now()
		return tx.Tickets().Update(ctx, ticket)
	})
	if err != nil {
		return nil, err
	}

	publishEvents(ctx, s.dispatcher, ticket.UpdatedAt, events.Event{
		Type:     events.EventTicketTechnicianAssigned,
		EntityID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketTechnicianAssignedPayload{
			OldTechnicianID: previous,
			TechnicianID:    technicianID,
		},
	})
	return ticket, nil
}

// UpdateDeviceStatus records device custody. Returning the device closes any
// open labor, after which the ticket is read-only.
func (s *TicketService) UpdateDeviceStatus(ctx context.Context, actor events.Actor, ticketID string, status domain.DeviceStatus) (*domain.Device, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: device status %q", domain.ErrUnknownKey, status)
	}

	var (
		ticket *domain.Ticket
		device *domain.Device
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		ticket, device, err = loadMutableTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if device.Status.Locked() {
			return fmt.Errorf("%w: device %s has been returned", domain.ErrInvalidTransition, device.ID)
		}

		now := s.now()
		device.Status = status
		device.UpdatedAt = now
		if err := tx.Devices().Update(ctx, device); err != nil {
			return err
		}
		ticket.UpdatedAt = now
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		if status.Locked() && s.workLogs != nil {
			s.workLogs.stopAllInTx(ctx, tx, ticket.ID, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishEvents(ctx, s.dispatcher, ticket.UpdatedAt, ticketUpdated(ticket, actor, events.ReasonDeviceStatus))
	return device, nil
}

// Delete soft-deletes the ticket. Deleting a deleted ticket is a no-op.
func (s *TicketService) Delete(ctx context.Context, actor events.Actor, ticketID string) error {
	return s.setDeleted(ctx, actor, ticketID, true)
}

// Restore undeletes a soft-deleted ticket. Its status is left as is.
func (s *TicketService) Restore(ctx context.Context, actor events.Actor, ticketID string) error {
	return s.setDeleted(ctx, actor, ticketID, false)
}

func (s *TicketService) setDeleted(ctx context.Context, actor events.Actor, ticketID string, deleted bool) error {
	var (
		ticket  *domain.Ticket
		changed bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		ticket, err = tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.Deleted() == deleted {
			return nil
		}
		now := s.now()
		if deleted {
			ticket.DeletedAt = &now
		} else {
			ticket.DeletedAt = nil
		}
		ticket.UpdatedAt = now
		changed = true
		return tx.Tickets().Update(ctx, ticket)
	})
	if err != nil || !changed {
		return err
	}

	eventType := events.EventTicketRestored
	if deleted {
		eventType = events.EventTicketDeleted
	}
	publishEvents(ctx, s.dispatcher, ticket.UpdatedAt, events.Event{
		Type:     eventType,
		EntityID: ticket.ID,
		Actor:    actor,
	})
	return nil
}

