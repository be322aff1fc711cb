package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fixbench/repair-desk/internal/domain"
	"github.com/fixbench/repair-desk/internal/events"
	"github.com/fixbench/repair-desk/internal/repository"
)

// WorkLogService tracks technician labor sessions on tickets.
type WorkLogService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        Clock
}

// WorkLogDependencies bundles collaborators for the work log service.
type WorkLogDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      Clock
}

// LaborSummary is the labor view of a ticket at a point in time.
type LaborSummary struct {
	Logs    []domain.WorkLog `json:"logs"`
	Active  []domain.WorkLog `json:"active"`
	Elapsed time.Duration    `json:"elapsed_ns"`
	AsOf    time.Time        `json:"as_of"`
}

// NewWorkLogService constructs the service.
func NewWorkLogService(deps WorkLogDependencies) *WorkLogService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = defaultClock
	}
	return &WorkLogService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// Start opens a labor session. When the technician already has an active log
// on the ticket, that log is returned unchanged and created is false.
func (s *WorkLogService) Start(ctx context.Context, actor events.Actor, ticketID, technicianID string) (log *domain.WorkLog, created bool, err error) {
	technicianID = strings.TrimSpace(technicianID)
	if technicianID == "" {
		return nil, false, fmt.Errorf("%w: technician_id is required", domain.ErrValidation)
	}

	var ticket *domain.Ticket
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
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

		existing, err := tx.WorkLogs().GetActive(ctx, ticket.ID, technicianID)
		switch {
		case err == nil:
			log = existing
			return nil
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		candidate := &domain.WorkLog{
			TicketID:     ticket.ID,
			TechnicianID: technicianID,
			StartTime:    s.now(),
		}
		err = tx.Savepoint(ctx, func(ctx context.Context, sp repository.Tx) error {
			return sp.WorkLogs().Create(ctx, candidate)
		})
		if errors.Is(err, repository.ErrConflict) {
			// A concurrent start won the unique active slot.
			log, err = tx.WorkLogs().GetActive(ctx, ticket.ID, technicianID)
			return err
		}
		if err != nil {
			return err
		}
		log, created = candidate, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		publishEvents(ctx, s.dispatcher, log.StartTime, ticketUpdated(ticket, actor, events.ReasonLaborStarted))
	}
	return log, created, nil
}

// Stop closes the technician's active log. It returns nil without error when
// no log is active.
func (s *WorkLogService) Stop(ctx context.Context, actor events.Actor, ticketID, technicianID string) (*domain.WorkLog, error) {
	technicianID = strings.TrimSpace(technicianID)
	if technicianID == "" {
		return nil, fmt.Errorf("%w: technician_id is required", domain.ErrValidation)
	}

	var (
		ticket *domain.Ticket
		log    *domain.WorkLog
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

		active, err := tx.WorkLogs().GetActive(ctx, ticket.ID, technicianID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		end := s.now()
		active.EndTime = &end
		if err := tx.WorkLogs().Update(ctx, active); err != nil {
			return err
		}
		log = active
		return nil
	})
	if err != nil || log == nil {
		return nil, err
	}

	publishEvents(ctx, s.dispatcher, *log.EndTime, ticketUpdated(ticket, actor, events.ReasonLaborStopped))
	return log, nil
}

// StopAll ends every active log on the ticket and reports how many it closed.
// Failures are logged, never returned.
func (s *WorkLogService) StopAll(ctx context.Context, ticketID string) int {
	var closed int
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		closed = s.stopAllInTx(ctx, tx, ticketID, s.now())
		return nil
	})
	if err != nil {
		s.logger.Warn("stop all work logs: commit failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return 0
	}
	return closed
}

// stopAllInTx closes the ticket's active logs inside a savepoint of tx. A
// failure undoes every closure made so far and leaves the surrounding
// transaction intact.
func (s *WorkLogService) stopAllInTx(ctx context.Context, tx repository.Tx, ticketID string, now time.Time) int {
	var closed int
	err := tx.Savepoint(ctx, func(ctx context.Context, sp repository.Tx) error {
		active, err := sp.WorkLogs().ListActive(ctx, ticketID)
		if err != nil {
			return err
		}
		for i := range active {
			end := now
			active[i].EndTime = &end
			if err := sp.WorkLogs().Update(ctx, &active[i]); err != nil {
				return fmt.Errorf("stop work log %s: %w", active[i].ID, err)
			}
			closed++
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("stop all work logs failed",
			zap.String("ticket_id", ticketID),
			zap.Int("rolled_back", closed),
			zap.Error(err))
		return 0
	}
	if closed > 0 {
		s.logger.Info("work logs stopped", zap.String("ticket_id", ticketID), zap.Int("count", closed))
	}
	return closed
}

// Active returns the ticket's open logs.
func (s *WorkLogService) Active(ctx context.Context, ticketID string) ([]domain.WorkLog, error) {
	var logs []domain.WorkLog
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.Tickets().GetByID(ctx, ticketID); err != nil {
			return err
		}
		var err error
		logs, err = tx.WorkLogs().ListActive(ctx, ticketID)
		return err
	})
	return logs, err
}

// Summary returns every log on the ticket with the elapsed labor time,
// counting active logs up to now.
func (s *WorkLogService) Summary(ctx context.Context, ticketID string) (*LaborSummary, error) {
	summary := &LaborSummary{AsOf: s.now()}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.Tickets().GetByID(ctx, ticketID); err != nil {
			return err
		}
		var err error
		summary.Logs, err = tx.WorkLogs().ListByTicket(ctx, ticketID)
		return err
	})
	if err != nil {
		return nil, err
	}
	summary.Active = []domain.WorkLog{}
	for i := range summary.Logs {
		log := &summary.Logs[i]
		summary.Elapsed += log.Elapsed(summary.AsOf)
		if log.Active() {
			summary.Active = append(summary.Active, *log)
		}
	}
	return summary, nil
}
