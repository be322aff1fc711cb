package boltstore

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/fixbench/repair-desk/internal/domain"
	"github.com/fixbench/repair-desk/internal/repository"
)

type ticketRepository struct {
	tx *scope
}

func (r *ticketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	return put(r.tx, bucketTickets, ticket.ID, ticket)
}

func (r *ticketRepository) Update(_ context.Context, ticket *domain.Ticket) error {
	if !exists(r.tx, bucketTickets, ticket.ID) {
		return fmt.Errorf("ticket %s: %w", ticket.ID, domain.ErrNotFound)
	}
	return put(r.tx, bucketTickets, ticket.ID, ticket)
}

func (r *ticketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	return get[domain.Ticket](r.tx, bucketTickets, "ticket", id)
}

// GetForUpdate needs no row lock: the write transaction is exclusive.
func (r *ticketRepository) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r *ticketRepository) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := scan(r.tx, bucketTickets, func(t *domain.Ticket) bool {
		if !filter.IncludeDeleted && t.Deleted() {
			return false
		}
		if filter.CustomerID != nil && t.CustomerID != *filter.CustomerID {
			return false
		}
		if filter.TechnicianID != nil && (t.TechnicianID == nil || *t.TechnicianID != *filter.TechnicianID) {
			return false
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, t.Status) {
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(tickets, func(a, b domain.Ticket) int { return b.UpdatedAt.Compare(a.UpdatedAt) })

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := max(filter.Offset, 0)
	if offset >= len(tickets) {
		return nil, nil
	}
	return tickets[offset:min(offset+limit, len(tickets))], nil
}

type customerRepository struct {
	tx *scope
}

func (r *customerRepository) Create(_ context.Context, customer *domain.Customer) error {
	if customer.ID == "" {
		customer.ID = uuid.NewString()
	}
	return put(r.tx, bucketCustomers, customer.ID, customer)
}

func (r *customerRepository) Update(_ context.Context, customer *domain.Customer) error {
	if !exists(r.tx, bucketCustomers, customer.ID) {
		return fmt.Errorf("customer %s: %w", customer.ID, domain.ErrNotFound)
	}
	return put(r.tx, bucketCustomers, customer.ID, customer)
}

func (r *customerRepository) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	return get[domain.Customer](r.tx, bucketCustomers, "customer", id)
}

type deviceRepository struct {
	tx *scope
}

func (r *deviceRepository) Create(_ context.Context, device *domain.Device) error {
	if device.ID == "" {
		device.ID = uuid.NewString()
	}
	return put(r.tx, bucketDevices, device.ID, device)
}

func (r *deviceRepository) Update(_ context.Context, device *domain.Device) error {
	if !exists(r.tx, bucketDevices, device.ID) {
		return fmt.Errorf("device %s: %w", device.ID, domain.ErrNotFound)
	}
	return put(r.tx, bucketDevices, device.ID, device)
}

func (r *deviceRepository) GetByID(_ context.Context, id string) (*domain.Device, error) {
	return get[domain.Device](r.tx, bucketDevices, "device", id)
}

type workLogRepository struct {
	tx *scope
}

func (r *workLogRepository) Create(ctx context.Context, log *domain.WorkLog) error {
	if log.EndTime == nil {
		if _, err := r.GetActive(ctx, log.TicketID, log.TechnicianID); err == nil {
			return repository.ErrConflict
		}
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	return put(r.tx, bucketWorkLogs, log.ID, log)
}

func (r *workLogRepository) Update(_ context.Context, log *domain.WorkLog) error {
	if !exists(r.tx, bucketWorkLogs, log.ID) {
		return fmt.Errorf("work log %s: %w", log.ID, domain.ErrNotFound)
	}
	return put(r.tx, bucketWorkLogs, log.ID, log)
}

func (r *workLogRepository) GetActive(_ context.Context, ticketID, technicianID string) (*domain.WorkLog, error) {
	logs, err := scan(r.tx, bucketWorkLogs, func(l *domain.WorkLog) bool {
		return l.TicketID == ticketID && l.TechnicianID == technicianID && l.Active()
	})
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, fmt.Errorf("active work log %s/%s: %w", ticketID, technicianID, domain.ErrNotFound)
	}
	return &logs[0], nil
}

func (r *workLogRepository) ListActive(_ context.Context, ticketID string) ([]domain.WorkLog, error) {
	return r.list(func(l *domain.WorkLog) bool { return l.TicketID == ticketID && l.Active() })
}

func (r *workLogRepository) ListByTicket(_ context.Context, ticketID string) ([]domain.WorkLog, error) {
	return r.list(func(l *domain.WorkLog) bool { return l.TicketID == ticketID })
}

func (r *workLogRepository) list(keep func(*domain.WorkLog) bool) ([]domain.WorkLog, error) {
	logs, err := scan(r.tx, bucketWorkLogs, keep)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(logs, func(a, b domain.WorkLog) int { return a.StartTime.Compare(b.StartTime) })
	return logs, nil
}

type partRepository struct {
	tx *scope
}

func (r *partRepository) Create(_ context.Context, part *domain.Part) error {
	if part.ID == "" {
		part.ID = uuid.NewString()
	}
	return put(r.tx, bucketParts, part.ID, part)
}

func (r *partRepository) GetByID(_ context.Context, id string) (*domain.Part, error) {
	return get[domain.Part](r.tx, bucketParts, "part", id)
}

func (r *partRepository) Reserve(ctx context.Context, id string, qty int64) error {
	part, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if qty <= 0 || part.Stock < qty {
		return fmt.Errorf("part %s: requested %d, available %d: %w", id, qty, part.Stock, domain.ErrInsufficientStock)
	}
	part.Stock -= qty
	part.UpdatedAt = time.Now().UTC()
	return put(r.tx, bucketParts, part.ID, part)
}

func (r *partRepository) Release(ctx context.Context, id string, qty int64) error {
	part, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	part.Stock += qty
	part.UpdatedAt = time.Now().UTC()
	return put(r.tx, bucketParts, part.ID, part)
}

type ticketPartRepository struct {
	tx *scope
}

func (r *ticketPartRepository) Create(_ context.Context, item *domain.TicketPartItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	return put(r.tx, bucketTicketParts, item.ID, item)
}

func (r *ticketPartRepository) GetByID(_ context.Context, id string) (*domain.TicketPartItem, error) {
	return get[domain.TicketPartItem](r.tx, bucketTicketParts, "ticket part", id)
}

func (r *ticketPartRepository) Delete(_ context.Context, id string) error {
	return remove(r.tx, bucketTicketParts, "ticket part", id)
}

func (r *ticketPartRepository) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketPartItem, error) {
	items, err := scan(r.tx, bucketTicketParts, func(i *domain.TicketPartItem) bool { return i.TicketID == ticketID })
	if err != nil {
		return nil, err
	}
	slices.SortFunc(items, func(a, b domain.TicketPartItem) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return items, nil
}

type invoiceRepository struct {
	tx *scope
}

func (r *invoiceRepository) Create(_ context.Context, invoice *domain.Invoice) error {
	existing, err := scan(r.tx, bucketInvoices, func(inv *domain.Invoice) bool { return inv.TicketID == invoice.TicketID })
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return repository.ErrConflict
	}
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	for i := range invoice.Payments {
		invoice.Payments[i].InvoiceID = invoice.ID
		if invoice.Payments[i].ID == "" {
			invoice.Payments[i].ID = uuid.NewString()
		}
	}
	return put(r.tx, bucketInvoices, invoice.ID, invoice)
}

// Update persists the derived status; amounts and payments are written by
// Create and AddPayment only.
func (r *invoiceRepository) Update(ctx context.Context, invoice *domain.Invoice) error {
	stored, err := r.GetByID(ctx, invoice.ID)
	if err != nil {
		return err
	}
	stored.Status = invoice.Status
	stored.UpdatedAt = invoice.UpdatedAt
	return put(r.tx, bucketInvoices, stored.ID, stored)
}

func (r *invoiceRepository) GetByID(_ context.Context, id string) (*domain.Invoice, error) {
	return get[domain.Invoice](r.tx, bucketInvoices, "invoice", id)
}

func (r *invoiceRepository) GetForUpdate(ctx context.Context, id string) (*domain.Invoice, error) {
	return r.GetByID(ctx, id)
}

func (r *invoiceRepository) Delete(_ context.Context, id string) error {
	return remove(r.tx, bucketInvoices, "invoice", id)
}

func (r *invoiceRepository) AddPayment(ctx context.Context, payment *domain.Payment) error {
	stored, err := r.GetByID(ctx, payment.InvoiceID)
	if err != nil {
		return err
	}
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	stored.Payments = append(stored.Payments, *payment)
	return put(r.tx, bucketInvoices, stored.ID, stored)
}
