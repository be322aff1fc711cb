package repository

import (
	"context"
	"errors"

	"github.com/fixbench/repair-desk/internal/domain"
)

// ErrConflict is returned when a uniqueness constraint rejects a write.
var ErrConflict = errors.New("conflict")

// TicketFilter captures listing parameters.
type TicketFilter struct {
	CustomerID     *string
	TechnicianID   *string
	Statuses       []domain.TicketStatus
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetForUpdate loads the ticket and holds it against concurrent writers
	// until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

// DeviceRepository stores devices and their custody status.
type DeviceRepository interface {
	Create(ctx context.Context, device *domain.Device) error
	Update(ctx context.Context, device *domain.Device) error
	GetByID(ctx context.Context, id string) (*domain.Device, error)
}

// CustomerRepository stores customers.
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	Update(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
}

// WorkLogRepository stores labor sessions. Create returns ErrConflict when an
// active log already exists for the (ticket, technician) pair.
type WorkLogRepository interface {
	Create(ctx context.Context, log *domain.WorkLog) error
	Update(ctx context.Context, log *domain.WorkLog) error
	GetActive(ctx context.Context, ticketID, technicianID string) (*domain.WorkLog, error)
	ListActive(ctx context.Context, ticketID string) ([]domain.WorkLog, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.WorkLog, error)
}

// PartRepository owns the inventory stock counter.
type PartRepository interface {
	Create(ctx context.Context, part *domain.Part) error
	GetByID(ctx context.Context, id string) (*domain.Part, error)
	// Reserve decrements stock by qty only if the result stays non-negative;
	// otherwise it returns domain.ErrInsufficientStock and changes nothing.
	Reserve(ctx context.Context, id string, qty int64) error
	Release(ctx context.Context, id string, qty int64) error
}

// TicketPartRepository stores parts consumed by tickets.
type TicketPartRepository interface {
	Create(ctx context.Context, item *domain.TicketPartItem) error
	GetByID(ctx context.Context, id string) (*domain.TicketPartItem, error)
	Delete(ctx context.Context, id string) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketPartItem, error)
}

// InvoiceRepository stores invoices with their payments. Create returns
// ErrConflict when the ticket already has an invoice.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *domain.Invoice) error
	Update(ctx context.Context, invoice *domain.Invoice) error
	GetByID(ctx context.Context, id string) (*domain.Invoice, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Invoice, error)
	Delete(ctx context.Context, id string) error
	AddPayment(ctx context.Context, payment *domain.Payment) error
}

// Tx exposes repositories bound to one transaction.
type Tx interface {
	Tickets() TicketRepository
	Devices() DeviceRepository
	Customers() CustomerRepository
	WorkLogs() WorkLogRepository
	Parts() PartRepository
	TicketParts() TicketPartRepository
	Invoices() InvoiceRepository
	// Savepoint runs fn in a nested unit. When fn fails its writes are
	// discarded and the enclosing transaction stays usable.
	Savepoint(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Store is the transactional persistence boundary.
type Store interface {
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
}
