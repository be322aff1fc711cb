package domain

import "time"

// Ticket is the aggregate for a repair job. Monetary fields are in minor
// currency units.
type Ticket struct {
	ID            string         `json:"id"`
	CustomerID    string         `json:"customer_id"`
	DeviceID      string         `json:"device_id"`
	Status        TicketStatus   `json:"status"`
	Priority      TicketPriority `json:"priority"`
	TechnicianID  *string        `json:"technician_id,omitempty"`
	Description   string         `json:"description"`
	EstimatedCost int64          `json:"estimated_cost"`
	ActualCost    int64          `json:"actual_cost"`
	DepositPaid   int64          `json:"deposit_paid"`
	InvoiceID     *string        `json:"invoice_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	DeletedAt     *time.Time     `json:"deleted_at,omitempty"`
}

// Deleted reports whether the ticket is soft-deleted.
func (t *Ticket) Deleted() bool { return t.DeletedAt != nil }

// Device is a customer's item in the shop's custody.
type Device struct {
	ID         string       `json:"id"`
	CustomerID string       `json:"customer_id"`
	Brand      string       `json:"brand"`
	Model      string       `json:"model"`
	Serial     string       `json:"serial"`
	LockInfo   string       `json:"lock_info"`
	Status     DeviceStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Customer owns devices and tickets.
type Customer struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Email     string     `json:"email"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// WorkLog is one technician's labor session on a ticket. A nil EndTime means
// the session is still running.
type WorkLog struct {
	ID           string     `json:"id"`
	TicketID     string     `json:"ticket_id"`
	TechnicianID string     `json:"technician_id"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
}

// Active reports whether the session is still open.
func (w *WorkLog) Active() bool { return w.EndTime == nil }

// Elapsed returns the session length, measured up to now for open sessions.
func (w *WorkLog) Elapsed(now time.Time) time.Duration {
	end := now
	if w.EndTime != nil {
		end = *w.EndTime
	}
	if end.Before(w.StartTime) {
		return 0
	}
	return end.Sub(w.StartTime)
}

// Part is an inventory item with a stock counter.
type Part struct {
	ID        string    `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	UnitPrice int64     `json:"unit_price"`
	Stock     int64     `json:"stock"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TicketPartItem records parts consumed by a ticket at their raw price.
type TicketPartItem struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	PartID    string    `json:"part_id"`
	Quantity  int64     `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
	Total     int64     `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

// SumPartTotals returns the raw parts total for the given items.
func SumPartTotals(items []TicketPartItem) int64 {
	var sum int64
	for _, item := range items {
		sum += item.Total
	}
	return sum
}
