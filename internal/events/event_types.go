package events

import (
	"time"

	"github.com/fixbench/repair-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated            EventType = "ticket_created"
	EventTicketUpdated            EventType = "ticket_updated"
	EventTicketDeleted            EventType = "ticket_deleted"
	EventTicketRestored           EventType = "ticket_restored"
	EventTicketStatusChanged      EventType = "ticket_status_changed"
	EventTicketTechnicianAssigned EventType = "ticket_technician_assigned"
	EventInvoiceCreated           EventType = "invoice_created"
	EventInvoiceUpdated           EventType = "invoice_updated"
	EventInvoiceDeleted           EventType = "invoice_deleted"
	EventCustomerCreated          EventType = "customer_created"
	EventCustomerUpdated          EventType = "customer_updated"
	EventCustomerDeleted          EventType = "customer_deleted"

	// AllEvents subscribes a handler to every domain event.
	AllEvents EventType = "*"
)

// ActorType distinguishes who caused an event.
type ActorType string

const (
	ActorTypeStaff  ActorType = "staff"
	ActorTypeSystem ActorType = "system"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type ActorType `json:"type"`
	ID   string    `json:"id,omitempty"`
}

// StaffActor identifies a staff member.
func StaffActor(id string) Actor {
	return Actor{Type: ActorTypeStaff, ID: id}
}

// SystemActor is used for mutations not attributable to a person.
func SystemActor() Actor {
	return Actor{Type: ActorTypeSystem}
}

// Event is an immutable record of a committed mutation. EntityID is the id of
// the ticket, invoice or customer named by Type.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	EntityID  string    `json:"entity_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// TicketCreatedPayload snapshots the ticket as opened.
type TicketCreatedPayload struct {
	CustomerID    string                `json:"customer_id"`
	DeviceID      string                `json:"device_id"`
	Status        domain.TicketStatus   `json:"status"`
	Priority      domain.TicketPriority `json:"priority"`
	TechnicianID  string                `json:"technician_id,omitempty"`
	EstimatedCost int64                 `json:"estimated_cost"`
	DepositPaid   int64                 `json:"deposit_paid"`
}

// NewTicketCreatedPayload copies the ticket fields into a payload value.
func NewTicketCreatedPayload(ticket *domain.Ticket) TicketCreatedPayload {
	payload := TicketCreatedPayload{
		CustomerID:    ticket.CustomerID,
		DeviceID:      ticket.DeviceID,
		Status:        ticket.Status,
		Priority:      ticket.Priority,
		EstimatedCost: ticket.EstimatedCost,
		DepositPaid:   ticket.DepositPaid,
	}
	if ticket.TechnicianID != nil {
		payload.TechnicianID = *ticket.TechnicianID
	}
	return payload
}

// CustomerPayload snapshots the customer contact details.
type CustomerPayload struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// NewCustomerPayload copies the customer fields into a payload value.
func NewCustomerPayload(customer *domain.Customer) CustomerPayload {
	return CustomerPayload{Name: customer.Name, Phone: customer.Phone, Email: customer.Email}
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Notes     string              `json:"notes,omitempty"`
}

// TicketTechnicianAssignedPayload payload.
type TicketTechnicianAssignedPayload struct {
	OldTechnicianID *string `json:"old_technician_id,omitempty"`
	TechnicianID    string  `json:"technician_id"`
}

// TicketUpdatedPayload names what changed on the ticket.
type TicketUpdatedPayload struct {
	Reason     string `json:"reason"`
	ActualCost int64  `json:"actual_cost"`
}

// InvoicePayload describes the invoice state after the mutation.
type InvoicePayload struct {
	TicketID   string               `json:"ticket_id"`
	Status     domain.InvoiceStatus `json:"status"`
	Total      int64                `json:"total"`
	BalanceDue int64                `json:"balance_due"`
}

// TicketUpdated reasons.
const (
	ReasonDetailsEdited = "details_edited"
	ReasonDeviceStatus  = "device_status"
	ReasonPartAdded     = "part_added"
	ReasonPartRemoved   = "part_removed"
	ReasonLaborStarted  = "labor_started"
	ReasonLaborStopped  = "labor_stopped"
)
