package domain

import "fmt"

// Canonical keys are the only values ever persisted or sent over the wire for
// status and method fields. Display labels live outside this package.

// TicketStatus enumerates repair workflow states for tickets.
type TicketStatus string

const (
	TicketStatusOpen          TicketStatus = "open"
	TicketStatusDiagnosed     TicketStatus = "diagnosed"
	TicketStatusInProgress    TicketStatus = "in_progress"
	TicketStatusAwaitingParts TicketStatus = "awaiting_parts"
	TicketStatusCompleted     TicketStatus = "completed"
	TicketStatusCancelled     TicketStatus = "cancelled"
	TicketStatusUnrepairable  TicketStatus = "unrepairable"
)

// DeviceStatus enumerates custody states for a device.
type DeviceStatus string

const (
	DeviceStatusReceived  DeviceStatus = "received"
	DeviceStatusDiagnosed DeviceStatus = "diagnosed"
	DeviceStatusRepairing DeviceStatus = "repairing"
	DeviceStatusRepaired  DeviceStatus = "repaired"
	DeviceStatusCompleted DeviceStatus = "completed"
	DeviceStatusReturned  DeviceStatus = "returned"
)

// TicketPriority enumerates repair urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// InvoiceStatus enumerates payment states of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid        InvoiceStatus = "unpaid"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
)

// PaymentMethod enumerates tender types.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodTransfer PaymentMethod = "transfer"
	PaymentMethodCheck    PaymentMethod = "check"
	PaymentMethodOther    PaymentMethod = "other"
	// PaymentMethodDeposit marks the ticket deposit applied at invoice creation.
	PaymentMethodDeposit PaymentMethod = "deposit"
)

// LineItemKind distinguishes invoice lines.
type LineItemKind string

const (
	LineItemPart  LineItemKind = "part"
	LineItemLabor LineItemKind = "labor"
)

var (
	ticketStatuses   = []TicketStatus{TicketStatusOpen, TicketStatusDiagnosed, TicketStatusInProgress, TicketStatusAwaitingParts, TicketStatusCompleted, TicketStatusCancelled, TicketStatusUnrepairable}
	deviceStatuses   = []DeviceStatus{DeviceStatusReceived, DeviceStatusDiagnosed, DeviceStatusRepairing, DeviceStatusRepaired, DeviceStatusCompleted, DeviceStatusReturned}
	ticketPriorities = []TicketPriority{TicketPriorityLow, TicketPriorityNormal, TicketPriorityHigh, TicketPriorityUrgent}
	invoiceStatuses  = []InvoiceStatus{InvoiceStatusUnpaid, InvoiceStatusPartiallyPaid, InvoiceStatusPaid}
	paymentMethods   = []PaymentMethod{PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer, PaymentMethodCheck, PaymentMethodOther, PaymentMethodDeposit}
	lineItemKinds    = []LineItemKind{LineItemPart, LineItemLabor}
)

// TicketStatuses returns every canonical ticket status in workflow order.
func TicketStatuses() []TicketStatus { return append([]TicketStatus(nil), ticketStatuses...) }

// DeviceStatuses returns every canonical custody status.
func DeviceStatuses() []DeviceStatus { return append([]DeviceStatus(nil), deviceStatuses...) }

// TicketPriorities returns every canonical priority.
func TicketPriorities() []TicketPriority { return append([]TicketPriority(nil), ticketPriorities...) }

// PaymentMethods returns every canonical payment method.
func PaymentMethods() []PaymentMethod { return append([]PaymentMethod(nil), paymentMethods...) }

// Valid reports whether s is a canonical key.
func (s TicketStatus) Valid() bool { return contains(ticketStatuses, s) }

// IsTerminal reports whether no further workflow transition is allowed.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusCompleted || s == TicketStatusCancelled || s == TicketStatusUnrepairable
}

// InvoiceEligible reports whether a ticket in this status may be invoiced.
func (s TicketStatus) InvoiceEligible() bool { return s.IsTerminal() }

// LaborWaived reports whether labor is never billed for this status.
func (s TicketStatus) LaborWaived() bool {
	return s == TicketStatusCancelled || s == TicketStatusUnrepairable
}

// StopsWorkLogs reports whether entering this status closes all open work logs.
func (s TicketStatus) StopsWorkLogs() bool {
	return s == TicketStatusCompleted || s == TicketStatusCancelled
}

func (s DeviceStatus) Valid() bool { return contains(deviceStatuses, s) }

// Locked reports whether the device and its tickets are read-only.
func (s DeviceStatus) Locked() bool { return s == DeviceStatusReturned }

func (p TicketPriority) Valid() bool { return contains(ticketPriorities, p) }

func (s InvoiceStatus) Valid() bool { return contains(invoiceStatuses, s) }

func (m PaymentMethod) Valid() bool { return contains(paymentMethods, m) }

func (k LineItemKind) Valid() bool { return contains(lineItemKinds, k) }

// UnmarshalText rejects anything that is not a canonical key, so display
// labels can never be decoded into persisted state.
func (s *TicketStatus) UnmarshalText(text []byte) error {
	return parseKey(text, s, TicketStatus.Valid, "ticket status")
}

func (s *DeviceStatus) UnmarshalText(text []byte) error {
	return parseKey(text, s, DeviceStatus.Valid, "device status")
}

func (p *TicketPriority) UnmarshalText(text []byte) error {
	return parseKey(text, p, TicketPriority.Valid, "priority")
}

func (s *InvoiceStatus) UnmarshalText(text []byte) error {
	return parseKey(text, s, InvoiceStatus.Valid, "invoice status")
}

func (m *PaymentMethod) UnmarshalText(text []byte) error {
	return parseKey(text, m, PaymentMethod.Valid, "payment method")
}

func (k *LineItemKind) UnmarshalText(text []byte) error {
	return parseKey(text, k, LineItemKind.Valid, "line item kind")
}

// ParseTicketStatus converts a raw key. Matching is exact: no case folding, no labels.
func ParseTicketStatus(raw string) (TicketStatus, error) {
	var s TicketStatus
	return s, s.UnmarshalText([]byte(raw))
}

// ParseDeviceStatus converts a raw custody key.
func ParseDeviceStatus(raw string) (DeviceStatus, error) {
	var s DeviceStatus
	return s, s.UnmarshalText([]byte(raw))
}

// ParsePaymentMethod converts a raw method key.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	var m PaymentMethod
	return m, m.UnmarshalText([]byte(raw))
}

func parseKey[T ~string](text []byte, dst *T, valid func(T) bool, kind string) error {
	candidate := T(text)
	if !valid(candidate) {
		return fmt.Errorf("%w: %q is not a canonical %s", ErrUnknownKey, string(text), kind)
	}
	*dst = candidate
	return nil
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
