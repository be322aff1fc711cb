package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceLineItem is a billable line. Part lines carry marked-up prices.
type InvoiceLineItem struct {
	Kind        LineItemKind `json:"kind"`
	PartID      *string      `json:"part_id,omitempty"`
	Description string       `json:"description"`
	Quantity    int64        `json:"quantity"`
	UnitPrice   int64        `json:"unit_price"`
	Total       int64        `json:"total"`
}

// Payment is a tender applied against an invoice.
type Payment struct {
	ID        string        `json:"id"`
	InvoiceID string        `json:"invoice_id"`
	Amount    int64         `json:"amount"`
	Method    PaymentMethod `json:"method"`
	CreatedAt time.Time     `json:"created_at"`
}

// Invoice bills a ticket. Total is always Subtotal + Tax - Discount and the
// status is derived from the balance; callers mutate it only through Reconcile.
type Invoice struct {
	ID             string            `json:"id"`
	TicketID       string            `json:"ticket_id"`
	CustomerID     string            `json:"customer_id"`
	Items          []InvoiceLineItem `json:"items"`
	PartsRawTotal  int64             `json:"parts_raw_total"`
	PartsTotal     int64             `json:"parts_total"`
	LaborTotal     int64             `json:"labor_total"`
	LaborWaived    bool              `json:"labor_waived"`
	Subtotal       int64             `json:"subtotal"`
	Tax            int64             `json:"tax"`
	Discount       int64             `json:"discount"`
	DepositApplied int64             `json:"deposit_applied"`
	Total          int64             `json:"total"`
	Status         InvoiceStatus     `json:"status"`
	Payments       []Payment         `json:"payments"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// AmountPaid sums every recorded payment, the applied deposit included.
func (inv *Invoice) AmountPaid() int64 {
	var sum int64
	for _, p := range inv.Payments {
		sum += p.Amount
	}
	return sum
}

// BalanceDue is never negative.
func (inv *Invoice) BalanceDue() int64 {
	return max(0, inv.Total-inv.AmountPaid())
}

// Reconcile recomputes the status from the balance.
func (inv *Invoice) Reconcile() {
	inv.Status = InvoiceStatusFor(inv.Total, inv.BalanceDue())
}

// HasTenderedPayments reports whether anything beyond the deposit was paid.
func (inv *Invoice) HasTenderedPayments() bool {
	for _, p := range inv.Payments {
		if p.Method != PaymentMethodDeposit {
			return true
		}
	}
	return false
}

// InvoiceStatusFor is the pure status function: zero totals are paid.
func InvoiceStatusFor(total, balanceDue int64) InvoiceStatus {
	switch {
	case total <= 0 || balanceDue <= 0:
		return InvoiceStatusPaid
	case balanceDue < total:
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusUnpaid
	}
}

// TenderedPaid sums the payments received after the deposit.
func (inv *Invoice) TenderedPaid() int64 {
	var sum int64
	for _, p := range inv.Payments {
		if p.Method != PaymentMethodDeposit {
			sum += p.Amount
		}
	}
	return sum
}

// Checkout previews the counter amounts for the tendered amount against the
// current balance, so the due figure is always accepted by a payment.
func (inv *Invoice) Checkout(tendered int64) (due, change int64) {
	// Total equals Subtotal unless a tax or discount rate is configured.
	return Checkout(inv.Total, inv.DepositApplied, inv.TenderedPaid(), tendered)
}

// Checkout returns what the customer still owes at the counter and the change
// for the tendered amount. paid counts what was received after the deposit.
func Checkout(subtotal, depositApplied, paid, tendered int64) (due, change int64) {
	due = max(0, subtotal-depositApplied-paid)
	change = max(0, tendered-due)
	return due, change
}

// InvoicePolicy holds the rates applied when an invoice is derived from a ticket.
type InvoicePolicy struct {
	PartsMarkup  decimal.Decimal
	TaxRate      decimal.Decimal
	DiscountRate decimal.Decimal
}

// DefaultPartsMarkup is the documented shop markup on parts.
var DefaultPartsMarkup = decimal.RequireFromString("1.5")

// DefaultInvoicePolicy returns the 1.5x markup with no tax or discount.
func DefaultInvoicePolicy() InvoicePolicy {
	return InvoicePolicy{
		PartsMarkup:  DefaultPartsMarkup,
		TaxRate:      decimal.Zero,
		DiscountRate: decimal.Zero,
	}
}

// MarkUp applies the parts markup to a raw parts total.
func (p InvoicePolicy) MarkUp(raw int64) int64 {
	return applyRate(raw, p.PartsMarkup)
}

// Tax computes tax on the subtotal.
func (p InvoicePolicy) Tax(subtotal int64) int64 {
	return applyRate(subtotal, p.TaxRate)
}

// Discount computes the discount, never exceeding the taxed subtotal.
func (p InvoicePolicy) Discount(subtotal, tax int64) int64 {
	return min(applyRate(subtotal, p.DiscountRate), subtotal+tax)
}

func applyRate(amount int64, rate decimal.Decimal) int64 {
	if amount <= 0 || rate.IsNegative() {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
}
