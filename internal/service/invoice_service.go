package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fixbench/repair-desk/internal/domain"
	"github.com/fixbench/repair-desk/internal/events"
	"github.com/fixbench/repair-desk/internal/repository"
)

// InvoiceService derives invoices from finished tickets and records payments.
type InvoiceService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	policy     domain.InvoicePolicy
	now        Clock
}

// InvoiceDependencies bundles collaborators for the invoice service. A zero
// Policy falls back to domain.DefaultInvoicePolicy.
type InvoiceDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Policy     domain.InvoicePolicy
	Clock      Clock
}

// PaymentInput is a tender at the counter.
type PaymentInput struct {
	Amount int64
	Method domain.PaymentMethod
}

// CreateInvoiceInput carries the optional labor override and immediate payment.
type CreateInvoiceInput struct {
	LaborOverride *int64
	Payment       *PaymentInput
}

// InvoiceResult is the created invoice plus the change owed when the
// immediate payment exceeded the balance.
type InvoiceResult struct {
	Invoice *domain.Invoice `json:"invoice"`
	Applied *domain.Payment `json:"payment_applied,omitempty"`
	Change  int64           `json:"change"`
}

// CheckoutPreview is the counter arithmetic for an invoice.
type CheckoutPreview struct {
	InvoiceID      string `json:"invoice_id"`
	Subtotal       int64  `json:"subtotal"`
	DepositApplied int64  `json:"deposit_applied"`
	Paid           int64  `json:"paid"`
	Tendered       int64  `json:"tendered"`
	Due            int64  `json:"due"`
	Change         int64  `json:"change"`
}

// NewInvoiceService constructs the service.
func NewInvoiceService(deps InvoiceDependencies) *InvoiceService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = defaultClock
	}
	policy := deps.Policy
	if policy.PartsMarkup.IsZero() {
		policy = domain.DefaultInvoicePolicy()
	}
	return &InvoiceService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		policy:     policy,
		now:        clock,
	}
}

// CreateFromTicket bills a ticket in a terminal status. The deposit is
// recorded as the first payment. An immediate payment is applied up to the
// balance due in the same transaction; the excess is returned as change.
func (s *InvoiceService) CreateFromTicket(ctx context.Context, actor events.Actor, ticketID string, input CreateInvoiceInput) (*InvoiceResult, error) {
	if input.LaborOverride != nil && *input.LaborOverride < 0 {
		return nil, fmt.Errorf("%w: labor override must not be negative", domain.ErrInvalidAmount)
	}
	if input.Payment != nil {
		if err := validateTender(input.Payment.Amount, input.Payment.Method); err != nil {
			return nil, err
		}
	}

	result := &InvoiceResult{}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket.Deleted() {
			return fmt.Errorf("ticket %s: %w", ticketID, domain.ErrNotFound)
		}
		if ticket.InvoiceID != nil {
			return fmt.Errorf("%w: ticket %s already has invoice %s", domain.ErrDuplicateInvoice, ticket.ID, *ticket.InvoiceID)
		}
		if !ticket.Status.InvoiceEligible() {
			return fmt.Errorf("%w: ticket %s is %s", domain.ErrIneligibleTicket, ticket.ID, ticket.Status)
		}

		now := s.now()
		invoice, err := s.draft(ctx, tx, ticket, input.LaborOverride, now)
		if err != nil {
			return err
		}
		if err := tx.Invoices().Create(ctx, invoice); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: ticket %s already has an invoice", domain.ErrDuplicateInvoice, ticket.ID)
			}
			return err
		}

		ticket.InvoiceID = &invoice.ID
		ticket.UpdatedAt = now
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}

		if input.Payment != nil {
			var due int64
			due, result.Change = invoice.Checkout(input.Payment.Amount)
			if due > 0 {
				payment := &domain.Payment{
					InvoiceID: invoice.ID,
					Amount:    min(input.Payment.Amount, due),
					Method:    input.Payment.Method,
					CreatedAt: now,
				}
				if err := s.applyPayment(ctx, tx, invoice, payment); err != nil {
					return err
				}
				result.Applied = payment
			}
		}
		result.Invoice = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}

	invoice := result.Invoice
	s.logger.Info("invoice created",
		zap.String("invoice_id", invoice.ID),
		zap.String("ticket_id", invoice.TicketID),
		zap.Int64("total", invoice.Total),
		zap.String("status", string(invoice.Status)))
	created := invoiceEvent(events.EventInvoiceCreated, invoice, actor)
	if result.Applied == nil {
		publishEvents(ctx, s.dispatcher, invoice.CreatedAt, created)
	} else {
		publishEvents(ctx, s.dispatcher, invoice.CreatedAt, created, invoiceEvent(events.EventInvoiceUpdated, invoice, actor))
	}
	return result, nil
}

// draft computes the invoice amounts for the ticket without persisting them.
func (s *InvoiceService) draft(ctx context.Context, tx repository.Tx, ticket *domain.Ticket, laborOverride *int64, now time.Time) (*domain.Invoice, error) {
	items, err := tx.TicketParts().ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	invoice := &domain.Invoice{
		ID:            uuid.NewString(),
		TicketID:      ticket.ID,
		CustomerID:    ticket.CustomerID,
		Items:         make([]domain.InvoiceLineItem, 0, len(items)+1),
		PartsRawTotal: domain.SumPartTotals(items),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	invoice.PartsTotal = s.policy.MarkUp(invoice.PartsRawTotal)

	var lineSum int64
	for i := range items {
		item := &items[i]
		part, err := tx.Parts().GetByID(ctx, item.PartID)
		if err != nil {
			return nil, err
		}
		line := domain.InvoiceLineItem{
			Kind:        domain.LineItemPart,
			PartID:      &items[i].PartID,
			Description: part.Name,
			Quantity:    item.Quantity,
			UnitPrice:   s.policy.MarkUp(item.UnitPrice),
			Total:       s.policy.MarkUp(item.Total),
		}
		lineSum += line.Total
		invoice.Items = append(invoice.Items, line)
	}
	// Per-line rounding can differ from the marked-up total by a unit or two.
	if n := len(invoice.Items); n > 0 {
		invoice.Items[n-1].Total += invoice.PartsTotal - lineSum
	}

	switch {
	case ticket.Status.LaborWaived():
		invoice.LaborWaived = true
	case laborOverride != nil:
		invoice.LaborTotal = *laborOverride
	default:
		invoice.LaborTotal = max(0, ticket.ActualCost-invoice.PartsRawTotal)
	}
	if invoice.LaborTotal > 0 {
		invoice.Items = append(invoice.Items, domain.InvoiceLineItem{
			Kind:        domain.LineItemLabor,
			Description: "Labor",
			Quantity:    1,
			UnitPrice:   invoice.LaborTotal,
			Total:       invoice.LaborTotal,
		})
	}

	invoice.Subtotal = invoice.PartsTotal + invoice.LaborTotal
	invoice.Tax = s.policy.Tax(invoice.Subtotal)
	invoice.Discount = s.policy.Discount(invoice.Subtotal, invoice.Tax)
	invoice.Total = invoice.Subtotal + invoice.Tax - invoice.Discount
	invoice.DepositApplied = max(0, min(ticket.DepositPaid, invoice.Total))
	if invoice.DepositApplied > 0 {
		invoice.Payments = append(invoice.Payments, domain.Payment{
			ID:        uuid.NewString(),
			InvoiceID: invoice.ID,
			Amount:    invoice.DepositApplied,
			Method:    domain.PaymentMethodDeposit,
			CreatedAt: now,
		})
	}
	invoice.Reconcile()
	return invoice, nil
}

// AddPayment records a payment of at most the balance due.
func (s *InvoiceService) AddPayment(ctx context.Context, actor events.Actor, invoiceID string, amount int64, method domain.PaymentMethod) (*domain.Invoice, error) {
	if err := validateTender(amount, method); err != nil {
		return nil, err
	}

	var invoice *domain.Invoice
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		invoice, err = tx.Invoices().GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		return s.applyPayment(ctx, tx, invoice, &domain.Payment{
			InvoiceID: invoice.ID,
			Amount:    amount,
			Method:    method,
			CreatedAt: s.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	publishEvents(ctx, s.dispatcher, invoice.UpdatedAt, invoiceEvent(events.EventInvoiceUpdated, invoice, actor))
	return invoice, nil
}

func (s *InvoiceService) applyPayment(ctx context.Context, tx repository.Tx, invoice *domain.Invoice, payment *domain.Payment) error {
	if due := invoice.BalanceDue(); payment.Amount > due {
		return fmt.Errorf("%w: amount %d exceeds balance due %d", domain.ErrOverpayment, payment.Amount, due)
	}
	if err := tx.Invoices().AddPayment(ctx, payment); err != nil {
		return err
	}
	invoice.Payments = append(invoice.Payments, *payment)
	invoice.Reconcile()
	invoice.UpdatedAt = payment.CreatedAt
	return tx.Invoices().Update(ctx, invoice)
}

func validateTender(amount int64, method domain.PaymentMethod) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", domain.ErrInvalidAmount, amount)
	}
	if !method.Valid() {
		return fmt.Errorf("%w: payment method %q", domain.ErrUnknownKey, method)
	}
	if method == domain.PaymentMethodDeposit {
		return fmt.Errorf("%w: deposits are applied when the invoice is created", domain.ErrValidation)
	}
	return nil
}

// Get returns an invoice with its payments.
func (s *InvoiceService) Get(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	var invoice *domain.Invoice
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		invoice, err = tx.Invoices().GetByID(ctx, invoiceID)
		return err
	})
	return invoice, err
}

// Delete removes an invoice that has no payment besides the deposit and
// detaches it from its ticket.
func (s *InvoiceService) Delete(ctx context.Context, actor events.Actor, invoiceID string) error {
	var invoice *domain.Invoice
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		invoice, err = tx.Invoices().GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.HasTenderedPayments() {
			return fmt.Errorf("%w: invoice %s", domain.ErrInvoiceHasPayments, invoice.ID)
		}
		ticket, err := tx.Tickets().GetForUpdate(ctx, invoice.TicketID)
		if err != nil {
			return err
		}
		if err := tx.Invoices().Delete(ctx, invoice.ID); err != nil {
			return err
		}
		ticket.InvoiceID = nil
		ticket.UpdatedAt = s.now()
		return tx.Tickets().Update(ctx, ticket)
	})
	if err != nil {
		return err
	}

	publishEvents(ctx, s.dispatcher, s.now(), invoiceEvent(events.EventInvoiceDeleted, invoice, actor))
	return nil
}

// Checkout previews what is due at the counter for the tendered amount.
func (s *InvoiceService) Checkout(ctx context.Context, invoiceID string, tendered int64) (*CheckoutPreview, error) {
	if tendered < 0 {
		return nil, fmt.Errorf("%w: tendered must not be negative", domain.ErrInvalidAmount)
	}
	invoice, err := s.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	due, change := invoice.Checkout(tendered)
	return &CheckoutPreview{
		InvoiceID:      invoice.ID,
		Subtotal:       invoice.Subtotal,
		DepositApplied: invoice.DepositApplied,
		Paid:           invoice.TenderedPaid(),
		Tendered:       tendered,
		Due:            due,
		Change:         change,
	}, nil
}
