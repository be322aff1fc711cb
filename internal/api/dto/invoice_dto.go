package dto

import "github.com/fixbench/repair-desk/internal/domain"

// PaymentRequest payload.
type PaymentRequest struct {
	Amount int64                `json:"amount"`
	Method domain.PaymentMethod `json:"method"`
}

// CreateInvoiceRequest payload for POST /invoices/from-ticket/:id.
type CreateInvoiceRequest struct {
	LaborOverride *int64          `json:"labor_override"`
	Payment       *PaymentRequest `json:"payment"`
}
