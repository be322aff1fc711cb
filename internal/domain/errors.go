package domain

import "errors"

// Validation failures surfaced verbatim to callers. Services wrap these with
// context using fmt.Errorf("%w: ...") so errors.Is keeps working.
var (
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrDeviceLocked       = errors.New("device locked")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrDuplicateInvoice   = errors.New("duplicate invoice")
	ErrIneligibleTicket   = errors.New("ticket not eligible for invoicing")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrOverpayment        = errors.New("overpayment")
	ErrUnknownKey         = errors.New("unknown canonical key")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrInvoiceHasPayments = errors.New("invoice has payments")
)
