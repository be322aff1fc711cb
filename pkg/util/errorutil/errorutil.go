package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fixbench/repair-desk/internal/domain"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	return NewDomainError("NOT_FOUND", fmt.Sprintf("%s not found", resource), http.StatusNotFound, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

type errorKind struct {
	sentinel error
	code     string
	status   int
}

// kinds maps each domain failure to the code clients switch on.
var kinds = []errorKind{
	{domain.ErrInvalidTransition, "INVALID_TRANSITION", http.StatusConflict},
	{domain.ErrDeviceLocked, "DEVICE_LOCKED", http.StatusLocked},
	{domain.ErrInsufficientStock, "INSUFFICIENT_STOCK", http.StatusConflict},
	{domain.ErrDuplicateInvoice, "DUPLICATE_INVOICE", http.StatusConflict},
	{domain.ErrIneligibleTicket, "INELIGIBLE_TICKET", http.StatusConflict},
	{domain.ErrInvoiceHasPayments, "INVOICE_HAS_PAYMENTS", http.StatusConflict},
	{domain.ErrInvalidAmount, "INVALID_AMOUNT", http.StatusUnprocessableEntity},
	{domain.ErrOverpayment, "OVERPAYMENT", http.StatusUnprocessableEntity},
	{domain.ErrUnknownKey, "UNKNOWN_KEY", http.StatusBadRequest},
	{domain.ErrValidation, "VALIDATION_FAILED", http.StatusBadRequest},
	{domain.ErrNotFound, "NOT_FOUND", http.StatusNotFound},
}

// ToDomainError converts service errors to DomainError. Domain sentinels keep
// their wrapped message; anything unrecognized is an internal error.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	for _, kind := range kinds {
		if errors.Is(err, kind.sentinel) {
			return &DomainError{Code: kind.code, Message: err.Error(), HTTPStatus: kind.status, Err: err}
		}
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
