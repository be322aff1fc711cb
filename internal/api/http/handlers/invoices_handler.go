package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/fixbench/repair-desk/internal/api/dto"
	"github.com/fixbench/repair-desk/internal/service"
	apperrors "github.com/fixbench/repair-desk/pkg/util/errorutil"
)

// InvoicesHandler exposes the invoice engine.
type InvoicesHandler struct {
	service *service.InvoiceService
}

// NewInvoicesHandler constructs handler.
func NewInvoicesHandler(invoices *service.InvoiceService) *InvoicesHandler {
	return &InvoicesHandler{service: invoices}
}

// CreateFromTicket POST /invoices/from-ticket/:id.
func (h *InvoicesHandler) CreateFromTicket(c *fiber.Ctx) error {
	var req dto.CreateInvoiceRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	input := service.CreateInvoiceInput{LaborOverride: req.LaborOverride}
	if req.Payment != nil {
		input.Payment = &service.PaymentInput{Amount: req.Payment.Amount, Method: req.Payment.Method}
	}
	result, err := h.service.CreateFromTicket(c.UserContext(), actorFrom(c), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": result})
}

// GetInvoice GET /invoices/:id.
func (h *InvoicesHandler) GetInvoice(c *fiber.Ctx) error {
	invoice, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"invoice": invoice, "balance_due": invoice.BalanceDue()}})
}

// AddPayment POST /invoices/:id/payments.
func (h *InvoicesHandler) AddPayment(c *fiber.Ctx) error {
	var req dto.PaymentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	invoice, err := h.service.AddPayment(c.UserContext(), actorFrom(c), c.Params("id"), req.Amount, req.Method)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{"invoice": invoice, "balance_due": invoice.BalanceDue()}})
}

// DeleteInvoice DELETE /invoices/:id.
func (h *InvoicesHandler) DeleteInvoice(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), actorFrom(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Checkout GET /invoices/:id/checkout?tendered=N.
func (h *InvoicesHandler) Checkout(c *fiber.Ctx) error {
	var tendered int64
	if raw := c.Query("tendered"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return apperrors.NewValidationError("tendered must be an integer amount in minor units", nil)
		}
		tendered = parsed
	}
	preview, err := h.service.Checkout(c.UserContext(), c.Params("id"), tendered)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": preview})
}
