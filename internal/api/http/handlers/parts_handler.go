package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fixbench/repair-desk/internal/api/dto"
	"github.com/fixbench/repair-desk/internal/domain"
	"github.com/fixbench/repair-desk/internal/service"
	apperrors "github.com/fixbench/repair-desk/pkg/util/errorutil"
)

// PartsHandler exposes inventory and the parts ledger.
type PartsHandler struct {
	service *service.PartsService
}

// NewPartsHandler constructs handler.
func NewPartsHandler(parts *service.PartsService) *PartsHandler {
	return &PartsHandler{service: parts}
}

// CreatePart POST /parts.
func (h *PartsHandler) CreatePart(c *fiber.Ctx) error {
	var req dto.CreatePartRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	part, err := h.service.CreatePart(c.UserContext(), service.PartCreateInput{
		SKU:       req.SKU,
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Stock:     req.Stock,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": part})
}

// GetPart GET /parts/:id.
func (h *PartsHandler) GetPart(c *fiber.Ctx) error {
	part, err := h.service.GetPart(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": part})
}

// AddPart POST /tickets/:id/parts.
func (h *PartsHandler) AddPart(c *fiber.Ctx) error {
	var req dto.AddPartRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.PartID == "" {
		return apperrors.NewValidationError("part_id required", nil)
	}
	item, ticket, err := h.service.AddPart(c.UserContext(), actorFrom(c), c.Params("id"), req.PartID, req.Quantity)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.PartItemResponse{Item: item, ActualCost: ticket.ActualCost}})
}

// ListParts GET /tickets/:id/parts.
func (h *PartsHandler) ListParts(c *fiber.Ctx) error {
	items, err := h.service.ListParts(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if items == nil {
		items = []domain.TicketPartItem{}
	}
	return c.JSON(fiber.Map{"data": items})
}

// RemovePart DELETE /tickets/:id/parts/:itemId.
func (h *PartsHandler) RemovePart(c *fiber.Ctx) error {
	ticket, err := h.service.RemovePart(c.UserContext(), actorFrom(c), c.Params("id"), c.Params("itemId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticket})
}
