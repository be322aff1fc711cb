package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fixbench/repair-desk/internal/api/dto"
	"github.com/fixbench/repair-desk/internal/domain"
	"github.com/fixbench/repair-desk/internal/repository"
	"github.com/fixbench/repair-desk/internal/service"
	apperrors "github.com/fixbench/repair-desk/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.CustomerID == "" || req.DeviceID == "" {
		return apperrors.NewValidationError("customer_id and device_id required", nil)
	}
	ticket, err := h.service.Create(c.UserContext(), actorFrom(c), service.TicketCreateInput{
		CustomerID:    req.CustomerID,
		DeviceID:      req.DeviceID,
		Priority:      req.Priority,
		Description:   req.Description,
		EstimatedCost: req.EstimatedCost,
		DepositPaid:   req.DepositPaid,
		TechnicianID:  req.TechnicianID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticket})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query := parseTicketQuery(c)
	tickets, err := h.service.List(c.UserContext(), repository.TicketFilter{
		CustomerID:     query.CustomerID,
		TechnicianID:   query.TechnicianID,
		Statuses:       query.Statuses,
		IncludeDeleted: query.IncludeDeleted,
		Limit:          query.PageSize,
		Offset:         (query.Page - 1) * query.PageSize,
	})
	if err != nil {
		return err
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return c.JSON(fiber.Map{"data": tickets, "page": query.Page, "page_size": query.PageSize})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	detail, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": detail})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Update(c.UserContext(), actorFrom(c), c.Params("id"), service.TicketUpdateInput{
		Priority:      req.Priority,
		Description:   req.Description,
		EstimatedCost: req.EstimatedCost,
		DepositPaid:   req.DepositPaid,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticket})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.TransitionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Transition(c.UserContext(), actorFrom(c), c.Params("id"), req.Status, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticket})
}

// UpdateDeviceStatus PATCH /tickets/:id/device-status.
func (h *TicketsHandler) UpdateDeviceStatus(c *fiber.Ctx) error {
	var req dto.DeviceStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	device, err := h.service.UpdateDeviceStatus(c.UserContext(), actorFrom(c), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": device})
}

// AssignTechnician POST /tickets/:id/assign.
func (h *TicketsHandler) AssignTechnician(c *fiber.Ctx) error {
	var req dto.AssignTechnicianRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.AssignTechnician(c.UserContext(), actorFrom(c), c.Params("id"), req.TechnicianID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticket})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), actorFrom(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// RestoreTicket POST /tickets/:id/restore.
func (h *TicketsHandler) RestoreTicket(c *fiber.Ctx) error {
	if err := h.service.Restore(c.UserContext(), actorFrom(c), c.Params("id")); err != nil {
		return err
	}
	return h.GetTicket(c)
}

func parseTicketQuery(c *fiber.Ctx) dto.TicketListQuery {
	query := dto.TicketListQuery{
		CustomerID:     optionalQuery(c, "customer_id"),
		TechnicianID:   optionalQuery(c, "technician_id"),
		IncludeDeleted: c.QueryBool("include_deleted", false),
		Page:           parseInt(c.Query("page"), 1),
		PageSize:       parseInt(c.Query("page_size"), 20),
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			query.Statuses = append(query.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	return query
}
