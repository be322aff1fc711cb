package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fixbench/repair-desk/internal/api/dto"
	"github.com/fixbench/repair-desk/internal/events"
	"github.com/fixbench/repair-desk/internal/service"
	apperrors "github.com/fixbench/repair-desk/pkg/util/errorutil"
)

// LaborHandler exposes the work log tracker.
type LaborHandler struct {
	service *service.WorkLogService
}

// NewLaborHandler constructs handler.
func NewLaborHandler(workLogs *service.WorkLogService) *LaborHandler {
	return &LaborHandler{service: workLogs}
}

// Start POST /tickets/:id/labor/start.
func (h *LaborHandler) Start(c *fiber.Ctx) error {
	actor, technicianID, err := laborTechnician(c)
	if err != nil {
		return err
	}
	log, created, err := h.service.Start(c.UserContext(), actor, c.Params("id"), technicianID)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.StartLaborResponse{WorkLog: log, Created: created}})
}

// Stop POST /tickets/:id/labor/stop.
func (h *LaborHandler) Stop(c *fiber.Ctx) error {
	actor, technicianID, err := laborTechnician(c)
	if err != nil {
		return err
	}
	log, err := h.service.Stop(c.UserContext(), actor, c.Params("id"), technicianID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": log})
}

// Summary GET /tickets/:id/labor.
func (h *LaborHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

func laborTechnician(c *fiber.Ctx) (events.Actor, string, error) {
	var req dto.LaborRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return events.Actor{}, "", err
		}
	}
	actor := actorFrom(c)
	technicianID := strings.TrimSpace(req.TechnicianID)
	if technicianID == "" {
		technicianID = actor.ID
	}
	if technicianID == "" {
		return events.Actor{}, "", apperrors.NewValidationError("technician_id or "+ActorHeader+" header required", nil)
	}
	return actor, technicianID, nil
}
