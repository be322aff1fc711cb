package dto

import (
	"github.com/fixbench/repair-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	CustomerID    string                `json:"customer_id"`
	DeviceID      string                `json:"device_id"`
	Priority      domain.TicketPriority `json:"priority"`
	Description   string                `json:"description"`
	EstimatedCost int64                 `json:"estimated_cost"`
	DepositPaid   int64                 `json:"deposit_paid"`
	TechnicianID  *string               `json:"technician_id"`
}

// UpdateTicketRequest payload. Omitted fields are left unchanged.
type UpdateTicketRequest struct {
	Priority      *domain.TicketPriority `json:"priority"`
	Description   *string                `json:"description"`
	EstimatedCost *int64                 `json:"estimated_cost"`
	DepositPaid   *int64                 `json:"deposit_paid"`
}

// TransitionRequest payload for PATCH /tickets/:id/status.
type TransitionRequest struct {
	Status domain.TicketStatus `json:"status"`
	Notes  string              `json:"notes"`
}

// DeviceStatusRequest payload for PATCH /tickets/:id/device-status.
type DeviceStatusRequest struct {
	Status domain.DeviceStatus `json:"status"`
}

// AssignTechnicianRequest payload.
type AssignTechnicianRequest struct {
	TechnicianID string `json:"technician_id"`
}

// LaborRequest payload for labor start/stop. The technician defaults to the
// acting staff member.
type LaborRequest struct {
	TechnicianID string `json:"technician_id"`
}

// TicketListQuery captures query filters.
type TicketListQuery struct {
	CustomerID     *string
	TechnicianID   *string
	Statuses       []domain.TicketStatus
	IncludeDeleted bool
	Page           int
	PageSize       int
}

// StartLaborResponse reports whether a new log was opened.
type StartLaborResponse struct {
	WorkLog *domain.WorkLog `json:"work_log"`
	Created bool            `json:"created"`
}

// PartItemResponse is the added item with the recomputed ticket cost.
type PartItemResponse struct {
	Item       *domain.TicketPartItem `json:"item"`
	ActualCost int64                  `json:"actual_cost"`
}
