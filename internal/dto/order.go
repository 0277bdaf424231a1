package dto

import (
	"time"

	"github.com/planfab/planfab-api/internal/models"
)

// CreateOrderRequest is the payload for committing a machine booking.
type CreateOrderRequest struct {
	CompanyID   string    `json:"companyId" validate:"required"`
	ProductName string    `json:"productName" validate:"required"`
	PartNumber  string    `json:"partNumber"`
	ProcessName string    `json:"processName" validate:"required"`
	MachineID   string    `json:"machineId" validate:"required"`
	StartDate   time.Time `json:"startDate" validate:"required"`
	EndDate     time.Time `json:"endDate" validate:"required"`
	Units       int       `json:"units" validate:"required,min=1"`
}

// ResolutionInput shortens one conflicting order's end date.
type ResolutionInput struct {
	OrderID    string    `json:"orderId" validate:"required"`
	NewEndDate time.Time `json:"newEndDate" validate:"required"`
}

// ResolveConflictRequest applies end-date resolutions and commits the
// original candidate in one transaction.
type ResolveConflictRequest struct {
	Resolutions []ResolutionInput  `json:"conflictResolutions" validate:"required,min=1,dive"`
	Order       CreateOrderRequest `json:"newOrderData" validate:"required"`
}

// ConflictPayload is returned alongside a MACHINE_CONFLICT error so the
// caller can present a resolution workflow.
type ConflictPayload struct {
	MachineID string         `json:"machineId"`
	Candidate models.Order   `json:"candidate"`
	Conflicts []models.Order `json:"conflicts"`
}

// UpdateOrderStatusRequest moves an order through its lifecycle.
type UpdateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required,oneof=pending in-progress completed cancelled"`
}
