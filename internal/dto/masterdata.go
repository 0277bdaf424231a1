package dto

import (
	"time"

	"github.com/planfab/planfab-api/internal/models"
)

// SaveMachineRequest creates or updates a machine master record.
type SaveMachineRequest struct {
	Name        string               `json:"name" validate:"required"`
	Status      models.MachineStatus `json:"status" validate:"omitempty,oneof=active maintenance inactive"`
	Units       int                  `json:"units" validate:"min=0"`
	TimePerUnit int                  `json:"timePerUnit" validate:"required,min=1"`
}

// SaveCompanyRequest creates or updates a production run configuration.
type SaveCompanyRequest struct {
	Name          string         `json:"name" validate:"required"`
	Address       string         `json:"address"`
	GST           string         `json:"gst"`
	Quantity      int            `json:"quantity" validate:"required,min=1"`
	StartDateTime time.Time      `json:"startDateTime" validate:"required"`
	EndDateTime   time.Time      `json:"endDateTime" validate:"required"`
	DailyHours    float64        `json:"dailyHours" validate:"required,gt=0"`
	Machines      []MachineInput `json:"machines" validate:"required,min=1,dive"`
}

// SaveHolidayRequest marks one date as non-working.
type SaveHolidayRequest struct {
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Description string `json:"description"`
}

// SaveShiftRequest creates or updates a named working window.
type SaveShiftRequest struct {
	Name      string `json:"name" validate:"required"`
	StartTime string `json:"startTime" validate:"required,datetime=15:04"`
	EndTime   string `json:"endTime" validate:"required,datetime=15:04"`
}

// SaveProductRequest creates or updates a product master record.
type SaveProductRequest struct {
	Name        string `json:"name" validate:"required"`
	PartNumber  string `json:"partNumber"`
	Description string `json:"description"`
}
