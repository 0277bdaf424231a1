package dto

import "time"

// MachineInput is one pipeline stage in a simulation request. Order in the
// slice is the flow-shop stage order.
type MachineInput struct {
	Name        string `json:"name" validate:"required"`
	TimePerUnit int    `json:"timePerUnit" validate:"required,min=1"`
}

// SimulateScheduleRequest asks the engine for a per-unit, per-machine
// timetable plus a deadline feasibility verdict.
type SimulateScheduleRequest struct {
	Quantity      int            `json:"quantity" validate:"required,min=1"`
	StartDateTime time.Time      `json:"startDateTime" validate:"required"`
	EndDateTime   time.Time      `json:"endDateTime" validate:"required"`
	DailyHours    float64        `json:"dailyHours" validate:"required,gt=0"`
	Machines      []MachineInput `json:"machines" validate:"required,min=1,dive"`
	// Timezone names the IANA zone for working-day boundaries. Empty means
	// the server default.
	Timezone string `json:"timezone"`
}

// UnitSlot is one scheduled unit on one machine.
type UnitSlot struct {
	Unit  int       `json:"unit"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// MachineLogReport is the per-machine view of a simulated schedule.
type MachineLogReport struct {
	Name       string     `json:"name"`
	TotalHours float64    `json:"totalHours"`
	Units      []UnitSlot `json:"units"`
}

// ScheduleReport is the simulation result: the full timetable and the
// feasibility verdict against the requested deadline.
type ScheduleReport struct {
	Success               bool               `json:"success"`
	RequiredDailyHours    float64            `json:"requiredDailyHours"`
	AdditionalHoursNeeded float64            `json:"additionalHoursNeeded"`
	ActualEndTime         time.Time          `json:"actualEndTime"`
	MachineLogs           []MachineLogReport `json:"machineLogs"`
}
