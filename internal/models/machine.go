package models

import "time"

// MachineStatus enumerates operational machine states.
type MachineStatus string

const (
	MachineStatusActive      MachineStatus = "active"
	MachineStatusMaintenance MachineStatus = "maintenance"
	MachineStatusInactive    MachineStatus = "inactive"
)

// Machine represents one machine on the shop floor. TimePerUnit is the fixed
// per-unit processing duration in minutes used by the scheduling engine.
type Machine struct {
	ID          string        `db:"id" json:"id"`
	Name        string        `db:"name" json:"name"`
	Status      MachineStatus `db:"status" json:"status"`
	Units       int           `db:"units" json:"units"`
	TimePerUnit int           `db:"time_per_unit" json:"timePerUnit"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// MachineFilter captures filtering criteria for listing machines.
type MachineFilter struct {
	Status   *MachineStatus
	Search   string
	Page     int
	PageSize int
}
