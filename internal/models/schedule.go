package models

import "time"

// UnitAssignment is one (unit, machine) slot in a generated timetable.
// End is always Start plus the machine's per-unit duration, and Start always
// falls inside a working window.
type UnitAssignment struct {
	Unit  int       `json:"unit"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// MachineLog aggregates one machine's assignments in unit order.
type MachineLog struct {
	Name             string           `json:"name"`
	TotalTimeMinutes int              `json:"totalTimeMinutes"`
	Units            []UnitAssignment `json:"units"`
}

// LastEnd returns the end instant of the machine's final assignment.
func (m MachineLog) LastEnd() time.Time {
	if len(m.Units) == 0 {
		return time.Time{}
	}
	return m.Units[len(m.Units)-1].End
}

// DayPlan is one working day of an order's per-day unit spread.
type DayPlan struct {
	Date      string `json:"date"`
	Units     int    `json:"units"`
	StartUnit int    `json:"startUnit"`
	EndUnit   int    `json:"endUnit"`
}
