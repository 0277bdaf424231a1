package dto

// OrderStatusCounts breaks the order book down by lifecycle state.
type OrderStatusCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
}

// MachineStatusCounts breaks machines down by operational state.
type MachineStatusCounts struct {
	Active      int `json:"active"`
	Maintenance int `json:"maintenance"`
	Inactive    int `json:"inactive"`
}

// DashboardOverview summarises the shop floor for the landing screen.
type DashboardOverview struct {
	Orders        OrderStatusCounts   `json:"orders"`
	Machines      MachineStatusCounts `json:"machines"`
	UnitsInFlight int                 `json:"unitsInFlight"`
	Companies     int                 `json:"companies"`
}
