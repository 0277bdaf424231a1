package models

import (
	"fmt"
	"time"
)

// OrderStatus enumerates the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusInProgress OrderStatus = "in-progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Order is a committed production assignment of a machine for a date range.
type Order struct {
	ID          string      `db:"id" json:"id"`
	CompanyID   string      `db:"company_id" json:"companyId"`
	ProductName string      `db:"product_name" json:"productName"`
	PartNumber  string      `db:"part_number" json:"partNumber"`
	ProcessName string      `db:"process_name" json:"processName"`
	MachineID   string      `db:"machine_id" json:"machineId"`
	MachineName string      `db:"machine_name" json:"machineName"`
	StartDate   time.Time   `db:"start_date" json:"startDate"`
	EndDate     time.Time   `db:"end_date" json:"endDate"`
	Units       int         `db:"units" json:"units"`
	Status      OrderStatus `db:"status" json:"status"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// Blocking reports whether the order participates in machine conflict
// checks. Completed and cancelled orders never block.
func (o Order) Blocking() bool {
	return o.Status != OrderStatusCompleted && o.Status != OrderStatusCancelled
}

// OrderFilter captures filtering criteria for listing orders.
type OrderFilter struct {
	CompanyID string
	MachineID string
	Status    *OrderStatus
	Page      int
	PageSize  int
}

// MachineConflictError carries the conflicting orders alongside the rejected
// candidate so callers can drive a resolution workflow.
type MachineConflictError struct {
	MachineID string  `json:"machineId"`
	Candidate Order   `json:"candidate"`
	Conflicts []Order `json:"conflicts"`
}

// Error implements the error interface.
func (e *MachineConflictError) Error() string {
	return fmt.Sprintf("machine %s has %d conflicting order(s)", e.MachineID, len(e.Conflicts))
}

// OrderResolution shortens one existing order's end date as part of
// conflict resolution.
type OrderResolution struct {
	OrderID    string    `json:"orderId"`
	NewEndDate time.Time `json:"newEndDate"`
}
