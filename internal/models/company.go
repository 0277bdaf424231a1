package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Company is a production run configuration: one customer order book entry
// carrying the schedule-run parameters (window, quantity, daily budget) and
// the ordered machine pipeline it is produced on.
type Company struct {
	ID            string         `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	Address       string         `db:"address" json:"address"`
	GST           string         `db:"gst" json:"gst"`
	Quantity      int            `db:"quantity" json:"quantity"`
	StartDateTime time.Time      `db:"start_date_time" json:"startDateTime"`
	EndDateTime   time.Time      `db:"end_date_time" json:"endDateTime"`
	DailyHours    float64        `db:"daily_hours" json:"dailyHours"`
	Machines      types.JSONText `db:"machines" json:"machines"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// CompanyMachine is one stage of a company's machine pipeline as stored in
// the machines JSON column. Pipeline position is significant.
type CompanyMachine struct {
	Name        string `json:"name"`
	TimePerUnit int    `json:"timePerUnit"`
}
