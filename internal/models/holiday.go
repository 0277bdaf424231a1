package models

import "time"

// Holiday marks one calendar date as fully non-working. Date is stored at
// day granularity in yyyy-mm-dd form.
type Holiday struct {
	ID          string    `db:"id" json:"id"`
	Date        string    `db:"date" json:"date"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
