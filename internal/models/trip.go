package models

import "time"

// TripStatus captures the dispatch lifecycle of a trip report.
type TripStatus string

const (
	TripStatusOpen   TripStatus = "open"
	TripStatusClosed TripStatus = "closed"
)

// TripReport records a dispatch and its return. EndKM is the odometer
// reading captured when the trip closes, which makes every closed trip an
// odometer event. EndKM is null while the trip is open.
type TripReport struct {
	ID          string     `db:"id" json:"id"`
	VehicleID   string     `db:"vehicle_id" json:"vehicle_id"`
	DriverID    string     `db:"driver_id" json:"driver_id"`
	Destination string     `db:"destination" json:"destination"`
	Purpose     string     `db:"purpose" json:"purpose,omitempty"`
	Status      TripStatus `db:"status" json:"status"`
	StartKM     int        `db:"start_km" json:"start_km"`
	EndKM       *int       `db:"end_km" json:"end_km,omitempty"`
	DepartedAt  time.Time  `db:"departed_at" json:"departed_at"`
	ReturnedAt  *time.Time `db:"returned_at" json:"returned_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	Corrected   bool       `db:"corrected" json:"corrected"`
}

// TripFilter captures filtering criteria for listing trip reports.
type TripFilter struct {
	VehicleID string
	DriverID  string
	Status    *TripStatus
	Page      int
	PageSize  int
}
