package models

import "time"

// OdometerSource identifies which table an odometer event lives in.
type OdometerSource string

const (
	OdometerSourceFuel OdometerSource = "fuel_log"
	OdometerSourceTrip OdometerSource = "trip_report"
)

// OdometerEventRef points at the single historical event holding a given
// mileage value. Used by the correction path to rewrite exactly one record.
type OdometerEventRef struct {
	Source     OdometerSource `json:"source"`
	RecordID   string         `json:"record_id"`
	MileageKM  int            `json:"mileage_km"`
	RecordedAt time.Time      `json:"recorded_at"`
}
