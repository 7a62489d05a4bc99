package models

import "time"

// FuelLog records a fill-up. MileageKM is the odometer reading captured at
// the pump, which makes every fuel log an odometer event.
type FuelLog struct {
	ID         string    `db:"id" json:"id"`
	VehicleID  string    `db:"vehicle_id" json:"vehicle_id"`
	MileageKM  int       `db:"mileage_km" json:"mileage_km"`
	Liters     float64   `db:"liters" json:"liters"`
	UnitPrice  float64   `db:"unit_price" json:"unit_price"`
	TotalCost  float64   `db:"total_cost" json:"total_cost"`
	Station    string    `db:"station" json:"station,omitempty"`
	Notes      string    `db:"notes" json:"notes,omitempty"`
	RecordedBy string    `db:"recorded_by" json:"recorded_by"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	// Corrected marks entries whose mileage was rewritten by a supervised
	// correction after the fact.
	Corrected bool `db:"corrected" json:"corrected"`
}

// FuelLogFilter captures filtering criteria for listing fuel logs.
type FuelLogFilter struct {
	VehicleID string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// FuelSummary aggregates consumption per vehicle over a period.
type FuelSummary struct {
	VehicleID   string  `db:"vehicle_id" json:"vehicle_id"`
	Plate       string  `db:"plate" json:"plate"`
	FillUps     int     `db:"fill_ups" json:"fill_ups"`
	TotalLiters float64 `db:"total_liters" json:"total_liters"`
	TotalSpend  float64 `db:"total_spend" json:"total_spend"`
	FirstKM     int     `db:"first_km" json:"first_km"`
	LastKM      int     `db:"last_km" json:"last_km"`
}
