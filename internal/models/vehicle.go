package models

import "time"

// VehicleType enumerates the kinds of units in the fleet.
type VehicleType string

const (
	VehicleTypeCar        VehicleType = "car"
	VehicleTypeMotorcycle VehicleType = "motorcycle"
	VehicleTypeTruck      VehicleType = "truck"
)

// VehicleStatus captures operational availability.
type VehicleStatus string

const (
	VehicleStatusAvailable  VehicleStatus = "available"
	VehicleStatusOnTrip     VehicleStatus = "on_trip"
	VehicleStatusInWorkshop VehicleStatus = "in_workshop"
	VehicleStatusInactive   VehicleStatus = "inactive"
)

// Vehicle represents a fleet unit. MileageKM is the denormalized best-known
// odometer value; the authoritative figure is resolved as the maximum across
// all odometer-bearing events plus this field.
type Vehicle struct {
	ID        string        `db:"id" json:"id"`
	Plate     string        `db:"plate" json:"plate"`
	Model     string        `db:"model" json:"model"`
	Type      VehicleType   `db:"type" json:"type"`
	Status    VehicleStatus `db:"status" json:"status"`
	DriverID  *string       `db:"driver_id" json:"driver_id,omitempty"`
	MileageKM int           `db:"mileage_km" json:"mileage_km"`
	FuelLevel int           `db:"fuel_level" json:"fuel_level"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// VehicleDetail augments a vehicle with resolved state for read paths.
type VehicleDetail struct {
	Vehicle
	DriverName *string `db:"driver_name" json:"driver_name,omitempty"`
	// CurrentKM is the resolved mileage (max over all odometer events and
	// the denormalized field), computed on read.
	CurrentKM int `db:"-" json:"current_km"`
}

// VehicleFilter captures filtering criteria for listing vehicles.
type VehicleFilter struct {
	Search    string
	Type      *VehicleType
	Status    *VehicleStatus
	DriverID  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
