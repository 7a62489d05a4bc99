package models

import "time"

// ServiceType enumerates recurring maintenance services.
type ServiceType string

const (
	ServiceTypeOilChange  ServiceType = "oil_change"
	ServiceTypeTimingBelt ServiceType = "timing_belt"
	ServiceTypeChainKit   ServiceType = "chain_kit"
	ServiceTypeWash       ServiceType = "wash"
	ServiceTypeCustom     ServiceType = "custom"
)

// IntervalKind discriminates how a maintenance plan measures its interval.
// Exactly one of the two applies to any plan.
type IntervalKind string

const (
	IntervalKindDistance IntervalKind = "distance"
	IntervalKindTime     IntervalKind = "time"
)

// MaintenancePlan is a per-vehicle rule for a recurring service: an interval
// (distance in km or time in days, per Kind) and the point of the last
// performed service in the same unit. The last-service fields advance only
// when a service of this type is logged.
type MaintenancePlan struct {
	ID            string       `db:"id" json:"id"`
	VehicleID     string       `db:"vehicle_id" json:"vehicle_id"`
	ServiceType   ServiceType  `db:"service_type" json:"service_type"`
	CustomLabel   string       `db:"custom_label" json:"custom_label,omitempty"`
	Kind          IntervalKind `db:"kind" json:"kind"`
	IntervalKM    *int         `db:"interval_km" json:"interval_km,omitempty"`
	IntervalDays  *int         `db:"interval_days" json:"interval_days,omitempty"`
	LastServiceKM *int         `db:"last_service_km" json:"last_service_km,omitempty"`
	LastServiceAt *time.Time   `db:"last_service_at" json:"last_service_at,omitempty"`
	Active        bool         `db:"active" json:"active"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// Label returns the human-readable service name for the plan.
func (p MaintenancePlan) Label() string {
	if p.ServiceType == ServiceTypeCustom && p.CustomLabel != "" {
		return p.CustomLabel
	}
	switch p.ServiceType {
	case ServiceTypeOilChange:
		return "Oil change"
	case ServiceTypeTimingBelt:
		return "Timing belt"
	case ServiceTypeChainKit:
		return "Chain kit"
	case ServiceTypeWash:
		return "Wash"
	default:
		return string(p.ServiceType)
	}
}

// MaintenanceLog records a performed service. MileageKM is the odometer
// reading at service time.
type MaintenanceLog struct {
	ID          string      `db:"id" json:"id"`
	VehicleID   string      `db:"vehicle_id" json:"vehicle_id"`
	PlanID      *string     `db:"plan_id" json:"plan_id,omitempty"`
	ServiceType ServiceType `db:"service_type" json:"service_type"`
	Description string      `db:"description" json:"description,omitempty"`
	MileageKM   int         `db:"mileage_km" json:"mileage_km"`
	Cost        float64     `db:"cost" json:"cost"`
	PerformedBy string      `db:"performed_by" json:"performed_by"`
	PerformedAt time.Time   `db:"performed_at" json:"performed_at"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// DueAlert is a computed maintenance-due indication. Alerts are never
// persisted: they are recomputed on every read and disappear once a matching
// fault exists. The ID is derived from the originating plan so a later
// promotion can be traced back.
type DueAlert struct {
	ID           string        `json:"id"`
	PlanID       string        `json:"plan_id"`
	VehicleID    string        `json:"vehicle_id"`
	Plate        string        `json:"plate,omitempty"`
	ServiceType  ServiceType   `json:"service_type"`
	ServiceLabel string        `json:"service_label"`
	Priority     FaultPriority `json:"priority"`
	UsageText    string        `json:"usage_text"`
}
