package models

import "time"

// FaultPriority ranks how urgent a fault is.
type FaultPriority string

const (
	FaultPriorityLow      FaultPriority = "low"
	FaultPriorityMedium   FaultPriority = "medium"
	FaultPriorityHigh     FaultPriority = "high"
	FaultPriorityCritical FaultPriority = "critical"
)

// FaultCategory groups faults by origin.
type FaultCategory string

const (
	FaultCategoryMechanical  FaultCategory = "mechanical"
	FaultCategoryElectrical  FaultCategory = "electrical"
	FaultCategoryBodywork    FaultCategory = "bodywork"
	FaultCategoryMaintenance FaultCategory = "maintenance"
	FaultCategoryOther       FaultCategory = "other"
)

// FaultStatus tracks the handling lifecycle.
type FaultStatus string

const (
	FaultStatusPending   FaultStatus = "pending"
	FaultStatusInReview  FaultStatus = "in_review"
	FaultStatusRepaired  FaultStatus = "repaired"
	FaultStatusDiscarded FaultStatus = "discarded"
)

// Fault is a reported vehicle issue. Promoted maintenance alerts carry the
// maintenance category plus the originating plan and service type, which is
// the structured key used to suppress duplicate due alerts.
type Fault struct {
	ID          string        `db:"id" json:"id"`
	VehicleID   string        `db:"vehicle_id" json:"vehicle_id"`
	Description string        `db:"description" json:"description"`
	Category    FaultCategory `db:"category" json:"category"`
	Priority    FaultPriority `db:"priority" json:"priority"`
	Status      FaultStatus   `db:"status" json:"status"`
	ServiceType *ServiceType  `db:"service_type" json:"service_type,omitempty"`
	PlanID      *string       `db:"plan_id" json:"plan_id,omitempty"`
	ReportedBy  string        `db:"reported_by" json:"reported_by"`
	ResolvedAt  *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the fault still blocks duplicate alerts.
func (f Fault) IsActive() bool {
	return f.Status == FaultStatusPending || f.Status == FaultStatusInReview
}

// FaultFilter captures filtering criteria for listing faults.
type FaultFilter struct {
	VehicleID string
	Status    *FaultStatus
	Category  *FaultCategory
	Priority  *FaultPriority
	Page      int
	PageSize  int
}
