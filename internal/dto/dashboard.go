package dto

import (
	"time"

	"github.com/yisusc1/fleetops-api/internal/models"
)

// FleetStatusCounts breaks the fleet down by operational status.
type FleetStatusCounts struct {
	Available  int `json:"available"`
	OnTrip     int `json:"on_trip"`
	InWorkshop int `json:"in_workshop"`
	Inactive   int `json:"inactive"`
	Total      int `json:"total"`
}

// OpenFaultCounts breaks open faults down by priority.
type OpenFaultCounts struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
	Total    int `json:"total"`
}

// DashboardSummary is the aggregate served to the operations landing view.
type DashboardSummary struct {
	Fleet            FleetStatusCounts `json:"fleet"`
	OpenFaults       OpenFaultCounts   `json:"open_faults"`
	DueAlerts        []models.DueAlert `json:"due_alerts"`
	DueAlertCount    int               `json:"due_alert_count"`
	LowFuelVehicles  []models.Vehicle  `json:"low_fuel_vehicles"`
	MonthlyFuelSpend float64           `json:"monthly_fuel_spend"`
	GeneratedAt      time.Time         `json:"generated_at"`
}
