package dto

import (
	"time"

	"github.com/yisusc1/fleetops-api/internal/models"
)

// ReportRequest asks for an asynchronous fleet export.
type ReportRequest struct {
	Type      models.ReportType   `json:"type"`
	VehicleID *string             `json:"vehicle_id,omitempty"`
	From      *time.Time          `json:"from,omitempty"`
	To        *time.Time          `json:"to,omitempty"`
	Format    models.ReportFormat `json:"format"`
}

// ReportJobResponse acknowledges a queued report job.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress and the signed result link.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
