package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yisusc1/fleetops-api/internal/models"
	"github.com/yisusc1/fleetops-api/pkg/export"
	"github.com/yisusc1/fleetops-api/pkg/storage"
)

type exportFuelReader interface {
	ListForExport(ctx context.Context, filter models.FuelLogFilter) ([]models.FuelLog, error)
}

type exportMaintenanceReader interface {
	ListLogsForExport(ctx context.Context, vehicleID string, from, to *time.Time) ([]models.MaintenanceLog, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	fuel        exportFuelReader
	maintenance exportMaintenanceReader
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(fuel exportFuelReader, maintenance exportMaintenanceReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		fuel:        fuel,
		maintenance: maintenance,
		storage:     store,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the dataset according to the job definition and stores the
// rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/reports/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "fleet"
	if job.Params.VehicleID != nil && *job.Params.VehicleID != "" {
		scope = sanitizeFilename(*job.Params.VehicleID)
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeFuelLedger:
		return s.buildFuelLedgerDataset(ctx, job.Params)
	case models.ReportTypeMaintenanceHistory:
		return s.buildMaintenanceDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildFuelLedgerDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	filter := models.FuelLogFilter{
		VehicleID: deref(params.VehicleID),
		From:      params.From,
		To:        params.To,
	}
	logs, err := s.fuel.ListForExport(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(logs))
	for _, log := range logs {
		corrected := ""
		if log.Corrected {
			corrected = "yes"
		}
		rows = append(rows, map[string]string{
			"Vehicle ID":   log.VehicleID,
			"Mileage (km)": fmt.Sprintf("%d", log.MileageKM),
			"Liters":       fmt.Sprintf("%.2f", log.Liters),
			"Unit Price":   fmt.Sprintf("%.2f", log.UnitPrice),
			"Total Cost":   fmt.Sprintf("%.2f", log.TotalCost),
			"Station":      log.Station,
			"Recorded At":  log.RecordedAt.UTC().Format(time.RFC3339),
			"Corrected":    corrected,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Vehicle ID", "Mileage (km)", "Liters", "Unit Price", "Total Cost", "Station", "Recorded At", "Corrected"},
		Rows:    rows,
	}
	return dataset, "Fuel Ledger", nil
}

func (s *ExportService) buildMaintenanceDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	logs, err := s.maintenance.ListLogsForExport(ctx, deref(params.VehicleID), params.From, params.To)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(logs))
	for _, log := range logs {
		rows = append(rows, map[string]string{
			"Vehicle ID":   log.VehicleID,
			"Service":      string(log.ServiceType),
			"Description":  log.Description,
			"Mileage (km)": fmt.Sprintf("%d", log.MileageKM),
			"Cost":         fmt.Sprintf("%.2f", log.Cost),
			"Performed By": log.PerformedBy,
			"Performed At": log.PerformedAt.UTC().Format(time.RFC3339),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Vehicle ID", "Service", "Description", "Mileage (km)", "Cost", "Performed By", "Performed At"},
		Rows:    rows,
	}
	return dataset, "Maintenance History", nil
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
