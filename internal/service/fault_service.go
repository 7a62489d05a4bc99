package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/yisusc1/fleetops-api/internal/models"
	appErrors "github.com/yisusc1/fleetops-api/pkg/errors"
)

type faultRepo interface {
	List(ctx context.Context, filter models.FaultFilter) ([]models.Fault, int, error)
	FindByID(ctx context.Context, id string) (*models.Fault, error)
	Create(ctx context.Context, fault *models.Fault) error
	UpdateStatus(ctx context.Context, id string, status models.FaultStatus, resolvedAt *time.Time) error
}

// ReportFaultRequest files a new vehicle issue.
type ReportFaultRequest struct {
	VehicleID   string `json:"vehicle_id" validate:"required"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category" validate:"required,oneof=mechanical electrical bodywork maintenance other"`
	Priority    string `json:"priority" validate:"required,oneof=low medium high critical"`

	ActorID string `json:"-"`
}

// legal fault transitions; terminal states have no outgoing edges.
var faultTransitions = map[models.FaultStatus][]models.FaultStatus{
	models.FaultStatusPending:  {models.FaultStatusInReview, models.FaultStatusDiscarded},
	models.FaultStatusInReview: {models.FaultStatusRepaired, models.FaultStatusDiscarded},
}

// FaultService manages the fault lifecycle.
type FaultService struct {
	faults   faultRepo
	vehicles vehicleFinder
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewFaultService wires the fault lifecycle.
func NewFaultService(faults faultRepo, vehicles vehicleFinder, logger *zap.Logger) *FaultService {
	return &FaultService{
		faults:   faults,
		vehicles: vehicles,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// List returns faults matching the filter.
func (s *FaultService) List(ctx context.Context, filter models.FaultFilter) ([]models.Fault, *models.Pagination, error) {
	faults, total, err := s.faults.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faults")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return faults, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one fault.
func (s *FaultService) Get(ctx context.Context, id string) (*models.Fault, error) {
	fault, err := s.faults.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fault not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fault")
	}
	return fault, nil
}

// Report files a new fault in pending state.
func (s *FaultService) Report(ctx context.Context, req ReportFaultRequest) (*models.Fault, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fault report")
	}
	if _, err := s.vehicles.FindByID(ctx, req.VehicleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vehicle not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load vehicle")
	}

	fault := &models.Fault{
		VehicleID:   req.VehicleID,
		Description: req.Description,
		Category:    models.FaultCategory(req.Category),
		Priority:    models.FaultPriority(req.Priority),
		Status:      models.FaultStatusPending,
		ReportedBy:  req.ActorID,
	}
	if err := s.faults.Create(ctx, fault); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fault")
	}
	s.logger.Info("fault reported",
		zap.String("fault_id", fault.ID),
		zap.String("vehicle_id", fault.VehicleID),
		zap.String("priority", string(fault.Priority)))
	return fault, nil
}

// Transition moves a fault along its lifecycle. Repaired and discarded are
// terminal and stamp the resolution time.
func (s *FaultService) Transition(ctx context.Context, id string, target models.FaultStatus) (*models.Fault, error) {
	fault, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, next := range faultTransitions[fault.Status] {
		if next == target {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrFaultTransition, "")
	}

	var resolvedAt *time.Time
	if target == models.FaultStatusRepaired || target == models.FaultStatusDiscarded {
		ts := s.now().UTC()
		resolvedAt = &ts
	}
	if err := s.faults.UpdateStatus(ctx, id, target, resolvedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition fault")
	}

	fault.Status = target
	fault.ResolvedAt = resolvedAt
	return fault, nil
}
