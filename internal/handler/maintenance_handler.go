package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yisusc1/fleetops-api/internal/service"
	appErrors "github.com/yisusc1/fleetops-api/pkg/errors"
	"github.com/yisusc1/fleetops-api/pkg/response"
)

// MaintenanceHandler exposes maintenance plan, alert and service endpoints.
type MaintenanceHandler struct {
	maintenance *service.MaintenanceService
	dashboard   *service.DashboardService
}

// NewMaintenanceHandler constructs MaintenanceHandler.
func NewMaintenanceHandler(maintenance *service.MaintenanceService, dashboard *service.DashboardService) *MaintenanceHandler {
	return &MaintenanceHandler{maintenance: maintenance, dashboard: dashboard}
}

// ListPlans godoc
// @Summary List maintenance plans
// @Tags Maintenance
// @Produce json
// @Param vehicleId query string false "Filter by vehicle"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /maintenance/plans [get]
func (h *MaintenanceHandler) ListPlans(c *gin.Context) {
	plans, err := h.maintenance.ListPlans(c.Request.Context(), c.Query("vehicleId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, nil)
}

// CreatePlan godoc
// @Summary Create a maintenance plan
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param payload body service.CreateMaintenancePlanRequest true "Plan payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /maintenance/plans [post]
func (h *MaintenanceHandler) CreatePlan(c *gin.Context) {
	var req service.CreateMaintenancePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	plan, err := h.maintenance.CreatePlan(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// UpdatePlan godoc
// @Summary Update a maintenance plan
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body service.UpdateMaintenancePlanRequest true "Plan payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /maintenance/plans/{id} [put]
func (h *MaintenanceHandler) UpdatePlan(c *gin.Context) {
	var req service.UpdateMaintenancePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	plan, err := h.maintenance.UpdatePlan(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// ListAlerts godoc
// @Summary List computed due alerts
// @Tags Maintenance
// @Produce json
// @Param vehicleId query string false "Scope to a vehicle"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /maintenance/alerts [get]
func (h *MaintenanceHandler) ListAlerts(c *gin.Context) {
	alerts, err := h.maintenance.ListDueAlerts(c.Request.Context(), c.Query("vehicleId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, alerts, nil)
}

// PromoteAlert godoc
// @Summary Promote a due alert into a tracked fault
// @Tags Maintenance
// @Produce json
// @Param planId path string true "Originating plan ID"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /maintenance/alerts/{planId}/promote [post]
func (h *MaintenanceHandler) PromoteAlert(c *gin.Context) {
	actorID := ""
	if claims := claimsFromContext(c); claims != nil {
		actorID = claims.UserID
	}
	fault, err := h.maintenance.PromoteAlert(c.Request.Context(), c.Param("planId"), actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dashboard.Invalidate(c.Request.Context())
	response.Created(c, fault)
}

// ListLogs godoc
// @Summary List performed services
// @Tags Maintenance
// @Produce json
// @Param vehicleId query string false "Filter by vehicle"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /maintenance/logs [get]
func (h *MaintenanceHandler) ListLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	logs, pagination, err := h.maintenance.ListLogs(c.Request.Context(), c.Query("vehicleId"), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}

// CompleteService godoc
// @Summary Record a performed service
// @Tags Maintenance
// @Accept json
// @Produce json
// @Param payload body service.CompleteServiceRequest true "Service payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /maintenance/logs [post]
func (h *MaintenanceHandler) CompleteService(c *gin.Context) {
	var req service.CompleteServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil {
		req.ActorID = claims.UserID
	}
	log, err := h.maintenance.CompleteService(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.dashboard.Invalidate(c.Request.Context())
	response.Created(c, log)
}
