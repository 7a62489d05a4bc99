package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yisusc1/fleetops-api/internal/models"
	"github.com/yisusc1/fleetops-api/internal/service"
	appErrors "github.com/yisusc1/fleetops-api/pkg/errors"
	"github.com/yisusc1/fleetops-api/pkg/response"
)

// FaultHandler exposes fault lifecycle endpoints.
type FaultHandler struct {
	faults      *service.FaultService
	maintenance *service.MaintenanceService
}

// NewFaultHandler constructs FaultHandler.
func NewFaultHandler(faults *service.FaultService, maintenance *service.MaintenanceService) *FaultHandler {
	return &FaultHandler{faults: faults, maintenance: maintenance}
}

// List godoc
// @Summary List faults
// @Tags Faults
// @Produce json
// @Param vehicleId query string false "Filter by vehicle"
// @Param status query string false "Filter by status"
// @Param category query string false "Filter by category"
// @Param priority query string false "Filter by priority"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param includeMaintenance query bool false "Merge computed due alerts into the response meta"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /faults [get]
func (h *FaultHandler) List(c *gin.Context) {
	var filter models.FaultFilter
	filter.VehicleID = c.Query("vehicleId")
	if s := c.Query("status"); s != "" {
		status := models.FaultStatus(s)
		filter.Status = &status
	}
	if cat := c.Query("category"); cat != "" {
		category := models.FaultCategory(cat)
		filter.Category = &category
	}
	if p := c.Query("priority"); p != "" {
		priority := models.FaultPriority(p)
		filter.Priority = &priority
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	faults, pagination, err := h.faults.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	// Due alerts are computed, not persisted. They ride along in meta so
	// list consumers cannot mistake them for fault rows.
	if c.Query("includeMaintenance") == "true" {
		alerts, err := h.maintenance.ListDueAlerts(c.Request.Context(), filter.VehicleID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, faults, pagination, map[string]interface{}{"due_alerts": alerts})
		return
	}
	response.JSON(c, http.StatusOK, faults, pagination)
}

// Get godoc
// @Summary Get fault detail
// @Tags Faults
// @Produce json
// @Param id path string true "Fault ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /faults/{id} [get]
func (h *FaultHandler) Get(c *gin.Context) {
	fault, err := h.faults.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fault, nil)
}

// Report godoc
// @Summary Report a fault
// @Tags Faults
// @Accept json
// @Produce json
// @Param payload body service.ReportFaultRequest true "Fault payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /faults [post]
func (h *FaultHandler) Report(c *gin.Context) {
	var req service.ReportFaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil {
		req.ActorID = claims.UserID
	}
	fault, err := h.faults.Report(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, fault)
}

type transitionRequest struct {
	Status models.FaultStatus `json:"status" binding:"required"`
}

// Transition godoc
// @Summary Transition a fault status
// @Tags Faults
// @Accept json
// @Produce json
// @Param id path string true "Fault ID"
// @Param payload body transitionRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /faults/{id}/status [put]
func (h *FaultHandler) Transition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	fault, err := h.faults.Transition(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fault, nil)
}
