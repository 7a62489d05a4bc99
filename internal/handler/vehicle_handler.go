package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yisusc1/fleetops-api/internal/models"
	"github.com/yisusc1/fleetops-api/internal/service"
	appErrors "github.com/yisusc1/fleetops-api/pkg/errors"
	"github.com/yisusc1/fleetops-api/pkg/response"
)

// VehicleHandler exposes fleet registry endpoints.
type VehicleHandler struct {
	fleet    *service.FleetService
	odometer *service.OdometerService
}

// NewVehicleHandler constructs VehicleHandler.
func NewVehicleHandler(fleet *service.FleetService, odometer *service.OdometerService) *VehicleHandler {
	return &VehicleHandler{fleet: fleet, odometer: odometer}
}

// List godoc
// @Summary List vehicles
// @Tags Vehicles
// @Produce json
// @Param search query string false "Search by plate or model"
// @Param type query string false "Filter by vehicle type"
// @Param status query string false "Filter by status"
// @Param driverId query string false "Filter by assigned driver"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /vehicles [get]
func (h *VehicleHandler) List(c *gin.Context) {
	var filter models.VehicleFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if t := c.Query("type"); t != "" {
		typ := models.VehicleType(t)
		filter.Type = &typ
	}
	if s := c.Query("status"); s != "" {
		status := models.VehicleStatus(s)
		filter.Status = &status
	}
	filter.DriverID = c.Query("driverId")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	vehicles, pagination, err := h.fleet.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vehicles, pagination)
}

// Get godoc
// @Summary Get vehicle detail
// @Tags Vehicles
// @Produce json
// @Param id path string true "Vehicle ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /vehicles/{id} [get]
func (h *VehicleHandler) Get(c *gin.Context) {
	vehicle, err := h.fleet.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vehicle, nil)
}

// Mileage godoc
// @Summary Resolved current mileage for a vehicle
// @Tags Vehicles
// @Produce json
// @Param id path string true "Vehicle ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /vehicles/{id}/mileage [get]
func (h *VehicleHandler) Mileage(c *gin.Context) {
	current, err := h.odometer.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"vehicle_id": c.Param("id"), "current_km": current}, nil)
}

// Create godoc
// @Summary Register a vehicle
// @Tags Vehicles
// @Accept json
// @Produce json
// @Param payload body service.CreateVehicleRequest true "Vehicle payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /vehicles [post]
func (h *VehicleHandler) Create(c *gin.Context) {
	var req service.CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	vehicle, err := h.fleet.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, vehicle)
}

// Update godoc
// @Summary Update a vehicle
// @Tags Vehicles
// @Accept json
// @Produce json
// @Param id path string true "Vehicle ID"
// @Param payload body service.UpdateVehicleRequest true "Vehicle payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /vehicles/{id} [put]
func (h *VehicleHandler) Update(c *gin.Context) {
	var req service.UpdateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	vehicle, err := h.fleet.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vehicle, nil)
}

// Deactivate godoc
// @Summary Deactivate a vehicle
// @Tags Vehicles
// @Param id path string true "Vehicle ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Router /vehicles/{id} [delete]
func (h *VehicleHandler) Deactivate(c *gin.Context) {
	if err := h.fleet.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
