package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yisusc1/fleetops-api/internal/models"
	"github.com/yisusc1/fleetops-api/internal/service"
	appErrors "github.com/yisusc1/fleetops-api/pkg/errors"
	"github.com/yisusc1/fleetops-api/pkg/response"
)

// FuelHandler exposes fuel ledger endpoints.
type FuelHandler struct {
	fuel *service.FuelService
}

// NewFuelHandler constructs FuelHandler.
func NewFuelHandler(fuel *service.FuelService) *FuelHandler {
	return &FuelHandler{fuel: fuel}
}

// List godoc
// @Summary List fuel logs
// @Tags Fuel
// @Produce json
// @Param vehicleId query string false "Filter by vehicle"
// @Param from query string false "Window start (RFC3339)"
// @Param to query string false "Window end (RFC3339)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fuel-logs [get]
func (h *FuelHandler) List(c *gin.Context) {
	filter := fuelFilterFromQuery(c)
	logs, pagination, err := h.fuel.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}

// Summary godoc
// @Summary Fuel consumption summary per vehicle
// @Tags Fuel
// @Produce json
// @Param vehicleId query string false "Filter by vehicle"
// @Param from query string false "Window start (RFC3339)"
// @Param to query string false "Window end (RFC3339)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /fuel-logs/summary [get]
func (h *FuelHandler) Summary(c *gin.Context) {
	filter := fuelFilterFromQuery(c)
	summaries, err := h.fuel.Summary(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}

// Create godoc
// @Summary Register a fill-up
// @Description Submits an odometer reading through the consistency gate. A
// @Description reading at or below the current mileage is returned as a
// @Description rejection payload unless force_correction is set.
// @Tags Fuel
// @Accept json
// @Produce json
// @Param payload body service.SubmitFuelReadingRequest true "Fuel reading"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope "Rejected reading"
// @Security BearerAuth
// @Router /fuel-logs [post]
func (h *FuelHandler) Create(c *gin.Context) {
	var req service.SubmitFuelReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if claims := claimsFromContext(c); claims != nil {
		req.ActorID = claims.UserID
		req.ActorRole = claims.Role
	}

	result, err := h.fuel.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Success {
		response.JSON(c, http.StatusOK, result, nil)
		return
	}
	response.Created(c, result)
}

func fuelFilterFromQuery(c *gin.Context) models.FuelLogFilter {
	var filter models.FuelLogFilter
	filter.VehicleID = c.Query("vehicleId")
	if from := c.Query("from"); from != "" {
		if ts, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = &ts
		}
	}
	if to := c.Query("to"); to != "" {
		if ts, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &ts
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	return filter
}
