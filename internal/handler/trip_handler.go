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

// TripHandler exposes trip dispatch endpoints.
type TripHandler struct {
	trips *service.TripService
}

// NewTripHandler constructs TripHandler.
func NewTripHandler(trips *service.TripService) *TripHandler {
	return &TripHandler{trips: trips}
}

// List godoc
// @Summary List trip reports
// @Tags Trips
// @Produce json
// @Param vehicleId query string false "Filter by vehicle"
// @Param driverId query string false "Filter by driver"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /trips [get]
func (h *TripHandler) List(c *gin.Context) {
	var filter models.TripFilter
	filter.VehicleID = c.Query("vehicleId")
	filter.DriverID = c.Query("driverId")
	if s := c.Query("status"); s != "" {
		status := models.TripStatus(s)
		filter.Status = &status
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	trips, pagination, err := h.trips.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trips, pagination)
}

// Get godoc
// @Summary Get trip report detail
// @Tags Trips
// @Produce json
// @Param id path string true "Trip ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /trips/{id} [get]
func (h *TripHandler) Get(c *gin.Context) {
	trip, err := h.trips.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trip, nil)
}

// Open godoc
// @Summary Dispatch a vehicle
// @Tags Trips
// @Accept json
// @Produce json
// @Param payload body service.OpenTripRequest true "Dispatch payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /trips [post]
func (h *TripHandler) Open(c *gin.Context) {
	var req service.OpenTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	trip, err := h.trips.Open(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, trip)
}

// Close godoc
// @Summary Close a trip with the returning odometer reading
// @Description Submits the closing reading through the consistency gate. A
// @Description reading at or below the current mileage is returned as a
// @Description rejection payload unless force_correction is set.
// @Tags Trips
// @Accept json
// @Produce json
// @Param id path string true "Trip ID"
// @Param payload body service.CloseTripRequest true "Closing reading"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /trips/{id}/close [post]
func (h *TripHandler) Close(c *gin.Context) {
	var req service.CloseTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.TripID = c.Param("id")
	if claims := claimsFromContext(c); claims != nil {
		req.ActorID = claims.UserID
		req.ActorRole = claims.Role
	}

	result, err := h.trips.Close(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
