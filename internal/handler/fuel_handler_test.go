package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yisusc1/fleetops-api/internal/middleware"
	"github.com/yisusc1/fleetops-api/internal/models"
	"github.com/yisusc1/fleetops-api/internal/service"
)

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Error map[string]interface{} `json:"error"`
}

type fakeFuelLedger struct {
	logs []models.FuelLog
}

func (f *fakeFuelLedger) List(ctx context.Context, filter models.FuelLogFilter) ([]models.FuelLog, int, error) {
	return f.logs, len(f.logs), nil
}

func (f *fakeFuelLedger) Summary(ctx context.Context, filter models.FuelLogFilter) ([]models.FuelSummary, error) {
	return nil, nil
}

type fakeFuelSubmitter struct {
	result  *service.SubmitResult
	err     error
	lastReq service.SubmitFuelReadingRequest
}

func (f *fakeFuelSubmitter) SubmitFuelReading(ctx context.Context, req service.SubmitFuelReadingRequest) (*service.SubmitResult, error) {
	f.lastReq = req
	return f.result, f.err
}

func newFuelHandlerFixture(submitter *fakeFuelSubmitter) *FuelHandler {
	svc := service.NewFuelService(&fakeFuelLedger{}, submitter, zap.NewNop())
	return NewFuelHandler(svc)
}

func TestFuelHandlerCreateAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	submitter := &fakeFuelSubmitter{result: &service.SubmitResult{Success: true, CurrentKM: 10250}}
	handler := newFuelHandlerFixture(submitter)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	body := `{"vehicle_id":"v1","mileage_km":10250,"liters":30}`
	c.Request = httptest.NewRequest(http.MethodPost, "/fuel-logs", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleTechnician})

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u1", submitter.lastReq.ActorID)
	assert.Equal(t, models.RoleTechnician, submitter.lastReq.ActorRole)
}

func TestFuelHandlerCreateRejectedReturnsOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	submitter := &fakeFuelSubmitter{result: &service.SubmitResult{
		Success:            false,
		RequiresCorrection: true,
		CurrentKM:          10000,
		Message:            "mileage 9800 does not exceed the current odometer 10000",
	}}
	handler := newFuelHandlerFixture(submitter)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	body := `{"vehicle_id":"v1","mileage_km":9800,"liters":30}`
	c.Request = httptest.NewRequest(http.MethodPost, "/fuel-logs", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, false, envelope.Data["success"])
	assert.Equal(t, true, envelope.Data["requires_correction"])
	assert.Equal(t, float64(10000), envelope.Data["current_km"])
}

func TestFuelHandlerCreateInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newFuelHandlerFixture(&fakeFuelSubmitter{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/fuel-logs", strings.NewReader("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
