package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
)

type scheduleServiceMock struct {
	report      *dto.ScheduleReport
	plans       []models.DayPlan
	simulateErr error
}

func (m *scheduleServiceMock) Simulate(context.Context, dto.SimulateScheduleRequest) (*dto.ScheduleReport, error) {
	if m.simulateErr != nil {
		return nil, m.simulateErr
	}
	return m.report, nil
}

func (m *scheduleServiceMock) SimulateForCompany(context.Context, string) (*dto.ScheduleReport, error) {
	if m.simulateErr != nil {
		return nil, m.simulateErr
	}
	return m.report, nil
}

func (m *scheduleServiceMock) DailyBreakdown(context.Context, string) ([]models.DayPlan, error) {
	return m.plans, nil
}

func (m *scheduleServiceMock) Export(context.Context, dto.SimulateScheduleRequest, string) ([]byte, string, error) {
	return []byte("Machine,Unit,Start,End\n"), "text/csv", nil
}

func simulateBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(dto.SimulateScheduleRequest{
		Quantity:      2,
		StartDateTime: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
		EndDateTime:   time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC),
		DailyHours:    8,
		Machines:      []dto.MachineInput{{Name: "A", TimePerUnit: 60}},
	})
	require.NoError(t, err)
	return body
}

func TestScheduleHandlerSimulate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &scheduleServiceMock{report: &dto.ScheduleReport{Success: true, ActualEndTime: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}}
	handler := NewScheduleHandler(mock, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/schedule/simulate", bytes.NewReader(simulateBody(t)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Simulate(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.ScheduleReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.Success)
}

func TestScheduleHandlerSimulateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewScheduleHandler(&scheduleServiceMock{}, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/schedule/simulate", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Simulate(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandlerSimulateConfigurationError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &scheduleServiceMock{simulateErr: appErrors.Clone(appErrors.ErrInvalidSchedule, "quantity must be positive")}
	handler := NewScheduleHandler(mock, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/schedule/simulate", bytes.NewReader(simulateBody(t)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Simulate(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "INVALID_SCHEDULE_CONFIGURATION", envelope.Error.Code)
}

func TestScheduleHandlerDailyPlan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &scheduleServiceMock{plans: []models.DayPlan{{Date: "2025-06-02", Units: 2, StartUnit: 1, EndUnit: 2}}}
	handler := NewScheduleHandler(mock, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/orders/o1/daily-plan", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "o1"}}

	handler.DailyPlan(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2025-06-02")
}

func TestScheduleHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewScheduleHandler(&scheduleServiceMock{}, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/schedule/export?format=csv", bytes.NewReader(simulateBody(t)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
}
