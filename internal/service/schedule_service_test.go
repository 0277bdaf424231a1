package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	"github.com/planfab/planfab-api/pkg/config"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
)

type fakeHolidays struct {
	holidays []models.Holiday
	err      error
}

func (f *fakeHolidays) List(context.Context) ([]models.Holiday, error) {
	return f.holidays, f.err
}

type fakeCompanies struct {
	company *models.Company
	err     error
}

func (f *fakeCompanies) FindByID(context.Context, string) (*models.Company, error) {
	return f.company, f.err
}

type fakeOrders struct {
	order *models.Order
	err   error
}

func (f *fakeOrders) FindByID(context.Context, string) (*models.Order, error) {
	return f.order, f.err
}

func newTestScheduler(holidays []models.Holiday) *ScheduleService {
	return NewScheduleService(&fakeHolidays{holidays: holidays}, &fakeCompanies{}, &fakeOrders{}, config.SchedulerConfig{Timezone: "UTC"}, nil)
}

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

func TestSimulateTwoMachinePipeline(t *testing.T) {
	svc := newTestScheduler(nil)

	req := dto.SimulateScheduleRequest{
		Quantity:      2,
		StartDateTime: mustTime(t, "2025-06-02T08:00:00Z"),
		EndDateTime:   mustTime(t, "2025-06-02T18:00:00Z"),
		DailyHours:    8,
		Machines: []dto.MachineInput{
			{Name: "A", TimePerUnit: 60},
			{Name: "B", TimePerUnit: 30},
		},
	}

	report, err := svc.Simulate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, report.MachineLogs, 2)

	a := report.MachineLogs[0]
	b := report.MachineLogs[1]
	require.Len(t, a.Units, 2)
	require.Len(t, b.Units, 2)

	assert.Equal(t, mustTime(t, "2025-06-02T08:00:00Z"), a.Units[0].Start)
	assert.Equal(t, mustTime(t, "2025-06-02T09:00:00Z"), a.Units[0].End)
	assert.Equal(t, mustTime(t, "2025-06-02T09:00:00Z"), b.Units[0].Start)
	assert.Equal(t, mustTime(t, "2025-06-02T09:30:00Z"), b.Units[0].End)
	assert.Equal(t, mustTime(t, "2025-06-02T09:00:00Z"), a.Units[1].Start)
	assert.Equal(t, mustTime(t, "2025-06-02T10:00:00Z"), a.Units[1].End)
	assert.Equal(t, mustTime(t, "2025-06-02T10:00:00Z"), b.Units[1].Start)
	assert.Equal(t, mustTime(t, "2025-06-02T10:30:00Z"), b.Units[1].End)

	assert.True(t, report.Success)
	assert.Equal(t, mustTime(t, "2025-06-02T10:30:00Z"), report.ActualEndTime)
	assert.InDelta(t, 1.25, report.RequiredDailyHours, 1e-9)
	assert.Zero(t, report.AdditionalHoursNeeded)
	assert.InDelta(t, 2.0, a.TotalHours, 1e-9)
	assert.InDelta(t, 1.0, b.TotalHours, 1e-9)
}

func TestSimulateDefersWholeTaskToNextDay(t *testing.T) {
	svc := newTestScheduler(nil)

	req := dto.SimulateScheduleRequest{
		Quantity:      2,
		StartDateTime: mustTime(t, "2025-06-02T08:00:00Z"),
		EndDateTime:   mustTime(t, "2025-06-10T08:00:00Z"),
		DailyHours:    2,
		Machines:      []dto.MachineInput{{Name: "M", TimePerUnit: 90}},
	}

	report, err := svc.Simulate(context.Background(), req)
	require.NoError(t, err)
	units := report.MachineLogs[0].Units
	require.Len(t, units, 2)

	assert.Equal(t, mustTime(t, "2025-06-02T08:00:00Z"), units[0].Start)
	assert.Equal(t, mustTime(t, "2025-06-02T09:30:00Z"), units[0].End)
	// 90 minutes do not fit in the 30 minutes left on Monday, so unit 2
	// moves whole to Tuesday's day start.
	assert.Equal(t, mustTime(t, "2025-06-03T08:00:00Z"), units[1].Start)
	assert.Equal(t, mustTime(t, "2025-06-03T09:30:00Z"), units[1].End)
}

func TestSimulateSkipsSundays(t *testing.T) {
	svc := newTestScheduler(nil)

	// Saturday start with a one hour budget: unit 2 cannot run Saturday,
	// Sunday is excluded, so it lands on Monday.
	req := dto.SimulateScheduleRequest{
		Quantity:      2,
		StartDateTime: mustTime(t, "2025-06-07T08:00:00Z"),
		EndDateTime:   mustTime(t, "2025-06-14T08:00:00Z"),
		DailyHours:    1,
		Machines:      []dto.MachineInput{{Name: "M", TimePerUnit: 60}},
	}

	report, err := svc.Simulate(context.Background(), req)
	require.NoError(t, err)
	units := report.MachineLogs[0].Units
	require.Len(t, units, 2)

	assert.Equal(t, mustTime(t, "2025-06-07T08:00:00Z"), units[0].Start)
	assert.Equal(t, mustTime(t, "2025-06-09T08:00:00Z"), units[1].Start)
	assert.Equal(t, time.Monday, units[1].Start.Weekday())
}

func TestSimulateSkipsHolidays(t *testing.T) {
	svc := newTestScheduler([]models.Holiday{{Date: "2025-06-03", Description: "maintenance day"}})

	req := dto.SimulateScheduleRequest{
		Quantity:      2,
		StartDateTime: mustTime(t, "2025-06-02T08:00:00Z"),
		EndDateTime:   mustTime(t, "2025-06-10T08:00:00Z"),
		DailyHours:    2,
		Machines:      []dto.MachineInput{{Name: "M", TimePerUnit: 90}},
	}

	report, err := svc.Simulate(context.Background(), req)
	require.NoError(t, err)
	units := report.MachineLogs[0].Units
	require.Len(t, units, 2)

	// Tuesday is a holiday, so the deferred unit lands on Wednesday.
	assert.Equal(t, mustTime(t, "2025-06-04T08:00:00Z"), units[1].Start)
}

func TestSimulateReportsShortfallOnMissedDeadline(t *testing.T) {
	svc := newTestScheduler(nil)

	req := dto.SimulateScheduleRequest{
		Quantity:      2,
		StartDateTime: mustTime(t, "2025-06-02T08:00:00Z"),
		EndDateTime:   mustTime(t, "2025-06-02T18:00:00Z"),
		DailyHours:    1,
		Machines: []dto.MachineInput{
			{Name: "A", TimePerUnit: 60},
			{Name: "B", TimePerUnit: 30},
		},
	}

	report, err := svc.Simulate(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, report.Success)
	assert.Equal(t, mustTime(t, "2025-06-04T08:30:00Z"), report.ActualEndTime)
	assert.InDelta(t, 24.25, report.RequiredDailyHours, 1e-9)
	assert.InDelta(t, 23.25, report.AdditionalHoursNeeded, 1e-9)
}

func TestSimulateElevenUnitFivePipeline(t *testing.T) {
	svc := newTestScheduler(nil)

	req := dto.SimulateScheduleRequest{
		Quantity:      11,
		StartDateTime: mustTime(t, "2025-05-02T22:11:00Z"),
		EndDateTime:   mustTime(t, "2025-05-05T22:11:00Z"),
		DailyHours:    11,
		Machines: []dto.MachineInput{
			{Name: "t1", TimePerUnit: 120},
			{Name: "t2", TimePerUnit: 120},
			{Name: "t3", TimePerUnit: 130},
			{Name: "t4", TimePerUnit: 110},
			{Name: "t5", TimePerUnit: 100},
		},
	}

	report, err := svc.Simulate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, report.MachineLogs, 5)

	total := 0
	for _, log := range report.MachineLogs {
		total += len(log.Units)
	}
	assert.Equal(t, 55, total)
	assert.Equal(t, req.StartDateTime, report.MachineLogs[0].Units[0].Start)

	durations := []int{120, 120, 130, 110, 100}
	dayBudget := time.Duration(req.DailyHours * float64(time.Hour))
	for m, log := range report.MachineLogs {
		for i, u := range log.Units {
			perUnit := time.Duration(durations[m]) * time.Minute
			assert.Equal(t, u.Start.Add(perUnit), u.End, "end = start + timePerUnit")
			assert.NotEqual(t, time.Sunday, u.Start.Weekday())

			if i > 0 {
				assert.False(t, u.Start.Before(log.Units[i-1].End), "machine double booked")
			}
			if m > 0 {
				prevStage := report.MachineLogs[m-1].Units[i]
				assert.False(t, u.Start.Before(prevStage.End), "unit entered stage before leaving previous")
			}

			dayStart := time.Date(u.Start.Year(), u.Start.Month(), u.Start.Day(), 22, 11, 0, 0, time.UTC)
			if u.Start.Before(dayStart) {
				t.Fatalf("unit %d on %s starts before the working window", u.Unit, log.Name)
			}
			assert.False(t, u.End.After(dayStart.Add(dayBudget)), "task spans past day end")
		}
	}

	// Last machine's final unit is the pipeline output instant.
	last := report.MachineLogs[4]
	assert.Equal(t, last.Units[10].End, report.ActualEndTime)
	if !report.Success {
		assert.GreaterOrEqual(t, report.AdditionalHoursNeeded, 0.0)
	} else {
		assert.Zero(t, report.AdditionalHoursNeeded)
	}
}

func TestSimulateDeterministic(t *testing.T) {
	svc := newTestScheduler([]models.Holiday{{Date: "2025-06-05"}})

	req := dto.SimulateScheduleRequest{
		Quantity:      7,
		StartDateTime: mustTime(t, "2025-06-02T09:30:00Z"),
		EndDateTime:   mustTime(t, "2025-06-20T09:30:00Z"),
		DailyHours:    6.5,
		Machines: []dto.MachineInput{
			{Name: "A", TimePerUnit: 45},
			{Name: "B", TimePerUnit: 75},
		},
	}

	first, err := svc.Simulate(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Simulate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSimulateValidation(t *testing.T) {
	svc := newTestScheduler(nil)
	base := dto.SimulateScheduleRequest{
		Quantity:      1,
		StartDateTime: mustTime(t, "2025-06-02T08:00:00Z"),
		EndDateTime:   mustTime(t, "2025-06-03T08:00:00Z"),
		DailyHours:    8,
		Machines:      []dto.MachineInput{{Name: "A", TimePerUnit: 60}},
	}

	cases := map[string]func(r *dto.SimulateScheduleRequest){
		"zero quantity":          func(r *dto.SimulateScheduleRequest) { r.Quantity = 0 },
		"no machines":            func(r *dto.SimulateScheduleRequest) { r.Machines = nil },
		"zero daily hours":       func(r *dto.SimulateScheduleRequest) { r.DailyHours = 0 },
		"non-positive duration":  func(r *dto.SimulateScheduleRequest) { r.Machines[0].TimePerUnit = 0 },
		"unit exceeds day":       func(r *dto.SimulateScheduleRequest) { r.Machines[0].TimePerUnit = 600; r.DailyHours = 1 },
		"unknown timezone":       func(r *dto.SimulateScheduleRequest) { r.Timezone = "Mars/Olympus" },
		"missing start and end":  func(r *dto.SimulateScheduleRequest) { r.StartDateTime = time.Time{}; r.EndDateTime = time.Time{} },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := base
			req.Machines = append([]dto.MachineInput(nil), base.Machines...)
			mutate(&req)
			_, err := svc.Simulate(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrInvalidSchedule.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestSimulateForCompany(t *testing.T) {
	company := &models.Company{
		ID:            "c1",
		Name:          "Acme",
		Quantity:      2,
		StartDateTime: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
		EndDateTime:   time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC),
		DailyHours:    8,
		Machines:      []byte(`[{"name":"A","timePerUnit":60},{"name":"B","timePerUnit":30}]`),
	}
	svc := NewScheduleService(&fakeHolidays{}, &fakeCompanies{company: company}, &fakeOrders{}, config.SchedulerConfig{Timezone: "UTC"}, nil)

	report, err := svc.SimulateForCompany(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, report.Success)
	require.Len(t, report.MachineLogs, 2)
	assert.Equal(t, "A", report.MachineLogs[0].Name)
}

func TestDailyBreakdownSpreadsUnits(t *testing.T) {
	order := &models.Order{
		ID:        "o1",
		Units:     10,
		StartDate: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC),
	}
	svc := NewScheduleService(&fakeHolidays{}, &fakeCompanies{}, &fakeOrders{order: order}, config.SchedulerConfig{Timezone: "UTC"}, nil)

	plans, err := svc.DailyBreakdown(context.Background(), "o1")
	require.NoError(t, err)
	// Six working days, ceil(10/6) = 2 units per day, exhausted after five.
	require.Len(t, plans, 5)
	assert.Equal(t, models.DayPlan{Date: "2025-06-02", Units: 2, StartUnit: 1, EndUnit: 2}, plans[0])
	assert.Equal(t, models.DayPlan{Date: "2025-06-06", Units: 2, StartUnit: 9, EndUnit: 10}, plans[4])
}

func TestDailyBreakdownSkipsHolidaysAndSundays(t *testing.T) {
	order := &models.Order{
		ID:        "o1",
		Units:     10,
		StartDate: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
	}
	holidays := []models.Holiday{{Date: "2025-06-04"}}
	svc := NewScheduleService(&fakeHolidays{holidays: holidays}, &fakeCompanies{}, &fakeOrders{order: order}, config.SchedulerConfig{Timezone: "UTC"}, nil)

	plans, err := svc.DailyBreakdown(context.Background(), "o1")
	require.NoError(t, err)
	for _, plan := range plans {
		assert.NotEqual(t, "2025-06-04", plan.Date)
		day, err := time.Parse("2006-01-02", plan.Date)
		require.NoError(t, err)
		assert.NotEqual(t, time.Sunday, day.Weekday())
	}
}

func TestExportCSV(t *testing.T) {
	svc := newTestScheduler(nil)

	req := dto.SimulateScheduleRequest{
		Quantity:      1,
		StartDateTime: mustTime(t, "2025-06-02T08:00:00Z"),
		EndDateTime:   mustTime(t, "2025-06-03T08:00:00Z"),
		DailyHours:    8,
		Machines:      []dto.MachineInput{{Name: "A", TimePerUnit: 60}},
	}

	payload, contentType, err := svc.Export(context.Background(), req, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(payload), "Machine,Unit,Start,End")
	assert.Contains(t, string(payload), "A,1,")

	_, _, err = svc.Export(context.Background(), req, "xlsx")
	require.Error(t, err)
}
