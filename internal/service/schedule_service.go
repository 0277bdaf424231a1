package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/planfab/planfab-api/internal/dto"
	"github.com/planfab/planfab-api/internal/models"
	"github.com/planfab/planfab-api/pkg/config"
	appErrors "github.com/planfab/planfab-api/pkg/errors"
	"github.com/planfab/planfab-api/pkg/export"
)

type holidayLister interface {
	List(ctx context.Context) ([]models.Holiday, error)
}

type companyFinder interface {
	FindByID(ctx context.Context, id string) (*models.Company, error)
}

type scheduleOrderFinder interface {
	FindByID(ctx context.Context, id string) (*models.Order, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ScheduleService runs the flow-shop simulation engine: it turns a machine
// pipeline, a unit quantity and a working-time budget into a per-unit,
// per-machine timetable plus a deadline feasibility verdict.
type ScheduleService struct {
	holidays  holidayLister
	companies companyFinder
	orders    scheduleOrderFinder
	csv       datasetRenderer
	pdf       datasetRenderer
	cfg       config.SchedulerConfig
	logger    *zap.Logger
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(holidays holidayLister, companies companyFinder, orders scheduleOrderFinder, cfg config.SchedulerConfig, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.MaxQuantity <= 0 {
		cfg.MaxQuantity = 100000
	}
	return &ScheduleService{
		holidays:  holidays,
		companies: companies,
		orders:    orders,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		cfg:       cfg,
		logger:    logger,
	}
}

// maxCalendarScanDays bounds the working-day search so a pathological
// holiday calendar cannot spin the engine forever. Ten years of days is far
// beyond any real production window.
const maxCalendarScanDays = 3660

// workCalendar answers working-window questions for one simulation run. The
// day start time-of-day comes from the request's startDateTime, and all day
// boundaries are computed in a single explicit zone.
type workCalendar struct {
	loc          *time.Location
	dayStartHour int
	dayStartMin  int
	dayBudget    time.Duration
	holidays     map[string]struct{}
}

func newWorkCalendar(start time.Time, dailyHours float64, holidays []models.Holiday, loc *time.Location) workCalendar {
	local := start.In(loc)
	excluded := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		excluded[h.Date] = struct{}{}
	}
	return workCalendar{
		loc:          loc,
		dayStartHour: local.Hour(),
		dayStartMin:  local.Minute(),
		dayBudget:    time.Duration(dailyHours * float64(time.Hour)),
		holidays:     excluded,
	}
}

// dayStartOf returns the working-day start instant on the same calendar date
// as t.
func (c workCalendar) dayStartOf(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), c.dayStartHour, c.dayStartMin, 0, 0, c.loc)
}

// excludedDay reports whether t falls on a Sunday or a holiday date.
func (c workCalendar) excludedDay(t time.Time) bool {
	local := t.In(c.loc)
	if local.Weekday() == time.Sunday {
		return true
	}
	_, holiday := c.holidays[local.Format("2006-01-02")]
	return holiday
}

// isWorkingInstant reports whether t lies inside a working window.
func (c workCalendar) isWorkingInstant(t time.Time) bool {
	if c.excludedDay(t) {
		return false
	}
	dayStart := c.dayStartOf(t)
	return !t.Before(dayStart) && t.Before(dayStart.Add(c.dayBudget))
}

// nextAvailable returns the earliest working instant at or after t where a
// task of the given duration fits entirely within that day's window. Tasks
// never span day boundaries: when the remainder of the day is too short the
// task is deferred whole to the next working day's start.
func (c workCalendar) nextAvailable(t time.Time, duration time.Duration) (time.Time, error) {
	if duration > c.dayBudget {
		return time.Time{}, fmt.Errorf("task duration %s exceeds daily budget %s", duration, c.dayBudget)
	}
	for scanned := 0; scanned <= maxCalendarScanDays; scanned++ {
		dayStart := c.dayStartOf(t)
		if t.Before(dayStart) {
			t = dayStart
		}
		if !c.excludedDay(t) && !t.Add(duration).After(dayStart.Add(c.dayBudget)) {
			return t, nil
		}
		local := t.In(c.loc)
		t = time.Date(local.Year(), local.Month(), local.Day()+1, c.dayStartHour, c.dayStartMin, 0, 0, c.loc)
	}
	return time.Time{}, fmt.Errorf("no working day found within %d days", maxCalendarScanDays)
}

// Simulate generates the timetable for the request and validates it against
// the requested deadline. Holidays come from the shared holiday calendar.
func (s *ScheduleService) Simulate(ctx context.Context, req dto.SimulateScheduleRequest) (*dto.ScheduleReport, error) {
	holidays, err := s.holidays.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load holidays")
	}
	return s.simulate(req, holidays)
}

// SimulateForCompany runs a simulation using a stored company's production
// run parameters and machine pipeline.
func (s *ScheduleService) SimulateForCompany(ctx context.Context, companyID string) (*dto.ScheduleReport, error) {
	company, err := s.companies.FindByID(ctx, companyID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "company not found")
	}
	var pipeline []models.CompanyMachine
	if err := json.Unmarshal(company.Machines, &pipeline); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidSchedule.Code, appErrors.ErrInvalidSchedule.Status, "invalid machine pipeline")
	}
	machines := make([]dto.MachineInput, 0, len(pipeline))
	for _, m := range pipeline {
		machines = append(machines, dto.MachineInput{Name: m.Name, TimePerUnit: m.TimePerUnit})
	}
	req := dto.SimulateScheduleRequest{
		Quantity:      company.Quantity,
		StartDateTime: company.StartDateTime,
		EndDateTime:   company.EndDateTime,
		DailyHours:    company.DailyHours,
		Machines:      machines,
	}
	return s.Simulate(ctx, req)
}

func (s *ScheduleService) simulate(req dto.SimulateScheduleRequest, holidays []models.Holiday) (*dto.ScheduleReport, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	loc, err := s.location(req.Timezone)
	if err != nil {
		return nil, err
	}

	cal := newWorkCalendar(req.StartDateTime, req.DailyHours, holidays, loc)
	logs, err := s.generate(cal, req.Machines, req.Quantity, req.StartDateTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidSchedule.Code, appErrors.ErrInvalidSchedule.Status, "schedule generation failed")
	}

	report := buildFeasibilityReport(logs, req.StartDateTime, req.EndDateTime, req.DailyHours)
	s.logger.Debug("simulation complete",
		zap.Int("quantity", req.Quantity),
		zap.Int("machines", len(req.Machines)),
		zap.Bool("success", report.Success),
		zap.Time("actualEndTime", report.ActualEndTime))
	return report, nil
}

func (s *ScheduleService) validate(req dto.SimulateScheduleRequest) error {
	switch {
	case req.Quantity <= 0:
		return appErrors.Clone(appErrors.ErrInvalidSchedule, "quantity must be positive")
	case req.Quantity > s.cfg.MaxQuantity:
		return appErrors.Clone(appErrors.ErrInvalidSchedule, fmt.Sprintf("quantity exceeds maximum of %d", s.cfg.MaxQuantity))
	case len(req.Machines) == 0:
		return appErrors.Clone(appErrors.ErrInvalidSchedule, "at least one machine is required")
	case req.DailyHours <= 0:
		return appErrors.Clone(appErrors.ErrInvalidSchedule, "dailyHours must be positive")
	case req.StartDateTime.IsZero() || req.EndDateTime.IsZero():
		return appErrors.Clone(appErrors.ErrInvalidSchedule, "startDateTime and endDateTime are required")
	}
	dailyMinutes := req.DailyHours * 60
	for _, m := range req.Machines {
		if m.TimePerUnit <= 0 {
			return appErrors.Clone(appErrors.ErrInvalidSchedule, fmt.Sprintf("machine %q has non-positive timePerUnit", m.Name))
		}
		if float64(m.TimePerUnit) > dailyMinutes {
			return appErrors.Clone(appErrors.ErrInvalidSchedule,
				fmt.Sprintf("machine %q needs %d minutes per unit but only %.0f working minutes exist per day", m.Name, m.TimePerUnit, dailyMinutes))
		}
	}
	return nil
}

func (s *ScheduleService) location(override string) (*time.Location, error) {
	name := override
	if name == "" {
		name = s.cfg.Timezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidSchedule.Code, appErrors.ErrInvalidSchedule.Status,
			fmt.Sprintf("unknown timezone %q", name))
	}
	return loc, nil
}

// generate runs the greedy flow-shop assignment: units in order, and within
// each unit the machines in pipeline order. A machine never processes two
// units at once, and a unit never enters a stage before leaving the previous
// one. All accumulator state is local to the call.
func (s *ScheduleService) generate(cal workCalendar, machines []dto.MachineInput, quantity int, start time.Time) ([]models.MachineLog, error) {
	logs := make([]models.MachineLog, len(machines))
	for i, m := range machines {
		logs[i] = models.MachineLog{Name: m.Name, Units: make([]models.UnitAssignment, 0, quantity)}
	}

	for unit := 1; unit <= quantity; unit++ {
		for m := range machines {
			candidate := start
			if prev := logs[m].LastEnd(); !prev.IsZero() && prev.After(candidate) {
				candidate = prev
			}
			if m > 0 {
				if stageEnd := logs[m-1].Units[unit-1].End; stageEnd.After(candidate) {
					candidate = stageEnd
				}
			}

			duration := time.Duration(machines[m].TimePerUnit) * time.Minute
			actual, err := cal.nextAvailable(candidate, duration)
			if err != nil {
				return nil, err
			}
			logs[m].Units = append(logs[m].Units, models.UnitAssignment{
				Unit:  unit,
				Start: actual,
				End:   actual.Add(duration),
			})
			logs[m].TotalTimeMinutes += machines[m].TimePerUnit
		}
	}
	return logs, nil
}

// buildFeasibilityReport validates the timetable against the deadline. The
// makespan is taken as the true maximum across all machines' final end
// instants since calendar skips can let an earlier stage finish last.
func buildFeasibilityReport(logs []models.MachineLog, start, end time.Time, dailyHours float64) *dto.ScheduleReport {
	actualEnd := logs[len(logs)-1].LastEnd()
	success := !actualEnd.After(end)

	totalDays := int(math.Ceil(end.Sub(start).Hours()/24)) + 1
	if totalDays < 1 {
		totalDays = 1
	}

	var maxMinutes float64
	for _, log := range logs {
		if minutes := log.LastEnd().Sub(start).Minutes(); minutes > maxMinutes {
			maxMinutes = minutes
		}
	}

	required := round2(maxMinutes / float64(totalDays) / 60)
	additional := 0.0
	if !success {
		additional = round2(math.Max(0, required-dailyHours))
	}

	reports := make([]dto.MachineLogReport, 0, len(logs))
	for _, log := range logs {
		units := make([]dto.UnitSlot, 0, len(log.Units))
		for _, u := range log.Units {
			units = append(units, dto.UnitSlot{Unit: u.Unit, Start: u.Start, End: u.End})
		}
		reports = append(reports, dto.MachineLogReport{
			Name:       log.Name,
			TotalHours: round2(float64(log.TotalTimeMinutes) / 60),
			Units:      units,
		})
	}

	return &dto.ScheduleReport{
		Success:               success,
		RequiredDailyHours:    required,
		AdditionalHoursNeeded: additional,
		ActualEndTime:         actualEnd,
		MachineLogs:           reports,
	}
}

// DailyBreakdown spreads an order's units evenly across the working days of
// its date range, skipping Sundays and holidays. The company's dailyHours
// only matter for the timetable engine; the breakdown is per day counts.
func (s *ScheduleService) DailyBreakdown(ctx context.Context, orderID string) ([]models.DayPlan, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "order not found")
	}
	holidays, err := s.holidays.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load holidays")
	}
	loc, err := s.location("")
	if err != nil {
		return nil, err
	}
	return spreadUnits(order, holidays, loc)
}

func spreadUnits(order *models.Order, holidays []models.Holiday, loc *time.Location) ([]models.DayPlan, error) {
	units := order.Units
	if units < 1 {
		units = 1
	}
	excluded := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		excluded[h.Date] = struct{}{}
	}

	startLocal := order.StartDate.In(loc)
	endLocal := order.EndDate.In(loc)
	first := time.Date(startLocal.Year(), startLocal.Month(), startLocal.Day(), 0, 0, 0, 0, loc)
	last := time.Date(endLocal.Year(), endLocal.Month(), endLocal.Day(), 0, 0, 0, 0, loc)
	if last.Before(first) {
		return nil, appErrors.Clone(appErrors.ErrInvalidSchedule, "order end date precedes start date")
	}

	workingDays := 0
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Sunday {
			continue
		}
		if _, holiday := excluded[d.Format("2006-01-02")]; holiday {
			continue
		}
		workingDays++
	}
	if workingDays == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidSchedule, "no working days in the order's date range")
	}

	unitsPerDay := (units + workingDays - 1) / workingDays
	plans := make([]models.DayPlan, 0, workingDays)
	current := 1
	for d := first; !d.After(last) && current <= units; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Sunday {
			continue
		}
		if _, holiday := excluded[d.Format("2006-01-02")]; holiday {
			continue
		}
		count := unitsPerDay
		if remaining := units - current + 1; remaining < count {
			count = remaining
		}
		plans = append(plans, models.DayPlan{
			Date:      d.Format("2006-01-02"),
			Units:     count,
			StartUnit: current,
			EndUnit:   current + count - 1,
		})
		current += count
	}
	return plans, nil
}

// Export renders a simulation report as CSV or PDF, one row per unit slot.
func (s *ScheduleService) Export(ctx context.Context, req dto.SimulateScheduleRequest, format string) ([]byte, string, error) {
	report, err := s.Simulate(ctx, req)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Title:   "Production Schedule",
		Headers: []string{"Machine", "Unit", "Start", "End"},
	}
	for _, log := range report.MachineLogs {
		for _, u := range log.Units {
			dataset.Rows = append(dataset.Rows, []string{
				log.Name,
				fmt.Sprintf("%d", u.Unit),
				u.Start.Format(time.RFC3339),
				u.End.Format(time.RFC3339),
			})
		}
	}

	switch format {
	case "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
