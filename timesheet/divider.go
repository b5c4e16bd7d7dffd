// Package timesheet derives the monthly MAIN / ADDITIONAL / FACT tabel
// streams from approved worker days. Dividing policies are pluggable by
// name; all share the normalization pass and differ in how they split
// hours between MAIN and ADDITIONAL.
package timesheet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"wfm-core/config"
	"wfm-core/core"
	"wfm-core/errs"
	"wfm-core/model"
	"wfm-core/utils"
)

// Entry is one proto timesheet row before persistence.
type Entry struct {
	Dt           time.Time
	ShopID       *int64
	PositionID   *int64
	WorkTypeName string
	DayType      string
	DayHours     float64
	NightHours   float64
}

func (e *Entry) Total() float64 { return e.DayHours + e.NightHours }

// Cell is one date of the normalized month grid.
type Cell struct {
	Dt   time.Time
	Plan []model.WorkerDay
	Fact []model.WorkerDay
}

// Input is everything a policy needs for one (employee, month).
type Input struct {
	Employee   *model.Employee
	Employment *model.Employment
	Month      time.Time
	Grid       []Cell
	Fact       []Entry
	Norm       float64
	Cfg        config.NetworkConfig
	Registry   *core.DayTypeRegistry
	Schedule   map[string]model.ShiftScheduleDay
	Today      time.Time

	workTypeNames     map[int64]string
	workTypePositions map[int64]*int64
	positions         map[int64]*model.Position
}

// Policy turns the normalized grid into the MAIN and ADDITIONAL streams.
type Policy interface {
	Name() string
	Divide(in *Input) (main, additional []Entry, err error)
}

type Divider struct {
	db       *gorm.DB
	log      *logrus.Logger
	registry *core.DayTypeRegistry
	policies map[string]Policy
	now      func() time.Time
}

func NewDivider(db *gorm.DB, log *logrus.Logger, registry *core.DayTypeRegistry) *Divider {
	d := &Divider{
		db:       db,
		log:      log,
		registry: registry,
		policies: map[string]Policy{},
		now:      time.Now,
	}
	for _, p := range []Policy{
		&nahodkaPolicy{},
		&pobedaPolicy{},
		&pobedaPolicy{manual: true},
		&shiftSchedulePolicy{},
	} {
		d.policies[p.Name()] = p
	}
	return d
}

// Recalc rebuilds the three streams of one employee for one month. The
// result is deterministic: identical input produces identical rows.
func (d *Divider) Recalc(ctx context.Context, employeeID int64, month time.Time, cfg config.NetworkConfig) error {
	in, err := d.buildInput(ctx, employeeID, month, cfg)
	if err != nil {
		return err
	}

	policy, ok := d.policies[cfg.FiscalSheetDividerAlias]
	if !ok {
		return fmt.Errorf("%w: unknown divider policy %q", errs.ErrInvalidInput, cfg.FiscalSheetDividerAlias)
	}

	main, additional, err := policy.Divide(in)
	if err != nil {
		return err
	}

	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return d.persist(tx, employeeID, month, in.Fact, main, additional)
	})
}

// RecalcShop fans the recalculation out over every employee with approved
// days in the shop for the month.
func (d *Divider) RecalcShop(ctx context.Context, shopID int64, month time.Time, cfg config.NetworkConfig) error {
	first, last := utils.MonthBounds(month)

	var employeeIDs []int64
	err := d.db.WithContext(ctx).Model(&model.WorkerDay{}).
		Distinct("employee_id").
		Where("shop_id = ? AND is_approved = ? AND employee_id IS NOT NULL", shopID, true).
		Where("dt BETWEEN ? AND ?", first.Format(utils.DateLayout), last.Format(utils.DateLayout)).
		Pluck("employee_id", &employeeIDs).Error
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, id := range employeeIDs {
		id := id
		g.Go(func() error {
			if err := d.Recalc(gctx, id, month, cfg); err != nil {
				d.log.WithError(err).WithField("employee_id", id).Warn("timesheet recalc failed")
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (d *Divider) buildInput(ctx context.Context, employeeID int64, month time.Time, cfg config.NetworkConfig) (*Input, error) {
	db := d.db.WithContext(ctx)
	first, last := utils.MonthBounds(month)

	var employee model.Employee
	err := db.Preload("Employments.WorkTypes").Preload("Employments.Position").
		First(&employee, employeeID).Error
	if err != nil {
		return nil, fmt.Errorf("%w: employee %d", errs.ErrNotFound, employeeID)
	}

	var rows []model.WorkerDay
	err = db.Preload("Details").
		Where("employee_id = ? AND is_approved = ?", employeeID, true).
		Where("dt BETWEEN ? AND ?", first.Format(utils.DateLayout), last.Format(utils.DateLayout)).
		Order("dt, id").Find(&rows).Error
	if err != nil {
		return nil, err
	}

	in := &Input{
		Employee:          &employee,
		Employment:        model.PickEmployment(employee.Employments, first, 0, nil),
		Month:             first,
		Cfg:               cfg,
		Registry:          d.registry,
		Today:             utils.TruncateToDay(d.now()),
		workTypeNames:     map[int64]string{},
		workTypePositions: map[int64]*int64{},
		positions:         map[int64]*model.Position{},
	}

	if err := d.loadLookups(db, rows, in); err != nil {
		return nil, err
	}
	if err := d.loadSchedule(db, employeeID, first, last, in); err != nil {
		return nil, err
	}

	byDate := utils.GroupBy(rows, func(wd model.WorkerDay) string {
		return wd.Dt.Format(utils.DateLayout)
	})

	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		cell := Cell{Dt: day}
		for _, wd := range byDate[day.Format(utils.DateLayout)] {
			if wd.IsFact {
				cell.Fact = append(cell.Fact, wd)
			} else {
				cell.Plan = append(cell.Plan, wd)
			}
		}
		in.Grid = append(in.Grid, cell)
	}

	in.Fact = d.factStream(in)
	in.Norm, err = d.monthlyNorm(db, in, first)
	if err != nil {
		return nil, err
	}
	return in, nil
}

func (d *Divider) loadLookups(db *gorm.DB, rows []model.WorkerDay, in *Input) error {
	workTypeIDs := map[int64]bool{}
	for i := range rows {
		for _, detail := range rows[i].Details {
			workTypeIDs[detail.WorkTypeID] = true
		}
	}
	if len(workTypeIDs) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(workTypeIDs))
	for id := range workTypeIDs {
		ids = append(ids, id)
	}

	var workTypes []model.WorkType
	if err := db.Where("id IN ?", ids).Find(&workTypes).Error; err != nil {
		return err
	}

	positionIDs := map[int64]bool{}
	for i := range workTypes {
		in.workTypeNames[workTypes[i].ID] = workTypes[i].Name
		in.workTypePositions[workTypes[i].ID] = workTypes[i].PositionID
		if workTypes[i].PositionID != nil {
			positionIDs[*workTypes[i].PositionID] = true
		}
	}
	if len(positionIDs) == 0 {
		return nil
	}

	pids := make([]int64, 0, len(positionIDs))
	for id := range positionIDs {
		pids = append(pids, id)
	}
	var positions []model.Position
	if err := db.Where("id IN ?", pids).Find(&positions).Error; err != nil {
		return err
	}
	for i := range positions {
		in.positions[positions[i].ID] = &positions[i]
	}
	return nil
}

func (d *Divider) loadSchedule(db *gorm.DB, employeeID int64, first, last time.Time, in *Input) error {
	var days []model.ShiftScheduleDay
	err := db.Where("employee_id = ?", employeeID).
		Where("dt BETWEEN ? AND ?", first.Format(utils.DateLayout), last.Format(utils.DateLayout)).
		Find(&days).Error
	if err != nil {
		return err
	}
	in.Schedule = make(map[string]model.ShiftScheduleDay, len(days))
	for _, day := range days {
		in.Schedule[day.Dt.Format(utils.DateLayout)] = day
	}
	return nil
}

// factStream mirrors the approved fact rows 1:1, synthesizing a zero-hour
// ABSENCE where a past planned workday has no fact.
func (d *Divider) factStream(in *Input) []Entry {
	var entries []Entry
	for _, cell := range in.Grid {
		if len(cell.Fact) > 0 {
			for i := range cell.Fact {
				entries = append(entries, in.entryFromRow(&cell.Fact[i]))
			}
			continue
		}

		if cell.Dt.Before(in.Today) {
			for i := range cell.Plan {
				if d.registry.IsDayOff(cell.Plan[i].Type) {
					continue
				}
				entry := in.entryFromRow(&cell.Plan[i])
				entry.DayType = model.DayTypeAbsence
				entry.DayHours = 0
				entry.NightHours = 0
				entries = append(entries, entry)
				break
			}
		}
	}
	return entries
}

// monthlyNorm resolves the SAWH norm: fixed monthly quota first, then
// proration over shift-schedule days, then the production-calendar count of
// weekdays. The employment's norm share scales the result.
func (d *Divider) monthlyNorm(db *gorm.DB, in *Input, month time.Time) (float64, error) {
	fraction := 1.0
	if in.Employment != nil && in.Employment.NormWorkHours > 0 {
		fraction = in.Employment.NormWorkHours / 100.0
	}

	if in.Cfg.TimesheetDividerSAWHHoursKey != "" {
		var settings model.SAWHSettings
		err := db.Where("network_id = ? AND sawh_key = ?", in.Employee.NetworkID, in.Cfg.TimesheetDividerSAWHHoursKey).
			First(&settings).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
		if err == nil {
			if hours, ok := settings.MonthHours[month.Format("2006-01")]; ok && hours > 0 {
				return hours * fraction, nil
			}
		}
	}

	if len(in.Schedule) > 0 {
		var total float64
		for _, day := range in.Schedule {
			total += day.WorkHours
		}
		if total > 0 {
			return total * fraction, nil
		}
	}

	_, last := utils.MonthBounds(month)
	weekdays := 0
	for day := month; !day.After(last); day = day.AddDate(0, 0, 1) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			weekdays++
		}
	}
	return float64(weekdays) * 8 * fraction, nil
}

func (in *Input) entryFromRow(wd *model.WorkerDay) Entry {
	entry := Entry{
		Dt:         utils.TruncateToDay(wd.Dt),
		ShopID:     wd.ShopID,
		DayType:    wd.Type,
		DayHours:   wd.DayHours.Hours(),
		NightHours: wd.NightHours.Hours(),
	}
	if entry.DayHours == 0 && entry.NightHours == 0 && wd.WorkHours > 0 {
		entry.DayHours = wd.WorkHours.Hours()
	}
	if len(wd.Details) > 0 {
		workTypeID := wd.Details[0].WorkTypeID
		entry.WorkTypeName = in.workTypeNames[workTypeID]
		entry.PositionID = in.positionForWorkType(workTypeID)
	}
	if entry.PositionID == nil && in.Employment != nil {
		entry.PositionID = utils.Ptr(in.Employment.PositionID)
	}
	return entry
}

func (in *Input) positionForWorkType(workTypeID int64) *int64 {
	return in.workTypePositions[workTypeID]
}

// persist replaces the employee's month atomically with the fresh streams,
// written in (dt, type) order so re-runs are byte-equal.
func (d *Divider) persist(tx *gorm.DB, employeeID int64, month time.Time, fact, main, additional []Entry) error {
	first, last := utils.MonthBounds(month)

	err := tx.Where("employee_id = ? AND dt BETWEEN ? AND ?",
		employeeID, first.Format(utils.DateLayout), last.Format(utils.DateLayout)).
		Delete(&model.TimesheetItem{}).Error
	if err != nil {
		return err
	}

	streams := []struct {
		typ     string
		entries []Entry
	}{
		{model.TimesheetFact, fact},
		{model.TimesheetMain, main},
		{model.TimesheetAdditional, additional},
	}

	for _, stream := range streams {
		entries := append([]Entry(nil), stream.entries...)
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Dt.Before(entries[j].Dt) })

		for _, e := range entries {
			item := model.TimesheetItem{
				EmployeeID:    employeeID,
				Dt:            e.Dt,
				TimesheetType: stream.typ,
				ShopID:        e.ShopID,
				PositionID:    e.PositionID,
				WorkTypeName:  e.WorkTypeName,
				DayType:       e.DayType,
				DayHours:      e.DayHours,
				NightHours:    e.NightHours,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
