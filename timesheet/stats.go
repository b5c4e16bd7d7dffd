package timesheet

import (
	"context"
	"sort"
	"time"

	"wfm-core/model"
	"wfm-core/utils"
)

// Stats aggregates one employee's month across the three streams.
type Stats struct {
	EmployeeID      int64   `json:"employee_id"`
	Month           string  `json:"month"`
	NormHours       float64 `json:"norm_hours"`
	MainDayHours    float64 `json:"main_day_hours"`
	MainNightHours  float64 `json:"main_night_hours"`
	AdditionalHours float64 `json:"additional_hours"`
	FactHours       float64 `json:"fact_hours"`
	WorkedDays      int     `json:"worked_days"`
	AbsenceDays     int     `json:"absence_days"`
	Overtime        float64 `json:"overtime"`
}

// Line is one tabel row: an employee's hours of one stream at one shop and
// position, laid out day by day.
type Line struct {
	EmployeeID    int64              `json:"employee_id"`
	TimesheetType string             `json:"timesheet_type"`
	ShopID        *int64             `json:"shop_id"`
	PositionID    *int64             `json:"position_id"`
	WorkTypeName  string             `json:"work_type_name"`
	Days          map[string]LineDay `json:"days"`
	TotalHours    float64            `json:"total_hours"`
}

type LineDay struct {
	DayType    string  `json:"day_type"`
	DayHours   float64 `json:"day_hours"`
	NightHours float64 `json:"night_hours"`
}

// Items returns the raw persisted rows of one employee's month.
func (d *Divider) Items(ctx context.Context, employeeID int64, month time.Time) ([]model.TimesheetItem, error) {
	first, last := utils.MonthBounds(month)
	var items []model.TimesheetItem
	err := d.db.WithContext(ctx).
		Where("employee_id = ? AND dt BETWEEN ? AND ?",
			employeeID, first.Format(utils.DateLayout), last.Format(utils.DateLayout)).
		Order("dt, timesheet_type, id").
		Find(&items).Error
	return items, err
}

// Stats computes the monthly aggregate for a set of employees.
func (d *Divider) Stats(ctx context.Context, employeeIDs []int64, month time.Time, norms map[int64]float64) ([]Stats, error) {
	first, last := utils.MonthBounds(month)

	var items []model.TimesheetItem
	query := d.db.WithContext(ctx).
		Where("dt BETWEEN ? AND ?", first.Format(utils.DateLayout), last.Format(utils.DateLayout))
	if len(employeeIDs) > 0 {
		query = query.Where("employee_id IN ?", employeeIDs)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}

	byEmployee := utils.GroupBy(items, func(it model.TimesheetItem) int64 { return it.EmployeeID })

	ids := make([]int64, 0, len(byEmployee))
	for id := range byEmployee {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []Stats
	for _, id := range ids {
		stat := Stats{EmployeeID: id, Month: first.Format("2006-01"), NormHours: norms[id]}
		for _, it := range byEmployee[id] {
			switch it.TimesheetType {
			case model.TimesheetMain:
				stat.MainDayHours += it.DayHours
				stat.MainNightHours += it.NightHours
				if it.TotalHours() > 0 {
					stat.WorkedDays++
				}
				if it.DayType == model.DayTypeAbsence {
					stat.AbsenceDays++
				}
			case model.TimesheetAdditional:
				stat.AdditionalHours += it.TotalHours()
			case model.TimesheetFact:
				stat.FactHours += it.TotalHours()
			}
		}
		if stat.NormHours > 0 {
			stat.Overtime = stat.MainDayHours + stat.MainNightHours + stat.AdditionalHours - stat.NormHours
			if stat.Overtime < 0 {
				stat.Overtime = 0
			}
		}
		out = append(out, stat)
	}
	return out, nil
}

// Lines groups the month into tabel lines keyed by (employee, stream, shop,
// position, work type).
func (d *Divider) Lines(ctx context.Context, employeeIDs []int64, month time.Time) ([]Line, error) {
	first, last := utils.MonthBounds(month)

	var items []model.TimesheetItem
	query := d.db.WithContext(ctx).
		Where("dt BETWEEN ? AND ?", first.Format(utils.DateLayout), last.Format(utils.DateLayout)).
		Order("employee_id, timesheet_type, dt")
	if len(employeeIDs) > 0 {
		query = query.Where("employee_id IN ?", employeeIDs)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}

	type lineKey struct {
		employeeID   int64
		typ          string
		shopID       int64
		positionID   int64
		workTypeName string
	}

	lines := map[lineKey]*Line{}
	var order []lineKey
	for _, it := range items {
		key := lineKey{employeeID: it.EmployeeID, typ: it.TimesheetType, workTypeName: it.WorkTypeName}
		if it.ShopID != nil {
			key.shopID = *it.ShopID
		}
		if it.PositionID != nil {
			key.positionID = *it.PositionID
		}

		line, ok := lines[key]
		if !ok {
			line = &Line{
				EmployeeID:    it.EmployeeID,
				TimesheetType: it.TimesheetType,
				ShopID:        it.ShopID,
				PositionID:    it.PositionID,
				WorkTypeName:  it.WorkTypeName,
				Days:          map[string]LineDay{},
			}
			lines[key] = line
			order = append(order, key)
		}

		day := line.Days[it.Dt.Format(utils.DateLayout)]
		day.DayType = it.DayType
		day.DayHours += it.DayHours
		day.NightHours += it.NightHours
		line.Days[it.Dt.Format(utils.DateLayout)] = day
		line.TotalHours += it.TotalHours()
	}

	out := make([]Line, 0, len(order))
	for _, key := range order {
		out = append(out, *lines[key])
	}
	return out, nil
}
