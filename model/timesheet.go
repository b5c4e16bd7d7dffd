package model

import "time"

// Timesheet types.
const (
	TimesheetMain       = "MAIN"
	TimesheetAdditional = "ADDITIONAL"
	TimesheetFact       = "FACT"
)

// TimesheetItem is one derived tabel row per (employee, dt, timesheet type).
type TimesheetItem struct {
	ID            int64     `gorm:"primaryKey;column:id" json:"id"`
	EmployeeID    int64     `gorm:"column:employee_id;not null;index:idx_ts_cell" json:"employeeId"`
	Dt            time.Time `gorm:"column:dt;type:date;not null;index:idx_ts_cell" json:"dt"`
	TimesheetType string    `gorm:"column:timesheet_type;type:varchar(12);not null;index:idx_ts_cell" json:"timesheetType"`

	ShopID       *int64 `gorm:"column:shop_id" json:"shopId"`
	PositionID   *int64 `gorm:"column:position_id" json:"positionId"`
	WorkTypeName string `gorm:"column:work_type_name" json:"workTypeName"`
	DayType      string `gorm:"column:day_type;type:varchar(8);not null" json:"dayType"`

	DayHours   float64 `gorm:"column:day_hours;type:decimal(6,2);not null;default:0" json:"dayHours"`
	NightHours float64 `gorm:"column:night_hours;type:decimal(6,2);not null;default:0" json:"nightHours"`

	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;<-:create" json:"createdAt"`
	UpdatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP on update CURRENT_TIMESTAMP" json:"updatedAt"`
}

func (TimesheetItem) TableName() string {
	return "wfm_timesheet_items"
}

func (t *TimesheetItem) TotalHours() float64 {
	return t.DayHours + t.NightHours
}

// ShiftScheduleDay is one date of an explicit per-employee shift schedule,
// consulted by the shift_schedule divider policy.
type ShiftScheduleDay struct {
	ID         int64     `gorm:"primaryKey;column:id" json:"id"`
	EmployeeID int64     `gorm:"column:employee_id;not null;index:idx_ssd,unique" json:"employeeId"`
	Dt         time.Time `gorm:"column:dt;type:date;not null;index:idx_ssd,unique" json:"dt"`
	DayType    string    `gorm:"column:day_type;type:varchar(8);not null" json:"dayType"`
	WorkHours  float64   `gorm:"column:work_hours;type:decimal(6,2);not null;default:0" json:"workHours"`
}

func (ShiftScheduleDay) TableName() string {
	return "wfm_shift_schedule_days"
}

// Task is an assignment within a workday, checked on approve when the
// network requests the tasks-violation check.
type Task struct {
	ID         int64     `gorm:"primaryKey;column:id" json:"id"`
	EmployeeID int64     `gorm:"column:employee_id;not null;index" json:"employeeId"`
	Dt         time.Time `gorm:"column:dt;type:date;not null;index" json:"dt"`
	DttmStart  time.Time `gorm:"column:dttm_start;not null" json:"dttmStart"`
	DttmEnd    time.Time `gorm:"column:dttm_end;not null" json:"dttmEnd"`
	Name       string    `gorm:"column:name" json:"name"`
}

func (Task) TableName() string {
	return "wfm_tasks"
}
