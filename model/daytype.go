package model

// Work-hours calculation methods for day-off types.
const (
	WorkHoursNone         = "NONE"
	WorkHoursManual       = "MANUAL"
	WorkHoursFromShift    = "FROM_SHIFT_TIMES"
	WorkHoursMonthAvgSAWH = "MONTH_AVERAGE_SAWH"
	WorkHoursManualOrSAWH = "MANUAL_OR_SAWH"
)

// System day-type codes.
const (
	DayTypeWorkday       = "W"
	DayTypeHoliday       = "H"
	DayTypeVacation      = "V"
	DayTypeSick          = "S"
	DayTypeBusinessTrip  = "BT"
	DayTypeAbsence       = "A"
	DayTypeMaternity     = "M"
	DayTypeQualification = "Q"
	DayTypeEmpty         = "E"
)

type DayType struct {
	Code                   string      `gorm:"primaryKey;column:code;type:varchar(8)" json:"code" yaml:"code"`
	Name                   string      `gorm:"column:name" json:"name" yaml:"name"`
	IsDayoff               bool        `gorm:"column:is_dayoff" json:"is_dayoff" yaml:"is_dayoff"`
	IsWorkHours            bool        `gorm:"column:is_work_hours" json:"is_work_hours" yaml:"is_work_hours"`
	IsReduceNorm           bool        `gorm:"column:is_reduce_norm" json:"is_reduce_norm" yaml:"is_reduce_norm"`
	ShowStatInHours        bool        `gorm:"column:show_stat_in_hours" json:"show_stat_in_hours" yaml:"show_stat_in_hours"`
	ShowStatInDays         bool        `gorm:"column:show_stat_in_days" json:"show_stat_in_days" yaml:"show_stat_in_days"`
	SubtractBreaks         bool        `gorm:"column:subtract_breaks" json:"subtract_breaks" yaml:"subtract_breaks"`
	GetWorkHoursMethod     string      `gorm:"column:get_work_hours_method;type:varchar(32)" json:"get_work_hours_method" yaml:"get_work_hours_method"`
	AllowedAdditionalTypes StringArray `gorm:"column:allowed_additional_types;type:json" json:"allowed_additional_types" yaml:"allowed_additional_types"`
	Ordering               int         `gorm:"column:ordering" json:"ordering" yaml:"ordering"`
	IsSystem               bool        `gorm:"column:is_system" json:"is_system" yaml:"is_system"`
	UseInPlan              bool        `gorm:"column:use_in_plan" json:"use_in_plan" yaml:"use_in_plan"`
	UseInFact              bool        `gorm:"column:use_in_fact" json:"use_in_fact" yaml:"use_in_fact"`
}

func (DayType) TableName() string {
	return "wfm_day_types"
}
