package config

import (
	"encoding/json"
	"fmt"
)

// Rounding algorithms for computed work hours.
const (
	RoundNone       = "NONE"
	RoundTrunc      = "TRUNC"
	RoundHalfAnHour = "ROUND_TO_HALF_AN_HOUR"
)

// Timesheet divider aliases.
const (
	DividerNahodka       = "nahodka"
	DividerPobeda        = "pobeda"
	DividerPobedaManual  = "pobeda_manual"
	DividerShiftSchedule = "shift_schedule"
)

// NetworkConfig carries the per-tenant behaviour flags. The values live in
// the network row as a JSON blob and are decoded once per request scope.
type NetworkConfig struct {
	OnlyFactHoursThatInApprovedPlan bool    `json:"only_fact_hours_that_in_approved_plan" yaml:"only_fact_hours_that_in_approved_plan"`
	CropWorkHoursByShopSchedule     bool    `json:"crop_work_hours_by_shop_schedule" yaml:"crop_work_hours_by_shop_schedule"`
	RoundWorkHoursAlg               string  `json:"round_work_hours_alg" yaml:"round_work_hours_alg"`
	FiscalSheetDividerAlias         string  `json:"fiscal_sheet_divider_alias" yaml:"fiscal_sheet_divider_alias"`
	TimesheetMinHoursThreshold      float64 `json:"timesheet_min_hours_threshold" yaml:"timesheet_min_hours_threshold"`
	TimesheetDividerSAWHHoursKey    string  `json:"timesheet_divider_sawh_hours_key" yaml:"timesheet_divider_sawh_hours_key"`
	ForbidEditIntegrationWorkDays   bool    `json:"forbid_edit_work_days_came_through_integration" yaml:"forbid_edit_work_days_came_through_integration"`
	AllowSeveralWDaysPerDate        bool    `json:"allow_creation_several_wdays_for_one_employee_for_one_date" yaml:"allow_creation_several_wdays_for_one_employee_for_one_date"`
	PositionFromWorkTypeInTimesheet bool    `json:"get_position_from_work_type_name_in_calc_timesheet" yaml:"get_position_from_work_type_name_in_calc_timesheet"`
	RequestApproveWithTasksCheck    bool    `json:"request_approve_with_tasks_check" yaml:"request_approve_with_tasks_check"`
	CheckPlanNormOnApprove          bool    `json:"check_plan_norm_on_approve" yaml:"check_plan_norm_on_approve"`
	PlanNormTolerance               float64 `json:"plan_norm_tolerance" yaml:"plan_norm_tolerance"`
	NightStart                      string  `json:"night_start" yaml:"night_start"`
	NightEnd                        string  `json:"night_end" yaml:"night_end"`
	MaxShiftHours                   int     `json:"max_shift_hours" yaml:"max_shift_hours"`
	MaxMainTimesheetHoursPerDay     float64 `json:"max_main_timesheet_hours_per_day" yaml:"max_main_timesheet_hours_per_day"`
	LongVacationDays                int     `json:"long_vacation_days" yaml:"long_vacation_days"`
	DoctorScheduleWebhookURL        string  `json:"doctor_schedule_webhook_url" yaml:"doctor_schedule_webhook_url"`
	ForbidApplyToOutsourceVacancies bool    `json:"forbid_apply_to_outsource_vacancies" yaml:"forbid_apply_to_outsource_vacancies"`
}

// DefaultNetworkConfig returns the flag values used when a network carries
// no settings blob.
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		RoundWorkHoursAlg:           RoundNone,
		FiscalSheetDividerAlias:     DividerNahodka,
		NightStart:                  "22:00",
		NightEnd:                    "06:00",
		MaxShiftHours:               24,
		MaxMainTimesheetHoursPerDay: 12,
		PlanNormTolerance:           0.0,
		LongVacationDays:            14,
	}
}

// ParseNetworkConfig decodes the settings JSON of a network row on top of
// the defaults. An empty blob yields the defaults.
func ParseNetworkConfig(settings []byte) (NetworkConfig, error) {
	cfg := DefaultNetworkConfig()
	if len(settings) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(settings, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid network settings: %w", err)
	}
	if cfg.MaxShiftHours <= 0 {
		cfg.MaxShiftHours = 24
	}
	if cfg.MaxMainTimesheetHoursPerDay <= 0 {
		cfg.MaxMainTimesheetHoursPerDay = 12
	}
	return cfg, nil
}
