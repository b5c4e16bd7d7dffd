package store

import (
	"time"

	"gorm.io/gorm"

	"wfm-core/config"
	"wfm-core/core"
	"wfm-core/model"
	"wfm-core/utils"
)

// recomputeWorkHours refreshes the computed hour fields of a row in place.
// Fact rows are always re-linked to their closest approved plan; the
// tenant flag only decides whether the plan caps the credited hours.
func (s *Store) recomputeWorkHours(tx *gorm.DB, wd *model.WorkerDay, cfg config.NetworkConfig) error {
	in := core.WorkHoursInput{
		Day:      wd,
		Registry: s.registry,
		Cfg:      cfg,
	}

	if wd.ShopID != nil {
		shop, err := s.shopByID(tx, *wd.ShopID)
		if err != nil {
			return err
		}
		in.Shop = shop

		var position *model.Position
		if wd.EmploymentID != nil {
			employment, err := s.employmentByID(tx, *wd.EmploymentID)
			if err == nil {
				position = employment.Position
			}
		}
		network, err := s.networkByID(tx, shop.NetworkID)
		if err != nil {
			return err
		}
		in.Breaks = core.ResolveBreaks(position, shop, network.Breaks)
	}

	if wd.EmployeeID != nil {
		method := s.registry.WorkHoursMethod(wd.Type)
		if method == model.WorkHoursMonthAvgSAWH || method == model.WorkHoursManualOrSAWH {
			if err := s.fillSAWHContext(tx, &in, wd, cfg); err != nil {
				return err
			}
		}
	}

	if wd.IsFact {
		if plan := s.resolveClosestPlan(tx, wd); plan != nil {
			wd.ClosestPlanApprovedID = &plan.ID
			if cfg.OnlyFactHoursThatInApprovedPlan {
				in.ClosestPlan = plan
			}
		}
	}

	result, err := core.CalcWorkHours(in)
	if err != nil {
		return err
	}

	wd.WorkHours = result.WorkHours
	wd.DayHours = result.DayHours
	wd.NightHours = result.NightHours
	wd.DttmWorkStartTabel = result.StartTabel
	wd.DttmWorkEndTabel = result.EndTabel
	return nil
}

func (s *Store) fillSAWHContext(tx *gorm.DB, in *core.WorkHoursInput, wd *model.WorkerDay, cfg config.NetworkConfig) error {
	first, last := utils.MonthBounds(wd.Dt)

	var networkID int64
	if wd.ShopID != nil {
		shop, err := s.shopByID(tx, *wd.ShopID)
		if err == nil {
			networkID = shop.NetworkID
		}
	}
	if networkID == 0 {
		employee, err := s.employeeByID(tx, *wd.EmployeeID)
		if err != nil {
			return err
		}
		networkID = employee.NetworkID
	}

	in.MonthSAWHHours = s.sawhMonthHours(tx, networkID, cfg.TimesheetDividerSAWHHoursKey, first)

	var count int64
	err := tx.Model(&model.WorkerDay{}).
		Where("employee_id = ? AND is_fact = ? AND is_approved = ? AND type = ?", *wd.EmployeeID, wd.IsFact, wd.IsApproved, wd.Type).
		Where("dt >= ? AND dt < ?", first.Format(utils.DateLayout), last.AddDate(0, 0, 1).Format(utils.DateLayout)).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		count = 1
	}
	in.SAWHDayCount = int(count)
	return nil
}

// resolveClosestPlan checks the fact's own date first, then the previous
// one (overnight shifts clock out on the next day).
func (s *Store) resolveClosestPlan(tx *gorm.DB, fact *model.WorkerDay) *model.WorkerDay {
	if fact.EmployeeID == nil || !fact.HasTimes() {
		return nil
	}

	for _, offset := range []int{0, -1} {
		dt := fact.Dt.AddDate(0, 0, offset)
		plans, err := s.approvedPlansFor(tx, *fact.EmployeeID, dt, dt)
		if err != nil {
			return nil
		}
		if plan := chooseClosestPlan(plans, *fact.DttmWorkStart, *fact.DttmWorkEnd); plan != nil {
			return plan
		}
	}
	return nil
}

// overlapViolation checks invariant 1 over one (employee, dt, is_fact,
// is_approved) group: no two rows' intervals may intersect unless every
// type in the group allows all the others as additional.
func (s *Store) overlapViolation(rows []model.WorkerDay) bool {
	if len(rows) < 2 {
		return false
	}

	types := make([]string, 0, len(rows))
	for i := range rows {
		types = append(types, rows[i].Type)
	}
	if s.registry.MutuallyAdditional(types) {
		return false
	}

	for i := range rows {
		for j := i + 1; j < len(rows); j++ {
			if rows[i].Overlaps(&rows[j]) {
				return true
			}
		}
	}
	return false
}

// maxShiftSpan bounds how far a shift can spill past midnight; used by the
// attendance pairing window.
func maxShiftSpan(cfg config.NetworkConfig) time.Duration {
	return time.Duration(cfg.MaxShiftHours) * time.Hour
}
