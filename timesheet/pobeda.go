package timesheet

import (
	"wfm-core/config"
	"wfm-core/model"
	"wfm-core/utils"
)

// pobedaPolicy starts from the nahodka split and layers the retail rules on
// top: short shifts collapse out of MAIN, out-of-shop and out-of-position
// work moves wholly to ADDITIONAL, and long vacation runs decay into
// holidays. The manual variant additionally expels vacancy days from MAIN.
type pobedaPolicy struct {
	manual bool
}

func (p *pobedaPolicy) Name() string {
	if p.manual {
		return config.DividerPobedaManual
	}
	return config.DividerPobeda
}

func (p *pobedaPolicy) Divide(in *Input) (main, additional []Entry, err error) {
	base := nahodkaPolicy{}
	main, additional, err = base.Divide(in)
	if err != nil {
		return nil, nil, err
	}

	main, additional = p.collapseShortShifts(in, main, additional)
	main, additional = p.moveOutOfShop(in, main, additional)
	if in.Cfg.PositionFromWorkTypeInTimesheet {
		main, additional = p.moveOutOfPosition(in, main, additional)
	}
	if p.manual {
		main, additional = p.moveVacancies(in, main, additional)
	}
	main = p.replaceLongVacations(in, main)
	return main, additional, nil
}

// collapseShortShifts drops cells below the network's min-hours threshold
// out of MAIN entirely.
func (p *pobedaPolicy) collapseShortShifts(in *Input, main, additional []Entry) ([]Entry, []Entry) {
	threshold := in.Cfg.TimesheetMinHoursThreshold
	if threshold <= 0 {
		return main, additional
	}

	for i := range main {
		if in.Registry.IsDayOff(main[i].DayType) {
			continue
		}
		total := main[i].Total()
		if total == 0 || total >= threshold {
			continue
		}
		spill := main[i]
		main[i].DayHours = 0
		main[i].NightHours = 0
		additional = append(additional, spill)
	}
	return main, additional
}

// moveOutOfShop puts work done outside the primary shop wholly into
// ADDITIONAL; the MAIN day becomes a holiday.
func (p *pobedaPolicy) moveOutOfShop(in *Input, main, additional []Entry) ([]Entry, []Entry) {
	if in.Employment == nil {
		return main, additional
	}
	homeShop := in.Employment.ShopID

	for i := range main {
		if in.Registry.IsDayOff(main[i].DayType) || main[i].Total() == 0 {
			continue
		}
		if main[i].ShopID == nil || *main[i].ShopID == homeShop {
			continue
		}
		spill := main[i]
		additional = append(additional, spill)
		main[i].DayType = model.DayTypeHoliday
		main[i].DayHours = 0
		main[i].NightHours = 0
		main[i].ShopID = utils.Ptr(homeShop)
	}
	return main, additional
}

// moveOutOfPosition expels days worked on a work type that maps to another
// position; the ADDITIONAL entry carries the worked position.
func (p *pobedaPolicy) moveOutOfPosition(in *Input, main, additional []Entry) ([]Entry, []Entry) {
	if in.Employment == nil {
		return main, additional
	}
	homePosition := in.Employment.PositionID

	for i := range main {
		if in.Registry.IsDayOff(main[i].DayType) || main[i].Total() == 0 {
			continue
		}
		if main[i].PositionID == nil || *main[i].PositionID == homePosition {
			continue
		}
		spill := main[i]
		additional = append(additional, spill)
		main[i].DayType = model.DayTypeHoliday
		main[i].DayHours = 0
		main[i].NightHours = 0
		main[i].PositionID = utils.Ptr(homePosition)
	}
	return main, additional
}

// moveVacancies expels is_vacancy days from MAIN regardless of shop.
func (p *pobedaPolicy) moveVacancies(in *Input, main, additional []Entry) ([]Entry, []Entry) {
	vacancyDates := map[string]bool{}
	for _, cell := range in.Grid {
		for i := range cell.Fact {
			if cell.Fact[i].IsVacancy {
				vacancyDates[cell.Dt.Format(utils.DateLayout)] = true
			}
		}
	}
	if len(vacancyDates) == 0 {
		return main, additional
	}

	for i := range main {
		if !vacancyDates[main[i].Dt.Format(utils.DateLayout)] || main[i].Total() == 0 {
			continue
		}
		spill := main[i]
		additional = append(additional, spill)
		main[i].DayType = model.DayTypeHoliday
		main[i].DayHours = 0
		main[i].NightHours = 0
	}
	return main, additional
}

// replaceLongVacations turns the tail of a vacation run past the threshold
// into holiday days.
func (p *pobedaPolicy) replaceLongVacations(in *Input, main []Entry) []Entry {
	limit := in.Cfg.LongVacationDays
	if limit <= 0 {
		return main
	}

	run := 0
	for i := range main {
		if main[i].DayType != model.DayTypeVacation {
			run = 0
			continue
		}
		run++
		if run > limit {
			main[i].DayType = model.DayTypeHoliday
			main[i].DayHours = 0
			main[i].NightHours = 0
		}
	}
	return main
}
