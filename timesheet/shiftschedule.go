package timesheet

import (
	"time"

	"wfm-core/config"
	"wfm-core/model"
	"wfm-core/utils"
)

// shiftSchedulePolicy divides against an explicit per-date schedule: MAIN
// follows the schedule's nominal day type and hours, everything the plan
// carries beyond that lands in ADDITIONAL.
type shiftSchedulePolicy struct{}

func (shiftSchedulePolicy) Name() string { return config.DividerShiftSchedule }

func (p *shiftSchedulePolicy) Divide(in *Input) (main, additional []Entry, err error) {
	factByDate := map[string][]Entry{}
	for _, e := range in.Fact {
		key := e.Dt.Format(utils.DateLayout)
		factByDate[key] = append(factByDate[key], e)
	}

	for _, cell := range in.Grid {
		key := cell.Dt.Format(utils.DateLayout)
		schedule, scheduled := in.Schedule[key]
		facts := factByDate[key]

		switch {
		case len(facts) > 0 && p.isVacationDay(in, facts):
			m, a := p.divideVacation(in, cell, facts)
			main = append(main, m...)
			additional = append(additional, a...)

		case len(facts) > 0 && (!scheduled || in.Registry.IsDayOff(schedule.DayType)):
			// Worked on a scheduled holiday: MAIN holds the holiday,
			// the worked hours are extra.
			for _, f := range facts {
				if f.Total() > 0 {
					additional = append(additional, f)
				}
			}
			holiday := p.scheduleEntry(in, cell.Dt, model.DayTypeHoliday, 0)
			main = append(main, holiday)

		case len(facts) > 0:
			m, a := p.divideWorkday(facts, schedule.WorkHours)
			main = append(main, m...)
			additional = append(additional, a...)

		case scheduled && !in.Registry.IsDayOff(schedule.DayType):
			// Schedule expects work but nothing happened: borrow
			// unallocated hours from a nearby donor, else absence.
			if donor, hours := p.findDonor(in, factByDate, cell.Dt, schedule.WorkHours); donor != "" {
				entry := p.scheduleEntry(in, cell.Dt, model.DayTypeWorkday, hours)
				main = append(main, entry)
			} else if cell.Dt.Before(in.Today) {
				main = append(main, p.scheduleEntry(in, cell.Dt, model.DayTypeAbsence, 0))
			}
		}
	}
	return main, additional, nil
}

func (p *shiftSchedulePolicy) isVacationDay(in *Input, facts []Entry) bool {
	for _, f := range facts {
		if f.DayType == model.DayTypeVacation {
			return true
		}
	}
	return false
}

// divideVacation keeps the vacation in MAIN; a workday recorded on the same
// date stays in ADDITIONAL only when the vacation type allows it.
func (p *shiftSchedulePolicy) divideVacation(in *Input, cell Cell, facts []Entry) (main, additional []Entry) {
	allowed := in.Registry.AllowedAdditional(model.DayTypeVacation)
	allowsWorkday := false
	for _, code := range allowed {
		if code == model.DayTypeWorkday {
			allowsWorkday = true
		}
	}

	for _, f := range facts {
		if f.DayType == model.DayTypeVacation {
			main = append(main, f)
			continue
		}
		if allowsWorkday && f.Total() > 0 {
			additional = append(additional, f)
		}
	}
	return main, additional
}

// divideWorkday gives MAIN the scheduled hours and spills the rest.
func (p *shiftSchedulePolicy) divideWorkday(facts []Entry, scheduleHours float64) (main, additional []Entry) {
	remaining := scheduleHours
	for _, f := range facts {
		total := f.Total()
		if total <= remaining {
			main = append(main, f)
			remaining -= total
			continue
		}

		if remaining > 0 {
			kept := f
			spill := f
			spill.DayHours, spill.NightHours = splitHours(&kept, total-remaining)
			main = append(main, kept)
			additional = append(additional, spill)
			remaining = 0
		} else {
			additional = append(additional, f)
		}
	}
	return main, additional
}

// findDonor looks for a neighbouring date whose fact hours exceed its own
// schedule, so the surplus can be attributed to the empty scheduled day.
func (p *shiftSchedulePolicy) findDonor(in *Input, factByDate map[string][]Entry, dt time.Time, need float64) (string, float64) {
	for _, offset := range []int{-1, 1} {
		day := dt.AddDate(0, 0, offset)
		key := day.Format(utils.DateLayout)

		facts := factByDate[key]
		if len(facts) == 0 {
			continue
		}
		schedule, ok := in.Schedule[key]
		if !ok {
			continue
		}

		var total float64
		for _, f := range facts {
			total += f.Total()
		}
		surplus := total - schedule.WorkHours
		if surplus <= 0 {
			continue
		}
		if surplus > need {
			surplus = need
		}
		return key, surplus
	}
	return "", 0
}

func (p *shiftSchedulePolicy) scheduleEntry(in *Input, dt time.Time, dayType string, hours float64) Entry {
	entry := Entry{
		Dt:       utils.TruncateToDay(dt),
		DayType:  dayType,
		DayHours: hours,
	}
	if in.Employment != nil {
		entry.ShopID = utils.Ptr(in.Employment.ShopID)
		entry.PositionID = utils.Ptr(in.Employment.PositionID)
	}
	return entry
}
