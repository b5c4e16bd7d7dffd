package timesheet

import (
	"wfm-core/config"
	"wfm-core/utils"
)

// nahodkaPolicy splits by a per-day hour cap, the weekly continuous-rest
// rule and a monthly overtime balance. Vacation and sick days stay in MAIN
// with their computed hours.
type nahodkaPolicy struct{}

func (nahodkaPolicy) Name() string { return config.DividerNahodka }

func (p *nahodkaPolicy) Divide(in *Input) (main, additional []Entry, err error) {
	main = append([]Entry(nil), in.Fact...)

	additional = p.applyDayCap(in, main)
	additional = append(additional, p.applyWeeklyRest(in, main)...)
	main, additional = p.balanceOvertime(in, main, additional)
	return main, additional, nil
}

// applyDayCap trims each workday to the per-day MAIN cap and returns the
// spill-over entries.
func (p *nahodkaPolicy) applyDayCap(in *Input, main []Entry) []Entry {
	dayCap := in.Cfg.MaxMainTimesheetHoursPerDay
	if dayCap <= 0 {
		dayCap = 12
	}

	var additional []Entry
	for i := range main {
		if in.Registry.IsDayOff(main[i].DayType) {
			continue
		}
		total := main[i].Total()
		if total <= dayCap {
			continue
		}

		excess := total - dayCap
		spill := main[i]
		spill.DayHours, spill.NightHours = splitHours(&main[i], excess)
		additional = append(additional, spill)
	}
	return additional
}

// splitHours removes excess hours from an entry, night hours first, and
// returns the removed (day, night) split.
func splitHours(e *Entry, excess float64) (day, night float64) {
	if e.NightHours >= excess {
		e.NightHours -= excess
		return 0, excess
	}
	night = e.NightHours
	day = excess - night
	e.NightHours = 0
	e.DayHours -= day
	if e.DayHours < 0 {
		day += e.DayHours
		e.DayHours = 0
	}
	return day, night
}

// applyWeeklyRest enforces a contiguous 48-hour rest inside every rolling
// 7-day window. Two adjacent zero-hour days satisfy it; when a window has
// none, worked days are moved to ADDITIONAL from the window's tail until
// one appears.
func (p *nahodkaPolicy) applyWeeklyRest(in *Input, main []Entry) []Entry {
	worked := map[string]int{}
	for i := range main {
		if main[i].Total() > 0 && !in.Registry.IsDayOff(main[i].DayType) {
			worked[main[i].Dt.Format(utils.DateLayout)] = i
		}
	}

	var additional []Entry
	if len(in.Grid) < 7 {
		return additional
	}

	for w := 0; w+7 <= len(in.Grid); w++ {
		for !hasContiguousRest(in.Grid[w:w+7], worked) {
			moved := false
			for i := w + 6; i >= w; i-- {
				key := in.Grid[i].Dt.Format(utils.DateLayout)
				idx, ok := worked[key]
				if !ok {
					continue
				}
				spill := main[idx]
				additional = append(additional, spill)
				main[idx].DayHours = 0
				main[idx].NightHours = 0
				delete(worked, key)
				moved = true
				break
			}
			if !moved {
				break
			}
		}
	}
	return additional
}

// hasContiguousRest reports whether the window contains two adjacent days
// without MAIN work.
func hasContiguousRest(window []Cell, worked map[string]int) bool {
	restRun := 0
	for _, cell := range window {
		if _, ok := worked[cell.Dt.Format(utils.DateLayout)]; ok {
			restRun = 0
			continue
		}
		restRun++
		if restRun >= 2 {
			return true
		}
	}
	return false
}

// balanceOvertime settles MAIN against the monthly norm: excess moves to
// ADDITIONAL from the month's tail, a deficit is backfilled from
// ADDITIONAL hours falling on MAIN rest days.
func (p *nahodkaPolicy) balanceOvertime(in *Input, main []Entry, additional []Entry) ([]Entry, []Entry) {
	var workedHours float64
	for i := range main {
		if !in.Registry.IsDayOff(main[i].DayType) {
			workedHours += main[i].Total()
		}
	}

	if workedHours > in.Norm {
		excess := workedHours - in.Norm
		for i := len(main) - 1; i >= 0 && excess > 0; i-- {
			if in.Registry.IsDayOff(main[i].DayType) || main[i].Total() == 0 {
				continue
			}
			take := main[i].Total()
			if take > excess {
				take = excess
			}
			spill := main[i]
			spill.DayHours, spill.NightHours = splitHours(&main[i], take)
			additional = append(additional, spill)
			excess -= take
		}
		return main, additional
	}

	// Deficit: pull ADDITIONAL hours back onto MAIN rest days.
	deficit := in.Norm - workedHours
	restDays := map[string]bool{}
	for _, cell := range in.Grid {
		restDays[cell.Dt.Format(utils.DateLayout)] = true
	}
	for i := range main {
		if main[i].Total() > 0 {
			restDays[main[i].Dt.Format(utils.DateLayout)] = false
		}
	}

	var kept []Entry
	for _, extra := range additional {
		if deficit <= 0 || !restDays[extra.Dt.Format(utils.DateLayout)] || in.Registry.IsDayOff(extra.DayType) {
			kept = append(kept, extra)
			continue
		}
		take := extra.Total()
		if take > deficit {
			remainder := extra
			remainder.DayHours, remainder.NightHours = splitHours(&extra, take-deficit)
			kept = append(kept, remainder)
			take = deficit
		}
		main = append(main, extra)
		restDays[extra.Dt.Format(utils.DateLayout)] = false
		deficit -= take
	}
	return main, kept
}
