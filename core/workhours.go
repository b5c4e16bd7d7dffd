package core

import (
	"errors"
	"fmt"
	"time"

	"wfm-core/config"
	"wfm-core/model"
	"wfm-core/utils"
)

var ErrInvalidShift = errors.New("invalid shift")

// WorkHoursInput bundles everything the calculator consults for one row.
type WorkHoursInput struct {
	Day      *model.WorkerDay
	Registry *DayTypeRegistry
	Cfg      config.NetworkConfig

	Breaks model.BreakTriples
	Shop   *model.Shop

	// SAWH context for day-off types attributing hours.
	MonthSAWHHours float64
	SAWHDayCount   int

	// Approved plan row used to cap fact hours when the network policy
	// requires it.
	ClosestPlan *model.WorkerDay
}

type WorkHoursResult struct {
	WorkHours  time.Duration
	DayHours   time.Duration
	NightHours time.Duration

	StartTabel *time.Time
	EndTabel   *time.Time
}

// CalcWorkHours computes the billable duration of a worker-day, including
// shop-schedule cropping, break subtraction, plan capping for facts and the
// day/night split. Re-running it on its own output yields the same result.
func CalcWorkHours(in WorkHoursInput) (WorkHoursResult, error) {
	wd := in.Day

	if in.Registry.WorkHoursMethod(wd.Type) != model.WorkHoursFromShift {
		return calcDayOffHours(in)
	}

	if !wd.HasTimes() {
		return WorkHoursResult{}, fmt.Errorf("%w: workday %s has no shift times", ErrInvalidShift, wd.Dt.Format(utils.DateLayout))
	}

	start := *wd.DttmWorkStart
	end := *wd.DttmWorkEnd
	if !end.After(start) {
		return WorkHoursResult{}, fmt.Errorf("%w: end %v is not after start %v", ErrInvalidShift, end, start)
	}

	rawDuration := end.Sub(start)
	maxShift := time.Duration(in.Cfg.MaxShiftHours) * time.Hour
	if rawDuration > maxShift {
		return WorkHoursResult{}, fmt.Errorf("%w: shift of %v exceeds maximum %v", ErrInvalidShift, rawDuration, maxShift)
	}

	result := WorkHoursResult{}

	if in.Cfg.CropWorkHoursByShopSchedule && in.Shop != nil {
		croppedStart, croppedEnd, cropped := cropByShopSchedule(start, end, wd.Dt, in.Shop)
		if cropped {
			result.StartTabel = utils.Ptr(croppedStart)
			result.EndTabel = utils.Ptr(croppedEnd)
			start, end = croppedStart, croppedEnd
		}
	}

	if wd.IsFact && in.Cfg.OnlyFactHoursThatInApprovedPlan && in.ClosestPlan != nil && in.ClosestPlan.HasTimes() {
		if in.ClosestPlan.DttmWorkStart.After(start) {
			start = *in.ClosestPlan.DttmWorkStart
		}
		if in.ClosestPlan.DttmWorkEnd.Before(end) {
			end = *in.ClosestPlan.DttmWorkEnd
		}
	}

	if !end.After(start) {
		// Cropping or capping consumed the whole shift.
		return result, nil
	}

	night := nightOverlap(start, end, in.Cfg.NightStart, in.Cfg.NightEnd)
	total := end.Sub(start)

	if in.Registry.SubtractBreaks(wd.Type) {
		breakTime := BreakMinutesFor(in.Breaks, rawDuration)
		if breakTime >= total {
			total, night = 0, 0
		} else {
			total -= breakTime
			if night > total {
				night = total
			}
		}
	}

	total = roundHours(total, in.Cfg.RoundWorkHoursAlg)
	if night > total {
		night = total
	}

	result.WorkHours = total
	result.NightHours = night
	result.DayHours = total - night
	return result, nil
}

func calcDayOffHours(in WorkHoursInput) (WorkHoursResult, error) {
	wd := in.Day

	var hours time.Duration
	switch in.Registry.WorkHoursMethod(wd.Type) {
	case model.WorkHoursManual:
		hours = wd.WorkHours
	case model.WorkHoursMonthAvgSAWH:
		hours = sawhAverage(in)
	case model.WorkHoursManualOrSAWH:
		if wd.WorkHours > 0 {
			hours = wd.WorkHours
		} else {
			hours = sawhAverage(in)
		}
	default:
		hours = 0
	}

	return WorkHoursResult{WorkHours: hours, DayHours: hours}, nil
}

func sawhAverage(in WorkHoursInput) time.Duration {
	if in.SAWHDayCount <= 0 || in.MonthSAWHHours <= 0 {
		return 0
	}
	return time.Duration(in.MonthSAWHHours / float64(in.SAWHDayCount) * float64(time.Hour))
}

// cropByShopSchedule intersects the shift with the shop's open interval for
// the worker-day date. Shops without a schedule for that weekday leave the
// shift untouched.
func cropByShopSchedule(start, end, dt time.Time, shop *model.Shop) (time.Time, time.Time, bool) {
	weekday := fmt.Sprintf("%d", int(dt.Weekday()))
	openStr, okOpen := shop.OpenTimes[weekday]
	closeStr, okClose := shop.CloseTimes[weekday]
	if !okOpen || !okClose {
		return start, end, false
	}

	open, err := utils.ParseTimeOnDate(dt, openStr)
	if err != nil {
		return start, end, false
	}
	clos, err := utils.ParseTimeOnDate(dt, closeStr)
	if err != nil {
		return start, end, false
	}
	if !clos.After(open) {
		// Shop closes past midnight.
		clos = clos.Add(24 * time.Hour)
	}

	if open.After(start) {
		start = open
	}
	if clos.Before(end) {
		end = clos
	}
	if !end.After(start) {
		end = start
	}
	return start, end, true
}

// nightOverlap sums the parts of [start, end) that fall into the night
// window on any of the covered dates.
func nightOverlap(start, end time.Time, nightStart, nightEnd string) time.Duration {
	if nightStart == "" || nightEnd == "" {
		return 0
	}

	var night time.Duration
	for d := utils.TruncateToDay(start).AddDate(0, 0, -1); !d.After(utils.TruncateToDay(end)); d = d.AddDate(0, 0, 1) {
		ns, err := utils.ParseTimeOnDate(d, nightStart)
		if err != nil {
			return 0
		}
		ne, err := utils.ParseTimeOnDate(d, nightEnd)
		if err != nil {
			return 0
		}
		if !ne.After(ns) {
			// Window wraps midnight, e.g. 22:00-06:00.
			ne = ne.Add(24 * time.Hour)
		}
		night += intervalOverlap(start, end, ns, ne)
	}
	return night
}

func intervalOverlap(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	s := aStart
	if bStart.After(s) {
		s = bStart
	}
	e := aEnd
	if bEnd.Before(e) {
		e = bEnd
	}
	if !e.After(s) {
		return 0
	}
	return e.Sub(s)
}

func roundHours(d time.Duration, alg string) time.Duration {
	switch alg {
	case config.RoundHalfAnHour:
		return d.Round(30 * time.Minute)
	case config.RoundTrunc:
		return d.Truncate(time.Hour)
	default:
		return d
	}
}
