package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wfm-core/config"
	"wfm-core/model"
	"wfm-core/utils"
)

func testRegistry() *DayTypeRegistry {
	return NewDayTypeRegistry([]model.DayType{
		{
			Code:               model.DayTypeWorkday,
			IsWorkHours:        true,
			SubtractBreaks:     true,
			GetWorkHoursMethod: model.WorkHoursFromShift,
			UseInPlan:          true,
			UseInFact:          true,
		},
		{
			Code:               model.DayTypeHoliday,
			IsDayoff:           true,
			GetWorkHoursMethod: model.WorkHoursNone,
			UseInPlan:          true,
			UseInFact:          true,
		},
		{
			Code:                   model.DayTypeVacation,
			IsDayoff:               true,
			IsReduceNorm:           true,
			GetWorkHoursMethod:     model.WorkHoursMonthAvgSAWH,
			AllowedAdditionalTypes: model.StringArray{model.DayTypeWorkday},
			UseInPlan:              true,
			UseInFact:              true,
		},
		{
			Code:               model.DayTypeQualification,
			GetWorkHoursMethod: model.WorkHoursManual,
			UseInPlan:          true,
			UseInFact:          true,
		},
		{
			Code:               model.DayTypeBusinessTrip,
			GetWorkHoursMethod: model.WorkHoursManualOrSAWH,
			UseInPlan:          true,
			UseInFact:          true,
		},
	})
}

// Monday.
var testDt = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func workday(dt time.Time, startClock, endClock string) *model.WorkerDay {
	start, err := utils.ParseTimeOnDate(dt, startClock)
	if err != nil {
		panic(err)
	}
	end, err := utils.ParseTimeOnDate(dt, endClock)
	if err != nil {
		panic(err)
	}
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return &model.WorkerDay{
		Dt:            dt,
		Type:          model.DayTypeWorkday,
		DttmWorkStart: &start,
		DttmWorkEnd:   &end,
	}
}

func TestCalcWorkHoursPlainShift(t *testing.T) {
	res, err := CalcWorkHours(WorkHoursInput{
		Day:      workday(testDt, "09:00", "18:00"),
		Registry: testRegistry(),
		Cfg:      config.DefaultNetworkConfig(),
	})
	require.NoError(t, err)

	assert.Equal(t, 9*time.Hour, res.WorkHours)
	assert.Equal(t, 9*time.Hour, res.DayHours)
	assert.Equal(t, time.Duration(0), res.NightHours)
}

func TestCalcWorkHoursNightSplit(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		night time.Duration
	}{
		{name: "No night part", start: "09:00", end: "18:00", night: 0},
		{name: "Evening into night", start: "18:00", end: "02:00", night: 4 * time.Hour},
		{name: "Whole night window", start: "22:00", end: "06:00", night: 8 * time.Hour},
		{name: "Morning tail", start: "04:00", end: "12:00", night: 2 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := CalcWorkHours(WorkHoursInput{
				Day:      workday(testDt, tt.start, tt.end),
				Registry: testRegistry(),
				Cfg:      config.DefaultNetworkConfig(),
			})
			require.NoError(t, err)

			assert.Equal(t, 8*time.Hour, res.WorkHours)
			assert.Equal(t, tt.night, res.NightHours)
			assert.Equal(t, 8*time.Hour-tt.night, res.DayHours)
		})
	}
}

func TestCalcWorkHoursSubtractsBreaks(t *testing.T) {
	res, err := CalcWorkHours(WorkHoursInput{
		Day:      workday(testDt, "18:00", "02:00"),
		Registry: testRegistry(),
		Cfg:      config.DefaultNetworkConfig(),
		Breaks: model.BreakTriples{
			{MinMinutes: 0, MaxMinutes: 360, BreakMinutes: []int{15}},
			{MinMinutes: 361, MaxMinutes: 720, BreakMinutes: []int{30, 15}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 7*time.Hour+15*time.Minute, res.WorkHours)
	assert.Equal(t, 4*time.Hour, res.NightHours)
	assert.Equal(t, 3*time.Hour+15*time.Minute, res.DayHours)
}

func TestCalcWorkHoursRounding(t *testing.T) {
	tests := []struct {
		name     string
		alg      string
		expected time.Duration
	}{
		{name: "None", alg: config.RoundNone, expected: 8*time.Hour + 37*time.Minute},
		{name: "Half an hour", alg: config.RoundHalfAnHour, expected: 8*time.Hour + 30*time.Minute},
		{name: "Trunc", alg: config.RoundTrunc, expected: 8 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultNetworkConfig()
			cfg.RoundWorkHoursAlg = tt.alg

			res, err := CalcWorkHours(WorkHoursInput{
				Day:      workday(testDt, "09:00", "17:37"),
				Registry: testRegistry(),
				Cfg:      cfg,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, res.WorkHours)
		})
	}
}

func TestCalcWorkHoursCropByShopSchedule(t *testing.T) {
	cfg := config.DefaultNetworkConfig()
	cfg.CropWorkHoursByShopSchedule = true

	shop := &model.Shop{
		OpenTimes:  model.StringMap{"1": "10:00"},
		CloseTimes: model.StringMap{"1": "20:00"},
	}

	res, err := CalcWorkHours(WorkHoursInput{
		Day:      workday(testDt, "08:00", "22:00"),
		Registry: testRegistry(),
		Cfg:      cfg,
		Shop:     shop,
	})
	require.NoError(t, err)

	assert.Equal(t, 10*time.Hour, res.WorkHours)
	require.NotNil(t, res.StartTabel)
	require.NotNil(t, res.EndTabel)
	assert.Equal(t, "10:00", res.StartTabel.Format("15:04"))
	assert.Equal(t, "20:00", res.EndTabel.Format("15:04"))
}

func TestCalcWorkHoursCropSkipsUnscheduledWeekday(t *testing.T) {
	cfg := config.DefaultNetworkConfig()
	cfg.CropWorkHoursByShopSchedule = true

	// Schedule exists only for Sunday, the shift is on Monday.
	shop := &model.Shop{
		OpenTimes:  model.StringMap{"0": "10:00"},
		CloseTimes: model.StringMap{"0": "20:00"},
	}

	res, err := CalcWorkHours(WorkHoursInput{
		Day:      workday(testDt, "08:00", "22:00"),
		Registry: testRegistry(),
		Cfg:      cfg,
		Shop:     shop,
	})
	require.NoError(t, err)

	assert.Equal(t, 14*time.Hour, res.WorkHours)
	assert.Nil(t, res.StartTabel)
	assert.Nil(t, res.EndTabel)
}

func TestCalcWorkHoursCapsFactByApprovedPlan(t *testing.T) {
	cfg := config.DefaultNetworkConfig()
	cfg.OnlyFactHoursThatInApprovedPlan = true

	fact := workday(testDt, "08:00", "21:00")
	fact.IsFact = true
	plan := workday(testDt, "09:00", "20:00")

	res, err := CalcWorkHours(WorkHoursInput{
		Day:         fact,
		Registry:    testRegistry(),
		Cfg:         cfg,
		ClosestPlan: plan,
	})
	require.NoError(t, err)
	assert.Equal(t, 11*time.Hour, res.WorkHours)
}

func TestCalcWorkHoursPlanCapIgnoredWithoutLinkedPlan(t *testing.T) {
	cfg := config.DefaultNetworkConfig()
	cfg.OnlyFactHoursThatInApprovedPlan = true

	fact := workday(testDt, "08:00", "21:00")
	fact.IsFact = true

	res, err := CalcWorkHours(WorkHoursInput{
		Day:      fact,
		Registry: testRegistry(),
		Cfg:      cfg,
	})
	require.NoError(t, err)
	assert.Equal(t, 13*time.Hour, res.WorkHours)
}

func TestCalcWorkHoursInvalidShifts(t *testing.T) {
	cfg := config.DefaultNetworkConfig()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		day  *model.WorkerDay
	}{
		{
			name: "Missing times",
			day:  &model.WorkerDay{Dt: testDt, Type: model.DayTypeWorkday},
		},
		{
			name: "End before start",
			day: &model.WorkerDay{
				Dt:            testDt,
				Type:          model.DayTypeWorkday,
				DttmWorkStart: utils.Ptr(start),
				DttmWorkEnd:   utils.Ptr(start.Add(-time.Hour)),
			},
		},
		{
			name: "Exceeds max shift",
			day: &model.WorkerDay{
				Dt:            testDt,
				Type:          model.DayTypeWorkday,
				DttmWorkStart: utils.Ptr(start),
				DttmWorkEnd:   utils.Ptr(start.Add(25 * time.Hour)),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CalcWorkHours(WorkHoursInput{Day: tt.day, Registry: testRegistry(), Cfg: cfg})
			assert.ErrorIs(t, err, ErrInvalidShift)
		})
	}
}

func TestCalcWorkHoursDayOffTypes(t *testing.T) {
	cfg := config.DefaultNetworkConfig()

	tests := []struct {
		name     string
		day      *model.WorkerDay
		sawh     float64
		sawhDays int
		expected time.Duration
	}{
		{
			name:     "Holiday has no hours",
			day:      &model.WorkerDay{Dt: testDt, Type: model.DayTypeHoliday},
			expected: 0,
		},
		{
			name:     "Vacation attributes SAWH average",
			day:      &model.WorkerDay{Dt: testDt, Type: model.DayTypeVacation},
			sawh:     168,
			sawhDays: 28,
			expected: 6 * time.Hour,
		},
		{
			name:     "Vacation without SAWH context",
			day:      &model.WorkerDay{Dt: testDt, Type: model.DayTypeVacation},
			expected: 0,
		},
		{
			name:     "Manual hours taken as entered",
			day:      &model.WorkerDay{Dt: testDt, Type: model.DayTypeQualification, WorkHours: 5 * time.Hour},
			expected: 5 * time.Hour,
		},
		{
			name:     "Manual-or-SAWH prefers manual",
			day:      &model.WorkerDay{Dt: testDt, Type: model.DayTypeBusinessTrip, WorkHours: 7 * time.Hour},
			sawh:     168,
			sawhDays: 28,
			expected: 7 * time.Hour,
		},
		{
			name:     "Manual-or-SAWH falls back to SAWH",
			day:      &model.WorkerDay{Dt: testDt, Type: model.DayTypeBusinessTrip},
			sawh:     168,
			sawhDays: 28,
			expected: 6 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := CalcWorkHours(WorkHoursInput{
				Day:            tt.day,
				Registry:       testRegistry(),
				Cfg:            cfg,
				MonthSAWHHours: tt.sawh,
				SAWHDayCount:   tt.sawhDays,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, res.WorkHours)
			assert.Equal(t, time.Duration(0), res.NightHours)
		})
	}
}

func TestCalcWorkHoursIdempotent(t *testing.T) {
	cfg := config.DefaultNetworkConfig()
	cfg.RoundWorkHoursAlg = config.RoundHalfAnHour

	day := workday(testDt, "09:12", "18:40")
	first, err := CalcWorkHours(WorkHoursInput{Day: day, Registry: testRegistry(), Cfg: cfg})
	require.NoError(t, err)

	day.WorkHours = first.WorkHours
	day.DayHours = first.DayHours
	day.NightHours = first.NightHours

	second, err := CalcWorkHours(WorkHoursInput{Day: day, Registry: testRegistry(), Cfg: cfg})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBreakMinutesFor(t *testing.T) {
	breaks := model.BreakTriples{
		{MinMinutes: 0, MaxMinutes: 360, BreakMinutes: []int{15}},
		{MinMinutes: 361, MaxMinutes: 720, BreakMinutes: []int{30, 15}},
	}

	assert.Equal(t, 15*time.Minute, BreakMinutesFor(breaks, 4*time.Hour))
	assert.Equal(t, 45*time.Minute, BreakMinutesFor(breaks, 9*time.Hour))
	assert.Equal(t, time.Duration(0), BreakMinutesFor(breaks, 13*time.Hour))
	assert.Equal(t, time.Duration(0), BreakMinutesFor(nil, 9*time.Hour))
}

func TestResolveBreaks(t *testing.T) {
	network := model.BreakTriples{{MinMinutes: 0, MaxMinutes: 720, BreakMinutes: []int{30}}}
	shopBreaks := model.BreakTriples{{MinMinutes: 0, MaxMinutes: 720, BreakMinutes: []int{45}}}
	positionBreaks := model.BreakTriples{{MinMinutes: 0, MaxMinutes: 720, BreakMinutes: []int{60}}}

	shop := &model.Shop{Breaks: shopBreaks}
	position := &model.Position{Breaks: positionBreaks}

	assert.Equal(t, positionBreaks, ResolveBreaks(position, shop, network))
	assert.Equal(t, shopBreaks, ResolveBreaks(nil, shop, network))
	assert.Equal(t, network, ResolveBreaks(nil, &model.Shop{}, network))
	assert.Equal(t, network, ResolveBreaks(nil, nil, network))
}
