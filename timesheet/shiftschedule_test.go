package timesheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wfm-core/model"
	"wfm-core/utils"
)

func scheduleDay(n int, dayType string, hours float64) model.ShiftScheduleDay {
	return model.ShiftScheduleDay{Dt: day(n), DayType: dayType, WorkHours: hours}
}

func withSchedule(in *Input, days ...model.ShiftScheduleDay) *Input {
	in.Schedule = map[string]model.ShiftScheduleDay{}
	for _, d := range days {
		in.Schedule[d.Dt.Format(utils.DateLayout)] = d
	}
	return in
}

func TestShiftScheduleWorkdaySplit(t *testing.T) {
	policy := &shiftSchedulePolicy{}

	in := withSchedule(
		testInput([]Entry{workedEntry(2, 100, 10, 0)}, 0),
		scheduleDay(2, model.DayTypeWorkday, 8),
	)

	main, additional, err := policy.Divide(in)
	require.NoError(t, err)

	require.Len(t, main, 1)
	assert.Equal(t, 8.0, main[0].Total())
	require.Len(t, additional, 1)
	assert.Equal(t, 2.0, additional[0].Total())
}

func TestShiftScheduleFactWithinSchedule(t *testing.T) {
	policy := &shiftSchedulePolicy{}

	in := withSchedule(
		testInput([]Entry{workedEntry(2, 100, 7, 0)}, 0),
		scheduleDay(2, model.DayTypeWorkday, 8),
	)

	main, additional, err := policy.Divide(in)
	require.NoError(t, err)
	require.Len(t, main, 1)
	assert.Equal(t, 7.0, main[0].Total())
	assert.Empty(t, additional)
}

func TestShiftScheduleWorkOnHoliday(t *testing.T) {
	policy := &shiftSchedulePolicy{}

	tests := []struct {
		name string
		in   *Input
	}{
		{
			name: "Scheduled holiday",
			in: withSchedule(
				testInput([]Entry{workedEntry(2, 100, 6, 0)}, 0),
				scheduleDay(2, model.DayTypeHoliday, 0),
			),
		},
		{
			name: "Unscheduled day",
			in:   withSchedule(testInput([]Entry{workedEntry(2, 100, 6, 0)}, 0)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			main, additional, err := policy.Divide(tt.in)
			require.NoError(t, err)

			require.Len(t, main, 1)
			assert.Equal(t, model.DayTypeHoliday, main[0].DayType)
			assert.Zero(t, main[0].Total())

			require.Len(t, additional, 1)
			assert.Equal(t, 6.0, additional[0].Total())
		})
	}
}

func TestShiftScheduleVacationDay(t *testing.T) {
	policy := &shiftSchedulePolicy{}

	in := withSchedule(
		testInput([]Entry{
			vacationEntry(2, 6),
			workedEntry(2, 100, 4, 0),
		}, 0),
		scheduleDay(2, model.DayTypeWorkday, 8),
	)

	main, additional, err := policy.Divide(in)
	require.NoError(t, err)

	require.Len(t, main, 1)
	assert.Equal(t, model.DayTypeVacation, main[0].DayType)
	assert.Equal(t, 6.0, main[0].Total())

	// Vacation allows a workday as additional.
	require.Len(t, additional, 1)
	assert.Equal(t, model.DayTypeWorkday, additional[0].DayType)
	assert.Equal(t, 4.0, additional[0].Total())
}

func TestShiftScheduleMissedScheduledDay(t *testing.T) {
	policy := &shiftSchedulePolicy{}

	t.Run("Past day becomes an absence", func(t *testing.T) {
		in := withSchedule(
			testInput(nil, 0),
			scheduleDay(2, model.DayTypeWorkday, 8),
		)

		main, additional, err := policy.Divide(in)
		require.NoError(t, err)

		require.Len(t, main, 1)
		assert.Equal(t, model.DayTypeAbsence, main[0].DayType)
		assert.Zero(t, main[0].Total())
		require.NotNil(t, main[0].ShopID)
		assert.Equal(t, int64(100), *main[0].ShopID)
		assert.Empty(t, additional)
	})

	t.Run("Future day stays empty", func(t *testing.T) {
		in := withSchedule(
			testInput(nil, 0),
			scheduleDay(2, model.DayTypeWorkday, 8),
		)
		in.Today = day(1)

		main, additional, err := policy.Divide(in)
		require.NoError(t, err)
		assert.Empty(t, main)
		assert.Empty(t, additional)
	})
}

func TestShiftScheduleBorrowsFromADonor(t *testing.T) {
	policy := &shiftSchedulePolicy{}

	// Day 2 overran its schedule by four hours; day 3 was scheduled but has
	// no fact, so the surplus covers it.
	in := withSchedule(
		testInput([]Entry{workedEntry(2, 100, 12, 0)}, 0),
		scheduleDay(2, model.DayTypeWorkday, 8),
		scheduleDay(3, model.DayTypeWorkday, 8),
	)

	main, additional, err := policy.Divide(in)
	require.NoError(t, err)

	require.Len(t, main, 2)
	assert.Equal(t, 8.0, main[0].Total())
	assert.Equal(t, day(3), main[1].Dt)
	assert.Equal(t, model.DayTypeWorkday, main[1].DayType)
	assert.Equal(t, 4.0, main[1].Total())

	require.Len(t, additional, 1)
	assert.Equal(t, 4.0, additional[0].Total())
}
