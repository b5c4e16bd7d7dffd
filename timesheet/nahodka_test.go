package timesheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNahodkaDayCap(t *testing.T) {
	policy := &nahodkaPolicy{}

	// One 14-hour day against the default 12-hour MAIN cap.
	in := testInput([]Entry{workedEntry(2, 100, 10, 4)}, 12)

	main, additional, err := policy.Divide(in)
	require.NoError(t, err)

	require.Len(t, main, 1)
	assert.Equal(t, 12.0, main[0].Total())
	require.Len(t, additional, 1)
	assert.Equal(t, 2.0, additional[0].Total())
	// The excess comes off the night hours first.
	assert.Equal(t, 2.0, additional[0].NightHours)
	assert.Equal(t, 2.0, main[0].NightHours)
	assert.Equal(t, 10.0, main[0].DayHours)
}

func TestNahodkaDayCapLeavesDayOffsAlone(t *testing.T) {
	policy := &nahodkaPolicy{}

	in := testInput([]Entry{vacationEntry(2, 14)}, 0)

	main, additional, err := policy.Divide(in)
	require.NoError(t, err)
	require.Len(t, main, 1)
	assert.Equal(t, 14.0, main[0].Total())
	assert.Empty(t, additional)
}

func TestNahodkaWeeklyRest(t *testing.T) {
	policy := &nahodkaPolicy{}

	// Seven straight 8-hour days; the rule needs two adjacent free days in
	// every 7-day window, so the tail of the week spills over.
	var fact []Entry
	for n := 1; n <= 7; n++ {
		fact = append(fact, workedEntry(n, 100, 8, 0))
	}
	in := testInput(fact, 40)

	main, additional, err := policy.Divide(in)
	require.NoError(t, err)

	var mainWorked int
	for i := range main {
		if main[i].Total() > 0 {
			mainWorked++
		}
	}
	assert.Equal(t, 5, mainWorked)
	assert.Zero(t, main[5].Total())
	assert.Zero(t, main[6].Total())

	require.Len(t, additional, 2)
	assert.Equal(t, 16.0, totalHours(additional))
	assert.Equal(t, totalHours(in.Fact), totalHours(main)+totalHours(additional))
}

func TestNahodkaOvertimeMovesFromTheTail(t *testing.T) {
	policy := &nahodkaPolicy{}

	fact := []Entry{
		workedEntry(2, 100, 8, 0),
		workedEntry(3, 100, 8, 0),
		workedEntry(5, 100, 8, 0),
	}
	in := testInput(fact, 20)

	main, additional, err := policy.Divide(in)
	require.NoError(t, err)

	assert.Equal(t, 20.0, totalHours(main))
	require.Len(t, additional, 1)
	assert.Equal(t, 4.0, additional[0].Total())
	assert.Equal(t, day(5), additional[0].Dt)
	assert.Equal(t, 4.0, main[2].Total())
}

func TestNahodkaHoursAreConserved(t *testing.T) {
	policy := &nahodkaPolicy{}

	var fact []Entry
	for n := 1; n <= 20; n++ {
		fact = append(fact, workedEntry(n, 100, 9, 2))
	}
	in := testInput(fact, 120)

	main, additional, err := policy.Divide(in)
	require.NoError(t, err)
	assert.InDelta(t, totalHours(in.Fact), totalHours(main)+totalHours(additional), 1e-9)
}

func TestSplitHours(t *testing.T) {
	tests := []struct {
		name      string
		entry     Entry
		excess    float64
		wantDay   float64
		wantNight float64
		keptDay   float64
		keptNight float64
	}{
		{
			name:      "Night covers the excess",
			entry:     Entry{DayHours: 8, NightHours: 4},
			excess:    3,
			wantNight: 3,
			keptDay:   8,
			keptNight: 1,
		},
		{
			name:      "Excess spills into day hours",
			entry:     Entry{DayHours: 8, NightHours: 2},
			excess:    5,
			wantDay:   3,
			wantNight: 2,
			keptDay:   5,
		},
		{
			name:      "Excess larger than the entry",
			entry:     Entry{DayHours: 3, NightHours: 1},
			excess:    10,
			wantDay:   3,
			wantNight: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.entry
			gotDay, gotNight := splitHours(&e, tt.excess)
			assert.Equal(t, tt.wantDay, gotDay)
			assert.Equal(t, tt.wantNight, gotNight)
			assert.Equal(t, tt.keptDay, e.DayHours)
			assert.Equal(t, tt.keptNight, e.NightHours)
		})
	}
}

func TestHasContiguousRest(t *testing.T) {
	window := monthGrid()[:7]

	workedAt := func(days ...int) map[string]int {
		m := map[string]int{}
		for _, n := range days {
			m[day(n).Format("2006-01-02")] = n
		}
		return m
	}

	assert.True(t, hasContiguousRest(window, workedAt()))
	assert.True(t, hasContiguousRest(window, workedAt(1, 2, 3, 4, 5)))
	assert.True(t, hasContiguousRest(window, workedAt(1, 4, 7)))
	assert.False(t, hasContiguousRest(window, workedAt(1, 3, 5, 7)))
	assert.False(t, hasContiguousRest(window, workedAt(2, 4, 6)))
}
