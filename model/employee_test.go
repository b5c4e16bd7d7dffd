package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wfm-core/utils"
)

var (
	hired = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	dt    = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
)

func TestEmploymentActiveOn(t *testing.T) {
	fired := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		emp    Employment
		d      time.Time
		active bool
	}{
		{
			name:   "Inside the employment span",
			emp:    Employment{DtHired: hired, NormWorkHours: 100},
			d:      dt,
			active: true,
		},
		{
			name:   "Hire date itself",
			emp:    Employment{DtHired: hired, NormWorkHours: 100},
			d:      hired,
			active: true,
		},
		{
			name:   "Before hiring",
			emp:    Employment{DtHired: hired, NormWorkHours: 100},
			d:      hired.AddDate(0, 0, -1),
			active: false,
		},
		{
			name:   "Fire date itself",
			emp:    Employment{DtHired: hired, DtFired: &fired, NormWorkHours: 100},
			d:      fired,
			active: true,
		},
		{
			name:   "After firing",
			emp:    Employment{DtHired: hired, DtFired: &fired, NormWorkHours: 100},
			d:      fired.AddDate(0, 0, 1),
			active: false,
		},
		{
			name:   "Zero norm share",
			emp:    Employment{DtHired: hired, NormWorkHours: 0},
			d:      dt,
			active: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.active, tt.emp.ActiveOn(tt.d))
		})
	}
}

func TestPickEmployment(t *testing.T) {
	workType := int64(7)

	tests := []struct {
		name        string
		employments []Employment
		shopID      int64
		workTypeID  *int64
		expectedID  int64
		none        bool
	}{
		{
			name: "Visible wins over hidden",
			employments: []Employment{
				{ID: 1, DtHired: hired, NormWorkHours: 100, IsVisible: false},
				{ID: 2, DtHired: hired, NormWorkHours: 50, IsVisible: true},
			},
			shopID:     100,
			expectedID: 2,
		},
		{
			name: "Higher norm share wins",
			employments: []Employment{
				{ID: 1, DtHired: hired, NormWorkHours: 50, IsVisible: true},
				{ID: 2, DtHired: hired, NormWorkHours: 100, IsVisible: true},
			},
			shopID:     100,
			expectedID: 2,
		},
		{
			name: "Matching shop breaks the tie",
			employments: []Employment{
				{ID: 1, ShopID: 200, DtHired: hired, NormWorkHours: 100, IsVisible: true},
				{ID: 2, ShopID: 100, DtHired: hired, NormWorkHours: 100, IsVisible: true},
			},
			shopID:     100,
			expectedID: 2,
		},
		{
			name: "Matching work type breaks the tie",
			employments: []Employment{
				{ID: 1, ShopID: 100, DtHired: hired, NormWorkHours: 100, IsVisible: true},
				{
					ID: 2, ShopID: 100, DtHired: hired, NormWorkHours: 100, IsVisible: true,
					WorkTypes: []EmploymentWorkType{{WorkTypeID: workType, Priority: 1}},
				},
			},
			shopID:     100,
			workTypeID: &workType,
			expectedID: 2,
		},
		{
			name: "Work-type priority breaks the final tie",
			employments: []Employment{
				{
					ID: 1, ShopID: 100, DtHired: hired, NormWorkHours: 100, IsVisible: true,
					WorkTypes: []EmploymentWorkType{{WorkTypeID: workType, Priority: 1}},
				},
				{
					ID: 2, ShopID: 100, DtHired: hired, NormWorkHours: 100, IsVisible: true,
					WorkTypes: []EmploymentWorkType{{WorkTypeID: workType, Priority: 5}},
				},
			},
			shopID:     100,
			workTypeID: &workType,
			expectedID: 2,
		},
		{
			name: "Inactive employments are skipped",
			employments: []Employment{
				{ID: 1, DtHired: dt.AddDate(0, 1, 0), NormWorkHours: 100, IsVisible: true},
				{ID: 2, DtHired: hired, NormWorkHours: 25, IsVisible: true},
			},
			shopID:     100,
			expectedID: 2,
		},
		{
			name: "No active employment",
			employments: []Employment{
				{ID: 1, DtHired: dt.AddDate(0, 1, 0), NormWorkHours: 100, IsVisible: true},
			},
			shopID: 100,
			none:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			picked := PickEmployment(tt.employments, dt, tt.shopID, tt.workTypeID)
			if tt.none {
				assert.Nil(t, picked)
				return
			}
			require.NotNil(t, picked)
			assert.Equal(t, tt.expectedID, picked.ID)
		})
	}
}

func shiftRow(startClock, endClock string) *WorkerDay {
	start, _ := utils.ParseTimeOnDate(dt, startClock)
	end, _ := utils.ParseTimeOnDate(dt, endClock)
	return &WorkerDay{Dt: dt, Type: DayTypeWorkday, DttmWorkStart: &start, DttmWorkEnd: &end}
}

func TestWorkerDayOverlaps(t *testing.T) {
	tests := []struct {
		name     string
		a, b     *WorkerDay
		overlaps bool
	}{
		{name: "Disjoint", a: shiftRow("09:00", "13:00"), b: shiftRow("14:00", "18:00"), overlaps: false},
		{name: "Touching endpoints", a: shiftRow("09:00", "13:00"), b: shiftRow("13:00", "18:00"), overlaps: false},
		{name: "Partial overlap", a: shiftRow("09:00", "15:00"), b: shiftRow("14:00", "18:00"), overlaps: true},
		{name: "Contained", a: shiftRow("09:00", "18:00"), b: shiftRow("11:00", "12:00"), overlaps: true},
		{name: "Day-off never overlaps", a: &WorkerDay{Dt: dt, Type: DayTypeHoliday}, b: shiftRow("09:00", "18:00"), overlaps: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.overlaps, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.overlaps, tt.b.Overlaps(tt.a))
		})
	}
}

func TestWorkerDaySnapshot(t *testing.T) {
	a := shiftRow("09:00", "18:00")
	a.ShopID = utils.Ptr(int64(100))

	b := shiftRow("09:00", "18:00")
	b.ShopID = utils.Ptr(int64(100))

	assert.Equal(t, a.Snapshot(), b.Snapshot())

	// Identifiers and audit fields do not affect the snapshot.
	b.ID = 42
	b.LastEditedByID = utils.Ptr(int64(9))
	b.IsApproved = true
	assert.Equal(t, a.Snapshot(), b.Snapshot())

	b.DttmWorkEnd = utils.Ptr(b.DttmWorkEnd.Add(time.Hour))
	assert.NotEqual(t, a.Snapshot(), b.Snapshot())
}

func TestWorkerDayIsProtected(t *testing.T) {
	assert.True(t, (&WorkerDay{IsBlocked: true}).IsProtected(false))
	assert.False(t, (&WorkerDay{Code: "1C-1"}).IsProtected(false))
	assert.True(t, (&WorkerDay{Code: "1C-1"}).IsProtected(true))
	assert.False(t, (&WorkerDay{}).IsProtected(true))
}
