package core

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wfm-core/model"
)

func TestWorkHoursMethodDefaults(t *testing.T) {
	registry := NewDayTypeRegistry([]model.DayType{
		{Code: "W"},
		{Code: "H", IsDayoff: true},
		{Code: "V", IsDayoff: true, GetWorkHoursMethod: model.WorkHoursMonthAvgSAWH},
	})

	assert.Equal(t, model.WorkHoursFromShift, registry.WorkHoursMethod("W"))
	assert.Equal(t, model.WorkHoursNone, registry.WorkHoursMethod("H"))
	assert.Equal(t, model.WorkHoursMonthAvgSAWH, registry.WorkHoursMethod("V"))
	assert.Equal(t, model.WorkHoursNone, registry.WorkHoursMethod("unknown"))
}

func TestUsableIn(t *testing.T) {
	registry := NewDayTypeRegistry([]model.DayType{
		{Code: "W", UseInPlan: true, UseInFact: true},
		{Code: "A", UseInPlan: false, UseInFact: true},
		{Code: "E", UseInPlan: true, UseInFact: false},
	})

	tests := []struct {
		name   string
		code   string
		isFact bool
		usable bool
	}{
		{name: "Workday in plan", code: "W", isFact: false, usable: true},
		{name: "Workday in fact", code: "W", isFact: true, usable: true},
		{name: "Absence in plan", code: "A", isFact: false, usable: false},
		{name: "Absence in fact", code: "A", isFact: true, usable: true},
		{name: "Empty in fact", code: "E", isFact: true, usable: false},
		{name: "Unknown code", code: "X", isFact: false, usable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.usable, registry.UsableIn(tt.code, tt.isFact))
		})
	}
}

func TestMutuallyAdditional(t *testing.T) {
	registry := NewDayTypeRegistry([]model.DayType{
		{Code: "W", AllowedAdditionalTypes: model.StringArray{"Q"}},
		{Code: "Q", AllowedAdditionalTypes: model.StringArray{"W"}},
		{Code: "V", AllowedAdditionalTypes: model.StringArray{"W"}},
	})

	assert.True(t, registry.MutuallyAdditional([]string{"W"}))
	assert.True(t, registry.MutuallyAdditional([]string{"W", "Q"}))
	// V allows W, but W does not allow V back.
	assert.False(t, registry.MutuallyAdditional([]string{"W", "V"}))
	assert.False(t, registry.MutuallyAdditional([]string{"W", "Q", "V"}))
}

func TestLoadDayTypeSeed(t *testing.T) {
	seed, err := LoadDayTypeSeed(filepath.Join("..", "config", "day_types.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, seed)

	registry := NewDayTypeRegistry(seed)

	workday, ok := registry.Lookup(model.DayTypeWorkday)
	require.True(t, ok)
	assert.True(t, workday.IsWorkHours)
	assert.True(t, workday.SubtractBreaks)
	assert.Equal(t, model.WorkHoursFromShift, workday.GetWorkHoursMethod)

	assert.True(t, registry.IsDayOff(model.DayTypeVacation))
	assert.True(t, registry.AllowedAdditional(model.DayTypeVacation).Contains(model.DayTypeWorkday))
	assert.False(t, registry.UsableIn(model.DayTypeAbsence, false))
	assert.True(t, registry.UsableIn(model.DayTypeAbsence, true))
}

func TestLoadDayTypeSeedMissingFile(t *testing.T) {
	_, err := LoadDayTypeSeed("no_such_file.yaml")
	assert.Error(t, err)
}
