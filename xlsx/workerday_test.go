package xlsx

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wfm-core/errs"
	"wfm-core/model"
	"wfm-core/utils"
)

func exportRow(employeeID int64, dt time.Time, startClock, endClock string) model.WorkerDay {
	start, _ := utils.ParseTimeOnDate(dt, startClock)
	end, _ := utils.ParseTimeOnDate(dt, endClock)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return model.WorkerDay{
		EmployeeID:    &employeeID,
		Dt:            dt,
		Type:          model.DayTypeWorkday,
		ShopID:        utils.Ptr(int64(100)),
		DttmWorkStart: &start,
		DttmWorkEnd:   &end,
	}
}

func TestWorkerDayRoundTrip(t *testing.T) {
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	shift := exportRow(5, monday, "09:00", "18:00")
	shift.Details = []model.WorkerDayDetail{
		{WorkTypeID: 7, WorkPart: decimal.RequireFromString("0.75")},
		{WorkTypeID: 8, WorkPart: decimal.RequireFromString("0.25")},
	}
	overnight := exportRow(5, monday.AddDate(0, 0, 1), "22:00", "06:00")
	holiday := model.WorkerDay{EmployeeID: utils.Ptr(int64(6)), Dt: monday, Type: model.DayTypeHoliday}

	var buf bytes.Buffer
	require.NoError(t, ExportWorkerDays(&buf, []model.WorkerDay{shift, overnight, holiday}))

	inputs, err := ImportWorkerDays(&buf, true, false)
	require.NoError(t, err)
	require.Len(t, inputs, 3)

	first := inputs[0]
	require.NotNil(t, first.EmployeeID)
	assert.Equal(t, int64(5), *first.EmployeeID)
	assert.Equal(t, monday, first.Dt)
	assert.Equal(t, model.DayTypeWorkday, first.Type)
	require.NotNil(t, first.ShopID)
	assert.Equal(t, int64(100), *first.ShopID)
	require.NotNil(t, first.DttmWorkStart)
	assert.Equal(t, "09:00", first.DttmWorkStart.Format("15:04"))
	require.NotNil(t, first.DttmWorkEnd)
	assert.Equal(t, "18:00", first.DttmWorkEnd.Format("15:04"))
	assert.True(t, first.IsFact)
	assert.False(t, first.IsApproved)

	require.Len(t, first.Details, 2)
	assert.Equal(t, int64(7), first.Details[0].WorkTypeID)
	assert.True(t, first.Details[0].WorkPart.Equal(decimal.RequireFromString("0.75")))
	assert.Equal(t, int64(8), first.Details[1].WorkTypeID)

	second := inputs[1]
	require.NotNil(t, second.DttmWorkEnd)
	// The overnight end rolls to the next calendar day.
	assert.Equal(t, second.Dt.AddDate(0, 0, 1).Day(), second.DttmWorkEnd.Day())
	assert.True(t, second.DttmWorkEnd.After(*second.DttmWorkStart))

	third := inputs[2]
	assert.Equal(t, model.DayTypeHoliday, third.Type)
	assert.Nil(t, third.ShopID)
	assert.Nil(t, third.DttmWorkStart)
	assert.Nil(t, third.DttmWorkEnd)
	assert.Empty(t, third.Details)
}

func TestImportWorkerDaysValidation(t *testing.T) {
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	t.Run("Not a workbook", func(t *testing.T) {
		_, err := ImportWorkerDays(bytes.NewBufferString("not an xlsx"), false, false)
		assert.ErrorIs(t, err, errs.ErrInvalidInput)
	})

	t.Run("Header only yields nothing", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, ExportWorkerDays(&buf, nil))

		inputs, err := ImportWorkerDays(&buf, false, false)
		require.NoError(t, err)
		assert.Empty(t, inputs)
	})

	t.Run("Missing work part defaults to one", func(t *testing.T) {
		row := exportRow(5, monday, "09:00", "18:00")
		row.Details = []model.WorkerDayDetail{{WorkTypeID: 7, WorkPart: decimal.NewFromInt(1)}}

		var buf bytes.Buffer
		require.NoError(t, ExportWorkerDays(&buf, []model.WorkerDay{row}))

		inputs, err := ImportWorkerDays(&buf, false, true)
		require.NoError(t, err)
		require.Len(t, inputs, 1)
		require.Len(t, inputs[0].Details, 1)
		assert.True(t, inputs[0].Details[0].WorkPart.Equal(decimal.NewFromInt(1)))
		assert.True(t, inputs[0].IsApproved)
	})
}
