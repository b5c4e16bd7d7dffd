package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wfm-core/model"
)

func clockEvent(shopID int64, kind string, dttm time.Time) model.AttendanceRecord {
	return model.AttendanceRecord{ShopID: shopID, Type: kind, Dttm: dttm}
}

func TestPairAttendance(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	at := func(clock string) time.Time {
		parsed, err := time.Parse("2006-01-02 15:04", day.Format("2006-01-02")+" "+clock)
		if err != nil {
			t.Fatal(err)
		}
		return parsed
	}
	window := 24 * time.Hour

	t.Run("Simple coming and leaving", func(t *testing.T) {
		pairs := pairAttendance([]model.AttendanceRecord{
			clockEvent(100, model.AttendanceComing, at("08:55")),
			clockEvent(100, model.AttendanceLeaving, at("18:07")),
		}, window)

		require.Len(t, pairs, 1)
		assert.Equal(t, int64(100), pairs[0].shopID)
		assert.Equal(t, at("08:55"), pairs[0].start)
		require.NotNil(t, pairs[0].end)
		assert.Equal(t, at("18:07"), *pairs[0].end)
	})

	t.Run("Overnight shift pairs across midnight", func(t *testing.T) {
		pairs := pairAttendance([]model.AttendanceRecord{
			clockEvent(100, model.AttendanceComing, at("22:55")),
			clockEvent(100, model.AttendanceLeaving, at("22:55").Add(8*time.Hour+15*time.Minute)),
		}, window)

		require.Len(t, pairs, 1)
		require.NotNil(t, pairs[0].end)
		// The pair belongs to the day the shift started on.
		assert.Equal(t, day, pairs[0].start.Truncate(24*time.Hour))
	})

	t.Run("Leaving without a coming is dropped", func(t *testing.T) {
		pairs := pairAttendance([]model.AttendanceRecord{
			clockEvent(100, model.AttendanceLeaving, at("18:00")),
		}, window)
		assert.Empty(t, pairs)
	})

	t.Run("Coming without a leaving stays open", func(t *testing.T) {
		pairs := pairAttendance([]model.AttendanceRecord{
			clockEvent(100, model.AttendanceComing, at("09:00")),
		}, window)

		require.Len(t, pairs, 1)
		assert.Nil(t, pairs[0].end)
	})

	t.Run("Leaving outside the window does not close", func(t *testing.T) {
		pairs := pairAttendance([]model.AttendanceRecord{
			clockEvent(100, model.AttendanceComing, at("09:00")),
			clockEvent(100, model.AttendanceLeaving, at("09:00").Add(25*time.Hour)),
		}, window)

		require.Len(t, pairs, 1)
		assert.Nil(t, pairs[0].end)
	})

	t.Run("Second coming abandons the first pair", func(t *testing.T) {
		pairs := pairAttendance([]model.AttendanceRecord{
			clockEvent(100, model.AttendanceComing, at("09:00")),
			clockEvent(100, model.AttendanceComing, at("14:00")),
			clockEvent(100, model.AttendanceLeaving, at("18:00")),
		}, window)

		require.Len(t, pairs, 2)
		assert.Nil(t, pairs[0].end)
		require.NotNil(t, pairs[1].end)
		assert.Equal(t, at("18:00"), *pairs[1].end)
	})

	t.Run("Shops pair independently", func(t *testing.T) {
		pairs := pairAttendance([]model.AttendanceRecord{
			clockEvent(100, model.AttendanceComing, at("09:00")),
			clockEvent(200, model.AttendanceComing, at("10:00")),
			clockEvent(200, model.AttendanceLeaving, at("14:00")),
			clockEvent(100, model.AttendanceLeaving, at("18:00")),
		}, window)

		require.Len(t, pairs, 2)
		assert.Equal(t, int64(100), pairs[0].shopID)
		require.NotNil(t, pairs[0].end)
		assert.Equal(t, at("18:00"), *pairs[0].end)
		assert.Equal(t, int64(200), pairs[1].shopID)
		require.NotNil(t, pairs[1].end)
		assert.Equal(t, at("14:00"), *pairs[1].end)
	})
}
