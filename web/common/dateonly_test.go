package common

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOnlyUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected time.Time
		wantErr  bool
	}{
		{name: "Valid date", in: `"2026-03-02"`, expected: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{name: "Empty string", in: `""`, expected: time.Time{}},
		{name: "With time part", in: `"2026-03-02T10:00:00Z"`, wantErr: true},
		{name: "Not a string", in: `42`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d DateOnly
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d.Time)
		})
	}
}

func TestDateOnlyMarshal(t *testing.T) {
	d := DateOnly{Time: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)}
	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-02"`, string(out))

	out, err = json.Marshal(DateOnly{})
	require.NoError(t, err)
	assert.Equal(t, `""`, string(out))
}

func TestDateOnlyRoundTrip(t *testing.T) {
	type payload struct {
		DtFrom DateOnly `json:"dt_from"`
		DtTo   DateOnly `json:"dt_to"`
	}

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"dt_from":"2026-03-01","dt_to":"2026-03-31"}`), &p))
	assert.Equal(t, time.March, p.DtFrom.Month())
	assert.Equal(t, 31, p.DtTo.Day())

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dt_from":"2026-03-01","dt_to":"2026-03-31"}`, string(out))
}
