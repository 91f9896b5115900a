package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    ClockTime
		wantErr bool
	}{
		{name: "midnight", in: "00:00", want: 0},
		{name: "morning", in: "09:00", want: 540},
		{name: "with seconds", in: "14:30:59", want: 870},
		{name: "padded", in: " 23:59 ", want: 1439},
		{name: "single digit hour", in: "9:05", want: 545},
		{name: "hour out of range", in: "24:00", wantErr: true},
		{name: "minute out of range", in: "10:60", wantErr: true},
		{name: "short minute", in: "10:5", wantErr: true},
		{name: "garbage", in: "noon", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClockTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClockTime_String(t *testing.T) {
	assert.Equal(t, "09:05", ClockTime(545).String())
	assert.Equal(t, "00:15", ClockTime(24*60+15).String())
	assert.Equal(t, "23:45", ClockTime(-15).String())
}

func TestClockTime_On(t *testing.T) {
	date := time.Date(2024, time.March, 9, 17, 42, 11, 0, time.UTC)
	got := MustClockTime("09:30").On(date)
	assert.Equal(t, time.Date(2024, time.March, 9, 9, 30, 0, 0, time.UTC), got)
	assert.Equal(t, MustClockTime("17:42"), ClockTimeOf(date))
}

func TestClockTime_JSON(t *testing.T) {
	ct := MustClockTime("18:20")
	data, err := ct.MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, `"18:20"`, string(data))

	var got ClockTime
	assert.NoError(t, got.UnmarshalJSON(data))
	assert.Equal(t, ct, got)
	assert.Error(t, got.UnmarshalJSON([]byte(`"25:00"`)))
}
