package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/mahudhurio/core"
)

func TestFindConflicts(t *testing.T) {
	existing := []Group{
		{ID: "g1", Name: "Physics", RoomID: "r1", Day: core.Saturday, StartTime: core.MustClockTime("10:00"), DurationMinutes: 120, IsActive: true},
		{ID: "g2", Name: "Old chemistry", RoomID: "r1", Day: core.Saturday, StartTime: core.MustClockTime("14:00"), DurationMinutes: 60, IsActive: false},
	}

	tests := []struct {
		name      string
		roomID    string
		day       core.Weekday
		start     string
		duration  int
		excludeID string
		want      []string
	}{
		{name: "starts when the booking ends", roomID: "r1", day: core.Saturday, start: "12:00", duration: 60, want: []string{"g1"}},
		{name: "starts inside the trailing buffer", roomID: "r1", day: core.Saturday, start: "12:10", duration: 60, want: []string{"g1"}},
		{name: "starts when the buffer ends", roomID: "r1", day: core.Saturday, start: "12:15", duration: 60},
		{name: "starts after the buffer", roomID: "r1", day: core.Saturday, start: "12:30", duration: 60},
		{name: "ends inside the leading buffer", roomID: "r1", day: core.Saturday, start: "09:00", duration: 50, want: []string{"g1"}},
		{name: "ends when the leading buffer starts", roomID: "r1", day: core.Saturday, start: "09:00", duration: 45},
		{name: "covers the booking", roomID: "r1", day: core.Saturday, start: "08:00", duration: 300, want: []string{"g1"}},
		{name: "other room", roomID: "r2", day: core.Saturday, start: "10:00", duration: 120},
		{name: "other day", roomID: "r1", day: core.Sunday, start: "10:00", duration: 120},
		{name: "inactive booking ignored", roomID: "r1", day: core.Saturday, start: "14:00", duration: 60},
		{name: "excluded booking ignored", roomID: "r1", day: core.Saturday, start: "10:00", duration: 120, excludeID: "g1"},
		{name: "no room never conflicts", roomID: "", day: core.Saturday, start: "10:00", duration: 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindConflicts(existing, tt.roomID, tt.day, core.MustClockTime(tt.start), tt.duration, 15, tt.excludeID)
			ids := make([]string, 0, len(got))
			for _, c := range got {
				ids = append(ids, c.GroupID)
			}
			if len(tt.want) == 0 {
				assert.Empty(t, ids)
			} else {
				assert.Equal(t, tt.want, ids)
			}
		})
	}
}

func TestConflictDetails(t *testing.T) {
	existing := []Group{{ID: "g1", Name: "Physics", RoomID: "r1", Day: core.Saturday, StartTime: core.MustClockTime("10:00"), DurationMinutes: 120, IsActive: true}}
	got := FindConflicts(existing, "r1", core.Saturday, core.MustClockTime("12:00"), 60, 15, "")
	if assert.Len(t, got, 1) {
		c := got[0]
		assert.Equal(t, "09:45", c.BufferedStart.String())
		assert.Equal(t, "12:15", c.BufferedEnd.String())
		assert.Equal(t, "12:00", c.End.String())
		assert.Contains(t, c.Message, "Physics")

		err := &ConflictError{Conflict: c}
		assert.True(t, IsConflict(err))
		assert.Equal(t, c.Message, err.Error())
	}
}

func TestWeeksInMonth(t *testing.T) {
	tests := []struct {
		year  int
		month int
		want  int
	}{
		{2026, 2, 5},  // starts on a Sunday, 28 days
		{2021, 2, 4},  // starts on a Monday, 28 days
		{2026, 3, 6},  // starts on a Sunday, 31 days
		{2026, 10, 5}, // starts on a Thursday, 31 days
		{2026, 6, 5},  // starts on a Monday, 30 days
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WeeksInMonth(tt.year, time.Month(tt.month)), "%d-%02d", tt.year, tt.month)
	}
}

func TestPeakHours(t *testing.T) {
	at := func(s string) Group { return Group{StartTime: core.MustClockTime(s)} }
	bookings := []Group{at("16:00"), at("16:30"), at("10:00"), at("18:00"), at("10:15"), at("09:00"), at("08:00")}

	got := peakHours(bookings, 3)
	assert.Equal(t, []PeakHour{{Hour: 10, Count: 2}, {Hour: 16, Count: 2}, {Hour: 8, Count: 1}}, got)
	assert.Empty(t, peakHours(nil, 3))
}
