package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckStrictTime(t *testing.T) {
	conf := DefaultConfig()
	tests := []struct {
		diff        int
		wantAllowed bool
		wantStatus  Status
		wantLate    int
	}{
		{diff: -45, wantStatus: StatusTooEarly},
		{diff: -31, wantStatus: StatusTooEarly},
		{diff: -30, wantAllowed: true, wantStatus: StatusPresent},
		{diff: -5, wantAllowed: true, wantStatus: StatusPresent},
		{diff: 0, wantAllowed: true, wantStatus: StatusPresent},
		{diff: 5, wantAllowed: true, wantStatus: StatusPresent, wantLate: 5},
		{diff: 10, wantAllowed: true, wantStatus: StatusPresent, wantLate: 10},
		{diff: 11, wantStatus: StatusLateBlocked, wantLate: 11},
		{diff: 15, wantStatus: StatusLateBlocked, wantLate: 15},
		{diff: 16, wantStatus: StatusVeryLate, wantLate: 16},
		{diff: 90, wantStatus: StatusVeryLate, wantLate: 90},
	}
	for _, tt := range tests {
		got := CheckStrictTime(tt.diff, conf)
		assert.Equal(t, tt.wantAllowed, got.Allowed, "diff %d", tt.diff)
		assert.Equal(t, tt.wantStatus, got.Status, "diff %d", tt.diff)
		assert.Equal(t, tt.wantLate, got.MinutesLate, "diff %d", tt.diff)
		if !got.Allowed {
			assert.NotEmpty(t, got.Message, "diff %d", tt.diff)
		}
	}
}

func TestCheckStrictTime_NoVeryLateTier(t *testing.T) {
	conf := DefaultConfig()
	conf.VeryLateAfterMinutes = 5 // below the late limit: every late scan is late_blocked

	assert.Equal(t, StatusLateBlocked, CheckStrictTime(11, conf).Status)
	assert.Equal(t, StatusLateBlocked, CheckStrictTime(60, conf).Status)
}

func TestStatusColor(t *testing.T) {
	tests := map[Status]Color{
		StatusPresent:         ColorGreen,
		StatusTooEarly:        ColorBlue,
		StatusLateBlocked:     ColorOrange,
		StatusVeryLate:        ColorRed,
		StatusNoSession:       ColorGray,
		StatusPaymentBlocked:  ColorRed,
		StatusAlreadyRecorded: ColorYellow,
		StatusBlockedOther:    ColorGray,
		Status("unknown"):     ColorGray,
	}
	for status, want := range tests {
		assert.Equal(t, want, status.Color(), string(status))
	}
}
