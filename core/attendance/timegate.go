package attendance

import "fmt"

// TimeDecision is the verdict of the punctuality gate.
type TimeDecision struct {
	Allowed     bool
	Status      Status
	MinutesLate int
	Message     string
}

// CheckStrictTime applies the arrival window to diffMinutes (arrival minus scheduled start).
// Arriving up to EarlyLimitMinutes early or LateLimitMinutes late is admitted.
// Past the late limit the scan is late_blocked, and very_late beyond VeryLateAfterMinutes.
func CheckStrictTime(diffMinutes int, conf Config) TimeDecision {
	switch {
	case diffMinutes < -conf.EarlyLimitMinutes:
		return TimeDecision{
			Status:  StatusTooEarly,
			Message: fmt.Sprintf("arrived too early: %d minutes before the start", -diffMinutes),
		}
	case diffMinutes > conf.VeryLateAfterMinutes && conf.VeryLateAfterMinutes >= conf.LateLimitMinutes:
		return TimeDecision{
			Status:      StatusVeryLate,
			MinutesLate: diffMinutes,
			Message:     fmt.Sprintf("arrived %d minutes late, entry is closed", diffMinutes),
		}
	case diffMinutes > conf.LateLimitMinutes:
		return TimeDecision{
			Status:      StatusLateBlocked,
			MinutesLate: diffMinutes,
			Message:     fmt.Sprintf("arrived %d minutes late, the limit is %d minutes", diffMinutes, conf.LateLimitMinutes),
		}
	}

	late := diffMinutes
	if late < 0 {
		late = 0
	}
	return TimeDecision{Allowed: true, Status: StatusPresent, MinutesLate: late}
}
