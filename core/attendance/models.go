package attendance

import (
	"time"

	"github.com/trezcool/mahudhurio/core"
)

type (
	Status string
	Color  string
)

const (
	StatusPresent         Status = "present"
	StatusTooEarly        Status = "too_early"
	StatusLateBlocked     Status = "late_blocked"
	StatusVeryLate        Status = "very_late"
	StatusNoSession       Status = "no_session"
	StatusPaymentBlocked  Status = "payment_blocked"
	StatusAlreadyRecorded Status = "already_recorded"
	StatusBlockedOther    Status = "blocked_other"
)

const (
	ColorGreen  Color = "green"
	ColorBlue   Color = "blue"
	ColorOrange Color = "orange"
	ColorRed    Color = "red"
	ColorGray   Color = "gray"
	ColorYellow Color = "yellow"
)

var statusColors = map[Status]Color{
	StatusPresent:         ColorGreen,
	StatusTooEarly:        ColorBlue,
	StatusLateBlocked:     ColorOrange,
	StatusVeryLate:        ColorRed,
	StatusNoSession:       ColorGray,
	StatusPaymentBlocked:  ColorRed,
	StatusAlreadyRecorded: ColorYellow,
	StatusBlockedOther:    ColorGray,
}

// Color is the kiosk display colour of the status.
func (s Status) Color() Color {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return ColorGray
}

func (s Status) IsLate() bool {
	return s == StatusLateBlocked || s == StatusVeryLate
}

type (
	// Session is one occurrence of a group on a calendar date.
	Session struct {
		ID                 string     `json:"id"`
		GroupID            string     `json:"group_id"`
		Date               time.Time  `json:"date"`
		IsCancelled        bool       `json:"is_cancelled"`
		CancelReason       string     `json:"cancel_reason,omitempty"`
		CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
		TeacherCheckedIn   bool       `json:"teacher_checked_in"`
		TeacherCheckedInAt *time.Time `json:"teacher_checked_in_at,omitempty"`
		CreatedAt          time.Time  `json:"created_at"`
	}

	// Attendance is the admission outcome of one student for one session.
	Attendance struct {
		ID                 string     `json:"id"`
		StudentID          string     `json:"student_id"`
		SessionID          string     `json:"session_id"`
		GroupID            string     `json:"group_id"`
		Status             Status     `json:"status"`
		Color              Color      `json:"color"`
		AllowEntry         bool       `json:"allow_entry"`
		MinutesLate        int        `json:"minutes_late"`
		RejectionReason    string     `json:"rejection_reason,omitempty"`
		RecordedBy         core.Actor `json:"recorded_by"`
		ScannedAt          time.Time  `json:"scanned_at"`
		NotificationSent   bool       `json:"notification_sent"`
		NotificationSentAt *time.Time `json:"notification_sent_at,omitempty"`
	}

	// BlockedAttempt is the audit trail of a rejected scan attributable to a student.
	BlockedAttempt struct {
		ID            string     `json:"id"`
		StudentID     string     `json:"student_id"`
		StudentCode   string     `json:"student_code"`
		StudentName   string     `json:"student_name"`
		GroupID       string     `json:"group_id,omitempty"`
		GroupName     string     `json:"group_name,omitempty"`
		Status        Status     `json:"status"`
		Reason        string     `json:"reason"`
		ScheduledTime string     `json:"scheduled_time,omitempty"`
		RecordedBy    core.Actor `json:"recorded_by"`
		AttemptedAt   time.Time  `json:"attempted_at"`
	}

	ScanResult struct {
		Allowed     bool   `json:"allowed"`
		Status      Status `json:"status"`
		Message     string `json:"message"`
		MinutesLate int    `json:"minutes_late"`
		ColorCode   Color  `json:"color_code"`
		StudentName string `json:"student_name,omitempty"`
		GroupName   string `json:"group_name,omitempty"`
	}

	NewScan struct {
		Code string `json:"code" validate:"required,notblank,max=16"`
	}

	NewCheckIn struct {
		GroupID string `json:"group_id" validate:"required"`
	}
)

func (a Attendance) Admitted() bool { return a.AllowEntry }
