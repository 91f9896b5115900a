package schedule

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/mahudhurio/core"
)

type (
	Room struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Capacity  int       `json:"capacity"`
		IsActive  bool      `json:"is_active"`
		CreatedAt time.Time `json:"created_at"`
	}

	Teacher struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Phone     string    `json:"phone,omitempty"`
		Email     string    `json:"email,omitempty"`
		IsActive  bool      `json:"is_active"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Group is a recurring weekly class slot.
	Group struct {
		ID              string          `json:"id"`
		Name            string          `json:"name"`
		TeacherID       string          `json:"teacher_id"`
		RoomID          string          `json:"room_id,omitempty"` // empty when unassigned
		Day             core.Weekday    `json:"day"`
		StartTime       core.ClockTime  `json:"start_time"`
		DurationMinutes int             `json:"duration_minutes"`
		Fee             decimal.Decimal `json:"fee"`
		IsActive        bool            `json:"is_active"`

		// ConflictOverride is set when an operator bypassed the room conflict check.
		ConflictOverride bool      `json:"conflict_override"`
		CreatedAt        time.Time `json:"created_at"`
		UpdatedAt        time.Time `json:"updated_at"`
	}

	NewRoom struct {
		Name     string `json:"name" validate:"required,notblank"`
		Capacity int    `json:"capacity" validate:"min=0"`
	}

	NewTeacher struct {
		Name  string `json:"name" validate:"required,notblank"`
		Phone string `json:"phone"`
		Email string `json:"email" validate:"omitempty,email"`
	}

	NewGroup struct {
		Name            string          `json:"name" validate:"required,notblank"`
		TeacherID       string          `json:"teacher_id" validate:"required"`
		RoomID          string          `json:"room_id"`
		Day             string          `json:"day" validate:"required,weekday"`
		StartTime       string          `json:"start_time" validate:"required,hhmm"`
		DurationMinutes int             `json:"duration_minutes" validate:"required,min=1,max=720"`
		Fee             decimal.Decimal `json:"fee"`
		BypassConflict  bool            `json:"bypass_conflict"`
	}

	UpdateGroup struct {
		Name            string          `json:"name" validate:"required,notblank"`
		TeacherID       string          `json:"teacher_id" validate:"required"`
		RoomID          string          `json:"room_id"`
		Day             string          `json:"day" validate:"required,weekday"`
		StartTime       string          `json:"start_time" validate:"required,hhmm"`
		DurationMinutes int             `json:"duration_minutes" validate:"required,min=1,max=720"`
		Fee             decimal.Decimal `json:"fee"`
		IsActive        *bool           `json:"is_active"`
		BypassConflict  bool            `json:"bypass_conflict"`
	}

	// RoomAvailability is one room's answer to "is this slot free?".
	RoomAvailability struct {
		Room                Room       `json:"room"`
		IsAvailable         bool       `json:"is_available"`
		ConflictingBookings []Conflict `json:"conflicting_bookings"`
	}

	ScheduledSession struct {
		GroupID   string         `json:"group_id"`
		GroupName string         `json:"group_name"`
		TeacherID string         `json:"teacher_id"`
		Date      time.Time      `json:"date"`
		Start     core.ClockTime `json:"start"`
		End       core.ClockTime `json:"end"`
	}

	DaySchedule struct {
		Day      core.Weekday       `json:"day"`
		Date     time.Time          `json:"date"`
		Sessions []ScheduledSession `json:"sessions"`
	}

	// WeeklySchedule lists a room's sessions for the seven days starting at WeekStart.
	WeeklySchedule struct {
		RoomID    string        `json:"room_id"`
		WeekStart time.Time     `json:"week_start"`
		Days      []DaySchedule `json:"days"`
	}

	PeakHour struct {
		Hour  int `json:"hour"`
		Count int `json:"count"`
	}

	Utilization struct {
		RoomID                string     `json:"room_id"`
		Month                 int        `json:"month"`
		Year                  int        `json:"year"`
		UtilizationPercentage float64    `json:"utilization_percentage"`
		UsedHours             float64    `json:"used_hours"`
		AvailableHours        float64    `json:"available_hours"`
		SessionCount          int        `json:"session_count"`
		PeakHours             []PeakHour `json:"peak_hours"`
	}
)

func (g Group) HasRoom() bool { return g.RoomID != "" }

func (g Group) EndTime() core.ClockTime {
	return g.StartTime.Add(g.DurationMinutes)
}

// StartsAt returns the instant the group starts on date's calendar day.
func (g Group) StartsAt(date time.Time) time.Time {
	return g.StartTime.On(date)
}
