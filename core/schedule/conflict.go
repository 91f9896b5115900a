package schedule

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

var ErrScheduleConflict = errors.New("schedule conflict")

// Conflict describes an existing booking that overlaps a requested slot once buffered.
type Conflict struct {
	GroupID       string         `json:"group_id,omitempty"`
	GroupName     string         `json:"group_name,omitempty"`
	RoomID        string         `json:"room_id"`
	Day           core.Weekday   `json:"day"`
	Start         core.ClockTime `json:"start"`
	End           core.ClockTime `json:"end"`
	BufferedStart core.ClockTime `json:"buffered_start"`
	BufferedEnd   core.ClockTime `json:"buffered_end"`
	Message       string         `json:"message"`
}

// ConflictError rejects a write that would double-book a room. It unwraps to ErrScheduleConflict.
type ConflictError struct {
	Conflict Conflict
}

func (err *ConflictError) Error() string {
	return err.Conflict.Message
}

func (err *ConflictError) Unwrap() error {
	return ErrScheduleConflict
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrScheduleConflict)
}

// overlaps is the half-open interval test.
func overlaps(start1, end1, start2, end2 int) bool {
	return !(end1 <= start2 || start1 >= end2)
}

// conflictWith checks a requested slot against one existing booking expanded by buffer minutes on both ends.
func conflictWith(existing Group, start core.ClockTime, duration, buffer int) *Conflict {
	bufStart := existing.StartTime.Add(-buffer)
	bufEnd := existing.EndTime().Add(buffer)
	if !overlaps(start.Minutes(), start.Minutes()+duration, bufStart.Minutes(), bufEnd.Minutes()) {
		return nil
	}
	return &Conflict{
		GroupID:       existing.ID,
		GroupName:     existing.Name,
		RoomID:        existing.RoomID,
		Day:           existing.Day,
		Start:         existing.StartTime,
		End:           existing.EndTime(),
		BufferedStart: bufStart,
		BufferedEnd:   bufEnd,
		Message: fmt.Sprintf(
			"room is booked by %q on %s from %s to %s (blocked %s-%s with the %d-minute buffer)",
			existing.Name, existing.Day.Label("en"), existing.StartTime, existing.EndTime(), bufStart, bufEnd, buffer,
		),
	}
}

// FindConflicts returns every booking in existing that blocks the requested slot.
// Inactive bookings, bookings in other rooms or on other days, and excludeID are ignored.
func FindConflicts(existing []Group, roomID string, day core.Weekday, start core.ClockTime, duration, buffer int, excludeID string) []Conflict {
	var conflicts []Conflict
	if roomID == "" {
		return conflicts
	}
	for _, g := range existing {
		if !g.IsActive || g.RoomID != roomID || g.Day != day || (excludeID != "" && g.ID == excludeID) {
			continue
		}
		if c := conflictWith(g, start, duration, buffer); c != nil {
			conflicts = append(conflicts, *c)
		}
	}
	return conflicts
}
