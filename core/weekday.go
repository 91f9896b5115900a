package core

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is the canonical day-of-week used for storage and matching.
// It shares time.Weekday's numbering (Sunday = 0) so a scan timestamp converts directly.
type Weekday int

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var (
	weekdayNames = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

	// weekdayLabels is presentation only; never stored or matched on.
	weekdayLabels = map[string][7]string{
		"en": {"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
		"ar": {"الأحد", "الإثنين", "الثلاثاء", "الأربعاء", "الخميس", "الجمعة", "السبت"},
	}

	// Weekdays in display order, Saturday first as the center's week starts on Saturday.
	Weekdays = []Weekday{Saturday, Sunday, Monday, Tuesday, Wednesday, Thursday, Friday}
)

func WeekdayOf(t time.Time) Weekday {
	return Weekday(t.Weekday())
}

// ParseWeekday parses a canonical (case-insensitive) English day name.
func ParseWeekday(s string) (Weekday, error) {
	s = CleanString(s, true /* lower */)
	for i, name := range weekdayNames {
		if s == name {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}

func (d Weekday) Valid() bool {
	return d >= Sunday && d <= Saturday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// Label returns the display label for lang, falling back to English.
func (d Weekday) Label(lang string) string {
	if !d.Valid() {
		return d.String()
	}
	labels, ok := weekdayLabels[strings.ToLower(lang)]
	if !ok {
		labels = weekdayLabels["en"]
	}
	return labels[d]
}

func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid weekday %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(text []byte) error {
	wd, err := ParseWeekday(string(text))
	if err != nil {
		return err
	}
	*d = wd
	return nil
}
