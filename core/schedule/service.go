package schedule

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/trezcool/mahudhurio/core"
)

var (
	ErrRoomNotFound    = core.NewNotFoundError("room")
	ErrTeacherNotFound = core.NewNotFoundError("teacher")
	ErrGroupNotFound   = core.NewNotFoundError("group")

	// NowFunc is mockable in tests.
	NowFunc = time.Now
)

type (
	Repository interface {
		CreateRoom(ctx context.Context, room Room) (Room, error)
		GetRoom(ctx context.Context, id string) (Room, error)
		// ListRooms returns rooms ordered by name.
		ListRooms(ctx context.Context, activeOnly bool) ([]Room, error)

		CreateTeacher(ctx context.Context, teacher Teacher) (Teacher, error)
		GetTeacher(ctx context.Context, id string) (Teacher, error)

		CreateGroup(ctx context.Context, group Group) (Group, error)
		UpdateGroup(ctx context.Context, group Group) (Group, error)
		GetGroup(ctx context.Context, id string) (Group, error)
		// ListGroups returns every group ordered by day then start time.
		ListGroups(ctx context.Context, activeOnly bool) ([]Group, error)
		// RoomBookings returns the active groups booked in a room, ordered by day then start time.
		RoomBookings(ctx context.Context, roomID string) ([]Group, error)
	}

	Config struct {
		BufferMinutes int
		WorkDayStart  core.ClockTime
		WorkDayEnd    core.ClockTime
	}

	Service struct {
		repo Repository
		conf Config
	}
)

func DefaultConfig() Config {
	return Config{
		BufferMinutes: 15,
		WorkDayStart:  core.MustClockTime("08:00"),
		WorkDayEnd:    core.MustClockTime("22:00"),
	}
}

func NewService(repo Repository, conf Config) *Service {
	return &Service{repo: repo, conf: conf}
}

// CheckConflict returns the earliest existing booking blocking the slot, or nil.
// Bookings without a room never conflict.
func (svc *Service) CheckConflict(ctx context.Context, roomID string, day core.Weekday, start core.ClockTime, duration int, excludeID string) (*Conflict, error) {
	if roomID == "" {
		return nil, nil
	}
	bookings, err := svc.repo.RoomBookings(ctx, roomID)
	if err != nil {
		return nil, errors.Wrap(err, "querying room bookings")
	}
	conflicts := FindConflicts(bookings, roomID, day, start, duration, svc.conf.BufferMinutes, excludeID)
	if len(conflicts) == 0 {
		return nil, nil
	}
	sort.SliceStable(conflicts, func(i, j int) bool { return conflicts[i].Start < conflicts[j].Start })
	return &conflicts[0], nil
}

// FindAvailableRooms reports every active room with at least minCapacity seats,
// available rooms first, then by capacity descending.
func (svc *Service) FindAvailableRooms(ctx context.Context, day core.Weekday, start core.ClockTime, duration, minCapacity int) ([]RoomAvailability, error) {
	rooms, err := svc.repo.ListRooms(ctx, true)
	if err != nil {
		return nil, errors.Wrap(err, "listing rooms")
	}
	rooms = lo.Filter(rooms, func(r Room, _ int) bool { return r.Capacity >= minCapacity })

	result := make([]RoomAvailability, 0, len(rooms))
	for _, room := range rooms {
		bookings, err := svc.repo.RoomBookings(ctx, room.ID)
		if err != nil {
			return nil, errors.Wrap(err, "querying room bookings")
		}
		conflicts := FindConflicts(bookings, room.ID, day, start, duration, svc.conf.BufferMinutes, "")
		if conflicts == nil {
			conflicts = []Conflict{}
		}
		result = append(result, RoomAvailability{
			Room:                room,
			IsAvailable:         len(conflicts) == 0,
			ConflictingBookings: conflicts,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].IsAvailable != result[j].IsAvailable {
			return result[i].IsAvailable
		}
		return result[i].Room.Capacity > result[j].Room.Capacity
	})
	return result, nil
}

// GetWeeklySchedule lists the room's sessions for the week starting at weekStart.
// A zero weekStart means the Monday of the current week.
func (svc *Service) GetWeeklySchedule(ctx context.Context, roomID string, weekStart time.Time) (WeeklySchedule, error) {
	if _, err := svc.repo.GetRoom(ctx, roomID); err != nil {
		return WeeklySchedule{}, err
	}
	if weekStart.IsZero() {
		weekStart = startOfWeek(NowFunc())
	}
	weekStart = core.DateOf(weekStart)

	bookings, err := svc.repo.RoomBookings(ctx, roomID)
	if err != nil {
		return WeeklySchedule{}, errors.Wrap(err, "querying room bookings")
	}
	byDay := lo.GroupBy(bookings, func(g Group) core.Weekday { return g.Day })

	ws := WeeklySchedule{RoomID: roomID, WeekStart: weekStart, Days: make([]DaySchedule, 0, 7)}
	for i := 0; i < 7; i++ {
		date := weekStart.AddDate(0, 0, i)
		day := core.WeekdayOf(date)
		groups := byDay[day]
		sort.SliceStable(groups, func(i, j int) bool { return groups[i].StartTime < groups[j].StartTime })

		sessions := make([]ScheduledSession, 0, len(groups))
		for _, g := range groups {
			sessions = append(sessions, ScheduledSession{
				GroupID:   g.ID,
				GroupName: g.Name,
				TeacherID: g.TeacherID,
				Date:      date,
				Start:     g.StartTime,
				End:       g.EndTime(),
			})
		}
		ws.Days = append(ws.Days, DaySchedule{Day: day, Date: date, Sessions: sessions})
	}
	return ws, nil
}

// CalculateUtilization compares the room's weekly booked hours against its open hours for the month.
// Used hours count every active booking of the room, whatever the month.
func (svc *Service) CalculateUtilization(ctx context.Context, roomID string, month, year int) (Utilization, error) {
	if month < 1 || month > 12 {
		return Utilization{}, core.NewValidationError(nil, core.FieldError{Field: "month", Error: "month must be between 1 and 12"})
	}
	if _, err := svc.repo.GetRoom(ctx, roomID); err != nil {
		return Utilization{}, err
	}
	bookings, err := svc.repo.RoomBookings(ctx, roomID)
	if err != nil {
		return Utilization{}, errors.Wrap(err, "querying room bookings")
	}

	workDayHours := float64(svc.conf.WorkDayEnd-svc.conf.WorkDayStart) / 60
	available := workDayHours * 7 * float64(WeeksInMonth(year, time.Month(month)))
	used := float64(lo.SumBy(bookings, func(g Group) int { return g.DurationMinutes })) / 60

	var pct float64
	if available > 0 {
		pct = math.Round(used/available*10000) / 100
	}
	return Utilization{
		RoomID:                roomID,
		Month:                 month,
		Year:                  year,
		UtilizationPercentage: pct,
		UsedHours:             used,
		AvailableHours:        available,
		SessionCount:          len(bookings),
		PeakHours:             peakHours(bookings, 3),
	}, nil
}

// WeeksInMonth counts the Monday-first calendar rows the month spans.
func WeeksInMonth(year int, month time.Month) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()
	offset := (int(first.Weekday()) + 6) % 7 // Monday = 0
	return (offset + days + 6) / 7
}

func peakHours(bookings []Group, top int) []PeakHour {
	counts := make(map[int]int)
	for _, g := range bookings {
		counts[g.StartTime.Hour()]++
	}
	peaks := make([]PeakHour, 0, len(counts))
	for hour, count := range counts {
		peaks = append(peaks, PeakHour{Hour: hour, Count: count})
	}
	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].Count != peaks[j].Count {
			return peaks[i].Count > peaks[j].Count
		}
		return peaks[i].Hour < peaks[j].Hour
	})
	if len(peaks) > top {
		peaks = peaks[:top]
	}
	return peaks
}

func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return core.DateOf(t).AddDate(0, 0, -offset)
}

func (svc *Service) CreateRoom(ctx context.Context, nr NewRoom) (Room, error) {
	return svc.repo.CreateRoom(ctx, Room{
		ID:        uuid.NewString(),
		Name:      core.CleanString(nr.Name),
		Capacity:  nr.Capacity,
		IsActive:  true,
		CreatedAt: NowFunc().UTC(),
	})
}

func (svc *Service) GetRoom(ctx context.Context, id string) (Room, error) {
	return svc.repo.GetRoom(ctx, id)
}

func (svc *Service) ListRooms(ctx context.Context) ([]Room, error) {
	return svc.repo.ListRooms(ctx, false)
}

func (svc *Service) CreateTeacher(ctx context.Context, nt NewTeacher) (Teacher, error) {
	return svc.repo.CreateTeacher(ctx, Teacher{
		ID:        uuid.NewString(),
		Name:      core.CleanString(nt.Name),
		Phone:     core.CleanString(nt.Phone),
		Email:     core.CleanString(nt.Email, true /* lower */),
		IsActive:  true,
		CreatedAt: NowFunc().UTC(),
	})
}

func (svc *Service) GetTeacher(ctx context.Context, id string) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, id)
}

func (svc *Service) CreateGroup(ctx context.Context, ng NewGroup) (Group, error) {
	now := NowFunc().UTC()
	grp := Group{
		ID:               uuid.NewString(),
		Name:             core.CleanString(ng.Name),
		TeacherID:        ng.TeacherID,
		RoomID:           ng.RoomID,
		DurationMinutes:  ng.DurationMinutes,
		Fee:              ng.Fee,
		IsActive:         true,
		ConflictOverride: ng.BypassConflict && ng.RoomID != "",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := svc.parseSlot(&grp, ng.Day, ng.StartTime); err != nil {
		return Group{}, err
	}
	if err := svc.checkRefs(ctx, grp); err != nil {
		return Group{}, err
	}
	if !ng.BypassConflict {
		if err := svc.guardConflict(ctx, grp); err != nil {
			return Group{}, err
		}
	}
	return svc.repo.CreateGroup(ctx, grp)
}

func (svc *Service) UpdateGroup(ctx context.Context, id string, ug UpdateGroup) (Group, error) {
	grp, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	grp.Name = core.CleanString(ug.Name)
	grp.TeacherID = ug.TeacherID
	grp.RoomID = ug.RoomID
	grp.DurationMinutes = ug.DurationMinutes
	grp.Fee = ug.Fee
	grp.ConflictOverride = ug.BypassConflict && ug.RoomID != ""
	grp.UpdatedAt = NowFunc().UTC()
	if ug.IsActive != nil {
		grp.IsActive = *ug.IsActive
	}
	if err := svc.parseSlot(&grp, ug.Day, ug.StartTime); err != nil {
		return Group{}, err
	}
	if err := svc.checkRefs(ctx, grp); err != nil {
		return Group{}, err
	}
	if !ug.BypassConflict && grp.IsActive {
		if err := svc.guardConflict(ctx, grp); err != nil {
			return Group{}, err
		}
	}
	return svc.repo.UpdateGroup(ctx, grp)
}

func (svc *Service) DeactivateGroup(ctx context.Context, id string) (Group, error) {
	grp, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if !grp.IsActive {
		return grp, nil
	}
	grp.IsActive = false
	grp.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateGroup(ctx, grp)
}

func (svc *Service) GetGroup(ctx context.Context, id string) (Group, error) {
	return svc.repo.GetGroup(ctx, id)
}

func (svc *Service) ListGroups(ctx context.Context) ([]Group, error) {
	return svc.repo.ListGroups(ctx, false)
}

// GroupsOnDay returns the active groups meeting on day, ordered by start time.
func (svc *Service) GroupsOnDay(ctx context.Context, day core.Weekday) ([]Group, error) {
	groups, err := svc.repo.ListGroups(ctx, true)
	if err != nil {
		return nil, errors.Wrap(err, "listing groups")
	}
	return lo.Filter(groups, func(g Group, _ int) bool { return g.Day == day }), nil
}

func (svc *Service) parseSlot(grp *Group, day, start string) error {
	var fields []core.FieldError
	d, err := core.ParseWeekday(day)
	if err != nil {
		fields = append(fields, core.FieldError{Field: "day", Error: err.Error()})
	}
	st, err := core.ParseClockTime(start)
	if err != nil {
		fields = append(fields, core.FieldError{Field: "start_time", Error: err.Error()})
	}
	if grp.DurationMinutes <= 0 {
		fields = append(fields, core.FieldError{Field: "duration_minutes", Error: "duration must be positive"})
	}
	if len(fields) > 0 {
		return core.NewValidationError(nil, fields...)
	}
	grp.Day, grp.StartTime = d, st
	return nil
}

func (svc *Service) checkRefs(ctx context.Context, grp Group) error {
	if _, err := svc.repo.GetTeacher(ctx, grp.TeacherID); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(err, core.FieldError{Field: "teacher_id", Error: err.Error()})
		}
		return err
	}
	if grp.HasRoom() {
		if _, err := svc.repo.GetRoom(ctx, grp.RoomID); err != nil {
			if core.IsNotFound(err) {
				return core.NewValidationError(err, core.FieldError{Field: "room_id", Error: err.Error()})
			}
			return err
		}
	}
	return nil
}

func (svc *Service) guardConflict(ctx context.Context, grp Group) error {
	c, err := svc.CheckConflict(ctx, grp.RoomID, grp.Day, grp.StartTime, grp.DurationMinutes, grp.ID)
	if err != nil {
		return err
	}
	if c != nil {
		return &ConflictError{Conflict: *c}
	}
	return nil
}

// String is used in logs.
func (g Group) String() string {
	return fmt.Sprintf("%s (%s %s-%s)", g.Name, g.Day, g.StartTime, g.EndTime())
}
