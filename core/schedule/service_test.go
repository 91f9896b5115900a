package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/schedule"
	testutil "github.com/trezcool/mahudhurio/tests"
)

func TestService_CreateGroup(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	room := env.CreateRoom(t, "Room A", 20)
	teacher := env.CreateTeacher(t, "Mr. Salim")
	env.CreateGroup(t, "Physics", teacher.ID, room.ID, "saturday", "10:00", 120)

	tests := []struct {
		name         string
		ng           schedule.NewGroup
		wantConflict bool
		wantInvalid  []string
	}{
		{name: "back to back without buffer", ng: schedule.NewGroup{Name: "Math", TeacherID: teacher.ID, RoomID: room.ID, Day: "saturday", StartTime: "12:00", DurationMinutes: 60}, wantConflict: true},
		{name: "inside buffer", ng: schedule.NewGroup{Name: "Math", TeacherID: teacher.ID, RoomID: room.ID, Day: "saturday", StartTime: "12:10", DurationMinutes: 60}, wantConflict: true},
		{name: "after buffer", ng: schedule.NewGroup{Name: "Math", TeacherID: teacher.ID, RoomID: room.ID, Day: "saturday", StartTime: "12:30", DurationMinutes: 60}},
		{name: "other day", ng: schedule.NewGroup{Name: "Math", TeacherID: teacher.ID, RoomID: room.ID, Day: "sunday", StartTime: "10:00", DurationMinutes: 60}},
		{name: "no room", ng: schedule.NewGroup{Name: "Math", TeacherID: teacher.ID, Day: "saturday", StartTime: "10:00", DurationMinutes: 60}},
		{name: "bypassed", ng: schedule.NewGroup{Name: "Math", TeacherID: teacher.ID, RoomID: room.ID, Day: "saturday", StartTime: "11:00", DurationMinutes: 60, BypassConflict: true}},
		{name: "bad slot", ng: schedule.NewGroup{Name: "Math", TeacherID: teacher.ID, Day: "someday", StartTime: "25:00", DurationMinutes: 0}, wantInvalid: []string{"day", "start_time", "duration_minutes"}},
		{name: "unknown teacher", ng: schedule.NewGroup{Name: "Math", TeacherID: "nobody", Day: "monday", StartTime: "10:00", DurationMinutes: 60}, wantInvalid: []string{"teacher_id"}},
		{name: "unknown room", ng: schedule.NewGroup{Name: "Math", TeacherID: teacher.ID, RoomID: "nowhere", Day: "monday", StartTime: "10:00", DurationMinutes: 60}, wantInvalid: []string{"room_id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grp, err := env.Schedule.CreateGroup(ctx, tt.ng)
			switch {
			case tt.wantConflict:
				assert.True(t, schedule.IsConflict(err), "want a conflict, got %v", err)
			case len(tt.wantInvalid) > 0:
				verr, ok := errors.Cause(err).(*core.ValidationError)
				require.True(t, ok, "want a validation error, got %v", err)
				fields := make([]string, 0, len(verr.Fields))
				for _, f := range verr.Fields {
					fields = append(fields, f.Field)
				}
				assert.Equal(t, tt.wantInvalid, fields)
			default:
				require.NoError(t, err)
				assert.True(t, grp.IsActive)
				assert.Equal(t, tt.ng.BypassConflict, grp.ConflictOverride)

				// free the slot for the next case
				_, err = env.Schedule.DeactivateGroup(ctx, grp.ID)
				require.NoError(t, err)
			}
		})
	}
}

func TestService_UpdateGroup(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	room := env.CreateRoom(t, "Room A", 20)
	teacher := env.CreateTeacher(t, "Mr. Salim")
	physics := env.CreateGroup(t, "Physics", teacher.ID, room.ID, "saturday", "10:00", 120)
	math := env.CreateGroup(t, "Math", teacher.ID, room.ID, "saturday", "14:00", 60)

	update := schedule.UpdateGroup{Name: "Physics", TeacherID: teacher.ID, RoomID: room.ID, Day: "saturday", StartTime: "10:30", DurationMinutes: 120}
	grp, err := env.Schedule.UpdateGroup(ctx, physics.ID, update)
	require.NoError(t, err, "moving a group must not conflict with itself")
	assert.Equal(t, "10:30", grp.StartTime.String())

	update.StartTime, update.DurationMinutes = "11:00", 180
	_, err = env.Schedule.UpdateGroup(ctx, physics.ID, update)
	assert.True(t, schedule.IsConflict(err))

	_, err = env.Schedule.DeactivateGroup(ctx, math.ID)
	require.NoError(t, err)
	grp, err = env.Schedule.UpdateGroup(ctx, physics.ID, update)
	require.NoError(t, err, "inactive groups do not block")
	assert.Equal(t, "14:00", grp.EndTime().String())

	_, err = env.Schedule.UpdateGroup(ctx, "missing", update)
	assert.True(t, core.IsNotFound(err))
}

func TestService_CheckConflict(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	room := env.CreateRoom(t, "Room A", 20)
	teacher := env.CreateTeacher(t, "Mr. Salim")
	env.CreateGroup(t, "Late", teacher.ID, room.ID, "monday", "13:00", 60)
	early := env.CreateGroup(t, "Early", teacher.ID, room.ID, "monday", "10:00", 60)

	c, err := env.Schedule.CheckConflict(ctx, room.ID, core.Monday, core.MustClockTime("09:00"), 300, "")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, early.ID, c.GroupID, "the earliest conflict is reported")

	c, err = env.Schedule.CheckConflict(ctx, room.ID, core.Monday, core.MustClockTime("11:15"), 90, "")
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = env.Schedule.CheckConflict(ctx, "", core.Monday, core.MustClockTime("10:00"), 60, "")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestService_FindAvailableRooms(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	small := env.CreateRoom(t, "Small", 10)
	big := env.CreateRoom(t, "Big", 40)
	medium := env.CreateRoom(t, "Medium", 25)
	env.CreateRoom(t, "Closet", 2)
	teacher := env.CreateTeacher(t, "Mr. Salim")
	env.CreateGroup(t, "Physics", teacher.ID, big.ID, "tuesday", "16:00", 90)

	got, err := env.Schedule.FindAvailableRooms(ctx, core.Tuesday, core.MustClockTime("17:00"), 60, 5)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, medium.ID, got[0].Room.ID)
	assert.True(t, got[0].IsAvailable)
	assert.Empty(t, got[0].ConflictingBookings)
	assert.Equal(t, small.ID, got[1].Room.ID)
	assert.True(t, got[1].IsAvailable)
	assert.Equal(t, big.ID, got[2].Room.ID)
	assert.False(t, got[2].IsAvailable)
	assert.Len(t, got[2].ConflictingBookings, 1)
}

func TestService_GetWeeklySchedule(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	testutil.SetNow(t, testutil.Date(2026, 10, 15, "12:00")) // Thursday
	room := env.CreateRoom(t, "Room A", 20)
	teacher := env.CreateTeacher(t, "Mr. Salim")
	physics := env.CreateGroup(t, "Physics", teacher.ID, room.ID, "saturday", "14:00", 60)
	math := env.CreateGroup(t, "Math", teacher.ID, room.ID, "saturday", "09:00", 60)
	env.CreateGroup(t, "Elsewhere", teacher.ID, "", "saturday", "09:00", 60)

	ws, err := env.Schedule.GetWeeklySchedule(ctx, room.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, testutil.Date(2026, 10, 12, "00:00"), ws.WeekStart, "defaults to this week's Monday")
	require.Len(t, ws.Days, 7)
	assert.Equal(t, core.Monday, ws.Days[0].Day)

	sat := ws.Days[5]
	assert.Equal(t, core.Saturday, sat.Day)
	assert.Equal(t, testutil.Date(2026, 10, 17, "00:00"), sat.Date)
	require.Len(t, sat.Sessions, 2)
	assert.Equal(t, math.ID, sat.Sessions[0].GroupID)
	assert.Equal(t, physics.ID, sat.Sessions[1].GroupID)
	assert.Equal(t, "15:00", sat.Sessions[1].End.String())
	for i, d := range ws.Days {
		if i != 5 {
			assert.Empty(t, d.Sessions, d.Day.String())
		}
	}

	ws, err = env.Schedule.GetWeeklySchedule(ctx, room.ID, testutil.Date(2026, 10, 17, "08:30"))
	require.NoError(t, err)
	assert.Equal(t, core.Saturday, ws.Days[0].Day)
	assert.Len(t, ws.Days[0].Sessions, 2)

	_, err = env.Schedule.GetWeeklySchedule(ctx, "missing", time.Time{})
	assert.True(t, core.IsNotFound(err))
}

func TestService_CalculateUtilization(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	room := env.CreateRoom(t, "Room A", 20)
	teacher := env.CreateTeacher(t, "Mr. Salim")
	env.CreateGroup(t, "Physics", teacher.ID, room.ID, "saturday", "14:00", 60)
	env.CreateGroup(t, "Math", teacher.ID, room.ID, "sunday", "09:00", 90)

	u, err := env.Schedule.CalculateUtilization(ctx, room.ID, 10, 2026)
	require.NoError(t, err)
	assert.Equal(t, 2, u.SessionCount)
	assert.InDelta(t, 2.5, u.UsedHours, 0.001)
	assert.InDelta(t, 490, u.AvailableHours, 0.001) // 14h a day, 7 days, 5 calendar weeks
	assert.InDelta(t, 0.51, u.UtilizationPercentage, 0.001)
	assert.Equal(t, []schedule.PeakHour{{Hour: 9, Count: 1}, {Hour: 14, Count: 1}}, u.PeakHours)

	_, err = env.Schedule.CalculateUtilization(ctx, room.ID, 13, 2026)
	_, invalid := errors.Cause(err).(*core.ValidationError)
	assert.True(t, invalid)

	_, err = env.Schedule.CalculateUtilization(ctx, "missing", 10, 2026)
	assert.True(t, core.IsNotFound(err))
}

func TestService_GroupsOnDay(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	teacher := env.CreateTeacher(t, "Mr. Salim")
	late := env.CreateGroup(t, "Late", teacher.ID, "", "saturday", "16:00", 60)
	early := env.CreateGroup(t, "Early", teacher.ID, "", "saturday", "08:00", 60)
	gone := env.CreateGroup(t, "Gone", teacher.ID, "", "saturday", "10:00", 60)
	env.CreateGroup(t, "Sunday", teacher.ID, "", "sunday", "10:00", 60)
	_, err := env.Schedule.DeactivateGroup(ctx, gone.ID)
	require.NoError(t, err)

	groups, err := env.Schedule.GroupsOnDay(ctx, core.Saturday)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, early.ID, groups[0].ID)
	assert.Equal(t, late.ID, groups[1].ID)
}
