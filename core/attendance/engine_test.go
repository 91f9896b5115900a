package attendance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/student"
	testutil "github.com/trezcool/mahudhurio/tests"
)

// Saturday 2026-10-17
var saturday = time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)

type fixture struct {
	env     *testutil.Env
	teacher schedule.Teacher
	physics schedule.Group // saturday 09:00-10:30
	amina   student.Student
}

// newFixture enrolls student 1001 in the saturday physics group, with 4 sessions paid.
func newFixture(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	testutil.SetNow(t, testutil.Date(2026, 10, 15, "12:00"))
	f := fixture{env: env}
	f.teacher = env.CreateTeacher(t, "Mr. Salim")
	room := env.CreateRoom(t, "Room A", 20)
	f.physics = env.CreateGroup(t, "Physics", f.teacher.ID, room.ID, "saturday", "09:00", 90)
	f.amina = env.CreateStudent(t, "Amina")
	require.Equal(t, "1001", f.amina.Code)
	env.Enroll(t, f.amina.ID, f.physics.ID)
	env.Pay(t, f.amina.ID, f.physics.ID, 4, 400)
	env.Notifier.Reset()
	return f
}

func (f fixture) scanAt(t *testing.T, clock, code string) attendance.ScanResult {
	testutil.SetNow(t, core.MustClockTime(clock).On(saturday))
	res, err := f.env.Engine.Scan(context.Background(), code, testutil.Supervisor)
	require.NoError(t, err)
	return res
}

func (f fixture) attendances(t *testing.T) []attendance.Attendance {
	out, err := f.env.AttendanceRepo.ListAttendance(context.Background(), saturday, saturday.AddDate(0, 0, 1))
	require.NoError(t, err)
	return out
}

func (f fixture) attempts(t *testing.T) []attendance.BlockedAttempt {
	out, err := f.env.AttendanceRepo.ListBlockedAttempts(context.Background(), saturday.AddDate(0, 0, -7), saturday.AddDate(0, 0, 7))
	require.NoError(t, err)
	return out
}

func TestEngine_Scan_AdmitsOnce(t *testing.T) {
	f := newFixture(t)

	res := f.scanAt(t, "09:05", "1001")
	assert.Equal(t, attendance.ScanResult{
		Allowed:     true,
		Status:      attendance.StatusPresent,
		Message:     "welcome",
		MinutesLate: 5,
		ColorCode:   attendance.ColorGreen,
		StudentName: "Amina",
		GroupName:   "Physics",
	}, res)

	records := f.attendances(t)
	require.Len(t, records, 1)
	assert.True(t, records[0].AllowEntry)
	assert.Equal(t, 5, records[0].MinutesLate)
	assert.Equal(t, testutil.Supervisor, records[0].RecordedBy)
	assert.True(t, records[0].NotificationSent, "delivered success notification is tracked on the record")
	require.NotNil(t, records[0].NotificationSentAt)

	assert.Equal(t, 1, f.env.Enrollment(t, f.amina.ID, f.physics.ID).SessionsAttended)
	assert.Equal(t, []core.NotificationKind{core.KindAttendanceSuccess}, f.env.Notifier.Kinds())
	assert.Equal(t, "09:05", f.env.Notifier.Sent()[0].Context["time"])
	assert.Empty(t, f.attempts(t))

	res = f.scanAt(t, "09:07", "1001")
	assert.False(t, res.Allowed)
	assert.Equal(t, attendance.StatusAlreadyRecorded, res.Status)
	assert.Equal(t, "already recorded", res.Message)
	assert.Equal(t, attendance.ColorYellow, res.ColorCode)

	assert.Len(t, f.attendances(t), 1)
	assert.Equal(t, 1, f.env.Enrollment(t, f.amina.ID, f.physics.ID).SessionsAttended)
	attempts := f.attempts(t)
	require.Len(t, attempts, 1)
	assert.Equal(t, attendance.StatusAlreadyRecorded, attempts[0].Status)
	assert.Equal(t, "Physics", attempts[0].GroupName)
	assert.Equal(t, "09:00", attempts[0].ScheduledTime)
}

func TestEngine_Scan_InvalidCode(t *testing.T) {
	f := newFixture(t)

	for _, code := range []string{"9999", "", "abc"} {
		res := f.scanAt(t, "09:05", code)
		assert.Equal(t, attendance.ScanResult{
			Status:    attendance.StatusBlockedOther,
			Message:   "invalid code",
			ColorCode: attendance.ColorGray,
		}, res, code)
	}

	_, err := f.env.Students.Deactivate(context.Background(), f.amina.ID)
	require.NoError(t, err)
	res := f.scanAt(t, "09:05", "1001")
	assert.Equal(t, "invalid code", res.Message, "inactive students are unknown")

	assert.Empty(t, f.attempts(t), "nothing to attribute an unknown code to")
	assert.Empty(t, f.attendances(t))
}

func TestEngine_Scan_TimeGate(t *testing.T) {
	tests := []struct {
		clock       string
		wantStatus  attendance.Status
		wantAllowed bool
		wantLate    int
		wantRecord  bool
		wantKinds   []core.NotificationKind
	}{
		{clock: "08:29", wantStatus: attendance.StatusTooEarly},
		{clock: "08:30", wantStatus: attendance.StatusPresent, wantAllowed: true, wantRecord: true, wantKinds: []core.NotificationKind{core.KindAttendanceSuccess}},
		{clock: "09:10", wantStatus: attendance.StatusPresent, wantAllowed: true, wantLate: 10, wantRecord: true, wantKinds: []core.NotificationKind{core.KindAttendanceSuccess}},
		{clock: "09:12", wantStatus: attendance.StatusLateBlocked, wantLate: 12, wantRecord: true, wantKinds: []core.NotificationKind{core.KindLateBlock}},
		{clock: "09:40", wantStatus: attendance.StatusVeryLate, wantLate: 40, wantRecord: true, wantKinds: []core.NotificationKind{core.KindLateBlock}},
	}
	for _, tt := range tests {
		t.Run(tt.clock, func(t *testing.T) {
			f := newFixture(t)
			res := f.scanAt(t, tt.clock, "1001")
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantAllowed, res.Allowed)
			assert.Equal(t, tt.wantLate, res.MinutesLate)
			assert.Equal(t, tt.wantStatus.Color(), res.ColorCode)

			records := f.attendances(t)
			if tt.wantRecord {
				require.Len(t, records, 1)
				assert.Equal(t, tt.wantStatus, records[0].Status)
				assert.Equal(t, tt.wantAllowed, records[0].AllowEntry)
				assert.Equal(t, tt.wantLate, records[0].MinutesLate)
			} else {
				assert.Empty(t, records)
			}

			if len(tt.wantKinds) > 0 {
				assert.Equal(t, tt.wantKinds, f.env.Notifier.Kinds())
			} else {
				assert.Empty(t, f.env.Notifier.Kinds())
			}

			wantAttended := 0
			if tt.wantAllowed {
				wantAttended = 1
			} else {
				attempts := f.attempts(t)
				require.Len(t, attempts, 1)
				assert.Equal(t, tt.wantStatus, attempts[0].Status)
			}
			assert.Equal(t, wantAttended, f.env.Enrollment(t, f.amina.ID, f.physics.ID).SessionsAttended)
		})
	}
}

func TestEngine_Scan_TooEarlyTouchesNothing(t *testing.T) {
	f := newFixture(t)
	res := f.scanAt(t, "08:00", "1001")
	assert.Equal(t, attendance.StatusTooEarly, res.Status)
	assert.Contains(t, res.Message, "60 minutes before the start")
	assert.Contains(t, res.Message, "09:00")

	sessions, err := f.env.AttendanceRepo.ListSessions(context.Background(), saturday, saturday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, sessions)

	res = f.scanAt(t, "08:45", "1001")
	assert.True(t, res.Allowed, "an early denial does not consume the session")
}

func TestEngine_Scan_LateIsFinal(t *testing.T) {
	f := newFixture(t)
	res := f.scanAt(t, "09:12", "1001")
	require.Equal(t, attendance.StatusLateBlocked, res.Status)
	late := f.env.Notifier.Sent()[0]
	assert.Equal(t, "12", late.Context["minutes_late"])
	assert.Equal(t, "09:00", late.Context["scheduled_time"])

	res = f.scanAt(t, "09:13", "1001")
	assert.Equal(t, attendance.StatusAlreadyRecorded, res.Status)
	assert.Equal(t, 0, f.env.Enrollment(t, f.amina.ID, f.physics.ID).SessionsAttended)
}

func TestEngine_Scan_NoSession(t *testing.T) {
	f := newFixture(t)
	testutil.SetNow(t, testutil.Date(2026, 10, 18, "09:00")) // sunday
	res, err := f.env.Engine.Scan(context.Background(), "1001", testutil.Supervisor)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusNoSession, res.Status)
	assert.Equal(t, "no class scheduled today for you.", res.Message)
	assert.Equal(t, "Amina", res.StudentName)

	attempts := f.attempts(t)
	require.Len(t, attempts, 1)
	assert.Equal(t, attendance.StatusNoSession, attempts[0].Status)
	assert.Empty(t, attempts[0].GroupID)
	assert.Equal(t, "1001", attempts[0].StudentCode)
}

func TestEngine_Scan_MatchesTodaysGroup(t *testing.T) {
	f := newFixture(t)
	math := f.env.CreateGroup(t, "Math", f.teacher.ID, "", "sunday", "16:00", 60)
	f.env.Enroll(t, f.amina.ID, math.ID)
	f.env.Pay(t, f.amina.ID, math.ID, 1, 100)

	testutil.SetNow(t, testutil.Date(2026, 10, 18, "16:02"))
	res, err := f.env.Engine.Scan(context.Background(), "1001", testutil.Supervisor)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, "Math", res.GroupName)
	assert.Equal(t, 1, f.env.Enrollment(t, f.amina.ID, math.ID).SessionsAttended)
	assert.Equal(t, 0, f.env.Enrollment(t, f.amina.ID, f.physics.ID).SessionsAttended)
}

func TestEngine_Scan_FinancialGate(t *testing.T) {
	f := newFixture(t)
	baraka := f.env.CreateStudent(t, "Baraka") // 1002
	f.env.Enroll(t, baraka.ID, f.physics.ID)
	f.env.Notifier.Reset()

	res := f.scanAt(t, "09:00", baraka.Code)
	assert.False(t, res.Allowed)
	assert.Equal(t, attendance.StatusPaymentBlocked, res.Status)
	assert.Equal(t, ledger.ReasonMessage(ledger.ReasonNewStudentNoPayment), res.Message)
	assert.Equal(t, attendance.ColorRed, res.ColorCode)
	assert.Equal(t, []core.NotificationKind{core.KindFinancialBlock}, f.env.Notifier.Kinds())
	assert.Empty(t, f.attendances(t), "a financial denial records no attendance")

	f.env.Pay(t, baraka.ID, f.physics.ID, 4, 400)
	res = f.scanAt(t, "09:03", baraka.Code)
	assert.True(t, res.Allowed, "paying at the desk lets the student in on the same day")
}

func TestEngine_Scan_CreditExceeded(t *testing.T) {
	f := newFixture(t)
	enr := f.env.Enrollment(t, f.amina.ID, f.physics.ID)
	enr.SessionsAttended = 7 // paid 4, credit 2
	_, err := f.env.LedgerRepo.UpdateEnrollment(context.Background(), enr)
	require.NoError(t, err)

	res := f.scanAt(t, "09:00", "1001")
	assert.Equal(t, attendance.StatusPaymentBlocked, res.Status)
	assert.Equal(t, ledger.ReasonMessage(ledger.ReasonCreditExceeded), res.Message)
}

func TestEngine_Scan_Exempt(t *testing.T) {
	f := newFixture(t)
	zawadi := f.env.CreateStudent(t, "Zawadi")
	f.env.Enroll(t, zawadi.ID, f.physics.ID, ledger.CategoryExempt)

	res := f.scanAt(t, "09:00", zawadi.Code)
	assert.True(t, res.Allowed)
}

func TestEngine_Scan_ConcurrentDoubleScan(t *testing.T) {
	f := newFixture(t)
	testutil.SetNow(t, core.MustClockTime("09:05").On(saturday))

	const scans = 10
	results := make([]attendance.ScanResult, scans)
	var wg sync.WaitGroup
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.env.Engine.Scan(context.Background(), "1001", testutil.Supervisor)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, res := range results {
		if res.Allowed {
			admitted++
		} else {
			assert.Equal(t, attendance.StatusAlreadyRecorded, res.Status)
		}
	}
	assert.Equal(t, 1, admitted)
	assert.Equal(t, 1, f.env.Enrollment(t, f.amina.ID, f.physics.ID).SessionsAttended)
	assert.Len(t, f.attendances(t), 1)
}

func TestEngine_Scan_CreditWarnings(t *testing.T) {
	f := newFixture(t)
	enr := f.env.Enrollment(t, f.amina.ID, f.physics.ID)
	enr.SessionsAttended = 4 // paid 4, credit 2: the next scan leaves one session
	_, err := f.env.LedgerRepo.UpdateEnrollment(context.Background(), enr)
	require.NoError(t, err)

	res := f.scanAt(t, "09:00", "1001")
	require.True(t, res.Allowed)
	assert.Equal(t, []core.NotificationKind{core.KindAttendanceSuccess, core.KindCreditWarning}, f.env.Notifier.Kinds())
}
