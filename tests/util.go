package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/report"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/student"
	notifysvc "github.com/trezcool/mahudhurio/services/notify"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	dummydb "github.com/trezcool/mahudhurio/storage/database/dummy"
)

// Supervisor is the actor recorded on fixture operations.
var Supervisor = core.Actor{ID: "sup-1", Name: "Supervisor", Email: "supervisor@test.test"}

// Env wires every service over the in-memory database, with a recording notifier and UTC clock.
type Env struct {
	DB       *dummydb.DB
	Tx       core.Transactor
	Notifier *notifysvc.Recorder
	Logger   core.Logger

	ScheduleRepo   schedule.Repository
	StudentRepo    student.Repository
	LedgerRepo     ledger.Repository
	AttendanceRepo attendance.Repository

	Schedule *schedule.Service
	Students *student.Service
	Ledger   *ledger.Service
	Engine   *attendance.Engine
	Reports  *report.Service
}

func NewEnv(t *testing.T) *Env {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	env := &Env{
		DB:             db,
		Tx:             dummydb.NewTransactor(db),
		Logger:         logsvc.NewNopLogger(),
		ScheduleRepo:   dummydb.NewScheduleRepository(db),
		StudentRepo:    dummydb.NewStudentRepository(db),
		LedgerRepo:     dummydb.NewLedgerRepository(db),
		AttendanceRepo: dummydb.NewAttendanceRepository(db),
	}
	env.Notifier = notifysvc.NewRecorder(attendance.DeliveryHook(env.AttendanceRepo, env.Logger))

	attConf := attendance.DefaultConfig()
	attConf.Location = time.UTC

	env.Schedule = schedule.NewService(env.ScheduleRepo, schedule.DefaultConfig())
	env.Students = student.NewService(env.StudentRepo)
	env.Ledger = ledger.NewService(env.LedgerRepo, env.Tx, env.StudentRepo, env.Schedule, env.Notifier, env.Logger, ledger.DefaultConfig())
	env.Engine = attendance.NewEngine(env.AttendanceRepo, env.Tx, env.Students, env.Schedule, env.Ledger, env.Notifier, env.Logger, attConf)
	env.Reports = report.NewService(env.Schedule, env.Students, env.Ledger, env.AttendanceRepo, time.UTC)
	return env
}

// SetNow freezes every package clock at now until the test ends.
func SetNow(t *testing.T, now time.Time) {
	prevSched, prevStu, prevLedger, prevAtt := schedule.NowFunc, student.NowFunc, ledger.NowFunc, attendance.NowFunc
	clock := func() time.Time { return now }
	schedule.NowFunc, student.NowFunc, ledger.NowFunc, attendance.NowFunc = clock, clock, clock, clock
	t.Cleanup(func() {
		schedule.NowFunc, student.NowFunc, ledger.NowFunc, attendance.NowFunc = prevSched, prevStu, prevLedger, prevAtt
	})
}

// Date is a UTC instant on the given day and clock time, eg. Date(2026, 10, 17, "09:05").
func Date(year int, month time.Month, day int, clock string) time.Time {
	ct := core.MustClockTime(clock)
	return ct.On(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

func (env *Env) CreateRoom(t *testing.T, name string, capacity int) schedule.Room {
	room, err := env.Schedule.CreateRoom(context.Background(), schedule.NewRoom{Name: name, Capacity: capacity})
	if err != nil {
		t.Fatalf("createRoom() failed: %v", err)
	}
	return room
}

func (env *Env) CreateTeacher(t *testing.T, name string) schedule.Teacher {
	teacher, err := env.Schedule.CreateTeacher(context.Background(), schedule.NewTeacher{Name: name})
	if err != nil {
		t.Fatalf("createTeacher() failed: %v", err)
	}
	return teacher
}

// CreateGroup books a group in room (may be empty) on day at start ("HH:MM") for duration minutes.
func (env *Env) CreateGroup(t *testing.T, name, teacherID, roomID, day, start string, duration int, fee ...int64) schedule.Group {
	ng := schedule.NewGroup{
		Name:            name,
		TeacherID:       teacherID,
		RoomID:          roomID,
		Day:             day,
		StartTime:       start,
		DurationMinutes: duration,
		Fee:             decimal.NewFromInt(100),
	}
	if len(fee) > 0 {
		ng.Fee = decimal.NewFromInt(fee[0])
	}
	grp, err := env.Schedule.CreateGroup(context.Background(), ng)
	if err != nil {
		t.Fatalf("createGroup() failed: %v", err)
	}
	return grp
}

func (env *Env) CreateStudent(t *testing.T, name string) student.Student {
	stu, err := env.Students.Create(context.Background(), student.NewStudent{
		Name:          name,
		GuardianName:  name + "'s guardian",
		GuardianEmail: "guardian@test.test",
	})
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return stu
}

func (env *Env) Enroll(t *testing.T, studentID, groupID string, category ...ledger.Category) ledger.Enrollment {
	ne := ledger.NewEnrollment{StudentID: studentID, GroupID: groupID}
	if len(category) > 0 {
		ne.Category = category[0]
	}
	enr, err := env.Ledger.Enroll(context.Background(), ne, Supervisor)
	if err != nil {
		t.Fatalf("enroll() failed: %v", err)
	}
	return enr
}

func (env *Env) Pay(t *testing.T, studentID, groupID string, sessions int, amount int64) ledger.Enrollment {
	enr, err := env.Ledger.RecordPayment(context.Background(), ledger.NewPayment{
		StudentID:     studentID,
		GroupID:       groupID,
		Amount:        decimal.NewFromInt(amount),
		SessionsCount: sessions,
	}, Supervisor)
	if err != nil {
		t.Fatalf("pay() failed: %v", err)
	}
	return enr
}

func (env *Env) Enrollment(t *testing.T, studentID, groupID string) ledger.Enrollment {
	enr, err := env.Ledger.FindEnrollment(context.Background(), studentID, groupID)
	if err != nil {
		t.Fatalf("findEnrollment() failed: %v", err)
	}
	return enr
}
