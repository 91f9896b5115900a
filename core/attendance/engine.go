package attendance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/student"
)

const (
	msgInvalidCode     = "invalid code"
	msgNoSession       = "no class scheduled today for you."
	msgAlreadyRecorded = "already recorded"
	msgWelcome         = "welcome"
)

var (
	ErrSessionNotFound    = core.NewNotFoundError("session")
	ErrAttendanceNotFound = core.NewNotFoundError("attendance")
	ErrAlreadyRecorded    = errors.New("attendance already recorded for this session")

	// NowFunc is mockable in tests.
	NowFunc = time.Now
)

type (
	Repository interface {
		// GetOrCreateSession is idempotent by (group, date).
		GetOrCreateSession(ctx context.Context, groupID string, date time.Time) (Session, error)
		GetSession(ctx context.Context, groupID string, date time.Time) (Session, error)
		UpdateSession(ctx context.Context, s Session) (Session, error)
		// ListSessions returns sessions dated within [from, to).
		ListSessions(ctx context.Context, from, to time.Time) ([]Session, error)

		FindAttendance(ctx context.Context, studentID, sessionID string) (Attendance, error)
		// CreateAttendance fails with ErrAlreadyRecorded when (student, session) already has a record.
		CreateAttendance(ctx context.Context, a Attendance) (Attendance, error)
		MarkNotificationSent(ctx context.Context, attendanceID string, at time.Time) error
		// ListAttendance returns records scanned within [from, to).
		ListAttendance(ctx context.Context, from, to time.Time) ([]Attendance, error)

		CreateBlockedAttempt(ctx context.Context, b BlockedAttempt) error
		ListBlockedAttempts(ctx context.Context, from, to time.Time) ([]BlockedAttempt, error)
	}

	StudentFinder interface {
		GetByCode(ctx context.Context, code string) (student.Student, error)
		GetByID(ctx context.Context, id string) (student.Student, error)
	}

	GroupFinder interface {
		GetGroup(ctx context.Context, id string) (schedule.Group, error)
		GroupsOnDay(ctx context.Context, day core.Weekday) ([]schedule.Group, error)
	}

	Config struct {
		EarlyLimitMinutes      int
		LateLimitMinutes       int
		VeryLateAfterMinutes   int
		AutoCancelAfterMinutes int
		Location               *time.Location
	}

	Engine struct {
		repo     Repository
		tx       core.Transactor
		students StudentFinder
		groups   GroupFinder
		ledger   *ledger.Service
		notifier core.Notifier
		log      core.Logger
		conf     Config
	}

	// outcome is what the locked part of a scan decided.
	outcome struct {
		status     Status
		message    string
		attendance *Attendance
		enrollment *ledger.Enrollment
	}
)

func DefaultConfig() Config {
	return Config{
		EarlyLimitMinutes:      30,
		LateLimitMinutes:       10,
		VeryLateAfterMinutes:   15,
		AutoCancelAfterMinutes: 15,
		Location:               time.Local,
	}
}

func NewEngine(
	repo Repository,
	tx core.Transactor,
	students StudentFinder,
	groups GroupFinder,
	ledgerSvc *ledger.Service,
	notifier core.Notifier,
	logger core.Logger,
	conf Config,
) *Engine {
	if conf.Location == nil {
		conf.Location = time.Local
	}
	return &Engine{
		repo:     repo,
		tx:       tx,
		students: students,
		groups:   groups,
		ledger:   ledgerSvc,
		notifier: notifier,
		log:      logger,
		conf:     conf,
	}
}

func (eng *Engine) now() time.Time {
	return NowFunc().In(eng.conf.Location)
}

// Scan decides whether the student holding code may enter now.
// Business denials are returned as results; only infrastructure failures are errors.
func (eng *Engine) Scan(ctx context.Context, code string, actor core.Actor) (ScanResult, error) {
	now := eng.now()

	// 1. identification
	stu, err := eng.students.GetByCode(ctx, code)
	if err != nil && !core.IsNotFound(err) {
		return ScanResult{}, errors.Wrap(err, "looking up student")
	}
	if err != nil || !stu.IsActive {
		scanDecisions.WithLabelValues(string(StatusBlockedOther)).Inc()
		return deny(StatusBlockedOther, msgInvalidCode, "", ""), nil
	}

	// 2. schedule match
	grp, matched, err := eng.matchGroup(ctx, stu.ID, core.WeekdayOf(now))
	if err != nil {
		return ScanResult{}, err
	}
	if !matched {
		res := deny(StatusNoSession, msgNoSession, stu.Name, "")
		eng.afterDenial(ctx, res, stu, nil, now, actor)
		return res, nil
	}

	// 3. time window
	diff := core.ClockTimeOf(now).Minutes() - grp.StartTime.Minutes()
	td := CheckStrictTime(diff, eng.conf)
	if td.Status == StatusTooEarly {
		msg := fmt.Sprintf("%s, class starts at %s", td.Message, grp.StartTime)
		res := deny(StatusTooEarly, msg, stu.Name, grp.Name)
		eng.afterDenial(ctx, res, stu, &grp, now, actor)
		return res, nil
	}

	// 4. financial gate and recording, under the enrollment lock
	var out outcome
	err = eng.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = eng.decideLocked(ctx, stu, grp, td, now, actor)
		return err
	})
	if errors.Cause(err) == ErrAlreadyRecorded {
		out, err = outcome{status: StatusAlreadyRecorded, message: msgAlreadyRecorded}, nil
	}
	if err != nil {
		return ScanResult{}, errors.Wrap(err, "recording attendance")
	}

	res := ScanResult{
		Allowed:     out.status == StatusPresent,
		Status:      out.status,
		Message:     out.message,
		ColorCode:   out.status.Color(),
		StudentName: stu.Name,
		GroupName:   grp.Name,
	}
	if out.status == StatusPresent || out.status.IsLate() {
		res.MinutesLate = td.MinutesLate
	}

	scanDecisions.WithLabelValues(string(res.Status)).Inc()
	if res.Allowed {
		eng.notify(core.KindAttendanceSuccess, stu, grp, out.attendance, map[string]string{
			"time": now.Format("15:04"),
		})
		if out.enrollment != nil {
			eng.ledger.NotifyCreditState(*out.enrollment, stu, grp)
		}
		return res, nil
	}
	eng.afterDenial(ctx, res, stu, &grp, now, actor)
	switch {
	case res.Status.IsLate() && out.attendance != nil:
		eng.notify(core.KindLateBlock, stu, grp, out.attendance, map[string]string{
			"minutes_late":   strconv.Itoa(td.MinutesLate),
			"scheduled_time": grp.StartTime.String(),
		})
	case res.Status == StatusPaymentBlocked:
		eng.notify(core.KindFinancialBlock, stu, grp, nil, map[string]string{
			"reason": res.Message,
		})
	}
	return res, nil
}

// matchGroup returns the group of the first active enrollment meeting on day.
func (eng *Engine) matchGroup(ctx context.Context, studentID string, day core.Weekday) (schedule.Group, bool, error) {
	enrollments, err := eng.ledger.StudentEnrollments(ctx, studentID)
	if err != nil {
		return schedule.Group{}, false, errors.Wrap(err, "listing enrollments")
	}
	for _, enr := range enrollments {
		grp, err := eng.groups.GetGroup(ctx, enr.GroupID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return schedule.Group{}, false, errors.Wrap(err, "looking up group")
		}
		if grp.IsActive && grp.Day == day {
			return grp, true, nil
		}
	}
	return schedule.Group{}, false, nil
}

func (eng *Engine) decideLocked(
	ctx context.Context,
	stu student.Student,
	grp schedule.Group,
	td TimeDecision,
	now time.Time,
	actor core.Actor,
) (outcome, error) {
	enr, err := eng.ledger.LockTx(ctx, stu.ID, grp.ID)
	notEnrolled := core.IsNotFound(err)
	if err != nil && !notEnrolled {
		return outcome{}, err
	}

	sess, err := eng.repo.GetOrCreateSession(ctx, grp.ID, core.DateOf(now))
	if err != nil {
		return outcome{}, err
	}
	if sess.IsCancelled {
		msg := "session cancelled"
		if sess.CancelReason != "" {
			msg += ": " + sess.CancelReason
		}
		return outcome{status: StatusBlockedOther, message: msg}, nil
	}

	if _, err = eng.repo.FindAttendance(ctx, stu.ID, sess.ID); err == nil {
		return outcome{status: StatusAlreadyRecorded, message: msgAlreadyRecorded}, nil
	} else if !core.IsNotFound(err) {
		return outcome{}, err
	}

	att := Attendance{
		ID:          uuid.NewString(),
		StudentID:   stu.ID,
		SessionID:   sess.ID,
		GroupID:     grp.ID,
		Status:      td.Status,
		Color:       td.Status.Color(),
		MinutesLate: td.MinutesLate,
		RecordedBy:  actor,
		ScannedAt:   now.UTC(),
	}

	// lateness is final for the session: recorded, no ledger increment
	if !td.Allowed {
		att.RejectionReason = td.Message
		if att, err = eng.repo.CreateAttendance(ctx, att); err != nil {
			return outcome{}, err
		}
		return outcome{status: td.Status, message: td.Message, attendance: &att}, nil
	}

	elig := ledger.NotEnrolled()
	if !notEnrolled && enr.IsActive {
		elig = ledger.CanAttend(enr)
	}
	if !elig.Allowed {
		return outcome{status: StatusPaymentBlocked, message: elig.Message}, nil
	}

	att.AllowEntry = true
	if att, err = eng.repo.CreateAttendance(ctx, att); err != nil {
		return outcome{}, err
	}
	if enr, err = eng.ledger.IncrementAttendanceTx(ctx, enr); err != nil {
		return outcome{}, err
	}
	return outcome{status: StatusPresent, message: msgWelcome, attendance: &att, enrollment: &enr}, nil
}

// afterDenial writes the BlockedAttempt of a rejected scan. Failures are logged only.
func (eng *Engine) afterDenial(ctx context.Context, res ScanResult, stu student.Student, grp *schedule.Group, now time.Time, actor core.Actor) {
	ba := BlockedAttempt{
		ID:          uuid.NewString(),
		StudentID:   stu.ID,
		StudentCode: stu.Code,
		StudentName: stu.Name,
		Status:      res.Status,
		Reason:      res.Message,
		RecordedBy:  actor,
		AttemptedAt: now.UTC(),
	}
	if grp != nil {
		ba.GroupID = grp.ID
		ba.GroupName = grp.Name
		ba.ScheduledTime = grp.StartTime.String()
	}
	if err := eng.repo.CreateBlockedAttempt(ctx, ba); err != nil {
		eng.log.Error(fmt.Sprintf("recording blocked attempt: %v", err), err, actor)
	}
}

func (eng *Engine) notify(kind core.NotificationKind, stu student.Student, grp schedule.Group, att *Attendance, extra map[string]string) {
	guardian := stu.Guardian()
	if guardian.IsZero() {
		return
	}
	data := map[string]string{
		"student_name": stu.Name,
		"student_code": stu.Code,
		"group_name":   grp.Name,
	}
	for k, v := range extra {
		data[k] = v
	}
	n := core.Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Recipient: guardian,
		Context:   data,
		CreatedAt: NowFunc().UTC(),
	}
	if att != nil {
		n.AttendanceID = att.ID
	}
	eng.notifier.Notify(n)
}

func deny(status Status, msg, studentName, groupName string) ScanResult {
	return ScanResult{
		Status:      status,
		Message:     msg,
		ColorCode:   status.Color(),
		StudentName: studentName,
		GroupName:   groupName,
	}
}
