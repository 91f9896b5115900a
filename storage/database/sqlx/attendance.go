package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

type (
	sessionRow struct {
		ID                 string      `db:"id"`
		GroupID            string      `db:"group_id"`
		Date               time.Time   `db:"date"`
		IsCancelled        bool        `db:"is_cancelled"`
		CancelReason       null.String `db:"cancel_reason"`
		CancelledAt        null.Time   `db:"cancelled_at"`
		TeacherCheckedIn   bool        `db:"teacher_checked_in"`
		TeacherCheckedInAt null.Time   `db:"teacher_checked_in_at"`
		CreatedAt          time.Time   `db:"created_at"`
	}

	attendanceRow struct {
		ID                 string      `db:"id"`
		StudentID          string      `db:"student_id"`
		SessionID          string      `db:"session_id"`
		GroupID            string      `db:"group_id"`
		Status             string      `db:"status"`
		Color              string      `db:"color"`
		AllowEntry         bool        `db:"allow_entry"`
		MinutesLate        int         `db:"minutes_late"`
		RejectionReason    null.String `db:"rejection_reason"`
		RecordedByID       string      `db:"recorded_by_id"`
		RecordedByName     string      `db:"recorded_by_name"`
		ScannedAt          time.Time   `db:"scanned_at"`
		NotificationSent   bool        `db:"notification_sent"`
		NotificationSentAt null.Time   `db:"notification_sent_at"`
	}

	blockedAttemptRow struct {
		ID             string      `db:"id"`
		StudentID      string      `db:"student_id"`
		StudentCode    string      `db:"student_code"`
		StudentName    string      `db:"student_name"`
		GroupID        null.String `db:"group_id"`
		GroupName      null.String `db:"group_name"`
		Status         string      `db:"status"`
		Reason         string      `db:"reason"`
		ScheduledTime  null.String `db:"scheduled_time"`
		RecordedByID   string      `db:"recorded_by_id"`
		RecordedByName string      `db:"recorded_by_name"`
		AttemptedAt    time.Time   `db:"attempted_at"`
	}
)

func optTime(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

func (r sessionRow) session() attendance.Session {
	y, m, d := r.Date.Date()
	return attendance.Session{
		ID:                 r.ID,
		GroupID:            r.GroupID,
		Date:               time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		IsCancelled:        r.IsCancelled,
		CancelReason:       r.CancelReason.String,
		CancelledAt:        r.CancelledAt.Ptr(),
		TeacherCheckedIn:   r.TeacherCheckedIn,
		TeacherCheckedInAt: r.TeacherCheckedInAt.Ptr(),
		CreatedAt:          r.CreatedAt,
	}
}

func toAttendanceRow(a attendance.Attendance) attendanceRow {
	return attendanceRow{
		ID:                 a.ID,
		StudentID:          a.StudentID,
		SessionID:          a.SessionID,
		GroupID:            a.GroupID,
		Status:             string(a.Status),
		Color:              string(a.Color),
		AllowEntry:         a.AllowEntry,
		MinutesLate:        a.MinutesLate,
		RejectionReason:    optString(a.RejectionReason),
		RecordedByID:       a.RecordedBy.ID,
		RecordedByName:     a.RecordedBy.Name,
		ScannedAt:          a.ScannedAt.UTC(),
		NotificationSent:   a.NotificationSent,
		NotificationSentAt: optTime(a.NotificationSentAt),
	}
}

func (r attendanceRow) attendance() attendance.Attendance {
	return attendance.Attendance{
		ID:                 r.ID,
		StudentID:          r.StudentID,
		SessionID:          r.SessionID,
		GroupID:            r.GroupID,
		Status:             attendance.Status(r.Status),
		Color:              attendance.Color(r.Color),
		AllowEntry:         r.AllowEntry,
		MinutesLate:        r.MinutesLate,
		RejectionReason:    r.RejectionReason.String,
		RecordedBy:         core.Actor{ID: r.RecordedByID, Name: r.RecordedByName},
		ScannedAt:          r.ScannedAt,
		NotificationSent:   r.NotificationSent,
		NotificationSentAt: r.NotificationSentAt.Ptr(),
	}
}

func (r blockedAttemptRow) attempt() attendance.BlockedAttempt {
	return attendance.BlockedAttempt{
		ID:            r.ID,
		StudentID:     r.StudentID,
		StudentCode:   r.StudentCode,
		StudentName:   r.StudentName,
		GroupID:       r.GroupID.String,
		GroupName:     r.GroupName.String,
		Status:        attendance.Status(r.Status),
		Reason:        r.Reason,
		ScheduledTime: r.ScheduledTime.String,
		RecordedBy:    core.Actor{ID: r.RecordedByID, Name: r.RecordedByName},
		AttemptedAt:   r.AttemptedAt,
	}
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) GetOrCreateSession(ctx context.Context, groupID string, date time.Time) (attendance.Session, error) {
	_, err := getExec(ctx, repo.db).ExecContext(ctx, `
		INSERT INTO session (id, group_id, date, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT session_group_date_key DO NOTHING`,
		uuid.NewString(), groupID, dateParam(date), time.Now().UTC(),
	)
	if err != nil {
		return attendance.Session{}, errors.Wrap(err, "inserting session")
	}
	return repo.GetSession(ctx, groupID, date)
}

func (repo *attendanceRepository) GetSession(ctx context.Context, groupID string, date time.Time) (attendance.Session, error) {
	var row sessionRow
	err := getExec(ctx, repo.db).GetContext(ctx, &row, `
		SELECT * FROM session WHERE group_id = $1 AND date = $2`, groupID, dateParam(date))
	if err != nil {
		return attendance.Session{}, notFound(err, attendance.ErrSessionNotFound)
	}
	return row.session(), nil
}

func (repo *attendanceRepository) UpdateSession(ctx context.Context, s attendance.Session) (attendance.Session, error) {
	res, err := getExec(ctx, repo.db).ExecContext(ctx, `
		UPDATE session SET
			is_cancelled = $2, cancel_reason = $3, cancelled_at = $4,
			teacher_checked_in = $5, teacher_checked_in_at = $6
		WHERE id = $1`,
		s.ID, s.IsCancelled, optString(s.CancelReason), optTime(s.CancelledAt),
		s.TeacherCheckedIn, optTime(s.TeacherCheckedInAt),
	)
	if err != nil {
		return attendance.Session{}, errors.Wrap(err, "updating session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	return s, nil
}

func (repo *attendanceRepository) ListSessions(ctx context.Context, from, to time.Time) ([]attendance.Session, error) {
	var rows []sessionRow
	err := getExec(ctx, repo.db).SelectContext(ctx, &rows, `
		SELECT * FROM session WHERE date >= $1 AND date < $2 ORDER BY date, group_id`,
		dateParam(from), dateParam(to),
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting sessions")
	}
	out := make([]attendance.Session, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.session())
	}
	return out, nil
}

func (repo *attendanceRepository) FindAttendance(ctx context.Context, studentID, sessionID string) (attendance.Attendance, error) {
	var row attendanceRow
	err := getExec(ctx, repo.db).GetContext(ctx, &row, `
		SELECT * FROM attendance WHERE student_id = $1 AND session_id = $2`, studentID, sessionID)
	if err != nil {
		return attendance.Attendance{}, notFound(err, attendance.ErrAttendanceNotFound)
	}
	return row.attendance(), nil
}

func (repo *attendanceRepository) CreateAttendance(ctx context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	row := toAttendanceRow(a)
	_, err := getExec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO attendance (
			id, student_id, session_id, group_id, status, color, allow_entry, minutes_late, rejection_reason,
			recorded_by_id, recorded_by_name, scanned_at, notification_sent, notification_sent_at
		) VALUES (
			:id, :student_id, :session_id, :group_id, :status, :color, :allow_entry, :minutes_late, :rejection_reason,
			:recorded_by_id, :recorded_by_name, :scanned_at, :notification_sent, :notification_sent_at
		)`, row)
	if err != nil {
		if isUniqueViolation(err, "attendance_student_session_key") {
			return attendance.Attendance{}, attendance.ErrAlreadyRecorded
		}
		return attendance.Attendance{}, errors.Wrap(err, "inserting attendance")
	}
	return a, nil
}

func (repo *attendanceRepository) MarkNotificationSent(ctx context.Context, attendanceID string, at time.Time) error {
	res, err := getExec(ctx, repo.db).ExecContext(ctx, `
		UPDATE attendance SET notification_sent = true, notification_sent_at = $2 WHERE id = $1`,
		attendanceID, at.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "marking notification sent")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return attendance.ErrAttendanceNotFound
	}
	return nil
}

func (repo *attendanceRepository) ListAttendance(ctx context.Context, from, to time.Time) ([]attendance.Attendance, error) {
	var rows []attendanceRow
	err := getExec(ctx, repo.db).SelectContext(ctx, &rows, `
		SELECT * FROM attendance WHERE scanned_at >= $1 AND scanned_at < $2 ORDER BY scanned_at`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting attendance")
	}
	out := make([]attendance.Attendance, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.attendance())
	}
	return out, nil
}

func (repo *attendanceRepository) CreateBlockedAttempt(ctx context.Context, b attendance.BlockedAttempt) error {
	row := blockedAttemptRow{
		ID:             b.ID,
		StudentID:      b.StudentID,
		StudentCode:    b.StudentCode,
		StudentName:    b.StudentName,
		GroupID:        optString(b.GroupID),
		GroupName:      optString(b.GroupName),
		Status:         string(b.Status),
		Reason:         b.Reason,
		ScheduledTime:  optString(b.ScheduledTime),
		RecordedByID:   b.RecordedBy.ID,
		RecordedByName: b.RecordedBy.Name,
		AttemptedAt:    b.AttemptedAt.UTC(),
	}
	_, err := getExec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO blocked_attempt (
			id, student_id, student_code, student_name, group_id, group_name, status, reason,
			scheduled_time, recorded_by_id, recorded_by_name, attempted_at
		) VALUES (
			:id, :student_id, :student_code, :student_name, :group_id, :group_name, :status, :reason,
			:scheduled_time, :recorded_by_id, :recorded_by_name, :attempted_at
		)`, row)
	return errors.Wrap(err, "inserting blocked attempt")
}

func (repo *attendanceRepository) ListBlockedAttempts(ctx context.Context, from, to time.Time) ([]attendance.BlockedAttempt, error) {
	var rows []blockedAttemptRow
	err := getExec(ctx, repo.db).SelectContext(ctx, &rows, `
		SELECT * FROM blocked_attempt WHERE attempted_at >= $1 AND attempted_at < $2 ORDER BY attempted_at`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting blocked attempts")
	}
	out := make([]attendance.BlockedAttempt, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.attempt())
	}
	return out, nil
}
