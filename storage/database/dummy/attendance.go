package dummydb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func within(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func (repo *attendanceRepository) findSession(groupID string, date time.Time) (attendance.Session, bool) {
	for _, s := range repo.db.session.all() {
		if s.GroupID == groupID && sameDay(s.Date, date) {
			return s, true
		}
	}
	return attendance.Session{}, false
}

func (repo *attendanceRepository) GetOrCreateSession(_ context.Context, groupID string, date time.Time) (attendance.Session, error) {
	repo.db.session.Lock()
	defer repo.db.session.Unlock()

	if s, ok := repo.findSession(groupID, date); ok {
		return s, nil
	}
	s := attendance.Session{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		Date:      core.DateOf(date),
		CreatedAt: time.Now().UTC(),
	}
	repo.db.session.put(s.ID, s)
	return s, nil
}

func (repo *attendanceRepository) GetSession(_ context.Context, groupID string, date time.Time) (attendance.Session, error) {
	repo.db.session.RLock()
	defer repo.db.session.RUnlock()

	if s, ok := repo.findSession(groupID, date); ok {
		return s, nil
	}
	return attendance.Session{}, attendance.ErrSessionNotFound
}

func (repo *attendanceRepository) UpdateSession(_ context.Context, s attendance.Session) (attendance.Session, error) {
	repo.db.session.Lock()
	defer repo.db.session.Unlock()

	if _, ok := repo.db.session.get(s.ID); !ok {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	repo.db.session.put(s.ID, s)
	return s, nil
}

func (repo *attendanceRepository) ListSessions(_ context.Context, from, to time.Time) ([]attendance.Session, error) {
	repo.db.session.RLock()
	defer repo.db.session.RUnlock()

	out := make([]attendance.Session, 0)
	for _, s := range repo.db.session.all() {
		if within(s.Date, from, to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (repo *attendanceRepository) FindAttendance(_ context.Context, studentID, sessionID string) (attendance.Attendance, error) {
	repo.db.attend.RLock()
	defer repo.db.attend.RUnlock()

	for _, a := range repo.db.attend.all() {
		if a.StudentID == studentID && a.SessionID == sessionID {
			return a, nil
		}
	}
	return attendance.Attendance{}, attendance.ErrAttendanceNotFound
}

func (repo *attendanceRepository) CreateAttendance(_ context.Context, att attendance.Attendance) (attendance.Attendance, error) {
	repo.db.attend.Lock()
	defer repo.db.attend.Unlock()

	for _, a := range repo.db.attend.all() {
		if a.StudentID == att.StudentID && a.SessionID == att.SessionID {
			return attendance.Attendance{}, attendance.ErrAlreadyRecorded
		}
	}
	repo.db.attend.put(att.ID, att)
	return att, nil
}

func (repo *attendanceRepository) MarkNotificationSent(_ context.Context, attendanceID string, at time.Time) error {
	repo.db.attend.Lock()
	defer repo.db.attend.Unlock()

	a, ok := repo.db.attend.get(attendanceID)
	if !ok {
		return attendance.ErrAttendanceNotFound
	}
	a.NotificationSent = true
	a.NotificationSentAt = &at
	repo.db.attend.put(a.ID, a)
	return nil
}

func (repo *attendanceRepository) ListAttendance(_ context.Context, from, to time.Time) ([]attendance.Attendance, error) {
	repo.db.attend.RLock()
	defer repo.db.attend.RUnlock()

	out := make([]attendance.Attendance, 0)
	for _, a := range repo.db.attend.all() {
		if within(a.ScannedAt, from, to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (repo *attendanceRepository) CreateBlockedAttempt(_ context.Context, b attendance.BlockedAttempt) error {
	repo.db.attempts.Lock()
	defer repo.db.attempts.Unlock()

	repo.db.attempts.put(b.ID, b)
	return nil
}

func (repo *attendanceRepository) ListBlockedAttempts(_ context.Context, from, to time.Time) ([]attendance.BlockedAttempt, error) {
	repo.db.attempts.RLock()
	defer repo.db.attempts.RUnlock()

	out := make([]attendance.BlockedAttempt, 0)
	for _, b := range repo.db.attempts.all() {
		if within(b.AttemptedAt, from, to) {
			out = append(out, b)
		}
	}
	return out, nil
}
