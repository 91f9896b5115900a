package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/schedule"
)

// TeacherCheckIn marks today's session of the group as started. Checking in twice is a no-op.
func (eng *Engine) TeacherCheckIn(ctx context.Context, groupID string, actor core.Actor) (Session, error) {
	now := eng.now()
	grp, err := eng.groups.GetGroup(ctx, groupID)
	if err != nil {
		return Session{}, err
	}
	if !grp.IsActive || grp.Day != core.WeekdayOf(now) {
		return Session{}, core.NewValidationError(nil, core.FieldError{Field: "group_id", Error: "the group has no session today"})
	}

	var sess Session
	err = eng.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if sess, err = eng.repo.GetOrCreateSession(ctx, grp.ID, core.DateOf(now)); err != nil {
			return err
		}
		if sess.IsCancelled {
			return core.NewValidationError(nil, core.FieldError{Field: "group_id", Error: "today's session was cancelled: " + sess.CancelReason})
		}
		if sess.TeacherCheckedIn {
			return nil
		}
		at := now.UTC()
		sess.TeacherCheckedIn = true
		sess.TeacherCheckedInAt = &at
		sess, err = eng.repo.UpdateSession(ctx, sess)
		return err
	})
	if err != nil {
		if _, ok := errors.Cause(err).(*core.ValidationError); ok {
			return Session{}, err
		}
		return Session{}, errors.Wrap(err, "checking in teacher")
	}
	eng.log.Info(fmt.Sprintf("teacher checked in for %s", grp), actor)
	return sess, nil
}

// CancelNoShows cancels today's sessions whose teacher has not checked in
// more than AutoCancelAfterMinutes after the start, and notifies the enrolled guardians.
// Already cancelled or started sessions are left alone, so it is safe to re-run.
func (eng *Engine) CancelNoShows(ctx context.Context) ([]Session, error) {
	now := eng.now()
	groups, err := eng.groups.GroupsOnDay(ctx, core.WeekdayOf(now))
	if err != nil {
		return nil, errors.Wrap(err, "listing today's groups")
	}

	grace := time.Duration(eng.conf.AutoCancelAfterMinutes) * time.Minute
	reason := fmt.Sprintf("the teacher did not check in within %d minutes of the start", eng.conf.AutoCancelAfterMinutes)

	var cancelled []Session
	for _, grp := range groups {
		if now.Sub(grp.StartsAt(now)) <= grace {
			continue
		}

		var (
			sess Session
			done bool
		)
		err := eng.tx.InTx(ctx, func(ctx context.Context) error {
			var err error
			if sess, err = eng.repo.GetOrCreateSession(ctx, grp.ID, core.DateOf(now)); err != nil {
				return err
			}
			if sess.IsCancelled || sess.TeacherCheckedIn {
				return nil
			}
			at := now.UTC()
			sess.IsCancelled = true
			sess.CancelReason = reason
			sess.CancelledAt = &at
			if sess, err = eng.repo.UpdateSession(ctx, sess); err != nil {
				return err
			}
			done = true
			return nil
		})
		if err != nil {
			return cancelled, errors.Wrapf(err, "cancelling session of group %s", grp.ID)
		}
		if !done {
			continue
		}

		sessionsCancelled.Inc()
		cancelled = append(cancelled, sess)
		eng.log.Info(fmt.Sprintf("session of %s auto-cancelled", grp))
		eng.notifyCancelled(ctx, grp, reason)
	}
	return cancelled, nil
}

func (eng *Engine) notifyCancelled(ctx context.Context, grp schedule.Group, reason string) {
	enrollments, err := eng.ledger.GroupEnrollments(ctx, grp.ID)
	if err != nil {
		eng.log.Error(fmt.Sprintf("listing enrollments of %s: %v", grp, err), err)
		return
	}
	for _, enr := range enrollments {
		stu, err := eng.students.GetByID(ctx, enr.StudentID)
		if err != nil {
			eng.log.Warn(fmt.Sprintf("cancellation notice skipped for student %s: %v", enr.StudentID, err))
			continue
		}
		eng.notify(core.KindSessionCancelled, stu, grp, nil, map[string]string{
			"scheduled_time": grp.StartTime.String(),
			"reason":         reason,
		})
	}
}

// Sweeper runs the no-show cancellation periodically.
type Sweeper struct {
	eng     *Engine
	log     core.Logger
	timeout time.Duration
	cron    *cron.Cron
}

func NewSweeper(eng *Engine, logger core.Logger) *Sweeper {
	return &Sweeper{
		eng:     eng,
		log:     logger,
		timeout: 50 * time.Second,
		cron: cron.New(
			cron.WithLocation(eng.conf.Location),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
	}
}

// Run is a single sweep.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()

	cancelled, err := s.eng.CancelNoShows(ctx)
	return len(cancelled), err
}

// StartCron schedules Run on spec (robfig/cron syntax, eg. "@every 1m").
func (s *Sweeper) StartCron(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if n, err := s.Run(ctx); err != nil {
			s.log.Error(fmt.Sprintf("auto-cancellation sweep: %v", err), err)
		} else if n > 0 {
			s.log.Info(fmt.Sprintf("auto-cancellation sweep cancelled %d sessions", n))
		}
	})
	if err != nil {
		return errors.Wrapf(err, "scheduling sweep %q", spec)
	}
	s.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once a running sweep completes.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}
