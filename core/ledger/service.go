package ledger

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/student"
)

var (
	ErrNotEnrolled     = core.NewNotFoundError("enrollment")
	ErrAlreadyEnrolled = errors.New("the student is already enrolled in this group")

	// NowFunc is mockable in tests.
	NowFunc = time.Now
)

type (
	Repository interface {
		// CreateEnrollment fails with ErrAlreadyEnrolled on a duplicate (student, group).
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, id string) (Enrollment, error)
		FindEnrollment(ctx context.Context, studentID, groupID string) (Enrollment, error)
		// LockEnrollment reads the enrollment and holds an exclusive lock on it until the surrounding transaction ends.
		LockEnrollment(ctx context.Context, studentID, groupID string) (Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		// ListStudentEnrollments returns the student's enrollments, oldest first.
		ListStudentEnrollments(ctx context.Context, studentID string, activeOnly bool) ([]Enrollment, error)
		ListGroupEnrollments(ctx context.Context, groupID string, activeOnly bool) ([]Enrollment, error)
		ListEnrollments(ctx context.Context, activeOnly bool) ([]Enrollment, error)

		AppendAudit(ctx context.Context, entry AuditEntry) error
		ListAudit(ctx context.Context, studentID, groupID string) ([]AuditEntry, error)
		// UpsertMonthlyPayment adds the payment's amount and sessions to the month's row, creating it if needed.
		UpsertMonthlyPayment(ctx context.Context, mp MonthlyPayment) (MonthlyPayment, error)
		ListMonthlyPayments(ctx context.Context, year, month int) ([]MonthlyPayment, error)
	}

	StudentFinder interface {
		GetStudentByID(ctx context.Context, id string) (student.Student, error)
	}

	GroupFinder interface {
		GetGroup(ctx context.Context, id string) (schedule.Group, error)
	}

	Config struct {
		ReturningCreditBalance int
		WarnAtRemainingCredit  int
		FinalWarningDebt       int
	}

	Service struct {
		repo     Repository
		tx       core.Transactor
		students StudentFinder
		groups   GroupFinder
		notifier core.Notifier
		log      core.Logger
		conf     Config
	}
)

func DefaultConfig() Config {
	return Config{ReturningCreditBalance: 2, WarnAtRemainingCredit: 1, FinalWarningDebt: 2}
}

func NewService(
	repo Repository,
	tx core.Transactor,
	students StudentFinder,
	groups GroupFinder,
	notifier core.Notifier,
	logger core.Logger,
	conf Config,
) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		students: students,
		groups:   groups,
		notifier: notifier,
		log:      logger,
		conf:     conf,
	}
}

func (svc *Service) Enroll(ctx context.Context, ne NewEnrollment, actor core.Actor) (Enrollment, error) {
	if ne.Category == "" {
		ne.Category = CategoryNormal
	}
	if !ne.Category.Valid() {
		return Enrollment{}, core.NewValidationError(nil, core.FieldError{Field: "category", Error: "unknown category"})
	}
	if ne.CustomFee != nil && ne.CustomFee.IsNegative() {
		return Enrollment{}, core.NewValidationError(nil, core.FieldError{Field: "custom_fee", Error: "fee cannot be negative"})
	}
	if _, err := svc.students.GetStudentByID(ctx, ne.StudentID); err != nil {
		return Enrollment{}, refError("student_id", err)
	}
	if _, err := svc.groups.GetGroup(ctx, ne.GroupID); err != nil {
		return Enrollment{}, refError("group_id", err)
	}

	now := NowFunc().UTC()
	enr := Enrollment{
		ID:                uuid.NewString(),
		StudentID:         ne.StudentID,
		GroupID:           ne.GroupID,
		Category:          ne.Category,
		CustomFee:         ne.CustomFee,
		IsNewStudent:      true,
		LastPaymentAmount: decimal.Zero,
		IsActive:          true,
		EnrolledAt:        now,
		UpdatedAt:         now,
	}

	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if enr, err = svc.repo.CreateEnrollment(ctx, enr); err != nil {
			return err
		}
		return svc.repo.AppendAudit(ctx, svc.auditEntry(ActionEnrolled, enr, nil, enr.snapshot(), actor, ""))
	})
	if errors.Cause(err) == ErrAlreadyEnrolled {
		return Enrollment{}, core.NewValidationError(err, core.FieldError{Field: "group_id", Error: err.Error()})
	}
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "enrolling student")
	}
	return enr, nil
}

func (svc *Service) GetEnrollment(ctx context.Context, id string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, id)
}

func (svc *Service) FindEnrollment(ctx context.Context, studentID, groupID string) (Enrollment, error) {
	return svc.repo.FindEnrollment(ctx, studentID, groupID)
}

func (svc *Service) StudentEnrollments(ctx context.Context, studentID string) ([]Enrollment, error) {
	return svc.repo.ListStudentEnrollments(ctx, studentID, true)
}

func (svc *Service) GroupEnrollments(ctx context.Context, groupID string) ([]Enrollment, error) {
	return svc.repo.ListGroupEnrollments(ctx, groupID, true)
}

func (svc *Service) ListEnrollments(ctx context.Context, activeOnly bool) ([]Enrollment, error) {
	return svc.repo.ListEnrollments(ctx, activeOnly)
}

func (svc *Service) MonthlyPayments(ctx context.Context, year, month int) ([]MonthlyPayment, error) {
	return svc.repo.ListMonthlyPayments(ctx, year, month)
}

// CheckEligibility answers CanAttend for (student, group). A missing enrollment is a denial, not an error.
func (svc *Service) CheckEligibility(ctx context.Context, studentID, groupID string) (Eligibility, error) {
	enr, err := svc.repo.FindEnrollment(ctx, studentID, groupID)
	if err != nil {
		if core.IsNotFound(err) {
			return NotEnrolled(), nil
		}
		return Eligibility{}, err
	}
	if !enr.IsActive {
		return NotEnrolled(), nil
	}
	return CanAttend(enr), nil
}

// RecordPayment credits sessions to the enrollment. The first payment turns a new student into a returning one.
func (svc *Service) RecordPayment(ctx context.Context, np NewPayment, actor core.Actor) (Enrollment, error) {
	var fields []core.FieldError
	if np.SessionsCount <= 0 {
		fields = append(fields, core.FieldError{Field: "sessions_count", Error: "sessions count must be positive"})
	}
	if np.Amount.IsNegative() {
		fields = append(fields, core.FieldError{Field: "amount", Error: "amount cannot be negative"})
	}
	if len(fields) > 0 {
		return Enrollment{}, core.NewValidationError(nil, fields...)
	}

	// resolved before taking the lock
	stu, err := svc.students.GetStudentByID(ctx, np.StudentID)
	if err != nil {
		return Enrollment{}, refError("student_id", err)
	}
	grp, err := svc.groups.GetGroup(ctx, np.GroupID)
	if err != nil {
		return Enrollment{}, refError("group_id", err)
	}

	now := NowFunc()
	var enr Enrollment
	err = svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if enr, err = svc.repo.LockEnrollment(ctx, np.StudentID, np.GroupID); err != nil {
			return err
		}
		before := enr.snapshot()

		paidAt := now.UTC()
		enr.SessionsPaidFor += np.SessionsCount
		enr.LastPaymentAt = &paidAt
		enr.LastPaymentAmount = np.Amount
		if enr.IsNewStudent {
			enr.IsNewStudent = false
			enr.CreditBalance = svc.conf.ReturningCreditBalance
		}
		applyBlock(&enr)
		enr.UpdatedAt = paidAt

		if enr, err = svc.repo.UpdateEnrollment(ctx, enr); err != nil {
			return err
		}

		entry := svc.auditEntry(ActionPaymentRecorded, enr, before, enr.snapshot(), actor, np.Notes)
		amount, sessions := np.Amount, np.SessionsCount
		entry.Amount, entry.SessionsCount = &amount, &sessions
		if err = svc.repo.AppendAudit(ctx, entry); err != nil {
			return err
		}

		_, err = svc.repo.UpsertMonthlyPayment(ctx, MonthlyPayment{
			StudentID: enr.StudentID,
			GroupID:   enr.GroupID,
			Year:      now.Year(),
			Month:     int(now.Month()),
			Amount:    np.Amount,
			Sessions:  np.SessionsCount,
			UpdatedAt: paidAt,
		})
		return err
	})
	if err != nil {
		if core.IsNotFound(err) {
			return Enrollment{}, err
		}
		return Enrollment{}, errors.Wrap(err, "recording payment")
	}

	svc.notify(core.KindPaymentConfirmation, stu, grp, map[string]string{
		"amount":   np.Amount.StringFixed(2),
		"sessions": strconv.Itoa(np.SessionsCount),
	})
	return enr, nil
}

// RecordAttendanceIncrement counts one more attended session and warns the guardian when credit runs low.
func (svc *Service) RecordAttendanceIncrement(ctx context.Context, studentID, groupID string) (Enrollment, error) {
	var enr Enrollment
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if enr, err = svc.repo.LockEnrollment(ctx, studentID, groupID); err != nil {
			return err
		}
		enr, err = svc.IncrementAttendanceTx(ctx, enr)
		return err
	})
	if err != nil {
		if core.IsNotFound(err) {
			return Enrollment{}, err
		}
		return Enrollment{}, errors.Wrap(err, "incrementing attendance")
	}

	stu, serr := svc.students.GetStudentByID(ctx, studentID)
	grp, gerr := svc.groups.GetGroup(ctx, groupID)
	if serr != nil || gerr != nil {
		svc.log.Warn("credit warning skipped: student or group lookup failed", serr, gerr)
		return enr, nil
	}
	svc.NotifyCreditState(enr, stu, grp)
	return enr, nil
}

// LockTx reads the enrollment of (student, group) and locks it. Must run inside a transaction.
func (svc *Service) LockTx(ctx context.Context, studentID, groupID string) (Enrollment, error) {
	return svc.repo.LockEnrollment(ctx, studentID, groupID)
}

// IncrementAttendanceTx must run inside a transaction that already holds the enrollment lock.
func (svc *Service) IncrementAttendanceTx(ctx context.Context, enr Enrollment) (Enrollment, error) {
	before := enr.snapshot()
	enr.SessionsAttended++
	blockChanged := applyBlock(&enr)
	enr.UpdatedAt = NowFunc().UTC()

	enr, err := svc.repo.UpdateEnrollment(ctx, enr)
	if err != nil {
		return Enrollment{}, err
	}
	if blockChanged {
		if err = svc.repo.AppendAudit(ctx, svc.blockAudit(enr, before)); err != nil {
			return Enrollment{}, err
		}
	}
	return enr, nil
}

// AutoBlockIfExceeded persists the block state derived from the counters. Safe to call repeatedly.
func (svc *Service) AutoBlockIfExceeded(ctx context.Context, studentID, groupID string) (Enrollment, error) {
	var enr Enrollment
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if enr, err = svc.repo.LockEnrollment(ctx, studentID, groupID); err != nil {
			return err
		}
		before := enr.snapshot()
		if !applyBlock(&enr) {
			return nil
		}
		enr.UpdatedAt = NowFunc().UTC()
		if enr, err = svc.repo.UpdateEnrollment(ctx, enr); err != nil {
			return err
		}
		return svc.repo.AppendAudit(ctx, svc.blockAudit(enr, before))
	})
	if err != nil {
		if core.IsNotFound(err) {
			return Enrollment{}, err
		}
		return Enrollment{}, errors.Wrap(err, "updating block state")
	}
	return enr, nil
}

// NotifyCreditState enqueues the low-credit warnings due after an attendance increment.
func (svc *Service) NotifyCreditState(enr Enrollment, stu student.Student, grp schedule.Group) {
	if enr.Category == CategoryExempt {
		return
	}
	if enr.RemainingCredit() == svc.conf.WarnAtRemainingCredit {
		svc.notify(core.KindCreditWarning, stu, grp, map[string]string{
			"remaining": strconv.Itoa(enr.RemainingCredit()),
		})
	}
	if !enr.IsNewStudent && enr.Debt() == svc.conf.FinalWarningDebt {
		svc.notify(core.KindFinalWarning, stu, grp, map[string]string{
			"debt": strconv.Itoa(enr.Debt()),
		})
	}
}

func (svc *Service) AuditTrail(ctx context.Context, studentID, groupID string) ([]AuditEntry, error) {
	return svc.repo.ListAudit(ctx, studentID, groupID)
}

func (svc *Service) notify(kind core.NotificationKind, stu student.Student, grp schedule.Group, extra map[string]string) {
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
	svc.notifier.Notify(core.Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Recipient: guardian,
		Context:   data,
		CreatedAt: NowFunc().UTC(),
	})
}

func (svc *Service) auditEntry(action string, enr Enrollment, oldVal, newVal *Snapshot, actor core.Actor, notes string) AuditEntry {
	entry := AuditEntry{
		ID:        uuid.NewString(),
		Action:    action,
		StudentID: enr.StudentID,
		GroupID:   enr.GroupID,
		OldValue:  oldVal,
		NewValue:  newVal,
		Notes:     notes,
		CreatedAt: NowFunc().UTC(),
	}
	if actor.ID != "" {
		entry.Actor = &actor
	}
	return entry
}

func (svc *Service) blockAudit(enr Enrollment, before *Snapshot) AuditEntry {
	action := ActionUnblocked
	if enr.IsFinanciallyBlocked {
		action = ActionBlocked
	}
	return svc.auditEntry(action, enr, before, enr.snapshot(), core.Actor{}, enr.BlockReason)
}

func refError(field string, err error) error {
	if core.IsNotFound(err) {
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return err
}
