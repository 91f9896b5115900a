package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/ledger"
)

type (
	enrollmentRow struct {
		ID                   string              `db:"id"`
		StudentID            string              `db:"student_id"`
		GroupID              string              `db:"group_id"`
		Category             string              `db:"category"`
		CustomFee            decimal.NullDecimal `db:"custom_fee"`
		IsNewStudent         bool                `db:"is_new_student"`
		CreditBalance        int                 `db:"credit_balance"`
		SessionsAttended     int                 `db:"sessions_attended"`
		SessionsPaidFor      int                 `db:"sessions_paid_for"`
		LastPaymentAt        null.Time           `db:"last_payment_at"`
		LastPaymentAmount    decimal.Decimal     `db:"last_payment_amount"`
		IsFinanciallyBlocked bool                `db:"is_financially_blocked"`
		BlockReason          null.String         `db:"block_reason"`
		IsActive             bool                `db:"is_active"`
		EnrolledAt           time.Time           `db:"enrolled_at"`
		UpdatedAt            time.Time           `db:"updated_at"`
	}

	auditRow struct {
		ID            string              `db:"id"`
		Action        string              `db:"action"`
		StudentID     string              `db:"student_id"`
		GroupID       string              `db:"group_id"`
		OldValue      null.JSON           `db:"old_value"`
		NewValue      null.JSON           `db:"new_value"`
		Amount        decimal.NullDecimal `db:"amount"`
		SessionsCount null.Int            `db:"sessions_count"`
		Actor         null.JSON           `db:"actor"`
		Notes         null.String         `db:"notes"`
		CreatedAt     time.Time           `db:"created_at"`
	}

	monthlyPaymentRow struct {
		StudentID string          `db:"student_id"`
		GroupID   string          `db:"group_id"`
		Year      int             `db:"year"`
		Month     int             `db:"month"`
		Amount    decimal.Decimal `db:"amount"`
		Sessions  int             `db:"sessions"`
		UpdatedAt time.Time       `db:"updated_at"`
	}
)

func toEnrollmentRow(e ledger.Enrollment) enrollmentRow {
	row := enrollmentRow{
		ID:                   e.ID,
		StudentID:            e.StudentID,
		GroupID:              e.GroupID,
		Category:             string(e.Category),
		IsNewStudent:         e.IsNewStudent,
		CreditBalance:        e.CreditBalance,
		SessionsAttended:     e.SessionsAttended,
		SessionsPaidFor:      e.SessionsPaidFor,
		LastPaymentAmount:    e.LastPaymentAmount,
		IsFinanciallyBlocked: e.IsFinanciallyBlocked,
		BlockReason:          optString(e.BlockReason),
		IsActive:             e.IsActive,
		EnrolledAt:           e.EnrolledAt.UTC(),
		UpdatedAt:            e.UpdatedAt.UTC(),
	}
	if e.CustomFee != nil {
		row.CustomFee = decimal.NewNullDecimal(*e.CustomFee)
	}
	if e.LastPaymentAt != nil {
		row.LastPaymentAt = null.TimeFrom(e.LastPaymentAt.UTC())
	}
	return row
}

func (r enrollmentRow) enrollment() ledger.Enrollment {
	return ledger.Enrollment{
		ID:                   r.ID,
		StudentID:            r.StudentID,
		GroupID:              r.GroupID,
		Category:             ledger.Category(r.Category),
		CustomFee:            nullDecimalPtr(r.CustomFee),
		IsNewStudent:         r.IsNewStudent,
		CreditBalance:        r.CreditBalance,
		SessionsAttended:     r.SessionsAttended,
		SessionsPaidFor:      r.SessionsPaidFor,
		LastPaymentAt:        r.LastPaymentAt.Ptr(),
		LastPaymentAmount:    r.LastPaymentAmount,
		IsFinanciallyBlocked: r.IsFinanciallyBlocked,
		BlockReason:          r.BlockReason.String,
		IsActive:             r.IsActive,
		EnrolledAt:           r.EnrolledAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func nullDecimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func jsonValue(v interface{}) (null.JSON, error) {
	if v == nil {
		return null.JSON{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return null.JSON{}, err
	}
	return null.JSONFrom(data), nil
}

func toAuditRow(a ledger.AuditEntry) (auditRow, error) {
	row := auditRow{
		ID:        a.ID,
		Action:    a.Action,
		StudentID: a.StudentID,
		GroupID:   a.GroupID,
		Notes:     optString(a.Notes),
		CreatedAt: a.CreatedAt.UTC(),
	}
	var err error
	if a.OldValue != nil {
		if row.OldValue, err = jsonValue(a.OldValue); err != nil {
			return row, errors.Wrap(err, "encoding old value")
		}
	}
	if a.NewValue != nil {
		if row.NewValue, err = jsonValue(a.NewValue); err != nil {
			return row, errors.Wrap(err, "encoding new value")
		}
	}
	if a.Actor != nil {
		if row.Actor, err = jsonValue(a.Actor); err != nil {
			return row, errors.Wrap(err, "encoding actor")
		}
	}
	if a.Amount != nil {
		row.Amount = decimal.NewNullDecimal(*a.Amount)
	}
	if a.SessionsCount != nil {
		row.SessionsCount = null.IntFrom(*a.SessionsCount)
	}
	return row, nil
}

func (r auditRow) entry() (ledger.AuditEntry, error) {
	a := ledger.AuditEntry{
		ID:        r.ID,
		Action:    r.Action,
		StudentID: r.StudentID,
		GroupID:   r.GroupID,
		Amount:    nullDecimalPtr(r.Amount),
		Notes:     r.Notes.String,
		CreatedAt: r.CreatedAt,
	}
	if r.SessionsCount.Valid {
		a.SessionsCount = r.SessionsCount.Ptr()
	}
	if r.OldValue.Valid {
		a.OldValue = new(ledger.Snapshot)
		if err := r.OldValue.Unmarshal(a.OldValue); err != nil {
			return a, errors.Wrap(err, "decoding old value")
		}
	}
	if r.NewValue.Valid {
		a.NewValue = new(ledger.Snapshot)
		if err := r.NewValue.Unmarshal(a.NewValue); err != nil {
			return a, errors.Wrap(err, "decoding new value")
		}
	}
	if r.Actor.Valid {
		a.Actor = new(core.Actor)
		if err := r.Actor.Unmarshal(a.Actor); err != nil {
			return a, errors.Wrap(err, "decoding actor")
		}
	}
	return a, nil
}

func (r monthlyPaymentRow) payment() ledger.MonthlyPayment {
	return ledger.MonthlyPayment(r)
}

type ledgerRepository struct {
	db *sqlx.DB
}

var _ ledger.Repository = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db *sqlx.DB) ledger.Repository {
	return &ledgerRepository{db: db}
}

func (repo *ledgerRepository) CreateEnrollment(ctx context.Context, e ledger.Enrollment) (ledger.Enrollment, error) {
	row := toEnrollmentRow(e)
	_, err := getExec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO enrollment (
			id, student_id, group_id, category, custom_fee, is_new_student, credit_balance,
			sessions_attended, sessions_paid_for, last_payment_at, last_payment_amount,
			is_financially_blocked, block_reason, is_active, enrolled_at, updated_at
		) VALUES (
			:id, :student_id, :group_id, :category, :custom_fee, :is_new_student, :credit_balance,
			:sessions_attended, :sessions_paid_for, :last_payment_at, :last_payment_amount,
			:is_financially_blocked, :block_reason, :is_active, :enrolled_at, :updated_at
		)`, row)
	if err != nil {
		if isUniqueViolation(err, "enrollment_student_group_key") {
			return ledger.Enrollment{}, ledger.ErrAlreadyEnrolled
		}
		return ledger.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return row.enrollment(), nil
}

func (repo *ledgerRepository) getEnrollment(ctx context.Context, query string, args ...interface{}) (ledger.Enrollment, error) {
	var row enrollmentRow
	if err := getExec(ctx, repo.db).GetContext(ctx, &row, query, args...); err != nil {
		return ledger.Enrollment{}, notFound(err, ledger.ErrNotEnrolled)
	}
	return row.enrollment(), nil
}

func (repo *ledgerRepository) GetEnrollment(ctx context.Context, id string) (ledger.Enrollment, error) {
	return repo.getEnrollment(ctx, `SELECT * FROM enrollment WHERE id = $1`, id)
}

func (repo *ledgerRepository) FindEnrollment(ctx context.Context, studentID, groupID string) (ledger.Enrollment, error) {
	return repo.getEnrollment(ctx, `SELECT * FROM enrollment WHERE student_id = $1 AND group_id = $2`, studentID, groupID)
}

func (repo *ledgerRepository) LockEnrollment(ctx context.Context, studentID, groupID string) (ledger.Enrollment, error) {
	return repo.getEnrollment(ctx, `
		SELECT * FROM enrollment WHERE student_id = $1 AND group_id = $2 FOR UPDATE`, studentID, groupID)
}

func (repo *ledgerRepository) UpdateEnrollment(ctx context.Context, e ledger.Enrollment) (ledger.Enrollment, error) {
	row := toEnrollmentRow(e)
	res, err := getExec(ctx, repo.db).NamedExecContext(ctx, `
		UPDATE enrollment SET
			category = :category, custom_fee = :custom_fee, is_new_student = :is_new_student,
			credit_balance = :credit_balance, sessions_attended = :sessions_attended,
			sessions_paid_for = :sessions_paid_for, last_payment_at = :last_payment_at,
			last_payment_amount = :last_payment_amount, is_financially_blocked = :is_financially_blocked,
			block_reason = :block_reason, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return ledger.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.Enrollment{}, ledger.ErrNotEnrolled
	}
	return row.enrollment(), nil
}

func (repo *ledgerRepository) selectEnrollments(ctx context.Context, query string, args ...interface{}) ([]ledger.Enrollment, error) {
	var rows []enrollmentRow
	if err := getExec(ctx, repo.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	out := make([]ledger.Enrollment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.enrollment())
	}
	return out, nil
}

func (repo *ledgerRepository) ListStudentEnrollments(ctx context.Context, studentID string, activeOnly bool) ([]ledger.Enrollment, error) {
	return repo.selectEnrollments(ctx, `
		SELECT * FROM enrollment WHERE student_id = $1 AND (is_active OR NOT $2)
		ORDER BY enrolled_at, id`, studentID, activeOnly)
}

func (repo *ledgerRepository) ListGroupEnrollments(ctx context.Context, groupID string, activeOnly bool) ([]ledger.Enrollment, error) {
	return repo.selectEnrollments(ctx, `
		SELECT * FROM enrollment WHERE group_id = $1 AND (is_active OR NOT $2)
		ORDER BY enrolled_at, id`, groupID, activeOnly)
}

func (repo *ledgerRepository) ListEnrollments(ctx context.Context, activeOnly bool) ([]ledger.Enrollment, error) {
	return repo.selectEnrollments(ctx, `
		SELECT * FROM enrollment WHERE is_active OR NOT $1 ORDER BY enrolled_at, id`, activeOnly)
}

func (repo *ledgerRepository) AppendAudit(ctx context.Context, entry ledger.AuditEntry) error {
	row, err := toAuditRow(entry)
	if err != nil {
		return err
	}
	_, err = getExec(ctx, repo.db).NamedExecContext(ctx, `
		INSERT INTO enrollment_audit (
			id, action, student_id, group_id, old_value, new_value, amount, sessions_count, actor, notes, created_at
		) VALUES (
			:id, :action, :student_id, :group_id, :old_value, :new_value, :amount, :sessions_count, :actor, :notes, :created_at
		)`, row)
	return errors.Wrap(err, "inserting audit entry")
}

func (repo *ledgerRepository) ListAudit(ctx context.Context, studentID, groupID string) ([]ledger.AuditEntry, error) {
	var rows []auditRow
	err := getExec(ctx, repo.db).SelectContext(ctx, &rows, `
		SELECT * FROM enrollment_audit WHERE student_id = $1 AND group_id = $2
		ORDER BY created_at, id`, studentID, groupID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting audit entries")
	}
	out := make([]ledger.AuditEntry, 0, len(rows))
	for _, r := range rows {
		entry, err := r.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func (repo *ledgerRepository) UpsertMonthlyPayment(ctx context.Context, mp ledger.MonthlyPayment) (ledger.MonthlyPayment, error) {
	mp.UpdatedAt = mp.UpdatedAt.UTC()
	query, args, err := getExec(ctx, repo.db).BindNamed(`
		INSERT INTO monthly_payment (student_id, group_id, year, month, amount, sessions, updated_at)
		VALUES (:student_id, :group_id, :year, :month, :amount, :sessions, :updated_at)
		ON CONFLICT (student_id, group_id, year, month) DO UPDATE SET
			amount = monthly_payment.amount + EXCLUDED.amount,
			sessions = monthly_payment.sessions + EXCLUDED.sessions,
			updated_at = EXCLUDED.updated_at
		RETURNING *`, monthlyPaymentRow(mp))
	if err != nil {
		return ledger.MonthlyPayment{}, errors.Wrap(err, "binding monthly payment")
	}
	var row monthlyPaymentRow
	if err = getExec(ctx, repo.db).GetContext(ctx, &row, query, args...); err != nil {
		return ledger.MonthlyPayment{}, errors.Wrap(err, "upserting monthly payment")
	}
	return row.payment(), nil
}

func (repo *ledgerRepository) ListMonthlyPayments(ctx context.Context, year, month int) ([]ledger.MonthlyPayment, error) {
	var rows []monthlyPaymentRow
	err := getExec(ctx, repo.db).SelectContext(ctx, &rows, `
		SELECT * FROM monthly_payment WHERE year = $1 AND month = $2
		ORDER BY group_id, student_id`, year, month)
	if err != nil {
		return nil, errors.Wrap(err, "selecting monthly payments")
	}
	out := make([]ledger.MonthlyPayment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.payment())
	}
	return out, nil
}
