package dummydb

import (
	"context"
	"fmt"

	"github.com/trezcool/mahudhurio/core/ledger"
)

type ledgerRepository struct {
	db *DB
}

var _ ledger.Repository = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db *DB) ledger.Repository {
	return &ledgerRepository{db: db}
}

func (repo *ledgerRepository) find(studentID, groupID string) (ledger.Enrollment, bool) {
	for _, e := range repo.db.enroll.all() {
		if e.StudentID == studentID && e.GroupID == groupID {
			return e, true
		}
	}
	return ledger.Enrollment{}, false
}

func (repo *ledgerRepository) CreateEnrollment(_ context.Context, enr ledger.Enrollment) (ledger.Enrollment, error) {
	repo.db.enroll.Lock()
	defer repo.db.enroll.Unlock()

	if _, ok := repo.find(enr.StudentID, enr.GroupID); ok {
		return ledger.Enrollment{}, ledger.ErrAlreadyEnrolled
	}
	repo.db.enroll.put(enr.ID, enr)
	return enr, nil
}

func (repo *ledgerRepository) GetEnrollment(_ context.Context, id string) (ledger.Enrollment, error) {
	repo.db.enroll.RLock()
	defer repo.db.enroll.RUnlock()

	if e, ok := repo.db.enroll.get(id); ok {
		return e, nil
	}
	return ledger.Enrollment{}, ledger.ErrNotEnrolled
}

func (repo *ledgerRepository) FindEnrollment(_ context.Context, studentID, groupID string) (ledger.Enrollment, error) {
	repo.db.enroll.RLock()
	defer repo.db.enroll.RUnlock()

	if e, ok := repo.find(studentID, groupID); ok {
		return e, nil
	}
	return ledger.Enrollment{}, ledger.ErrNotEnrolled
}

// LockEnrollment relies on the transactor serialising transactions.
func (repo *ledgerRepository) LockEnrollment(ctx context.Context, studentID, groupID string) (ledger.Enrollment, error) {
	return repo.FindEnrollment(ctx, studentID, groupID)
}

func (repo *ledgerRepository) UpdateEnrollment(_ context.Context, enr ledger.Enrollment) (ledger.Enrollment, error) {
	repo.db.enroll.Lock()
	defer repo.db.enroll.Unlock()

	if _, ok := repo.db.enroll.get(enr.ID); !ok {
		return ledger.Enrollment{}, ledger.ErrNotEnrolled
	}
	repo.db.enroll.put(enr.ID, enr)
	return enr, nil
}

func (repo *ledgerRepository) filter(keep func(e ledger.Enrollment) bool) []ledger.Enrollment {
	repo.db.enroll.RLock()
	defer repo.db.enroll.RUnlock()

	out := make([]ledger.Enrollment, 0)
	for _, e := range repo.db.enroll.all() {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (repo *ledgerRepository) ListStudentEnrollments(_ context.Context, studentID string, activeOnly bool) ([]ledger.Enrollment, error) {
	return repo.filter(func(e ledger.Enrollment) bool {
		return e.StudentID == studentID && (!activeOnly || e.IsActive)
	}), nil
}

func (repo *ledgerRepository) ListGroupEnrollments(_ context.Context, groupID string, activeOnly bool) ([]ledger.Enrollment, error) {
	return repo.filter(func(e ledger.Enrollment) bool {
		return e.GroupID == groupID && (!activeOnly || e.IsActive)
	}), nil
}

func (repo *ledgerRepository) ListEnrollments(_ context.Context, activeOnly bool) ([]ledger.Enrollment, error) {
	return repo.filter(func(e ledger.Enrollment) bool { return !activeOnly || e.IsActive }), nil
}

func (repo *ledgerRepository) AppendAudit(_ context.Context, entry ledger.AuditEntry) error {
	repo.db.audit.Lock()
	defer repo.db.audit.Unlock()

	repo.db.audit.put(entry.ID, entry)
	return nil
}

func (repo *ledgerRepository) ListAudit(_ context.Context, studentID, groupID string) ([]ledger.AuditEntry, error) {
	repo.db.audit.RLock()
	defer repo.db.audit.RUnlock()

	out := make([]ledger.AuditEntry, 0)
	for _, a := range repo.db.audit.all() {
		if a.StudentID == studentID && a.GroupID == groupID {
			out = append(out, a)
		}
	}
	return out, nil
}

func paymentKey(mp ledger.MonthlyPayment) string {
	return fmt.Sprintf("%s/%s/%04d-%02d", mp.StudentID, mp.GroupID, mp.Year, mp.Month)
}

func (repo *ledgerRepository) UpsertMonthlyPayment(_ context.Context, mp ledger.MonthlyPayment) (ledger.MonthlyPayment, error) {
	repo.db.payment.Lock()
	defer repo.db.payment.Unlock()

	key := paymentKey(mp)
	if old, ok := repo.db.payment.get(key); ok {
		mp.Amount = old.Amount.Add(mp.Amount)
		mp.Sessions += old.Sessions
	}
	repo.db.payment.put(key, mp)
	return mp, nil
}

func (repo *ledgerRepository) ListMonthlyPayments(_ context.Context, year, month int) ([]ledger.MonthlyPayment, error) {
	repo.db.payment.RLock()
	defer repo.db.payment.RUnlock()

	out := make([]ledger.MonthlyPayment, 0)
	for _, mp := range repo.db.payment.all() {
		if mp.Year == year && mp.Month == month {
			out = append(out, mp)
		}
	}
	return out, nil
}
