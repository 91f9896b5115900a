package dummydb

import (
	"context"
	"sync"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/student"
)

type (
	DB struct {
		txMu sync.Mutex

		room     *table[schedule.Room]
		teacher  *table[schedule.Teacher]
		group    *table[schedule.Group]
		student  *table[student.Student]
		enroll   *table[ledger.Enrollment]
		audit    *table[ledger.AuditEntry]
		payment  *table[ledger.MonthlyPayment]
		session  *table[attendance.Session]
		attend   *table[attendance.Attendance]
		attempts *table[attendance.BlockedAttempt]
	}

	// table keeps rows in insertion order.
	table[T any] struct {
		sync.RWMutex
		rows  map[string]*T
		order []string
	}
)

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]*T)}
}

// all must be called with the lock held.
func (t *table[T]) all() []T {
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.rows[id])
	}
	return out
}

func (t *table[T]) get(id string) (T, bool) {
	if row, ok := t.rows[id]; ok {
		return *row, true
	}
	var zero T
	return zero, false
}

func (t *table[T]) put(id string, v T) {
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = &v
}

func Open() (*DB, error) {
	db := &DB{
		room:     newTable[schedule.Room](),
		teacher:  newTable[schedule.Teacher](),
		group:    newTable[schedule.Group](),
		student:  newTable[student.Student](),
		enroll:   newTable[ledger.Enrollment](),
		audit:    newTable[ledger.AuditEntry](),
		payment:  newTable[ledger.MonthlyPayment](),
		session:  newTable[attendance.Session](),
		attend:   newTable[attendance.Attendance](),
		attempts: newTable[attendance.BlockedAttempt](),
	}
	return db, nil
}

type txKey struct{}

// transactor serialises transactions. There is no rollback: a failing fn keeps the writes it made.
type transactor struct {
	db *DB
}

var _ core.Transactor = (*transactor)(nil) // interface compliance check

func NewTransactor(db *DB) core.Transactor {
	return &transactor{db: db}
}

func (t *transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}
