package report

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/student"
)

type (
	GroupLister interface {
		ListGroups(ctx context.Context) ([]schedule.Group, error)
	}

	StudentFinder interface {
		GetByID(ctx context.Context, id string) (student.Student, error)
	}

	LedgerReader interface {
		ListEnrollments(ctx context.Context, activeOnly bool) ([]ledger.Enrollment, error)
		MonthlyPayments(ctx context.Context, year, month int) ([]ledger.MonthlyPayment, error)
	}

	AttendanceReader interface {
		ListSessions(ctx context.Context, from, to time.Time) ([]attendance.Session, error)
		ListAttendance(ctx context.Context, from, to time.Time) ([]attendance.Attendance, error)
		ListBlockedAttempts(ctx context.Context, from, to time.Time) ([]attendance.BlockedAttempt, error)
	}

	// Service aggregates read-only views over attendance and payments.
	Service struct {
		groups     GroupLister
		students   StudentFinder
		ledger     LedgerReader
		attendance AttendanceReader
		loc        *time.Location
	}
)

func NewService(groups GroupLister, students StudentFinder, ledger LedgerReader, att AttendanceReader, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{groups: groups, students: students, ledger: ledger, attendance: att, loc: loc}
}

// DailySummary counts the scan outcomes and sessions of date.
// Admissions come from attendance records, denials from blocked attempts.
func (svc *Service) DailySummary(ctx context.Context, date time.Time) (DailySummary, error) {
	from := core.DateOf(date.In(svc.loc))
	to := from.AddDate(0, 0, 1)

	sessions, err := svc.attendance.ListSessions(ctx, from, to)
	if err != nil {
		return DailySummary{}, errors.Wrap(err, "listing sessions")
	}
	records, err := svc.attendance.ListAttendance(ctx, from, to)
	if err != nil {
		return DailySummary{}, errors.Wrap(err, "listing attendance")
	}
	attempts, err := svc.attendance.ListBlockedAttempts(ctx, from, to)
	if err != nil {
		return DailySummary{}, errors.Wrap(err, "listing blocked attempts")
	}

	sum := DailySummary{Date: from, Counts: make(map[attendance.Status]int)}
	for _, a := range records {
		if a.AllowEntry {
			sum.Counts[a.Status]++
			sum.Admitted++
		}
	}
	for _, b := range attempts {
		sum.Counts[b.Status]++
		sum.Denied++
	}
	for _, s := range sessions {
		if s.IsCancelled {
			sum.SessionsCancelled++
		} else {
			sum.SessionsHeld++
		}
	}
	return sum, nil
}

// MonthlySettlement reports, per group, what was held, attended, paid and still owed in the month.
// Outstanding debt reflects the current counters, not the month's end.
func (svc *Service) MonthlySettlement(ctx context.Context, year, month int) (Settlement, error) {
	if month < 1 || month > 12 {
		return Settlement{}, core.NewValidationError(nil, core.FieldError{Field: "month", Error: "month must be between 1 and 12"})
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, svc.loc)
	to := from.AddDate(0, 1, 0)

	groups, err := svc.groups.ListGroups(ctx)
	if err != nil {
		return Settlement{}, errors.Wrap(err, "listing groups")
	}
	sessions, err := svc.attendance.ListSessions(ctx, from, to)
	if err != nil {
		return Settlement{}, errors.Wrap(err, "listing sessions")
	}
	records, err := svc.attendance.ListAttendance(ctx, from, to)
	if err != nil {
		return Settlement{}, errors.Wrap(err, "listing attendance")
	}
	payments, err := svc.ledger.MonthlyPayments(ctx, year, month)
	if err != nil {
		return Settlement{}, errors.Wrap(err, "listing payments")
	}
	enrollments, err := svc.ledger.ListEnrollments(ctx, false)
	if err != nil {
		return Settlement{}, errors.Wrap(err, "listing enrollments")
	}

	sessionsByGroup := lo.GroupBy(sessions, func(s attendance.Session) string { return s.GroupID })
	admittedByGroup := lo.GroupBy(
		lo.Filter(records, func(a attendance.Attendance, _ int) bool { return a.AllowEntry }),
		func(a attendance.Attendance) string { return a.GroupID },
	)
	paymentsByGroup := lo.GroupBy(payments, func(p ledger.MonthlyPayment) string { return p.GroupID })
	enrollmentsByGroup := lo.GroupBy(enrollments, func(e ledger.Enrollment) string { return e.GroupID })

	st := Settlement{Year: year, Month: month, Rows: make([]SettlementRow, 0, len(groups))}
	st.Total.GroupName = "Total"
	st.Total.PaymentsTotal, st.Total.ExpectedRevenue = decimal.Zero, decimal.Zero

	for _, grp := range groups {
		row := SettlementRow{
			GroupID:         grp.ID,
			GroupName:       grp.Name,
			PaymentsTotal:   decimal.Zero,
			ExpectedRevenue: decimal.Zero,
		}
		for _, s := range sessionsByGroup[grp.ID] {
			if s.IsCancelled {
				row.SessionsCancelled++
			} else {
				row.SessionsHeld++
			}
		}
		for _, p := range paymentsByGroup[grp.ID] {
			row.PaymentsTotal = row.PaymentsTotal.Add(p.Amount)
			row.SessionsPaid += p.Sessions
		}

		enrByStudent := lo.KeyBy(enrollmentsByGroup[grp.ID], func(e ledger.Enrollment) string { return e.StudentID })
		for _, e := range enrByStudent {
			if e.IsActive && e.Debt() > 0 {
				row.OutstandingDebtSessions += e.Debt()
			}
		}
		for _, a := range admittedByGroup[grp.ID] {
			row.AdmittedAttendances++
			fee := grp.Fee
			if e, ok := enrByStudent[a.StudentID]; ok {
				fee = ledger.EffectiveFee(e, grp)
			}
			row.ExpectedRevenue = row.ExpectedRevenue.Add(fee)
		}

		if row.SessionsHeld+row.SessionsCancelled+row.AdmittedAttendances+row.SessionsPaid+row.OutstandingDebtSessions == 0 && !grp.IsActive {
			continue
		}
		st.Rows = append(st.Rows, row)

		st.Total.SessionsHeld += row.SessionsHeld
		st.Total.SessionsCancelled += row.SessionsCancelled
		st.Total.AdmittedAttendances += row.AdmittedAttendances
		st.Total.PaymentsTotal = st.Total.PaymentsTotal.Add(row.PaymentsTotal)
		st.Total.SessionsPaid += row.SessionsPaid
		st.Total.OutstandingDebtSessions += row.OutstandingDebtSessions
		st.Total.ExpectedRevenue = st.Total.ExpectedRevenue.Add(row.ExpectedRevenue)
	}

	sort.SliceStable(st.Rows, func(i, j int) bool { return st.Rows[i].GroupName < st.Rows[j].GroupName })
	return st, nil
}

// Debtors lists the active enrollments owing sessions, biggest debt first.
func (svc *Service) Debtors(ctx context.Context) ([]Debtor, error) {
	enrollments, err := svc.ledger.ListEnrollments(ctx, true)
	if err != nil {
		return nil, errors.Wrap(err, "listing enrollments")
	}
	groups, err := svc.groups.ListGroups(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing groups")
	}
	groupByID := lo.KeyBy(groups, func(g schedule.Group) string { return g.ID })

	debtors := make([]Debtor, 0)
	for _, e := range enrollments {
		if e.Debt() <= 0 {
			continue
		}
		stu, err := svc.students.GetByID(ctx, e.StudentID)
		if err != nil {
			return nil, errors.Wrapf(err, "looking up student %s", e.StudentID)
		}
		cs := ledger.GetCreditStatus(e)
		debtors = append(debtors, Debtor{
			StudentID:       stu.ID,
			StudentCode:     stu.Code,
			StudentName:     stu.Name,
			GroupID:         e.GroupID,
			GroupName:       groupByID[e.GroupID].Name,
			Debt:            cs.Debt,
			RemainingCredit: cs.RemainingCredit,
			IsBlocked:       cs.IsBlocked,
			BlockReason:     cs.BlockReason,
		})
	}

	sort.SliceStable(debtors, func(i, j int) bool {
		if debtors[i].Debt != debtors[j].Debt {
			return debtors[i].Debt > debtors[j].Debt
		}
		return debtors[i].StudentCode < debtors[j].StudentCode
	})
	return debtors, nil
}
