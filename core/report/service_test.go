package report_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/report"
	"github.com/trezcool/mahudhurio/core/student"
	testutil "github.com/trezcool/mahudhurio/tests"
)

var saturday = time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)

type day struct {
	env                            *testutil.Env
	amina, baraka, chausiku, daudi student.Student
	physicsID                      string
}

// saturdayScans plays a saturday of physics: two admissions, one late arrival, one unpaid new student.
func saturdayScans(t *testing.T) day {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	testutil.SetNow(t, testutil.Date(2026, 10, 15, "12:00"))

	teacher := env.CreateTeacher(t, "Mr. Salim")
	physics := env.CreateGroup(t, "Physics", teacher.ID, "", "saturday", "09:00", 90, 100)
	env.CreateGroup(t, "Math", teacher.ID, "", "sunday", "09:00", 90, 80)
	art := env.CreateGroup(t, "Art", teacher.ID, "", "monday", "09:00", 90, 50)
	_, err := env.Schedule.DeactivateGroup(ctx, art.ID)
	require.NoError(t, err)

	d := day{env: env, physicsID: physics.ID}
	d.amina = env.CreateStudent(t, "Amina")
	d.baraka = env.CreateStudent(t, "Baraka")
	d.chausiku = env.CreateStudent(t, "Chausiku")
	d.daudi = env.CreateStudent(t, "Daudi")
	for _, s := range []student.Student{d.amina, d.baraka, d.chausiku} {
		env.Enroll(t, s.ID, physics.ID)
	}
	fee := decimal.NewFromInt(40)
	_, err = env.Ledger.Enroll(ctx, ledger.NewEnrollment{StudentID: d.daudi.ID, GroupID: physics.ID, Category: ledger.CategorySymbolic, CustomFee: &fee}, testutil.Supervisor)
	require.NoError(t, err)

	env.Pay(t, d.amina.ID, physics.ID, 4, 400)
	env.Pay(t, d.chausiku.ID, physics.ID, 2, 200)
	env.Pay(t, d.daudi.ID, physics.ID, 1, 40)

	scan := func(clock, code string) {
		testutil.SetNow(t, core.MustClockTime(clock).On(saturday))
		_, err := env.Engine.Scan(ctx, code, testutil.Supervisor)
		require.NoError(t, err)
	}
	scan("09:00", d.baraka.Code)   // payment_blocked
	scan("09:02", d.daudi.Code)    // present
	scan("09:05", d.amina.Code)    // present
	scan("09:12", d.chausiku.Code) // late_blocked
	scan("09:13", "9999")          // unknown, not counted
	return d
}

func TestService_DailySummary(t *testing.T) {
	d := saturdayScans(t)

	sum, err := d.env.Reports.DailySummary(context.Background(), saturday.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, saturday, sum.Date)
	assert.Equal(t, 2, sum.Admitted)
	assert.Equal(t, 2, sum.Denied)
	assert.Equal(t, map[attendance.Status]int{
		attendance.StatusPresent:        2,
		attendance.StatusPaymentBlocked: 1,
		attendance.StatusLateBlocked:    1,
	}, sum.Counts)
	assert.Equal(t, 1, sum.SessionsHeld)
	assert.Zero(t, sum.SessionsCancelled)

	sum, err = d.env.Reports.DailySummary(context.Background(), saturday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Zero(t, sum.Admitted+sum.Denied+sum.SessionsHeld)
}

func TestService_MonthlySettlement(t *testing.T) {
	d := saturdayScans(t)
	ctx := context.Background()

	st, err := d.env.Reports.MonthlySettlement(ctx, 2026, 10)
	require.NoError(t, err)
	require.Len(t, st.Rows, 2, "inactive groups without activity are left out")

	math, physics := st.Rows[0], st.Rows[1]
	assert.Equal(t, "Math", math.GroupName)
	assert.Zero(t, math.AdmittedAttendances)
	assert.True(t, math.PaymentsTotal.IsZero())

	assert.Equal(t, "Physics", physics.GroupName)
	assert.Equal(t, 1, physics.SessionsHeld)
	assert.Equal(t, 2, physics.AdmittedAttendances)
	assert.Equal(t, 7, physics.SessionsPaid)
	assert.True(t, physics.PaymentsTotal.Equal(decimal.NewFromInt(640)), physics.PaymentsTotal.String())
	assert.True(t, physics.ExpectedRevenue.Equal(decimal.NewFromInt(140)), "custom fee applies: %s", physics.ExpectedRevenue)
	assert.Zero(t, physics.OutstandingDebtSessions)

	assert.Equal(t, "Total", st.Total.GroupName)
	assert.Equal(t, 2, st.Total.AdmittedAttendances)
	assert.True(t, st.Total.PaymentsTotal.Equal(decimal.NewFromInt(640)))

	st, err = d.env.Reports.MonthlySettlement(ctx, 2026, 9)
	require.NoError(t, err)
	assert.Zero(t, st.Total.AdmittedAttendances)
	assert.True(t, st.Total.PaymentsTotal.IsZero())

	_, err = d.env.Reports.MonthlySettlement(ctx, 2026, 0)
	_, invalid := errors.Cause(err).(*core.ValidationError)
	assert.True(t, invalid)
}

func TestService_Debtors(t *testing.T) {
	d := saturdayScans(t)
	ctx := context.Background()

	debtors, err := d.env.Reports.Debtors(ctx)
	require.NoError(t, err)
	assert.Empty(t, debtors)

	owe := func(s student.Student, attended int) {
		enr := d.env.Enrollment(t, s.ID, d.physicsID)
		enr.SessionsAttended = attended
		_, err := d.env.LedgerRepo.UpdateEnrollment(ctx, enr)
		require.NoError(t, err)
	}
	owe(d.baraka, 1) // new, nothing paid
	owe(d.daudi, 4)  // paid 1, credit 2

	debtors, err = d.env.Reports.Debtors(ctx)
	require.NoError(t, err)
	require.Len(t, debtors, 2)

	assert.Equal(t, d.daudi.ID, debtors[0].StudentID)
	assert.Equal(t, 3, debtors[0].Debt)
	assert.Equal(t, -1, debtors[0].RemainingCredit)
	assert.True(t, debtors[0].IsBlocked)
	assert.Equal(t, ledger.ReasonCreditExceeded, debtors[0].BlockReason)
	assert.Equal(t, "Physics", debtors[0].GroupName)

	assert.Equal(t, d.baraka.ID, debtors[1].StudentID)
	assert.Equal(t, 1, debtors[1].Debt)
	assert.Equal(t, ledger.ReasonNewStudentNoPayment, debtors[1].BlockReason)

	st, err := d.env.Reports.MonthlySettlement(ctx, 2026, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Total.OutstandingDebtSessions)
}

func TestWriteSettlementXLSX(t *testing.T) {
	d := saturdayScans(t)
	st, err := d.env.Reports.MonthlySettlement(context.Background(), 2026, 10)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.WriteSettlementXLSX(&buf, st))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{"2026-10"}, f.GetSheetList())
	rows, err := f.GetRows("2026-10")
	require.NoError(t, err)
	require.Len(t, rows, 4, "header, two groups, total")
	assert.Equal(t, "Group", rows[0][0])
	assert.Equal(t, "Expected revenue", rows[0][7])
	assert.Equal(t, "Math", rows[1][0])
	assert.Equal(t, "Physics", rows[2][0])
	assert.Equal(t, "2", rows[2][3])
	assert.Equal(t, "Total", rows[3][0])
}
