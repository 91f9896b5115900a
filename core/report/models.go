package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type (
	DailySummary struct {
		Date              time.Time                 `json:"date"`
		Counts            map[attendance.Status]int `json:"counts"`
		Admitted          int                       `json:"admitted"`
		Denied            int                       `json:"denied"`
		SessionsHeld      int                       `json:"sessions_held"`
		SessionsCancelled int                       `json:"sessions_cancelled"`
	}

	SettlementRow struct {
		GroupID                 string          `json:"group_id"`
		GroupName               string          `json:"group_name"`
		SessionsHeld            int             `json:"sessions_held"`
		SessionsCancelled       int             `json:"sessions_cancelled"`
		AdmittedAttendances     int             `json:"admitted_attendances"`
		PaymentsTotal           decimal.Decimal `json:"payments_total"`
		SessionsPaid            int             `json:"sessions_paid"`
		OutstandingDebtSessions int             `json:"outstanding_debt_sessions"`
		ExpectedRevenue         decimal.Decimal `json:"expected_revenue"`
	}

	Settlement struct {
		Year  int             `json:"year"`
		Month int             `json:"month"`
		Rows  []SettlementRow `json:"rows"`
		Total SettlementRow   `json:"total"`
	}

	Debtor struct {
		StudentID       string `json:"student_id"`
		StudentCode     string `json:"student_code"`
		StudentName     string `json:"student_name"`
		GroupID         string `json:"group_id"`
		GroupName       string `json:"group_name"`
		Debt            int    `json:"debt"`
		RemainingCredit int    `json:"remaining_credit"`
		IsBlocked       bool   `json:"is_blocked"`
		BlockReason     string `json:"block_reason,omitempty"`
	}
)
