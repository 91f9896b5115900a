package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/mahudhurio/core"
)

type Category string

const (
	CategoryNormal   Category = "normal"
	CategorySymbolic Category = "symbolic" // reduced fee, usually with a custom fee
	CategoryExempt   Category = "exempt"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryNormal, CategorySymbolic, CategoryExempt:
		return true
	}
	return false
}

// eligibility reasons
const (
	ReasonNewStudentNoPayment = "new_student_no_payment"
	ReasonCreditExceeded      = "credit_exceeded"
	ReasonNotEnrolled         = "not_enrolled"
)

// audit actions
const (
	ActionEnrolled        = "enrolled"
	ActionPaymentRecorded = "payment_recorded"
	ActionBlocked         = "financially_blocked"
	ActionUnblocked       = "financial_block_cleared"
)

type (
	// Enrollment is the financial state of a student in a group.
	// Debt and remaining credit are derived from the counters, never stored.
	Enrollment struct {
		ID                   string           `json:"id"`
		StudentID            string           `json:"student_id"`
		GroupID              string           `json:"group_id"`
		Category             Category         `json:"category"`
		CustomFee            *decimal.Decimal `json:"custom_fee,omitempty"`
		IsNewStudent         bool             `json:"is_new_student"`
		CreditBalance        int              `json:"credit_balance"`
		SessionsAttended     int              `json:"sessions_attended"`
		SessionsPaidFor      int              `json:"sessions_paid_for"`
		LastPaymentAt        *time.Time       `json:"last_payment_at,omitempty"`
		LastPaymentAmount    decimal.Decimal  `json:"last_payment_amount"`
		IsFinanciallyBlocked bool             `json:"is_financially_blocked"`
		BlockReason          string           `json:"block_reason,omitempty"`
		IsActive             bool             `json:"is_active"`
		EnrolledAt           time.Time        `json:"enrolled_at"`
		UpdatedAt            time.Time        `json:"updated_at"`
	}

	CreditStatus struct {
		Debt            int    `json:"debt"`
		RemainingCredit int    `json:"remaining_credit"`
		IsBlocked       bool   `json:"is_blocked"`
		BlockReason     string `json:"block_reason,omitempty"`
	}

	Eligibility struct {
		Allowed bool   `json:"allowed"`
		Reason  string `json:"reason,omitempty"`
		Message string `json:"message,omitempty"`
	}

	// Snapshot captures the counters before or after an audited change.
	Snapshot struct {
		IsNewStudent         bool   `json:"is_new_student"`
		CreditBalance        int    `json:"credit_balance"`
		SessionsAttended     int    `json:"sessions_attended"`
		SessionsPaidFor      int    `json:"sessions_paid_for"`
		IsFinanciallyBlocked bool   `json:"is_financially_blocked"`
		BlockReason          string `json:"block_reason,omitempty"`
	}

	AuditEntry struct {
		ID            string           `json:"id"`
		Action        string           `json:"action"`
		StudentID     string           `json:"student_id"`
		GroupID       string           `json:"group_id"`
		OldValue      *Snapshot        `json:"old_value,omitempty"`
		NewValue      *Snapshot        `json:"new_value,omitempty"`
		Amount        *decimal.Decimal `json:"amount,omitempty"`
		SessionsCount *int             `json:"sessions_count,omitempty"`
		Actor         *core.Actor      `json:"actor,omitempty"`
		Notes         string           `json:"notes,omitempty"`
		CreatedAt     time.Time        `json:"created_at"`
	}

	// MonthlyPayment accumulates the payments of one enrollment in a calendar month.
	MonthlyPayment struct {
		StudentID string          `json:"student_id"`
		GroupID   string          `json:"group_id"`
		Year      int             `json:"year"`
		Month     int             `json:"month"`
		Amount    decimal.Decimal `json:"amount"`
		Sessions  int             `json:"sessions"`
		UpdatedAt time.Time       `json:"updated_at"`
	}

	NewEnrollment struct {
		StudentID string           `json:"student_id" validate:"required"`
		GroupID   string           `json:"group_id" validate:"required"`
		Category  Category         `json:"category" validate:"omitempty,oneof=normal symbolic exempt"`
		CustomFee *decimal.Decimal `json:"custom_fee"`
	}

	NewPayment struct {
		StudentID     string          `json:"student_id" validate:"required"`
		GroupID       string          `json:"group_id" validate:"required"`
		Amount        decimal.Decimal `json:"amount"`
		SessionsCount int             `json:"sessions_count" validate:"required,min=1"`
		Notes         string          `json:"notes"`
	}
)

func (e Enrollment) Debt() int {
	return e.SessionsAttended - e.SessionsPaidFor
}

func (e Enrollment) RemainingCredit() int {
	return e.CreditBalance - e.Debt()
}

func (e Enrollment) snapshot() *Snapshot {
	return &Snapshot{
		IsNewStudent:         e.IsNewStudent,
		CreditBalance:        e.CreditBalance,
		SessionsAttended:     e.SessionsAttended,
		SessionsPaidFor:      e.SessionsPaidFor,
		IsFinanciallyBlocked: e.IsFinanciallyBlocked,
		BlockReason:          e.BlockReason,
	}
}
