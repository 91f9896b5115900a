package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/trezcool/mahudhurio/core/schedule"
)

var reasonMessages = map[string]string{
	ReasonNewStudentNoPayment: "first month: payment is required before entry",
	ReasonCreditExceeded:      "unpaid sessions exceed the allowed credit, please see accounts",
	ReasonNotEnrolled:         "not enrolled in this group",
}

// ReasonMessage returns the human readable message of an eligibility reason.
func ReasonMessage(reason string) string {
	return reasonMessages[reason]
}

// GetCreditStatus derives debt, remaining credit and block state from the enrollment counters.
func GetCreditStatus(e Enrollment) CreditStatus {
	cs := CreditStatus{Debt: e.Debt(), RemainingCredit: e.RemainingCredit()}
	if e.Category == CategoryExempt {
		return cs
	}
	switch {
	case e.IsNewStudent && e.SessionsPaidFor == 0 && e.SessionsAttended > 0:
		cs.IsBlocked, cs.BlockReason = true, ReasonNewStudentNoPayment
	case cs.RemainingCredit < 0:
		cs.IsBlocked, cs.BlockReason = true, ReasonCreditExceeded
	}
	return cs
}

// CanAttend is the admission gate. A new student must pay before the first session.
func CanAttend(e Enrollment) Eligibility {
	if e.Category == CategoryExempt {
		return Eligibility{Allowed: true}
	}
	if e.IsNewStudent && e.SessionsPaidFor == 0 {
		return deny(ReasonNewStudentNoPayment)
	}
	if e.RemainingCredit() < 0 {
		return deny(ReasonCreditExceeded)
	}
	return Eligibility{Allowed: true}
}

// NotEnrolled is the denial for a student without an enrollment in the group.
func NotEnrolled() Eligibility {
	return deny(ReasonNotEnrolled)
}

func deny(reason string) Eligibility {
	return Eligibility{Allowed: false, Reason: reason, Message: reasonMessages[reason]}
}

// EffectiveFee is what the enrollment is charged per session.
func EffectiveFee(e Enrollment, g schedule.Group) decimal.Decimal {
	switch {
	case e.Category == CategoryExempt:
		return decimal.Zero
	case e.CustomFee != nil:
		return *e.CustomFee
	default:
		return g.Fee
	}
}

// applyBlock persists the derived block state on e and reports whether it changed.
func applyBlock(e *Enrollment) bool {
	cs := GetCreditStatus(*e)
	if cs.IsBlocked == e.IsFinanciallyBlocked && cs.BlockReason == e.BlockReason {
		return false
	}
	e.IsFinanciallyBlocked = cs.IsBlocked
	e.BlockReason = cs.BlockReason
	return true
}
