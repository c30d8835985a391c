package domain

import "github.com/google/uuid"

type VerdictResult string

const (
	VerdictInPolicy         VerdictResult = "IN_POLICY"
	VerdictOutOfPolicy      VerdictResult = "OUT_OF_POLICY"
	VerdictApprovalRequired VerdictResult = "APPROVAL_REQUIRED"
	VerdictBookingBlocked   VerdictResult = "BOOKING_BLOCKED"
	VerdictHidden           VerdictResult = "HIDDEN"
	VerdictNotSpecified     VerdictResult = "NOT_SPECIFIED"
)

var verdictSeverity = map[VerdictResult]int{
	VerdictNotSpecified:     0,
	VerdictInPolicy:         1,
	VerdictOutOfPolicy:      2,
	VerdictApprovalRequired: 3,
	VerdictBookingBlocked:   4,
	VerdictHidden:           5,
}

func (r VerdictResult) Valid() bool {
	_, ok := verdictSeverity[r]
	return ok
}

// Severity orders results from least to most restrictive.
func (r VerdictResult) Severity() int {
	return verdictSeverity[r]
}

// PolicyVerdict is the classification of a trip against organization rules.
// Messages keep evaluation order; the first one is shown to travelers.
type PolicyVerdict struct {
	Result            VerdictResult `json:"result"`
	Messages          []string      `json:"messages"`
	Approvers         []uuid.UUID   `json:"approvers"`
	PoliciesEvaluated int           `json:"policies_evaluated"`
}

func NotSpecified() PolicyVerdict {
	return PolicyVerdict{Result: VerdictNotSpecified, Messages: []string{}, Approvers: []uuid.UUID{}}
}

func (v PolicyVerdict) Hidden() bool {
	return v.Result == VerdictHidden
}

// Purchasable is false for verdicts that forbid booking the offer.
func (v PolicyVerdict) Purchasable() bool {
	return v.Result != VerdictBookingBlocked && v.Result != VerdictHidden
}

func (v PolicyVerdict) NeedsApproval() bool {
	return v.Result == VerdictApprovalRequired || v.Result == VerdictOutOfPolicy
}
