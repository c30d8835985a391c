package domain

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

type ApprovalAction string

const (
	ActionApprove ApprovalAction = "APPROVE"
	ActionReject  ApprovalAction = "REJECT"
)

func (a ApprovalAction) Status() (ApprovalStatus, error) {
	switch a {
	case ActionApprove:
		return ApprovalApproved, nil
	case ActionReject:
		return ApprovalRejected, nil
	}
	return "", errors.Wrapf(ErrInvalidInput, "unknown approval action %q", a)
}

type ApprovalRequest struct {
	ID         uuid.UUID      `json:"id"`
	OrgID      uuid.UUID      `json:"org_id"`
	UserID     uuid.UUID      `json:"user_id"`
	ApproverID *uuid.UUID     `json:"approver_id,omitempty"`
	TravelData TravelData     `json:"travel_data"`
	Verdict    PolicyVerdict  `json:"policy_evaluation"`
	Status     ApprovalStatus `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
}

func (r ApprovalRequest) Resolved() bool {
	return r.Status != ApprovalPending
}

// ApprovalFilter scopes a listing to an organization. UserID selects requests raised
// by that user, ApproverID requests assigned to that approver.
type ApprovalFilter struct {
	OrgID      uuid.UUID
	UserID     *uuid.UUID
	ApproverID *uuid.UUID
	Status     *ApprovalStatus
}
