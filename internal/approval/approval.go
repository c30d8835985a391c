package approval

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
)

type Store interface {
	CreateApproval(ctx context.Context, req domain.ApprovalRequest, events ...domain.Event) error
	ResolveApproval(ctx context.Context, req domain.ApprovalRequest, events ...domain.Event) error
	GetApproval(ctx context.Context, id uuid.UUID) (*domain.ApprovalRequest, error)
	ListApprovals(ctx context.Context, f domain.ApprovalFilter) ([]domain.ApprovalRequest, error)
}

type Service struct {
	store  Store
	now    func() time.Time
	logger observability.Logger
}

func NewService(store Store, logger observability.Logger) *Service {
	return &Service{store: store, now: time.Now, logger: logger}
}

// Create opens a PENDING request assigned to the first approver of the verdict.
func (s *Service) Create(ctx context.Context, orgID, userID uuid.UUID, td domain.TravelData, verdict domain.PolicyVerdict) (*domain.ApprovalRequest, error) {
	now := s.now().UTC()
	req := domain.ApprovalRequest{
		ID:         uuid.New(),
		OrgID:      orgID,
		UserID:     userID,
		TravelData: td,
		Verdict:    verdict,
		Status:     domain.ApprovalPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if len(verdict.Approvers) > 0 {
		approver := verdict.Approvers[0]
		req.ApproverID = &approver
	}

	ev := domain.NewEvent(domain.EventApprovalRequested, domain.AggregateApproval, req.ID, req)
	if err := s.store.CreateApproval(ctx, req, ev); err != nil {
		return nil, errors.Wrap(err, "create approval request")
	}
	observability.LoggerFromContext(ctx, s.logger).WithFields(map[string]interface{}{
		"approval_id": req.ID,
		"org_id":      orgID,
		"summary":     ViolationSummary(verdict),
	}).Info("approval requested")
	return &req, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.ApprovalRequest, error) {
	return s.store.GetApproval(ctx, id)
}

// List returns the requests of an organization, newest first.
func (s *Service) List(ctx context.Context, f domain.ApprovalFilter) ([]domain.ApprovalRequest, error) {
	if f.OrgID == uuid.Nil {
		return nil, errors.Wrap(domain.ErrInvalidInput, "organization is required")
	}
	return s.store.ListApprovals(ctx, f)
}

// Resolve approves or rejects a PENDING request. Resolution is final: a request that
// was already resolved, including by a concurrent call, fails with ErrAlreadyResolved.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID, action domain.ApprovalAction, approverID uuid.UUID, reason string) (*domain.ApprovalRequest, error) {
	status, err := action.Status()
	if err != nil {
		return nil, err
	}
	req, err := s.store.GetApproval(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Resolved() {
		return nil, errors.Wrapf(domain.ErrAlreadyResolved, "approval %s is %s", id, req.Status)
	}

	now := s.now().UTC()
	req.Status = status
	req.ApproverID = &approverID
	req.Reason = reason
	req.UpdatedAt = now
	req.ResolvedAt = &now

	ev := domain.NewEvent(domain.EventApprovalResolved, domain.AggregateApproval, req.ID, req)
	err = s.store.ResolveApproval(ctx, *req, ev)
	if errors.Is(err, domain.ErrConflict) {
		return nil, errors.Mark(errors.Wrapf(err, "approval %s", id), domain.ErrAlreadyResolved)
	}
	if err != nil {
		return nil, errors.Wrap(err, "resolve approval request")
	}
	return req, nil
}
