package approval_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/approval"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu       sync.Mutex
	requests map[uuid.UUID]domain.ApprovalRequest
	events   []domain.Event
}

func newMemStore() *memStore {
	return &memStore{requests: map[uuid.UUID]domain.ApprovalRequest{}}
}

func (m *memStore) CreateApproval(_ context.Context, req domain.ApprovalRequest, events ...domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
	m.events = append(m.events, events...)
	return nil
}

func (m *memStore) ResolveApproval(_ context.Context, req domain.ApprovalRequest, events ...domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.requests[req.ID].Status != domain.ApprovalPending {
		return errors.Wrap(domain.ErrConflict, "not pending")
	}
	m.requests[req.ID] = req
	m.events = append(m.events, events...)
	return nil
}

func (m *memStore) GetApproval(_ context.Context, id uuid.UUID) (*domain.ApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "approval %s", id)
	}
	return &req, nil
}

func (m *memStore) ListApprovals(_ context.Context, f domain.ApprovalFilter) ([]domain.ApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ApprovalRequest
	for _, r := range m.requests {
		if r.OrgID == f.OrgID {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestService_CreateAssignsFirstApprover(t *testing.T) {
	store := newMemStore()
	svc := approval.NewService(store, observability.NewNopLogger())
	first, second := uuid.New(), uuid.New()

	req, err := svc.Create(t.Context(), uuid.New(), uuid.New(), domain.TravelData{}, domain.PolicyVerdict{
		Result:    domain.VerdictApprovalRequired,
		Approvers: []uuid.UUID{first, second},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalPending, req.Status)
	require.NotNil(t, req.ApproverID)
	assert.Equal(t, first, *req.ApproverID)
	require.Len(t, store.events, 1)
	assert.Equal(t, domain.EventApprovalRequested, store.events[0].Type)
}

func TestService_ResolveIsOneWay(t *testing.T) {
	store := newMemStore()
	svc := approval.NewService(store, observability.NewNopLogger())
	req, err := svc.Create(t.Context(), uuid.New(), uuid.New(), domain.TravelData{}, domain.PolicyVerdict{Result: domain.VerdictOutOfPolicy})
	require.NoError(t, err)

	approver := uuid.New()
	resolved, err := svc.Resolve(t.Context(), req.ID, domain.ActionReject, approver, "too expensive")
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalRejected, resolved.Status)
	assert.Equal(t, approver, *resolved.ApproverID)
	assert.NotNil(t, resolved.ResolvedAt)

	_, err = svc.Resolve(t.Context(), req.ID, domain.ActionApprove, uuid.New(), "")
	assert.True(t, errors.Is(err, domain.ErrAlreadyResolved))

	stored, err := svc.Get(t.Context(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalRejected, stored.Status)
	assert.Equal(t, "too expensive", stored.Reason)
}

func TestService_ResolveLostRace(t *testing.T) {
	store := newMemStore()
	svc := approval.NewService(store, observability.NewNopLogger())
	req, err := svc.Create(t.Context(), uuid.New(), uuid.New(), domain.TravelData{}, domain.PolicyVerdict{})
	require.NoError(t, err)

	// Another resolver committed between read and conditional write.
	racing := *req
	racing.Status = domain.ApprovalApproved
	store.requests[req.ID] = racing
	store2 := &staleReads{memStore: store, stale: *req}

	_, err = approval.NewService(store2, observability.NewNopLogger()).Resolve(t.Context(), req.ID, domain.ActionReject, uuid.New(), "")
	assert.True(t, errors.Is(err, domain.ErrAlreadyResolved))
}

type staleReads struct {
	*memStore
	stale domain.ApprovalRequest
}

func (s *staleReads) GetApproval(context.Context, uuid.UUID) (*domain.ApprovalRequest, error) {
	r := s.stale
	return &r, nil
}

func TestService_ResolveUnknownAction(t *testing.T) {
	svc := approval.NewService(newMemStore(), observability.NewNopLogger())
	_, err := svc.Resolve(t.Context(), uuid.New(), "MAYBE", uuid.New(), "")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestService_ListRequiresOrg(t *testing.T) {
	svc := approval.NewService(newMemStore(), observability.NewNopLogger())
	_, err := svc.List(t.Context(), domain.ApprovalFilter{})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestFormatTravelData(t *testing.T) {
	td := domain.TravelData{
		Origin:      "Paris",
		Destination: "Lyon",
		Train: &domain.TrainDetails{
			Price:         decimal.RequireFromString("45.5"),
			Currency:      "EUR",
			Class:         "FIRST",
			DepartureDate: time.Date(2030, 4, 2, 8, 0, 0, 0, time.UTC),
		},
	}
	assert.Equal(t, "Paris → Lyon | EUR 45.50 | FIRST | 2030-04-02", approval.FormatTravelData(td))

	td.Origin, td.Train.Class = "", ""
	assert.Equal(t, "Unknown → Lyon | EUR 45.50 | Standard | 2030-04-02", approval.FormatTravelData(td))
	assert.Equal(t, "Travel booking", approval.FormatTravelData(domain.TravelData{}))
}

func TestViolationSummary(t *testing.T) {
	assert.Equal(t, "Over budget", approval.ViolationSummary(domain.PolicyVerdict{Result: domain.VerdictOutOfPolicy, Messages: []string{"Over budget", "Other"}}))
	assert.Equal(t, "Requires manager approval", approval.ViolationSummary(domain.PolicyVerdict{Result: domain.VerdictApprovalRequired}))
	assert.Equal(t, "Out of company policy", approval.ViolationSummary(domain.PolicyVerdict{Result: domain.VerdictOutOfPolicy}))
	assert.Equal(t, "Policy violation", approval.ViolationSummary(domain.PolicyVerdict{Result: domain.VerdictBookingBlocked}))
}
