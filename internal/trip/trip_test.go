package trip_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
	"github.com/robertarktes/corporate-rail-bookings/internal/trip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu    sync.Mutex
	trips map[uuid.UUID]domain.Trip
	// beforeUpdate runs inside UpdateTripBookings before the version check.
	beforeUpdate func(t *domain.Trip)
}

func newMemStore() *memStore {
	return &memStore{trips: map[uuid.UUID]domain.Trip{}}
}

func (m *memStore) CreateTrip(_ context.Context, t domain.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[t.ID] = t
	return nil
}

func (m *memStore) GetTrip(_ context.Context, id uuid.UUID) (*domain.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "trip %s", id)
	}
	t.BookingIDs = append([]uuid.UUID(nil), t.BookingIDs...)
	return &t, nil
}

func (m *memStore) ListTrips(_ context.Context, ownerID uuid.UUID) ([]domain.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Trip
	for _, t := range m.trips {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) UpdateTripBookings(_ context.Context, id uuid.UUID, ids []uuid.UUID, expected int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.trips[id]
	if m.beforeUpdate != nil {
		m.beforeUpdate(&t)
	}
	if t.Version != expected {
		m.trips[id] = t
		return errors.Wrap(domain.ErrConflict, "version")
	}
	t.BookingIDs = ids
	t.Version++
	m.trips[id] = t
	return nil
}

func newTrip(t *testing.T, svc *trip.Service) *domain.Trip {
	t.Helper()
	tr, err := svc.Create(t.Context(), trip.CreateRequest{
		Name: "Offsite", OwnerID: uuid.New(), OrgID: uuid.New(),
		StartDate: time.Now(), EndDate: time.Now().Add(48 * time.Hour),
	})
	require.NoError(t, err)
	return tr
}

func TestService_AttachIsIdempotent(t *testing.T) {
	store := newMemStore()
	svc := trip.NewService(store, 3, observability.NewNopLogger())
	tr := newTrip(t, svc)
	booking := uuid.New()

	require.NoError(t, svc.Attach(t.Context(), tr.ID, booking))
	require.NoError(t, svc.Attach(t.Context(), tr.ID, booking))

	got, err := svc.Get(t.Context(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{booking}, got.BookingIDs)
	assert.EqualValues(t, 1, got.Version)
}

func TestService_AttachRetriesOnConflict(t *testing.T) {
	store := newMemStore()
	svc := trip.NewService(store, 3, observability.NewNopLogger())
	tr := newTrip(t, svc)
	other, mine := uuid.New(), uuid.New()

	raced := false
	store.beforeUpdate = func(t *domain.Trip) {
		if raced {
			return
		}
		raced = true
		t.BookingIDs = append(t.BookingIDs, other)
		t.Version++
	}

	require.NoError(t, svc.Attach(t.Context(), tr.ID, mine))
	got, err := svc.Get(t.Context(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{other, mine}, got.BookingIDs)
}

func TestService_AttachGivesUp(t *testing.T) {
	store := newMemStore()
	svc := trip.NewService(store, 2, observability.NewNopLogger())
	tr := newTrip(t, svc)
	store.beforeUpdate = func(t *domain.Trip) { t.Version++ }

	err := svc.Attach(t.Context(), tr.ID, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestService_AttachConcurrent(t *testing.T) {
	store := newMemStore()
	svc := trip.NewService(store, 50, observability.NewNopLogger())
	tr := newTrip(t, svc)

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 10)
	for i := range ids {
		ids[i] = uuid.New()
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			assert.NoError(t, svc.Attach(context.Background(), tr.ID, id))
		}(ids[i])
	}
	wg.Wait()

	got, err := svc.Get(t.Context(), tr.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, got.BookingIDs)
}

func TestService_CreateValidation(t *testing.T) {
	svc := trip.NewService(newMemStore(), 1, observability.NewNopLogger())
	_, err := svc.Create(t.Context(), trip.CreateRequest{Name: " ", OwnerID: uuid.New(), OrgID: uuid.New()})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = svc.Create(t.Context(), trip.CreateRequest{
		Name: "x", OwnerID: uuid.New(), OrgID: uuid.New(),
		StartDate: time.Now(), EndDate: time.Now().Add(-time.Hour),
	})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
