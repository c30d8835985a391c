package trip

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
)

type Store interface {
	CreateTrip(ctx context.Context, t domain.Trip) error
	GetTrip(ctx context.Context, id uuid.UUID) (*domain.Trip, error)
	ListTrips(ctx context.Context, ownerID uuid.UUID) ([]domain.Trip, error)
	UpdateTripBookings(ctx context.Context, id uuid.UUID, bookingIDs []uuid.UUID, expectedVersion int64) error
}

type Service struct {
	store       Store
	attachTries int
	logger      observability.Logger
}

func NewService(store Store, attachTries int, logger observability.Logger) *Service {
	if attachTries < 1 {
		attachTries = 1
	}
	return &Service{store: store, attachTries: attachTries, logger: logger}
}

type CreateRequest struct {
	Name      string
	OwnerID   uuid.UUID
	OrgID     uuid.UUID
	StartDate time.Time
	EndDate   time.Time
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Trip, error) {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return nil, errors.Wrap(domain.ErrInvalidInput, "trip name is required")
	case req.OwnerID == uuid.Nil || req.OrgID == uuid.Nil:
		return nil, errors.Wrap(domain.ErrInvalidInput, "trip owner and organization are required")
	case !req.EndDate.IsZero() && req.EndDate.Before(req.StartDate):
		return nil, errors.Wrap(domain.ErrInvalidInput, "trip ends before it starts")
	}
	t := domain.Trip{
		ID:         uuid.New(),
		Name:       strings.TrimSpace(req.Name),
		OwnerID:    req.OwnerID,
		OrgID:      req.OrgID,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		BookingIDs: []uuid.UUID{},
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateTrip(ctx, t); err != nil {
		return nil, errors.Wrap(err, "create trip")
	}
	return &t, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Trip, error) {
	return s.store.GetTrip(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Trip, error) {
	return s.store.ListTrips(ctx, ownerID)
}

// Attach adds bookingID to the trip unless it is already there. Concurrent writers
// are detected through the trip version; the loser re-reads and tries again.
func (s *Service) Attach(ctx context.Context, tripID, bookingID uuid.UUID) error {
	var err error
	for attempt := 1; attempt <= s.attachTries; attempt++ {
		var t *domain.Trip
		t, err = s.store.GetTrip(ctx, tripID)
		if err != nil {
			return err
		}
		if !t.Attach(bookingID) {
			return nil
		}
		err = s.store.UpdateTripBookings(ctx, tripID, t.BookingIDs, t.Version)
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}
		observability.TripAttachConflicts.Inc()
		observability.LoggerFromContext(ctx, s.logger).WithFields(map[string]interface{}{
			"trip_id":    tripID,
			"booking_id": bookingID,
			"attempt":    attempt,
		}).Debug("trip changed concurrently, retrying attach")
	}
	return errors.Wrapf(err, "attach booking %s to trip %s after %d attempts", bookingID, tripID, s.attachTries)
}
