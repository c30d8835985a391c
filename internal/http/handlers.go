package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/booking"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
	"github.com/robertarktes/corporate-rail-bookings/internal/policy"
	"github.com/robertarktes/corporate-rail-bookings/internal/session"
	"github.com/robertarktes/corporate-rail-bookings/internal/trip"
)

type Sessions interface {
	Search(ctx context.Context, req session.SearchRequest) (*session.SearchResult, error)
	SelectOutboundForReturn(ctx context.Context, sessionID, outboundOfferID string) (*session.ReturnResult, error)
	Offer(ctx context.Context, sessionID, offerID string) (*domain.OfferSession, domain.Offer, error)
}

type Policies interface {
	Evaluate(ctx context.Context, td domain.TravelData, orgID, userID uuid.UUID) domain.PolicyVerdict
	Present(ctx context.Context, offers []domain.Offer, origin, destination string, orgID, userID uuid.UUID) []policy.Evaluated
}

type Bookings interface {
	Create(ctx context.Context, req booking.CreateRequest) (*booking.CreateResult, error)
	Confirm(ctx context.Context, id uuid.UUID, choices []domain.DeliveryChoice) (*domain.Booking, error)
	ResolveApproval(ctx context.Context, requestID uuid.UUID, action domain.ApprovalAction, approverID uuid.UUID, reason string) (*booking.Resolution, error)
	RefreshFulfillment(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error)
}

type Approvals interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.ApprovalRequest, error)
	List(ctx context.Context, f domain.ApprovalFilter) ([]domain.ApprovalRequest, error)
}

type Trips interface {
	Create(ctx context.Context, req trip.CreateRequest) (*domain.Trip, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Trip, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Trip, error)
}

type Profiles interface {
	Load(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
}

// Check reports whether a backing service is reachable.
type Check func(ctx context.Context) error

type Services struct {
	Sessions  Sessions
	Policies  Policies
	Bookings  Bookings
	Approvals Approvals
	Trips     Trips
	Profiles  Profiles
	Checks    map[string]Check
}

type Handlers struct {
	svc    Services
	logger observability.Logger
}

func NewHandlers(svc Services, logger observability.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger}
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, h.logger, err)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz runs every dependency check under a short deadline.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	report := map[string]string{}
	for name, check := range h.svc.Checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			report[name] = err.Error()
			continue
		}
		report[name] = "ok"
	}
	writeJSON(w, status, report)
}

func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.svc.Profiles.Load(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, errors.Mark(errors.Wrapf(err, "invalid %s", name), domain.ErrInvalidInput)
	}
	return id, nil
}

func uuidQuery(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "invalid %s", name), domain.ErrInvalidInput)
	}
	return &id, nil
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, errors.Mark(errors.Wrapf(err, "%s must be YYYY-MM-DD", field), domain.ErrInvalidInput)
	}
	return t, nil
}
