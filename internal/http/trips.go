package http

import (
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/trip"
)

type createTripRequest struct {
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"owner_id"`
	OrgID     uuid.UUID `json:"org_id"`
	StartDate string    `json:"start_date,omitempty"`
	EndDate   string    `json:"end_date,omitempty"`
}

func (h *Handlers) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var req createTripRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	var start, end time.Time
	var err error
	if req.StartDate != "" {
		if start, err = parseDate("start_date", req.StartDate); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if req.EndDate != "" {
		if end, err = parseDate("end_date", req.EndDate); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	t, err := h.svc.Trips.Create(r.Context(), trip.CreateRequest{
		Name:      req.Name,
		OwnerID:   req.OwnerID,
		OrgID:     req.OrgID,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handlers) GetTrip(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.svc.Trips.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) ListTrips(w http.ResponseWriter, r *http.Request) {
	ownerID, err := uuidQuery(r, "owner_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ownerID == nil {
		h.fail(w, r, errors.Wrap(domain.ErrInvalidInput, "owner_id is required"))
		return
	}
	trips, err := h.svc.Trips.ListByOwner(r.Context(), *ownerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if trips == nil {
		trips = []domain.Trip{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"trips": trips})
}
