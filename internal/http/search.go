package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/policy"
	"github.com/robertarktes/corporate-rail-bookings/internal/session"
)

type searchRequest struct {
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureDate string    `json:"departure_date"`
	ReturnDate    string    `json:"return_date,omitempty"`
	Passengers    int       `json:"passengers"`
	UserID        uuid.UUID `json:"user_id"`
	OrgID         uuid.UUID `json:"org_id"`
}

type searchResponse struct {
	SessionID       string             `json:"session_id"`
	Offers          []policy.Evaluated `json:"offers"`
	AdvisoryMessage string             `json:"advisory_message,omitempty"`
}

// Search runs a fare search and returns the offers the traveler may see, each with
// its policy verdict.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	departure, err := parseDate("departure_date", req.DepartureDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var ret *time.Time
	if req.ReturnDate != "" {
		d, err := parseDate("return_date", req.ReturnDate)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		ret = &d
	}

	res, err := h.svc.Sessions.Search(r.Context(), session.SearchRequest{
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureDate: departure,
		ReturnDate:    ret,
		Passengers:    req.Passengers,
		UserID:        req.UserID,
		OrgID:         req.OrgID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{
		SessionID:       res.SessionID,
		Offers:          h.svc.Policies.Present(r.Context(), res.Offers, req.Origin, req.Destination, req.OrgID, req.UserID),
		AdvisoryMessage: res.AdvisoryMessage,
	})
}

type returnOffersRequest struct {
	OutboundOfferID string    `json:"outbound_offer_id"`
	UserID          uuid.UUID `json:"user_id"`
	OrgID           uuid.UUID `json:"org_id"`
}

type returnOffersResponse struct {
	ReturnOffers    []policy.Evaluated `json:"return_offers"`
	AdvisoryMessage string             `json:"advisory_message,omitempty"`
}

func (h *Handlers) ReturnOffers(w http.ResponseWriter, r *http.Request) {
	var req returnOffersRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Sessions.SelectOutboundForReturn(r.Context(), chi.URLParam(r, "sessionID"), req.OutboundOfferID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	// return legs run destination to origin; the segments carry the route
	writeJSON(w, http.StatusOK, returnOffersResponse{
		ReturnOffers:    h.svc.Policies.Present(r.Context(), res.ReturnOffers, "", "", req.OrgID, req.UserID),
		AdvisoryMessage: res.AdvisoryMessage,
	})
}
