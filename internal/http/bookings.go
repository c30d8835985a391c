package http

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/booking"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
	"github.com/robertarktes/corporate-rail-bookings/internal/policy"
)

type createBookingRequest struct {
	SessionID  string             `json:"session_id"`
	OfferID    string             `json:"offer_id"`
	TripID     uuid.UUID          `json:"trip_id"`
	UserID     uuid.UUID          `json:"user_id"`
	OrgID      uuid.UUID          `json:"org_id"`
	Passengers []domain.Passenger `json:"passengers"`
}

type createBookingResponse struct {
	Booking       *domain.Booking         `json:"booking"`
	Policy        domain.PolicyVerdict    `json:"policy"`
	Approval      *domain.ApprovalRequest `json:"approval,omitempty"`
	ApprovalError string                  `json:"approval_error,omitempty"`
}

// CreateBooking books an offer of a live session. The offer is evaluated again
// against policy at this point; the verdict shown at search time is not trusted.
func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.SessionID == "" || req.OfferID == "" {
		h.fail(w, r, errors.Wrap(domain.ErrInvalidInput, "session_id and offer_id are required"))
		return
	}

	sess, offer, err := h.svc.Sessions.Offer(r.Context(), req.SessionID, req.OfferID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	origin, destination := "", ""
	if _, outbound := sess.OutboundOffer(offer.ID); outbound {
		origin, destination = sess.Origin, sess.Destination
	}
	verdict := h.svc.Policies.Evaluate(r.Context(), policy.DescribeOffer(offer, origin, destination), req.OrgID, req.UserID)

	res, err := h.svc.Bookings.Create(r.Context(), booking.CreateRequest{
		Offer:       offer,
		Passengers:  req.Passengers,
		TripID:      req.TripID,
		UserID:      req.UserID,
		OrgID:       req.OrgID,
		Verdict:     &verdict,
		Origin:      origin,
		Destination: destination,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := createBookingResponse{Booking: res.Booking, Policy: verdict, Approval: res.Approval}
	if res.ApprovalError != nil {
		resp.ApprovalError = "Your booking was saved but the approval request could not be sent. Please contact your travel manager."
	}
	observability.LoggerFromContext(r.Context(), h.logger).WithFields(map[string]interface{}{
		"booking_id": res.Booking.ID,
		"status":     res.Booking.Status,
		"verdict":    verdict.Result,
	}).Info("booking created")
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.Bookings.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ListBookings lists by trip_id or user_id; exactly one must be given.
func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	tripID, err := uuidQuery(r, "trip_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	userID, err := uuidQuery(r, "user_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var bookings []domain.Booking
	switch {
	case tripID != nil && userID == nil:
		bookings, err = h.svc.Bookings.ListByTrip(r.Context(), *tripID)
	case userID != nil && tripID == nil:
		bookings, err = h.svc.Bookings.ListByUser(r.Context(), *userID)
	default:
		err = errors.Wrap(domain.ErrInvalidInput, "exactly one of trip_id and user_id is required")
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []domain.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bookings": bookings})
}

type confirmRequest struct {
	DeliveryChoices []domain.DeliveryChoice `json:"delivery_choices"`
}

func (h *Handlers) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req confirmRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.Bookings.Confirm(r.Context(), id, req.DeliveryChoices)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) RefreshFulfillment(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.Bookings.RefreshFulfillment(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	b, err := h.svc.Bookings.Cancel(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
