package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/corporate-rail-bookings/internal/booking"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/idempotency"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
)

type errorBody struct {
	Code    string                   `json:"code"`
	Message string                   `json:"message"`
	Fields  booking.ValidationErrors `json:"fields,omitempty"`
}

// statusOf maps domain errors to an HTTP status and a stable error code. Order
// matters: marked errors match more than one sentinel.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrApprovalPending):
		return http.StatusConflict, "approval_pending"
	case errors.Is(err, domain.ErrOfferExpired):
		return http.StatusGone, "offer_expired"
	case errors.Is(err, domain.ErrInvalidSessionState):
		return http.StatusConflict, "invalid_session_state"
	case errors.Is(err, domain.ErrBookingBlocked):
		return http.StatusForbidden, "booking_blocked"
	case errors.Is(err, domain.ErrAlreadyResolved):
		return http.StatusConflict, "already_resolved"
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrSearch):
		return http.StatusBadGateway, "search_failed"
	case errors.Is(err, domain.ErrOutcomeUnknown):
		return http.StatusGatewayTimeout, "outcome_unknown"
	case errors.Is(err, domain.ErrReservationFailed):
		return http.StatusBadGateway, "reservation_failed"
	case errors.Is(err, domain.ErrConfirmationFailed):
		return http.StatusBadGateway, "confirmation_failed"
	case errors.Is(err, domain.ErrPersistenceFailed):
		return http.StatusInternalServerError, "persistence_failed"
	case errors.Is(err, idempotency.ErrInFlight):
		return http.StatusConflict, "request_in_progress"
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrSerializationFailure):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, logger observability.Logger, err error) {
	status, code := statusOf(err)
	body := errorBody{Code: code, Message: domain.UserMessage(err)}
	if errors.Is(err, idempotency.ErrInFlight) {
		body.Message = "This request is already being processed."
	}
	var fields booking.ValidationErrors
	if errors.As(err, &fields) {
		body.Fields = fields
	}

	entry := observability.LoggerFromContext(r.Context(), logger).WithError(err).WithFields(map[string]interface{}{
		"status": status,
		"code":   code,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Info("request rejected")
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Mark(errors.Wrap(err, "decode request body"), domain.ErrInvalidInput)
	}
	return nil
}
