package domain

import "github.com/cockroachdb/errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")

	ErrSearch              = errors.New("search failed")
	ErrOffersNotReady      = errors.New("offers not ready")
	ErrInvalidSessionState = errors.New("invalid session state")
	ErrInvalidState        = errors.New("invalid booking state")
	ErrReservationFailed   = errors.New("reservation failed")
	ErrOutcomeUnknown      = errors.New("provider outcome unknown")
	ErrOfferExpired        = errors.New("offer expired")
	ErrPersistenceFailed   = errors.New("persistence failed")
	ErrConfirmationFailed  = errors.New("confirmation failed")
	ErrApprovalPending     = errors.New("approval pending")
	ErrAlreadyResolved     = errors.New("approval already resolved")
	ErrBookingBlocked      = errors.New("booking blocked by policy")
	ErrPolicyUnavailable   = errors.New("policy evaluation unavailable")
)

// UserMessage returns text that can be shown to a traveler as is.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrApprovalPending):
		return "This booking is waiting for approval and cannot be paid for yet."
	case errors.Is(err, ErrOfferExpired):
		return "This offer has expired. Please search again."
	case errors.Is(err, ErrInvalidSessionState):
		return "Your search session is no longer valid. Please start a new search."
	case errors.Is(err, ErrSearch):
		return "We could not search for trains right now. Please check your input and try again."
	case errors.Is(err, ErrOutcomeUnknown):
		return "We could not tell whether the train operator accepted this request. Please do not try again, our team will check it and update your booking."
	case errors.Is(err, ErrReservationFailed):
		return "The train operator could not reserve this offer. Nothing was booked."
	case errors.Is(err, ErrPersistenceFailed):
		return "Your reservation was made but we could not save it. Our team has been notified, please do not book again."
	case errors.Is(err, ErrConfirmationFailed):
		return "Payment confirmation failed. Your booking is still awaiting payment."
	case errors.Is(err, ErrAlreadyResolved):
		return "This approval request has already been processed."
	case errors.Is(err, ErrBookingBlocked):
		return "This journey is blocked by your company travel policy."
	case errors.Is(err, ErrInvalidState):
		return "This action is not allowed for the booking in its current state."
	case errors.Is(err, ErrNotFound):
		return "The requested item was not found."
	case errors.Is(err, ErrConflict), errors.Is(err, ErrSerializationFailure):
		return "The item was changed by someone else. Please try again."
	case errors.Is(err, ErrInvalidInput):
		return "The request is invalid."
	default:
		return "Something went wrong. Please try again later."
	}
}
