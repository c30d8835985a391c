package domain

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

type BookingStatus string

const (
	StatusPendingPayment  BookingStatus = "PENDING_PAYMENT"
	StatusPendingApproval BookingStatus = "PENDING_APPROVAL"
	StatusPaid            BookingStatus = "PAID"
	StatusConfirmed       BookingStatus = "CONFIRMED"
	StatusCancelled       BookingStatus = "CANCELLED"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	StatusPendingPayment:  {StatusPendingApproval, StatusPaid, StatusCancelled},
	StatusPendingApproval: {StatusPendingPayment, StatusCancelled},
	StatusPaid:            {StatusConfirmed, StatusCancelled},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return len(bookingTransitions[s]) == 0
}

const (
	DeliveryElectronicTicket = "electronic-ticket"
	DeliveryKioskCollect     = "kiosk-collect"
)

type Address struct {
	StreetAddress string `json:"streetAddress" validate:"required"`
	PostalCode    string `json:"postalCode" validate:"required"`
	City          string `json:"city" validate:"required"`
	CountryCode   string `json:"countryCode" validate:"required,len=2"`
}

type Passenger struct {
	FirstName          string  `json:"firstName" validate:"required"`
	LastName           string  `json:"lastName" validate:"required"`
	DateOfBirth        string  `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	Gender             string  `json:"gender" validate:"required,oneof=male female"`
	Email              string  `json:"email" validate:"required,email"`
	PhoneNumber        string  `json:"phoneNumber" validate:"required"`
	ResidentialAddress Address `json:"residentialAddress" validate:"required"`
}

// DeliveryChoice selects how the tickets of one segment are delivered.
type DeliveryChoice struct {
	DeliveryOption  string `json:"deliveryOption" validate:"required,oneof=electronic-ticket kiosk-collect"`
	SegmentSequence int    `json:"segmentSequence" validate:"min=1"`
}

type Fulfillment struct {
	DeliveryOption      string `json:"delivery_option,omitempty"`
	ConfirmationNumber  string `json:"confirmation_number,omitempty"`
	TicketURL           string `json:"ticket_url,omitempty"`
	CollectionReference string `json:"collection_reference,omitempty"`
}

// Booking is the durable record of a provider reservation.
type Booking struct {
	ID                uuid.UUID        `json:"id"`
	ReservationID     string           `json:"reservation_id"`
	TripID            uuid.UUID        `json:"trip_id"`
	UserID            uuid.UUID        `json:"user_id"`
	OrgID             uuid.UUID        `json:"org_id"`
	OfferID           string           `json:"offer_id"`
	Total             Money            `json:"total"`
	Status            BookingStatus    `json:"status"`
	Passengers        []Passenger      `json:"passengers"`
	Trips             []Leg            `json:"trips"`
	PriceBreakdown    []PriceBreakdown `json:"price_breakdown"`
	ApprovalRequestID *uuid.UUID       `json:"approval_request_id,omitempty"`
	Fulfillment       Fulfillment      `json:"fulfillment"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Transition moves the booking to next or fails with ErrInvalidState.
func (b *Booking) Transition(next BookingStatus, now time.Time) error {
	if !b.Status.CanTransitionTo(next) {
		return errors.Wrapf(ErrInvalidState, "booking %s: %s -> %s", b.ID, b.Status, next)
	}
	b.Status = next
	b.UpdatedAt = now
	return nil
}

// Route returns the origin of the first segment and the destination of the last segment
// of the outbound leg.
func (b Booking) Route() (string, string) {
	if len(b.Trips) == 0 || len(b.Trips[0].Segments) == 0 {
		return "", ""
	}
	segs := b.Trips[0].Segments
	return segs[0].Origin, segs[len(segs)-1].Destination
}

// BookingFilter narrows a booking listing. Unset fields match everything.
type BookingFilter struct {
	TripID  *uuid.UUID
	UserID  *uuid.UUID
	OfferID string
}
