package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventBookingCreated      = "booking.created"
	EventBookingPaid         = "booking.paid"
	EventBookingConfirmed    = "booking.confirmed"
	EventBookingCancelled    = "booking.cancelled"
	EventApprovalRequested   = "approval.requested"
	EventApprovalResolved    = "approval.resolved"
	EventReservationOrphaned = "reservation.orphaned"
	EventTripBookingAttached = "trip.booking_attached"
)

const (
	AggregateBooking     = "booking"
	AggregateApproval    = "approval"
	AggregateReservation = "reservation"
	AggregateTrip        = "trip"
)

// Event is a domain event written to the outbox in the same transaction as the
// state change it describes.
type Event struct {
	ID            uuid.UUID   `json:"id"`
	Type          string      `json:"type"`
	AggregateType string      `json:"aggregate_type"`
	AggregateID   uuid.UUID   `json:"aggregate_id"`
	OccurredAt    time.Time   `json:"occurred_at"`
	Payload       interface{} `json:"payload"`
}

func NewEvent(eventType, aggregateType string, aggregateID uuid.UUID, payload interface{}) Event {
	return Event{
		ID:            uuid.New(),
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    time.Now().UTC(),
		Payload:       payload,
	}
}
