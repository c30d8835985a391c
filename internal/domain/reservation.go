package domain

import (
	"time"

	"github.com/google/uuid"
)

// SearchQuery is a validated fare search.
type SearchQuery struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	ReturnDate    *time.Time
	Passengers    int
}

func (q SearchQuery) RoundTrip() bool {
	return q.ReturnDate != nil
}

// Reservation is what the provider returns after holding an offer.
type Reservation struct {
	ID             string           `json:"id"`
	Status         string           `json:"status"`
	ExpiresAt      *time.Time       `json:"expiresAt,omitempty"`
	Price          Money            `json:"price"`
	PriceBreakdown []PriceBreakdown `json:"priceBreakdown"`
	Passengers     []Passenger      `json:"passengers"`
	Trips          []Leg            `json:"trips"`
}

type TicketRef struct {
	URL                 string `json:"url,omitempty"`
	CollectionReference string `json:"collectionReference,omitempty"`
}

// Confirmation is the provider view of a booking after confirm or fetch.
type Confirmation struct {
	Status             string      `json:"status"`
	ConfirmationNumber string      `json:"confirmationNumber,omitempty"`
	Tickets            []TicketRef `json:"tickets,omitempty"`
}

func (c Confirmation) Ticketed() bool {
	return len(c.Tickets) > 0
}

func (c Confirmation) FirstTicket() TicketRef {
	if len(c.Tickets) == 0 {
		return TicketRef{}
	}
	return c.Tickets[0]
}

type JournalStatus string

// UnknownReservationPrefix stands in for the provider reference of a reserve call
// whose outcome is unknown.
const UnknownReservationPrefix = "unknown:"

const (
	JournalReserved  JournalStatus = "RESERVED"
	JournalPersisted JournalStatus = "PERSISTED"
	JournalOrphaned  JournalStatus = "ORPHANED"
)

// JournalEntry records a provider reservation before its booking row exists, so a
// sweep can find reservations that never got a local record.
type JournalEntry struct {
	ID            uuid.UUID     `json:"id"`
	ReservationID string        `json:"reservation_id"`
	BookingID     uuid.UUID     `json:"booking_id"`
	OfferID       string        `json:"offer_id"`
	TripID        uuid.UUID     `json:"trip_id"`
	UserID        uuid.UUID     `json:"user_id"`
	OrgID         uuid.UUID     `json:"org_id"`
	Status        JournalStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}
