package domain

import (
	"time"

	"github.com/google/uuid"
)

// Trip groups bookings. Version guards concurrent updates of BookingIDs.
type Trip struct {
	ID         uuid.UUID   `json:"id"`
	Name       string      `json:"name"`
	OwnerID    uuid.UUID   `json:"owner_id"`
	OrgID      uuid.UUID   `json:"org_id"`
	StartDate  time.Time   `json:"start_date"`
	EndDate    time.Time   `json:"end_date"`
	BookingIDs []uuid.UUID `json:"booking_ids"`
	Version    int64       `json:"version"`
	CreatedAt  time.Time   `json:"created_at"`
}

func (t Trip) Has(bookingID uuid.UUID) bool {
	for _, id := range t.BookingIDs {
		if id == bookingID {
			return true
		}
	}
	return false
}

// Attach appends bookingID unless it is already present. It reports whether the
// list changed.
func (t *Trip) Attach(bookingID uuid.UUID) bool {
	if t.Has(bookingID) {
		return false
	}
	t.BookingIDs = append(t.BookingIDs, bookingID)
	return true
}

type User struct {
	ID        uuid.UUID   `json:"id" bson:"_id"`
	Email     string      `json:"email" bson:"email"`
	FirstName string      `json:"first_name" bson:"first_name"`
	LastName  string      `json:"last_name" bson:"last_name"`
	OrgIDs    []uuid.UUID `json:"org_ids" bson:"org_ids"`
}

type Organization struct {
	ID   uuid.UUID `json:"id" bson:"_id"`
	Name string    `json:"name" bson:"name"`
}

// Profile is a user with their organizations. Partial is set when enrichment fell
// back to a minimal record.
type Profile struct {
	User          User           `json:"user"`
	Organizations []Organization `json:"organizations"`
	Partial       bool           `json:"partial"`
}
