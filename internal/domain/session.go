package domain

import (
	"time"

	"github.com/google/uuid"
)

// OfferSession correlates one search. Return offers exist only after an outbound
// offer of the same session was selected.
type OfferSession struct {
	ID                 string     `json:"id"`
	UserID             uuid.UUID  `json:"user_id"`
	OrgID              uuid.UUID  `json:"org_id"`
	Origin             string     `json:"origin"`
	Destination        string     `json:"destination"`
	DepartureDate      time.Time  `json:"departure_date"`
	ReturnDate         *time.Time `json:"return_date,omitempty"`
	Passengers         int        `json:"passengers"`
	Outbound           []Offer    `json:"outbound"`
	SelectedOutboundID string     `json:"selected_outbound_id,omitempty"`
	Return             []Offer    `json:"return,omitempty"`
	Superseded         bool       `json:"superseded"`
	CreatedAt          time.Time  `json:"created_at"`
}

func (s OfferSession) RoundTrip() bool {
	return s.ReturnDate != nil
}

func (s OfferSession) OutboundOffer(id string) (Offer, bool) {
	for _, o := range s.Outbound {
		if o.ID == id {
			return o, true
		}
	}
	return Offer{}, false
}

// Offer finds an outbound or return offer of this session.
func (s OfferSession) Offer(id string) (Offer, bool) {
	if o, ok := s.OutboundOffer(id); ok {
		return o, true
	}
	for _, o := range s.Return {
		if o.ID == id {
			return o, true
		}
	}
	return Offer{}, false
}

// Supersede drops the selection and return set and locks the session.
func (s *OfferSession) Supersede() {
	s.SelectedOutboundID = ""
	s.Return = nil
	s.Superseded = true
}
