package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TrainDetails struct {
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	Class         string          `json:"class"`
	Operator      string          `json:"operator"`
	DepartureDate time.Time       `json:"departure_date"`
}

// TravelData is the normalized trip description sent to the policy engine and
// snapshotted into approval requests.
type TravelData struct {
	BookingID   *uuid.UUID    `json:"booking_id,omitempty"`
	Origin      string        `json:"origin"`
	Destination string        `json:"destination"`
	Train       *TrainDetails `json:"train,omitempty"`
}

func NewTravelData(offer Offer, origin, destination string) TravelData {
	td := TravelData{
		Origin:      origin,
		Destination: destination,
		Train: &TrainDetails{
			Price:    offer.Price.Amount,
			Currency: offer.Price.Currency,
			Class:    offer.FareClass(),
			Operator: offer.Operator(),
		},
	}
	if seg, ok := offer.FirstSegment(); ok {
		td.Train.DepartureDate = seg.DepartureAt
		if td.Origin == "" {
			td.Origin = seg.Origin
		}
		if td.Destination == "" {
			td.Destination = seg.Destination
		}
	}
	return td
}
