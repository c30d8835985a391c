package domain

import (
	"strings"
	"time"
)

const BreakdownBaseFare = "base-fare"

type PriceBreakdown struct {
	Price         Money  `json:"price"`
	BreakdownType string `json:"breakdownType"`
}

type Vehicle struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type Fare struct {
	Type          string `json:"type"`
	MarketingName string `json:"marketingName"`
}

type Segment struct {
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	DepartureAt time.Time `json:"departureAt"`
	ArrivalAt   time.Time `json:"arrivalAt"`
	Vehicle     Vehicle   `json:"vehicle"`
	Fare        Fare      `json:"fare"`
}

// Leg is one directional trip of an offer.
type Leg struct {
	Segments []Segment `json:"segments"`
}

type OfferMetadata struct {
	ProviderID string `json:"providerId"`
}

// Offer is an immutable, priced itinerary returned by the fare provider.
type Offer struct {
	ID                  string           `json:"id"`
	ExpiresAt           time.Time        `json:"expiresAt"`
	InboundStepRequired bool             `json:"inboundStepRequired"`
	Price               Money            `json:"price"`
	PriceBreakdown      []PriceBreakdown `json:"priceBreakdown"`
	Trips               []Leg            `json:"trips"`
	Metadata            OfferMetadata    `json:"metadata"`
}

// Expired reports whether the offer can no longer be booked at now.
func (o Offer) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

func (o Offer) FirstSegment() (Segment, bool) {
	for _, leg := range o.Trips {
		if len(leg.Segments) > 0 {
			return leg.Segments[0], true
		}
	}
	return Segment{}, false
}

// FareClass is the upper-cased fare type of the first segment, STANDARD when unknown.
func (o Offer) FareClass() string {
	seg, ok := o.FirstSegment()
	if !ok || strings.TrimSpace(seg.Fare.Type) == "" {
		return "STANDARD"
	}
	return strings.ToUpper(seg.Fare.Type)
}

func (o Offer) Operator() string {
	if seg, ok := o.FirstSegment(); ok && seg.Vehicle.Name != "" {
		return seg.Vehicle.Name
	}
	return o.Metadata.ProviderID
}

// BookingAmount picks the base-fare breakdown entry, falling back to the total price
// only when no base-fare entry exists.
func BookingAmount(total Money, breakdown []PriceBreakdown) Money {
	for _, entry := range breakdown {
		if entry.BreakdownType == BreakdownBaseFare {
			return entry.Price
		}
	}
	return total
}
