package junction

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/shopspring/decimal"
)

// Mock is an in-memory provider used with PROVIDER_MODE=mock and in integration tests.
// Every search returns two outbound offers, and two return offers once an outbound
// offer is selected on a round trip.
type Mock struct {
	lock sync.Mutex

	Searches     map[string]domain.SearchQuery
	Reservations map[string]domain.Reservation
	Confirmed    map[string][]domain.DeliveryChoice

	// FailReserve makes Reserve answer 409 for the given offer ids.
	FailReserve map[string]bool
	// OfferTTL is how long generated offers stay bookable.
	OfferTTL time.Duration
}

func NewMock() *Mock {
	return &Mock{OfferTTL: 20 * time.Minute}
}

func (m *Mock) init() {
	if m.Searches == nil {
		m.Searches = make(map[string]domain.SearchQuery)
	}
	if m.Reservations == nil {
		m.Reservations = make(map[string]domain.Reservation)
	}
	if m.Confirmed == nil {
		m.Confirmed = make(map[string][]domain.DeliveryChoice)
	}
}

func (m *Mock) CreateSearch(_ context.Context, q domain.SearchQuery) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.init()

	id := "search_" + uuid.NewString()
	m.Searches[id] = q
	return id, nil
}

func (m *Mock) Offers(_ context.Context, searchID, outboundOfferID string, _ time.Duration) ([]domain.Offer, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.init()

	q, ok := m.Searches[searchID]
	if !ok {
		return nil, errors.WithStack(&ProviderError{StatusCode: http.StatusNotFound, Body: "unknown search"})
	}
	if outboundOfferID == "" {
		return m.offers(searchID, "out", q.Origin, q.Destination, q.DepartureDate), nil
	}
	if q.ReturnDate == nil {
		return nil, errors.Wrapf(domain.ErrOffersNotReady, "search %s has no return leg", searchID)
	}
	return m.offers(searchID, "ret", q.Destination, q.Origin, *q.ReturnDate), nil
}

func (m *Mock) offers(searchID, dir, origin, destination string, day time.Time) []domain.Offer {
	expires := time.Now().Add(m.OfferTTL)
	fares := []struct {
		class string
		price string
		fees  string
	}{
		{"standard", "49.00", "2.50"},
		{"first", "129.00", "2.50"},
	}
	offers := make([]domain.Offer, 0, len(fares))
	for i, f := range fares {
		departure := time.Date(day.Year(), day.Month(), day.Day(), 8+2*i, 0, 0, 0, time.UTC)
		base := decimal.RequireFromString(f.price)
		fees := decimal.RequireFromString(f.fees)
		offers = append(offers, domain.Offer{
			ID:        fmt.Sprintf("%s_%s_%d", searchID, dir, i),
			ExpiresAt: expires,
			Price:     domain.NewMoney("EUR", base.Add(fees)),
			PriceBreakdown: []domain.PriceBreakdown{
				{Price: domain.NewMoney("EUR", base), BreakdownType: domain.BreakdownBaseFare},
				{Price: domain.NewMoney("EUR", fees), BreakdownType: "booking-fee"},
			},
			Trips: []domain.Leg{{Segments: []domain.Segment{{
				Origin:      origin,
				Destination: destination,
				DepartureAt: departure,
				ArrivalAt:   departure.Add(3 * time.Hour),
				Vehicle:     domain.Vehicle{Name: "Mock Rail", Code: "MR"},
				Fare:        domain.Fare{Type: f.class, MarketingName: f.class},
			}}}},
			Metadata: domain.OfferMetadata{ProviderID: "mock"},
		})
	}
	return offers
}

func (m *Mock) Reserve(_ context.Context, offerID string, passengers []domain.Passenger) (*domain.Reservation, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.init()

	if m.FailReserve[offerID] {
		return nil, errors.WithStack(&ProviderError{StatusCode: http.StatusConflict, Body: "offer no longer available"})
	}
	res := domain.Reservation{
		ID:     "booking_" + uuid.NewString(),
		Status: "on-hold",
		Price:  domain.NewMoney("EUR", decimal.RequireFromString("51.50")),
		PriceBreakdown: []domain.PriceBreakdown{
			{Price: domain.NewMoney("EUR", decimal.RequireFromString("49.00")), BreakdownType: domain.BreakdownBaseFare},
			{Price: domain.NewMoney("EUR", decimal.RequireFromString("2.50")), BreakdownType: "booking-fee"},
		},
		Passengers: passengers,
	}
	m.Reservations[res.ID] = res
	return &res, nil
}

func (m *Mock) Confirm(_ context.Context, reservationID string, choices []domain.DeliveryChoice) (*domain.Confirmation, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.init()

	if _, ok := m.Reservations[reservationID]; !ok {
		return nil, errors.WithStack(&ProviderError{StatusCode: http.StatusNotFound, Body: "unknown booking"})
	}
	m.Confirmed[reservationID] = choices
	return &domain.Confirmation{Status: "confirmed", ConfirmationNumber: "CN-" + reservationID[len(reservationID)-6:]}, nil
}

// Booking reports tickets for every confirmed reservation.
func (m *Mock) Booking(_ context.Context, reservationID string) (*domain.Confirmation, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.init()

	if _, ok := m.Reservations[reservationID]; !ok {
		return nil, errors.WithStack(&ProviderError{StatusCode: http.StatusNotFound, Body: "unknown booking"})
	}
	choices, ok := m.Confirmed[reservationID]
	if !ok {
		return &domain.Confirmation{Status: "on-hold"}, nil
	}
	conf := &domain.Confirmation{Status: "fulfilled", ConfirmationNumber: "CN-" + reservationID[len(reservationID)-6:]}
	for _, c := range choices {
		ref := domain.TicketRef{URL: "https://tickets.mock/" + reservationID + ".pdf"}
		if c.DeliveryOption == domain.DeliveryKioskCollect {
			ref = domain.TicketRef{CollectionReference: "COL" + reservationID[len(reservationID)-6:]}
		}
		conf.Tickets = append(conf.Tickets, ref)
	}
	return conf, nil
}
