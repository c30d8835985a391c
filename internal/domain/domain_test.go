package domain_test

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
)

func eur(t *testing.T, amount string) domain.Money {
	t.Helper()
	m, err := domain.ParseMoney("eur", amount)
	require.NoError(t, err)
	return m
}

func TestBookingAmount(t *testing.T) {
	total := eur(t, "120.50")

	t.Run("base fare wins", func(t *testing.T) {
		breakdown := []domain.PriceBreakdown{
			{Price: eur(t, "20.50"), BreakdownType: "taxes"},
			{Price: eur(t, "100.00"), BreakdownType: domain.BreakdownBaseFare},
		}
		got := domain.BookingAmount(total, breakdown)
		assert.True(t, got.Amount.Equal(decimal.RequireFromString("100")))
		assert.Equal(t, "EUR", got.Currency)
	})

	t.Run("falls back to total", func(t *testing.T) {
		breakdown := []domain.PriceBreakdown{{Price: eur(t, "20.50"), BreakdownType: "taxes"}}
		got := domain.BookingAmount(total, breakdown)
		assert.True(t, got.Amount.Equal(total.Amount))
	})

	t.Run("first base fare only", func(t *testing.T) {
		breakdown := []domain.PriceBreakdown{
			{Price: eur(t, "60.00"), BreakdownType: domain.BreakdownBaseFare},
			{Price: eur(t, "40.00"), BreakdownType: domain.BreakdownBaseFare},
		}
		got := domain.BookingAmount(total, breakdown)
		assert.True(t, got.Amount.Equal(decimal.RequireFromString("60")))
	})

	t.Run("deterministic", func(t *testing.T) {
		breakdown := []domain.PriceBreakdown{{Price: eur(t, "99.99"), BreakdownType: domain.BreakdownBaseFare}}
		assert.Equal(t, domain.BookingAmount(total, breakdown), domain.BookingAmount(total, breakdown))
	})
}

func TestParseMoney_Invalid(t *testing.T) {
	_, err := domain.ParseMoney("EUR", "12,50")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "GBP 7.50", domain.NewMoney("gbp", decimal.RequireFromString("7.5")).String())
}

func TestOffer_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	offer := domain.Offer{ExpiresAt: now}

	assert.True(t, offer.Expired(now))
	assert.True(t, offer.Expired(now.Add(time.Second)))
	assert.False(t, offer.Expired(now.Add(-time.Second)))
}

func TestOffer_FareClassAndOperator(t *testing.T) {
	offer := domain.Offer{Metadata: domain.OfferMetadata{ProviderID: "eurostar"}}
	assert.Equal(t, "STANDARD", offer.FareClass())
	assert.Equal(t, "eurostar", offer.Operator())

	offer.Trips = []domain.Leg{{Segments: []domain.Segment{{
		Fare:    domain.Fare{Type: "first"},
		Vehicle: domain.Vehicle{Name: "SNCF"},
	}}}}
	assert.Equal(t, "FIRST", offer.FareClass())
	assert.Equal(t, "SNCF", offer.Operator())
}

func TestBookingStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to domain.BookingStatus
		ok       bool
	}{
		{domain.StatusPendingPayment, domain.StatusPaid, true},
		{domain.StatusPendingPayment, domain.StatusPendingApproval, true},
		{domain.StatusPendingApproval, domain.StatusPendingPayment, true},
		{domain.StatusPendingApproval, domain.StatusPaid, false},
		{domain.StatusPaid, domain.StatusConfirmed, true},
		{domain.StatusPaid, domain.StatusCancelled, true},
		{domain.StatusConfirmed, domain.StatusCancelled, false},
		{domain.StatusCancelled, domain.StatusPendingPayment, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			b := domain.Booking{ID: uuid.New(), Status: tc.from}
			err := b.Transition(tc.to, time.Now())
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, tc.to, b.Status)
				return
			}
			assert.True(t, errors.Is(err, domain.ErrInvalidState))
			assert.Equal(t, tc.from, b.Status)
		})
	}
	assert.True(t, domain.StatusConfirmed.Terminal())
	assert.False(t, domain.StatusPaid.Terminal())
}

func TestTrip_AttachIsIdempotent(t *testing.T) {
	trip := domain.Trip{ID: uuid.New()}
	id := uuid.New()

	assert.True(t, trip.Attach(id))
	assert.False(t, trip.Attach(id))
	assert.Equal(t, []uuid.UUID{id}, trip.BookingIDs)
}

func TestVerdict(t *testing.T) {
	assert.False(t, domain.PolicyVerdict{Result: domain.VerdictHidden}.Purchasable())
	assert.False(t, domain.PolicyVerdict{Result: domain.VerdictBookingBlocked}.Purchasable())
	assert.True(t, domain.PolicyVerdict{Result: domain.VerdictOutOfPolicy}.NeedsApproval())
	assert.False(t, domain.PolicyVerdict{Result: domain.VerdictNotSpecified}.NeedsApproval())
	assert.Greater(t, domain.VerdictHidden.Severity(), domain.VerdictBookingBlocked.Severity())
	assert.False(t, domain.VerdictResult("MAYBE").Valid())
}

func TestUserMessage(t *testing.T) {
	pending := errors.Mark(errors.Wrap(domain.ErrApprovalPending, "confirm"), domain.ErrInvalidSessionState)
	assert.True(t, errors.Is(pending, domain.ErrInvalidSessionState))
	assert.Contains(t, domain.UserMessage(pending), "waiting for approval")

	expired := errors.Mark(errors.Wrap(domain.ErrOfferExpired, "create"), domain.ErrReservationFailed)
	assert.True(t, errors.Is(expired, domain.ErrReservationFailed))
	assert.Contains(t, domain.UserMessage(expired), "expired")

	assert.Contains(t, domain.UserMessage(errors.New("boom")), "Something went wrong")
	assert.Empty(t, domain.UserMessage(nil))
}
