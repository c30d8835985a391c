package policy_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
	"github.com/robertarktes/corporate-rail-bookings/internal/policy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type engineFunc func(ctx context.Context, td domain.TravelData, orgID, userID uuid.UUID) (domain.PolicyVerdict, error)

func (f engineFunc) Evaluate(ctx context.Context, td domain.TravelData, orgID, userID uuid.UUID) (domain.PolicyVerdict, error) {
	return f(ctx, td, orgID, userID)
}

func TestClient_EngineFailureIsNotSpecified(t *testing.T) {
	c := policy.NewClient(engineFunc(func(context.Context, domain.TravelData, uuid.UUID, uuid.UUID) (domain.PolicyVerdict, error) {
		return domain.PolicyVerdict{}, errors.Mark(errors.New("connection refused"), domain.ErrPolicyUnavailable)
	}), observability.NewNopLogger())

	v := c.Evaluate(t.Context(), domain.TravelData{}, uuid.New(), uuid.New())
	assert.Equal(t, domain.VerdictNotSpecified, v.Result)
	assert.True(t, v.Purchasable())
	assert.False(t, v.NeedsApproval())
}

func TestClient_EvaluateOffersKeepsOrder(t *testing.T) {
	c := policy.NewClient(engineFunc(func(_ context.Context, td domain.TravelData, _, _ uuid.UUID) (domain.PolicyVerdict, error) {
		if td.Train.Price.GreaterThan(decimal.NewFromInt(100)) {
			return domain.PolicyVerdict{Result: domain.VerdictHidden}, nil
		}
		return domain.PolicyVerdict{Result: domain.VerdictInPolicy}, nil
	}), observability.NewNopLogger())

	var offers []domain.Offer
	for i, price := range []int64{50, 150, 80, 300, 20} {
		offers = append(offers, domain.Offer{
			ID:    string(rune('a' + i)),
			Price: domain.NewMoney("EUR", decimal.NewFromInt(price)),
		})
	}

	verdicts := c.EvaluateOffers(t.Context(), offers, "A", "B", uuid.New(), uuid.New())
	assert.Equal(t, []domain.VerdictResult{
		domain.VerdictInPolicy, domain.VerdictHidden, domain.VerdictInPolicy, domain.VerdictHidden, domain.VerdictInPolicy,
	}, []domain.VerdictResult{verdicts[0].Result, verdicts[1].Result, verdicts[2].Result, verdicts[3].Result, verdicts[4].Result})

	visible := policy.FilterHidden(offers, verdicts)
	assert.Equal(t, []string{"a", "c", "e"}, []string{visible[0].ID, visible[1].ID, visible[2].ID})
	assert.Len(t, visible, 3)

	again := policy.FilterHidden(visible, []domain.PolicyVerdict{verdicts[0], verdicts[2], verdicts[4]})
	assert.Equal(t, visible, again)
}

func TestDescribeOffer(t *testing.T) {
	offer := domain.Offer{
		ID:       "o1",
		Price:    domain.NewMoney("eur", decimal.RequireFromString("42.10")),
		Metadata: domain.OfferMetadata{ProviderID: "trenitalia"},
		Trips: []domain.Leg{{Segments: []domain.Segment{{
			Origin: "milano", Destination: "roma", Fare: domain.Fare{Type: "business"},
		}}}},
	}
	td := policy.DescribeOffer(offer, "", "")
	assert.Equal(t, "milano", td.Origin)
	assert.Equal(t, "roma", td.Destination)
	assert.Equal(t, "BUSINESS", td.Train.Class)
	assert.Equal(t, "trenitalia", td.Train.Operator)
	assert.Equal(t, "EUR", td.Train.Currency)
}

func TestClient_PresentDropsHiddenAndFlagsBlocked(t *testing.T) {
	results := map[string]domain.VerdictResult{
		"a": domain.VerdictInPolicy,
		"b": domain.VerdictHidden,
		"c": domain.VerdictBookingBlocked,
	}
	c := policy.NewClient(engineFunc(func(_ context.Context, td domain.TravelData, _, _ uuid.UUID) (domain.PolicyVerdict, error) {
		return domain.PolicyVerdict{Result: results[td.Train.Operator]}, nil
	}), observability.NewNopLogger())

	var offers []domain.Offer
	for _, id := range []string{"a", "b", "c"} {
		offers = append(offers, domain.Offer{ID: id, Metadata: domain.OfferMetadata{ProviderID: id}})
	}

	shown := c.Present(t.Context(), offers, "A", "B", uuid.New(), uuid.New())
	assert.Len(t, shown, 2)
	assert.Equal(t, "a", shown[0].ID)
	assert.True(t, shown[0].Purchasable)
	assert.Equal(t, "c", shown[1].ID)
	assert.Equal(t, domain.VerdictBookingBlocked, shown[1].Policy.Result)
	assert.False(t, shown[1].Purchasable)
}
