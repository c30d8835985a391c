package policy

import (
	"context"

	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Engine is a policy evaluation backend, remote or built in.
type Engine interface {
	Evaluate(ctx context.Context, td domain.TravelData, orgID, userID uuid.UUID) (domain.PolicyVerdict, error)
}

const evaluateConcurrency = 8

// Client classifies trips. Engine failures never surface as errors: the trip is
// reported NOT_SPECIFIED instead.
type Client struct {
	engine Engine
	logger observability.Logger
}

func NewClient(engine Engine, logger observability.Logger) *Client {
	return &Client{engine: engine, logger: logger}
}

func (c *Client) Evaluate(ctx context.Context, td domain.TravelData, orgID, userID uuid.UUID) domain.PolicyVerdict {
	verdict, err := c.engine.Evaluate(ctx, td, orgID, userID)
	if err != nil {
		observability.PolicyUnavailable.Inc()
		observability.LoggerFromContext(ctx, c.logger).WithError(err).WithFields(map[string]interface{}{
			"org_id":  orgID,
			"user_id": userID,
		}).Warn("policy evaluation unavailable, treating trip as not specified")
		return domain.NotSpecified()
	}
	if verdict.Messages == nil {
		verdict.Messages = []string{}
	}
	if verdict.Approvers == nil {
		verdict.Approvers = []uuid.UUID{}
	}
	return verdict
}

// DescribeOffer normalizes an offer into the trip description sent for evaluation.
func DescribeOffer(offer domain.Offer, origin, destination string) domain.TravelData {
	return domain.NewTravelData(offer, origin, destination)
}

// EvaluateOffers evaluates every offer concurrently. Verdicts keep the offer order.
func (c *Client) EvaluateOffers(ctx context.Context, offers []domain.Offer, origin, destination string, orgID, userID uuid.UUID) []domain.PolicyVerdict {
	verdicts := make([]domain.PolicyVerdict, len(offers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(evaluateConcurrency)
	for i, offer := range offers {
		g.Go(func() error {
			verdicts[i] = c.Evaluate(gctx, DescribeOffer(offer, origin, destination), orgID, userID)
			return nil
		})
	}
	_ = g.Wait()
	return verdicts
}

// FilterHidden drops offers whose verdict is HIDDEN. verdicts[i] belongs to offers[i];
// offers without a verdict are kept.
func FilterHidden(offers []domain.Offer, verdicts []domain.PolicyVerdict) []domain.Offer {
	return lo.Filter(offers, func(_ domain.Offer, i int) bool {
		return i >= len(verdicts) || !verdicts[i].Hidden()
	})
}

// Evaluated is an offer shown to a traveler together with its verdict.
type Evaluated struct {
	domain.Offer
	Policy      domain.PolicyVerdict `json:"policy"`
	Purchasable bool                 `json:"purchasable"`
}

// Present evaluates offers and returns the visible ones, in order, with their
// verdicts.
func (c *Client) Present(ctx context.Context, offers []domain.Offer, origin, destination string, orgID, userID uuid.UUID) []Evaluated {
	verdicts := c.EvaluateOffers(ctx, offers, origin, destination, orgID, userID)
	visible := FilterHidden(offers, verdicts)
	shown := lo.Reject(verdicts, func(v domain.PolicyVerdict, _ int) bool { return v.Hidden() })
	return lo.Map(visible, func(o domain.Offer, i int) Evaluated {
		return Evaluated{Offer: o, Policy: shown[i], Purchasable: shown[i].Purchasable()}
	})
}
