package mongo

import (
	"context"

	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PolicyRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewPolicyRepository(db *mongo.Database, logger observability.Logger) *PolicyRepository {
	return &PolicyRepository{
		coll:   db.Collection("policies"),
		logger: logger,
	}
}

func (p *PolicyRepository) ActivePolicies(ctx context.Context, orgID uuid.UUID) ([]domain.Policy, error) {
	cur, err := p.coll.Find(ctx, bson.M{"org_id": orgID, "active": true}, options.Find().SetSort(bson.D{{Key: "label", Value: 1}}))
	if err != nil {
		p.logger.WithError(err).Error("failed to query policies")
		return nil, err
	}
	policies := []domain.Policy{}
	if err := cur.All(ctx, &policies); err != nil {
		return nil, err
	}
	return policies, nil
}

func (p *PolicyRepository) Upsert(ctx context.Context, policy domain.Policy) error {
	_, err := p.coll.ReplaceOne(ctx, bson.M{"_id": policy.ID}, policy, options.Replace().SetUpsert(true))
	if err != nil {
		p.logger.WithError(err).Error("failed to upsert policy")
	}
	return err
}
