package mongo

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Directory reads users and organizations.
type Directory struct {
	users  *mongo.Collection
	orgs   *mongo.Collection
	logger observability.Logger
}

func NewDirectory(db *mongo.Database, logger observability.Logger) *Directory {
	return &Directory{
		users:  db.Collection("users"),
		orgs:   db.Collection("organizations"),
		logger: logger,
	}
}

func (d *Directory) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := d.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.Wrapf(domain.ErrNotFound, "user %s", id)
	}
	if err != nil {
		d.logger.WithError(err).Error("failed to get user")
		return nil, err
	}
	return &user, nil
}

func (d *Directory) GetOrganizations(ctx context.Context, ids []uuid.UUID) ([]domain.Organization, error) {
	orgs := []domain.Organization{}
	if len(ids) == 0 {
		return orgs, nil
	}
	cur, err := d.orgs.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		d.logger.WithError(err).Error("failed to get organizations")
		return nil, err
	}
	if err := cur.All(ctx, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

func (d *Directory) UpsertUser(ctx context.Context, user domain.User) error {
	_, err := d.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, user, options.Replace().SetUpsert(true))
	return err
}

func (d *Directory) UpsertOrganization(ctx context.Context, org domain.Organization) error {
	_, err := d.orgs.ReplaceOne(ctx, bson.M{"_id": org.ID}, org, options.Replace().SetUpsert(true))
	return err
}
