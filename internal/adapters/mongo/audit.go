package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID          uuid.UUID `bson:"_id"`
	Action      string    `bson:"action"`
	AggregateID uuid.UUID `bson:"aggregate_id"`
	UserID      uuid.UUID `bson:"user_id"`
	Timestamp   time.Time `bson:"timestamp"`
	Data        bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, aggregateID, userID uuid.UUID, data map[string]interface{}) error {
	return a.Record(ctx, AuditLog{
		ID:          uuid.New(),
		Action:      action,
		AggregateID: aggregateID,
		UserID:      userID,
		Timestamp:   time.Now().UTC(),
		Data:        bson.M(data),
	})
}

// Record inserts entry. Re-inserting an entry with the same id is a no-op, so
// redelivered events are recorded once.
func (a *AuditLogger) Record(ctx context.Context, entry AuditLog) error {
	_, err := a.coll.InsertOne(ctx, entry)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		a.logger.WithError(err).WithField("action", entry.Action).Error("failed to insert audit log")
		return err
	}
	return nil
}

func (a *AuditLogger) ListByAggregate(ctx context.Context, aggregateID uuid.UUID) ([]AuditLog, error) {
	cur, err := a.coll.Find(ctx, bson.M{"aggregate_id": aggregateID})
	if err != nil {
		return nil, err
	}
	var logs []AuditLog
	if err := cur.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
