package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/corporate-rail-bookings/internal/adapters/mongo"
	"github.com/robertarktes/corporate-rail-bookings/internal/domain"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
)

type AuditSink interface {
	Record(ctx context.Context, entry mongo.AuditLog) error
}

// AuditConsumer writes every event published from the outbox to the audit log.
// The event id is the audit entry id, so redeliveries are stored once.
type AuditConsumer struct {
	sink   AuditSink
	logger observability.Logger
}

func NewAuditConsumer(sink AuditSink, logger observability.Logger) *AuditConsumer {
	return &AuditConsumer{sink: sink, logger: logger}
}

type envelope struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

func (c *AuditConsumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.Handle(ctx, d)
		}
	}
}

// Handle records one delivery. Undecodable messages are dropped, store failures
// are requeued.
func (c *AuditConsumer) Handle(ctx context.Context, d amqp.Delivery) {
	logger := c.logger.WithFields(map[string]interface{}{
		"message_id":  d.MessageId,
		"routing_key": d.RoutingKey,
	})
	entry, err := auditEntry(d)
	if err != nil {
		logger.WithError(err).Warn("dropping undecodable event")
		_ = d.Nack(false, false)
		return
	}
	if err := c.sink.Record(ctx, entry); err != nil {
		logger.WithError(err).Error("failed to record event, requeueing")
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func auditEntry(d amqp.Delivery) (mongo.AuditLog, error) {
	var ev envelope
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		return mongo.AuditLog{}, errors.Wrap(err, "decode event")
	}
	if ev.ID == uuid.Nil || ev.Type == "" {
		return mongo.AuditLog{}, errors.Wrap(domain.ErrInvalidInput, "event without id or type")
	}
	data := bson.M{"aggregate_type": ev.AggregateType}
	var payload map[string]interface{}
	if len(ev.Payload) > 0 && json.Unmarshal(ev.Payload, &payload) == nil {
		data["payload"] = payload
	}
	var userID uuid.UUID
	if raw, ok := payload["user_id"].(string); ok {
		userID, _ = uuid.Parse(raw)
	}
	return mongo.AuditLog{
		ID:          ev.ID,
		Action:      ev.Type,
		AggregateID: ev.AggregateID,
		UserID:      userID,
		Timestamp:   ev.OccurredAt.UTC(),
		Data:        data,
	}, nil
}
