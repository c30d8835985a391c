package outbox

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/corporate-rail-bookings/internal/adapters/crdb"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
)

type Store interface {
	GetUnpublishedOutbox(ctx context.Context, limit int) ([]crdb.OutboxRecord, error)
	MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
}

type Broker interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

type Publisher struct {
	store     Store
	broker    Broker
	batchSize int
	retry     func() backoff.BackOff
	now       func() time.Time
	logger    observability.Logger
}

func NewPublisher(store Store, broker Broker, batchSize int, logger observability.Logger) *Publisher {
	return &Publisher{
		store:     store,
		broker:    broker,
		batchSize: batchSize,
		retry:     defaultRetry,
		now:       time.Now,
		logger:    logger,
	}
}

func defaultRetry() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
}

// WithRetry replaces the per-record publish retry policy.
func (p *Publisher) WithRetry(retry func() backoff.BackOff) *Publisher {
	p.retry = retry
	return p
}

// Run publishes a batch every interval until ctx is done.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil {
				p.logger.WithError(err).Error("outbox batch failed")
			}
		}
	}
}

// PublishBatch sends up to batchSize NEW records, oldest first, keyed by event type.
// A record that cannot be published stays NEW and is retried on the next batch.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	records, err := p.store.GetUnpublishedOutbox(ctx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		observability.OutboxLag.Set(0)
		return 0, nil
	}
	observability.OutboxLag.Set(p.now().Sub(records[0].CreatedAt).Seconds())

	published := 0
	for _, rec := range records {
		logger := p.logger.WithFields(map[string]interface{}{
			"outbox_id":  rec.ID,
			"event_type": rec.EventType,
		})
		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Type:        rec.EventType,
			Timestamp:   rec.CreatedAt,
			Body:        rec.Payload,
		}
		attempt := 0
		err := backoff.Retry(func() error {
			if attempt > 0 {
				observability.RabbitPublishRetries.Inc()
			}
			attempt++
			return p.broker.Publish(ctx, rec.EventType, msg)
		}, backoff.WithContext(p.retry(), ctx))
		if err != nil {
			logger.WithError(err).Warn("failed to publish outbox record")
			continue
		}
		if err := p.store.MarkPublished(ctx, rec.ID, p.now().UTC()); err != nil {
			// published but still NEW: consumers drop the redelivery by message id
			logger.WithError(err).Warn("failed to mark outbox record published")
			continue
		}
		published++
	}
	return published, nil
}
