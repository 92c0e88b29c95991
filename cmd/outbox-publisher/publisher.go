package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// PublisherParams groups the collaborators of the outbox publisher loop.
type PublisherParams struct {
	Config     config.OutboxConfig
	Logger     *logger.Logger
	DB         dbClient
	PubSub     pubSubClient
	Repository outboxRepository
	Registry   eventResolver
	// Topics overrides topic lookup; tests use it to avoid a live client.
	Topics func(topic string) topicPublisher
}

// Publisher drains committed outbox rows to Pub/Sub. A row is marked
// published only after the broker acknowledged it, so delivery is at least once.
type Publisher struct {
	logg         *logger.Logger
	db           dbClient
	pubsub       pubSubClient
	repo         outboxRepository
	registry     eventResolver
	topics       func(topic string) topicPublisher
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewPublisher(params PublisherParams) (*Publisher, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}

	topics := params.Topics
	if topics == nil {
		topics = func(topic string) topicPublisher {
			return newGCPTopic(params.PubSub.Publisher(topic))
		}
	}

	p := &Publisher{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		registry:     params.Registry,
		topics:       topics,
		batchSize:    params.Config.BatchSize,
		maxAttempts:  params.Config.MaxAttempts,
		pollInterval: time.Duration(params.Config.PollIntervalMS) * time.Millisecond,
	}
	if p.batchSize <= 0 {
		p.batchSize = defaultBatchSize
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = defaultMaxAttempts
	}
	if p.pollInterval <= 0 {
		p.pollInterval = defaultPollInterval
	}
	return p, nil
}

func (p *Publisher) ensureReadiness(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		p.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := p.pubsub.Ping(ctx); err != nil {
		p.logg.Error(ctx, "pubsub ping failed", err)
		return fmt.Errorf("pubsub ping failed: %w", err)
	}
	return nil
}

// Run polls until ctx is cancelled. Full batches are followed immediately by
// the next poll; failed batches back off exponentially up to maxBackoff.
func (p *Publisher) Run(ctx context.Context) error {
	if err := p.ensureReadiness(ctx); err != nil {
		return err
	}

	backoff := p.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		processed, err := p.drainBatch(ctx)
		switch {
		case err != nil:
			p.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, p.pollInterval, maxBackoff)
			if err := sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
		case processed:
			backoff = p.pollInterval
		default:
			backoff = p.pollInterval
			if err := sleep(ctx, withJitter(p.pollInterval)); err != nil {
				return err
			}
		}
	}
}

// drainBatch claims one batch and settles every row in the same transaction.
func (p *Publisher) drainBatch(ctx context.Context) (bool, error) {
	processed := false
	err := p.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := p.repo.FetchUnpublishedForPublish(tx, p.batchSize, p.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		processed = len(events) > 0
		for _, event := range events {
			if err := p.settle(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

func (p *Publisher) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	fields := eventFields(event)

	resolved, err := p.registry.Resolve(event)
	if err != nil {
		return p.park(ctx, tx, event, fields, err)
	}
	fields["topic"] = resolved.Descriptor.Topic
	fields["event_id"] = resolved.Envelope.EventID

	if err := p.publish(ctx, event, resolved); err != nil {
		if registry.IsNonRetryable(err) {
			return p.park(ctx, tx, event, fields, err)
		}
		attempt := event.AttemptCount + 1
		fields["attempt_count"] = attempt
		if attempt >= p.maxAttempts {
			return p.park(ctx, tx, event, fields, fmt.Errorf("max publish attempts reached: %w", err))
		}
		p.logg.Warn(p.logg.WithField(p.logg.WithFields(ctx, fields), "error", err.Error()), "outbox publish failed")
		if err := p.repo.MarkFailedTx(tx, event.ID, err); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
		return nil
	}

	if err := p.repo.MarkPublishedTx(tx, event.ID); err != nil {
		return fmt.Errorf("mark published %s: %w", event.ID, err)
	}
	p.logg.Info(p.logg.WithFields(ctx, fields), "outbox event published")
	return nil
}

// park takes a row out of rotation by setting its attempt count to the limit.
func (p *Publisher) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, fields map[string]any, cause error) error {
	p.logg.Warn(p.logg.WithField(p.logg.WithFields(ctx, fields), "error", cause.Error()), "outbox event will not be retried")
	if err := p.repo.MarkTerminalTx(tx, event.ID, cause, p.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := p.topics(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

func eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}

type gcpTopic struct {
	publisher *gcppubsub.Publisher
}

func newGCPTopic(p *gcppubsub.Publisher) topicPublisher {
	if p == nil {
		return nil
	}
	return &gcpTopic{publisher: p}
}

func (t *gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return t.publisher.Publish(ctx, msg)
}
