package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/outbox"
	"github.com/angelmondragon/storefront/pkg/outbox/registry"
)

func TestDrainBatchContinuesAfterTransientFailure(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{orderEvent(t, 0), orderEvent(t, 0)}}
	pub := &fakeTopic{errs: []error{errors.New("transient"), nil}}
	p := newTestPublisher(t, repo, pub, resolvingRegistry(), 5)

	processed, err := p.drainBatch(context.Background())
	if err != nil {
		t.Fatalf("drain batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != repo.events[0].ID {
		t.Fatalf("expected first row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != repo.events[1].ID {
		t.Fatalf("expected second row marked published, got %v", repo.published)
	}
	if len(repo.terminal) != 0 {
		t.Fatalf("transient failures must not park rows")
	}
}

func TestDrainBatchParksNonRetryableRows(t *testing.T) {
	event := orderEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	reg := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	p := newTestPublisher(t, repo, &fakeTopic{}, reg, 5)

	if _, err := p.drainBatch(context.Background()); err != nil {
		t.Fatalf("drain batch returned error: %v", err)
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != event.ID {
		t.Fatalf("expected row parked, got %v", repo.terminal)
	}
	if repo.terminalAttempts != 5 {
		t.Fatalf("expected parked attempt count 5, got %d", repo.terminalAttempts)
	}
}

func TestDrainBatchParksRowOnLastAttempt(t *testing.T) {
	event := orderEvent(t, 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakeTopic{errs: []error{errors.New("broker down")}}
	p := newTestPublisher(t, repo, pub, resolvingRegistry(), 2)

	if _, err := p.drainBatch(context.Background()); err != nil {
		t.Fatalf("drain batch returned error: %v", err)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("last attempt should park, not mark failed")
	}
	if len(repo.terminal) != 1 {
		t.Fatalf("expected row parked, got %v", repo.terminal)
	}
}

func TestDrainBatchSendsAttributes(t *testing.T) {
	event := orderEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakeTopic{}
	p := newTestPublisher(t, repo, pub, resolvingRegistry(), 5)

	if _, err := p.drainBatch(context.Background()); err != nil {
		t.Fatalf("drain batch returned error: %v", err)
	}
	if len(pub.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.sent))
	}
	attrs := pub.sent[0].Attributes
	if attrs["event_type"] != string(enums.EventOrderCreated) {
		t.Fatalf("unexpected event_type %q", attrs["event_type"])
	}
	if attrs["aggregate_id"] != event.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id %q", attrs["aggregate_id"])
	}
	if string(pub.sent[0].Data) != string(event.Payload) {
		t.Fatalf("message body should be the stored envelope")
	}
}

func TestDrainBatchReportsIdle(t *testing.T) {
	p := newTestPublisher(t, &fakeRepo{}, &fakeTopic{}, resolvingRegistry(), 5)
	processed, err := p.drainBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed {
		t.Fatalf("empty outbox should report idle")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	base := 500 * time.Millisecond
	if got := nextBackoff(base, base, maxBackoff); got != time.Second {
		t.Fatalf("expected doubling, got %s", got)
	}
	if got := nextBackoff(8*time.Second, base, maxBackoff); got != maxBackoff {
		t.Fatalf("expected cap, got %s", got)
	}
	if got := withJitter(base); got < base || got >= base+jitterWindow {
		t.Fatalf("jitter out of window: %s", got)
	}
}

func TestNewPublisherRequiresDependencies(t *testing.T) {
	if _, err := NewPublisher(PublisherParams{}); err == nil {
		t.Fatalf("expected missing logger error")
	}
}

func newTestPublisher(t *testing.T, repo outboxRepository, topic *fakeTopic, reg eventResolver, maxAttempts int) *Publisher {
	t.Helper()
	p, err := NewPublisher(PublisherParams{
		Config: config.OutboxConfig{
			BatchSize:      2,
			PollIntervalMS: 100,
			MaxAttempts:    maxAttempts,
		},
		Logger:     logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:         fakeDB{},
		PubSub:     fakePubSub{},
		Repository: repo,
		Registry:   reg,
		Topics:     func(string) topicPublisher { return topic },
	})
	if err != nil {
		t.Fatalf("failed to construct publisher: %v", err)
	}
	return p
}

func orderEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func resolvingRegistry() *fakeRegistry {
	return &fakeRegistry{resolved: &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			Topic:         "order-events",
		},
	}}
}

type fakeRepo struct {
	events           []models.OutboxEvent
	published        []uuid.UUID
	failed           []uuid.UUID
	terminal         []uuid.UUID
	terminalAttempts int
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	f.terminalAttempts = terminalAttempts
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSub struct{}

func (fakePubSub) Ping(context.Context) error { return nil }

func (fakePubSub) Publisher(string) *gcppubsub.Publisher { return nil }

type fakeTopic struct {
	errs []error
	sent []*gcppubsub.Message
}

func (f *fakeTopic) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	return fakeResult{err: err}
}

type fakeResult struct {
	err error
}

func (f fakeResult) Get(context.Context) (string, error) { return "server-id", f.err }

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Envelope.EventID = event.ID.String()
	return &resolved, nil
}
