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
	"github.com/shopspring/decimal"

	"github.com/mercadito-app/mercadito-backend/pkg/config"
	"github.com/mercadito-app/mercadito-backend/pkg/db/models"
	"github.com/mercadito-app/mercadito-backend/pkg/enums"
	"github.com/mercadito-app/mercadito-backend/pkg/logger"
	"github.com/mercadito-app/mercadito-backend/pkg/outbox"
	"github.com/mercadito-app/mercadito-backend/pkg/outbox/payloads"
	"github.com/mercadito-app/mercadito-backend/pkg/outbox/registry"
)

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (r *fakeRepo) FetchDue(limit, maxAttempts int, coalesceWindow time.Duration) ([]models.OutboxEvent, error) {
	events := r.events
	r.events = nil
	return events, nil
}

func (r *fakeRepo) MarkPublished(ids ...uuid.UUID) error {
	r.published = append(r.published, ids...)
	return nil
}

func (r *fakeRepo) MarkFailed(id uuid.UUID, cause error) error {
	r.failed = append(r.failed, id)
	return nil
}

type fakePublishResult struct {
	err error
}

func (r fakePublishResult) Get(context.Context) (string, error) {
	return "server-id", r.err
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
	topics   []string
}

func (p *fakePublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	p.messages = append(p.messages, msg)
	if len(p.results) == 0 {
		return fakePublishResult{}
	}
	next := p.results[0]
	p.results = p.results[1:]
	return next
}

func newTestService(t *testing.T, repo *fakeRepo, pub *fakePublisher) *Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Outbox.BatchSize = 10
	cfg.Outbox.MaxAttempts = 5
	cfg.Outbox.PublishTimeout = time.Second
	cfg.PubSub = config.PubSubConfig{
		VendorsTopic:  "vendor-events",
		ProductsTopic: "product-events",
		OrdersTopic:   "order-events",
	}
	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		t.Fatalf("new event registry: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Output: io.Discard})
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		Repository: repo,
		Registry:   eventRegistry,
		PublisherFactory: func(topic string) publisher {
			pub.topics = append(pub.topics, topic)
			return pub
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func makeEvent(t *testing.T, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, aggregateID uuid.UUID, payload any) models.OutboxEvent {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   aggregateID,
		Payload:       raw,
		CreatedAt:     time.Now(),
	}
}

func orderCreated(t *testing.T, orderID uuid.UUID) models.OutboxEvent {
	t.Helper()
	return makeEvent(t, enums.EventOrderCreated, enums.AggregateOrder, orderID, payloads.OrderCreatedEvent{
		OrderID:     orderID,
		CustomerID:  uuid.New(),
		VendorID:    uuid.New(),
		TotalAmount: decimal.NewFromInt(120),
		ItemCount:   2,
	})
}

func orderStatusChanged(t *testing.T, orderID uuid.UUID) models.OutboxEvent {
	t.Helper()
	return makeEvent(t, enums.EventOrderStatusChanged, enums.AggregateOrder, orderID, payloads.OrderStatusChangedEvent{
		OrderID:    orderID,
		CustomerID: uuid.New(),
		VendorID:   uuid.New(),
		FromStatus: enums.OrderStatusPlaced,
		ToStatus:   enums.OrderStatusAccepted,
		ChangedAt:  time.Now().UTC(),
	})
}

func productChanged(t *testing.T, productID uuid.UUID) models.OutboxEvent {
	t.Helper()
	return makeEvent(t, enums.EventProductChanged, enums.AggregateProduct, productID, payloads.ProductChangedEvent{
		ProductID: productID,
		VendorID:  uuid.New(),
		Change:    "updated",
		InStock:   true,
	})
}

func vendorLocationUpdated(t *testing.T, vendorID uuid.UUID) models.OutboxEvent {
	t.Helper()
	return makeEvent(t, enums.EventVendorLocationUpdated, enums.AggregateVendor, vendorID, payloads.VendorLocationUpdatedEvent{
		VendorID:  vendorID,
		Lat:       19.43,
		Lng:       -99.13,
		IsActive:  true,
		UpdatedAt: time.Now().UTC(),
	})
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			orderCreated(t, uuid.New()),
			productChanged(t, uuid.New()),
		},
	}
	pub := &fakePublisher{}
	service := newTestService(t, repo, pub)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(pub.messages); got != 2 {
		t.Fatalf("expected 2 publishes got %d", got)
	}
	if got := len(repo.published); got != 2 {
		t.Fatalf("expected 2 published rows got %d", got)
	}
	if pub.topics[0] != "order-events" || pub.topics[1] != "product-events" {
		t.Fatalf("unexpected topics %v", pub.topics)
	}
	for _, msg := range pub.messages {
		if msg.Attributes["event_id"] == "" {
			t.Fatalf("published message missing event_id attribute")
		}
	}
}

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	first := orderCreated(t, uuid.New())
	second := orderCreated(t, uuid.New())
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	service := newTestService(t, repo, pub)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if len(repo.failed) != 1 || repo.failed[0] != first.ID {
		t.Fatalf("failed rows recorded wrong: %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != second.ID {
		t.Fatalf("published rows recorded wrong: %v", repo.published)
	}
}

func TestProcessBatchCoalescesSameAggregate(t *testing.T) {
	orderID := uuid.New()
	older := orderCreated(t, orderID)
	newer := orderStatusChanged(t, orderID)
	other := vendorLocationUpdated(t, uuid.New())
	repo := &fakeRepo{events: []models.OutboxEvent{older, newer, other}}
	pub := &fakePublisher{}
	service := newTestService(t, repo, pub)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}

	// Only the newest event per aggregate hits Pub/Sub.
	if got := len(pub.messages); got != 2 {
		t.Fatalf("expected 2 publishes got %d", got)
	}
	for _, msg := range pub.messages {
		if msg.Attributes["event_type"] == string(enums.EventOrderCreated) {
			t.Fatalf("superseded event should not be published")
		}
	}
	// But all three rows are settled.
	if got := len(repo.published); got != 3 {
		t.Fatalf("expected 3 settled rows got %d", got)
	}
}

func TestProcessBatchFailsUnknownEventType(t *testing.T) {
	bad := makeEvent(t, "mystery.event", "mystery", uuid.New(), map[string]any{"ok": true})
	good := productChanged(t, uuid.New())
	repo := &fakeRepo{events: []models.OutboxEvent{bad, good}}
	pub := &fakePublisher{}
	service := newTestService(t, repo, pub)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.failed) != 1 || repo.failed[0] != bad.ID {
		t.Fatalf("expected unknown event type marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != good.ID {
		t.Fatalf("expected known event published, got %v", repo.published)
	}
	// The malformed row never reaches a publisher.
	if got := len(pub.messages); got != 1 {
		t.Fatalf("expected 1 publish got %d", got)
	}
}

func TestProcessBatchFailsEmptyPayload(t *testing.T) {
	event := makeEvent(t, enums.EventProductChanged, enums.AggregateProduct, uuid.New(), nil)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{}
	service := newTestService(t, repo, pub)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.failed) != 1 || repo.failed[0] != event.ID {
		t.Fatalf("expected empty payload marked failed, got %v", repo.failed)
	}
	if len(pub.messages) != 0 {
		t.Fatalf("expected no publishes got %d", len(pub.messages))
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	service := newTestService(t, repo, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- service.Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}
}
