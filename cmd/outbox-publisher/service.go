package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/mercadito-app/mercadito-backend/pkg/config"
	"github.com/mercadito-app/mercadito-backend/pkg/db/models"
	"github.com/mercadito-app/mercadito-backend/pkg/enums"
	"github.com/mercadito-app/mercadito-backend/pkg/logger"
	"github.com/mercadito-app/mercadito-backend/pkg/metrics"
	"github.com/mercadito-app/mercadito-backend/pkg/outbox/registry"
)

const metricsJobName = "outbox_publish"

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type outboxRepository interface {
	FetchDue(limit, maxAttempts int, coalesceWindow time.Duration) ([]models.OutboxEvent, error)
	MarkPublished(ids ...uuid.UUID) error
	MarkFailed(id uuid.UUID, cause error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	Repository       outboxRepository
	Registry         registryResolver
	PubSub           pubSubClient
	PublisherFactory publisherFactory
	Metrics          *metrics.JobMetrics
}

type Service struct {
	cfg              *config.Config
	logg             *logger.Logger
	repo             outboxRepository
	registry         registryResolver
	pubsub           pubSubClient
	publisherFactory publisherFactory
	metrics          *metrics.JobMetrics
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
	coalesceWindow   time.Duration
	publishTimeout   time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}
	if params.PubSub == nil && params.PublisherFactory == nil {
		return nil, errors.New("pubsub client is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			pub := params.PubSub.Publisher(topic)
			if pub == nil {
				return nil
			}
			return newGCPPublisher(pub)
		}
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.Outbox.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	publishTimeout := params.Config.Outbox.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}

	return &Service{
		cfg:              params.Config,
		logg:             params.Logger,
		repo:             params.Repository,
		registry:         params.Registry,
		pubsub:           params.PubSub,
		publisherFactory: factory,
		metrics:          params.Metrics,
		batchSize:        batch,
		maxAttempts:      maxAttempts,
		pollInterval:     time.Duration(pollMs) * time.Millisecond,
		coalesceWindow:   params.Config.Outbox.CoalesceWindow,
		publishTimeout:   publishTimeout,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if s.pubsub != nil {
		if err := s.pubsub.Ping(ctx); err != nil {
			return fmt.Errorf("pubsub ping failed: %w", err)
		}
	}

	interval := s.pollInterval
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		default:
		}

		processed, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, interval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval

		if processed {
			continue
		}

		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

// processBatch drains one batch of due events. When several events touch the
// same aggregate, only the newest is published; the older ones are settled
// without a Pub/Sub round trip since the newest notification subsumes them.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	events, err := s.repo.FetchDue(s.batchSize, s.maxAttempts, s.coalesceWindow)
	if err != nil {
		return false, err
	}
	if len(events) == 0 {
		return false, nil
	}

	started := time.Now()
	defer func() {
		s.metrics.ObserveDuration(metricsJobName, time.Since(started))
	}()

	latest, superseded := coalesce(events)

	done := make([]uuid.UUID, 0, len(events))
	done = append(done, superseded...)

	for _, event := range latest {
		fields := s.eventFields(event)
		if err := s.publishEvent(ctx, event); err != nil {
			ctxWithFields := s.logg.WithFields(ctx, fields)
			ctxWithFields = s.logg.WithField(ctxWithFields, "error", err.Error())
			var nonRetry registry.NonRetryableError
			if errors.As(err, &nonRetry) {
				s.logg.Warn(ctxWithFields, "outbox event is malformed and will never publish")
			} else {
				s.logg.Warn(ctxWithFields, "outbox publish failed")
			}
			s.metrics.IncFailure(metricsJobName)
			if markErr := s.repo.MarkFailed(event.ID, err); markErr != nil {
				return true, fmt.Errorf("mark failure %s: %w", event.ID, markErr)
			}
			continue
		}
		done = append(done, event.ID)
		s.metrics.IncSuccess(metricsJobName)
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
	}

	if err := s.repo.MarkPublished(done...); err != nil {
		return true, fmt.Errorf("mark published batch: %w", err)
	}
	return true, nil
}

// coalesce splits a batch into the newest event per aggregate and the ids of
// the events it supersedes. Events arrive oldest first, so the last row per
// aggregate wins.
func coalesce(events []models.OutboxEvent) ([]models.OutboxEvent, []uuid.UUID) {
	type aggregateKey struct {
		kind enums.OutboxAggregateType
		id   uuid.UUID
	}

	newest := make(map[aggregateKey]models.OutboxEvent, len(events))
	superseded := make([]uuid.UUID, 0)
	order := make([]aggregateKey, 0, len(events))

	for _, event := range events {
		key := aggregateKey{kind: event.AggregateType, id: event.AggregateID}
		if prior, seen := newest[key]; seen {
			superseded = append(superseded, prior.ID)
		} else {
			order = append(order, key)
		}
		newest[key] = event
	}

	latest := make([]models.OutboxEvent, 0, len(order))
	for _, key := range order {
		latest = append(latest, newest[key])
	}
	return latest, superseded
}

func (s *Service) publishEvent(ctx context.Context, event models.OutboxEvent) error {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return err
	}

	topic := resolved.Descriptor.Topic
	pub := s.publisherFactory(topic)
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
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	if _, err := result.Get(publishCtx); err != nil {
		return err
	}
	return nil
}

func (s *Service) eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"batch_size":     s.batchSize,
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
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
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}
