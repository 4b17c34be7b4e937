package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/osteo-api/internal/model"
	"github.com/jwalitptl/osteo-api/internal/repository"
	"github.com/jwalitptl/osteo-api/pkg/messaging"
	"github.com/jwalitptl/osteo-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	Channel       string
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// OutboxProcessor publishes pending outbox events to the broker. A batch is
// locked, published and marked in one transaction so concurrent processors
// never publish the same event twice.
type OutboxProcessor struct {
	store   repository.Store
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewOutboxProcessor(
	store repository.Store,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	// Config validation instead of defaults
	if config.Channel == "" {
		panic("Channel must not be empty")
	}
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}

	return &OutboxProcessor{
		store:   store,
		broker:  broker,
		config:  config,
		logger:  logger.With().Str("worker", "outbox").Logger(),
		metrics: metrics,
		now:     time.Now,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info().Str("channel", p.config.Channel).Msg("starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("shutting down outbox processor")
			return
		case <-ticker.C:
			for {
				n, err := p.ProcessBatch(ctx)
				if err != nil {
					p.logger.Error().Err(err).Msg("failed to process events")
					break
				}
				// A full batch means more may be waiting.
				if n < p.config.BatchSize || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// ProcessBatch handles one batch of due events and returns its size.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	if p.metrics != nil {
		timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
		defer timer.ObserveDuration()
	}

	var n int
	err := p.store.WithTx(ctx, func(repos *repository.Repositories) error {
		events, err := repos.Outbox.LockPending(ctx, p.config.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to get pending events: %w", err)
		}
		n = len(events)
		for _, event := range events {
			if err := p.processEvent(ctx, repos.Outbox, event); err != nil {
				return err
			}
		}
		return nil
	})
	return n, err
}

// processEvent publishes one event and records the outcome. Only a failure
// to record the outcome is returned; publish failures are retried later.
func (p *OutboxProcessor) processEvent(ctx context.Context, outbox repository.OutboxRepository, event *model.OutboxEvent) error {
	pubErr := p.broker.Publish(ctx, p.config.Channel, messaging.Message{
		ID:      event.ID,
		Type:    event.EventType,
		Payload: event.Payload,
	})
	if pubErr == nil {
		if err := outbox.MarkProcessed(ctx, event.ID); err != nil {
			return fmt.Errorf("failed to mark event %s processed: %w", event.ID, err)
		}
		if p.metrics != nil {
			p.metrics.OutboxEventsProcessed.Inc()
		}
		return nil
	}

	msg := pubErr.Error()
	log := p.logger.Warn().Err(pubErr).Str("event_id", event.ID.String()).Str("event_type", event.EventType)

	if event.RetryCount+1 >= p.config.RetryAttempts {
		event.ErrorMessage = &msg
		event.RetryCount++
		if err := outbox.MoveToDeadLetter(ctx, event); err != nil {
			return fmt.Errorf("failed to dead-letter event %s: %w", event.ID, err)
		}
		if p.metrics != nil {
			p.metrics.OutboxEventsFailed.Inc()
		}
		log.Int("attempts", event.RetryCount).Msg("event moved to dead letter queue")
		return nil
	}

	retryAt := p.now().Add(p.config.RetryDelay * time.Duration(event.RetryCount+1))
	if err := outbox.ScheduleRetry(ctx, event.ID, msg, retryAt); err != nil {
		return fmt.Errorf("failed to schedule retry of event %s: %w", event.ID, err)
	}
	if p.metrics != nil {
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	}
	log.Time("retry_at", retryAt).Msg("publish failed, retry scheduled")
	return nil
}
