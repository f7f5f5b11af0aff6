package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/patient-records/internal/model"
	"github.com/jwalitptl/patient-records/pkg/logger"
	"github.com/jwalitptl/patient-records/pkg/messaging"
	"github.com/jwalitptl/patient-records/pkg/metrics"
	"github.com/jwalitptl/patient-records/pkg/repository"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

func (c OutboxProcessorConfig) validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.New("batch size must be greater than 0")
	case c.PollInterval <= 0:
		return errors.New("poll interval must be greater than 0")
	case c.RetryAttempts <= 0:
		return errors.New("retry attempts must be greater than 0")
	case c.RetryDelay < 0:
		return errors.New("retry delay must not be negative")
	}
	return nil
}

// OutboxProcessor relays pending outbox events to a publisher
type OutboxProcessor struct {
	repo      repository.OutboxReader
	publisher messaging.Publisher
	config    OutboxProcessorConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxReader,
	publisher messaging.Publisher,
	config OutboxProcessorConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) (*OutboxProcessor, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox processor config: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.NewMetrics("patients")
	}

	return &OutboxProcessor{
		repo:      repo,
		publisher: publisher,
		config:    config,
		logger:    log,
		metrics:   m,
	}, nil
}

// Start polls until ctx is done
func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor",
		"batch_size", p.config.BatchSize,
		"poll_interval", p.config.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch publishes one batch of pending events and returns how many
// were delivered.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	start := time.Now()
	events, err := p.repo.GetPending(ctx, p.config.BatchSize)
	p.metrics.ObserveDB("outbox_get_pending", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending events: %w", err)
	}

	delivered := 0
	for _, event := range events {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error(err, "Failed to process event",
				"event_id", event.ID,
				"event_type", event.EventType)
			continue
		}
		delivered++
	}

	if len(events) > 0 {
		p.logger.Debug("Processed outbox batch",
			"pending", len(events),
			"delivered", delivered)
	}
	return delivered, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := retry(ctx, p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.publisher.Publish(ctx, event.EventType, event.Payload)
	})

	if err != nil {
		p.metrics.OutboxEventsFailed.Inc()
		if updateErr := p.repo.MarkFailed(ctx, event.ID, err.Error()); updateErr != nil {
			p.logger.Error(updateErr, "Failed to update event status", "event_id", event.ID)
		}
		return err
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// retry calls fn up to attempts times, sleeping delay between failures
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
	}
	return err
}
