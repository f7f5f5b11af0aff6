package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/patient-records/pkg/logger"
	"github.com/jwalitptl/patient-records/pkg/metrics"
	"github.com/jwalitptl/patient-records/pkg/repository"
)

// RetentionWorker deletes processed outbox events older than the retention
// window.
type RetentionWorker struct {
	repo      repository.OutboxPurger
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewRetentionWorker(
	repo repository.OutboxPurger,
	retention, interval time.Duration,
	log *logger.Logger,
	m *metrics.Metrics,
) (*RetentionWorker, error) {
	if retention <= 0 {
		return nil, errors.New("retention must be greater than 0")
	}
	if interval <= 0 {
		return nil, errors.New("cleanup interval must be greater than 0")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RetentionWorker{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    log,
		metrics:   m,
		now:       time.Now,
	}, nil
}

func (w *RetentionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error(err, "Outbox cleanup failed")
			}
		}
	}
}

// Cleanup runs one purge and returns the number of rows removed
func (w *RetentionWorker) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)

	start := time.Now()
	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	w.metrics.ObserveDB("outbox_purge", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup outbox events: %w", err)
	}

	if w.metrics != nil {
		w.metrics.OutboxEventsPurged.Add(float64(rows))
	}
	if rows > 0 {
		w.logger.Info("Purged processed outbox events",
			"rows", rows,
			"cutoff", cutoff.UTC().Format(time.RFC3339))
	}
	return rows, nil
}
