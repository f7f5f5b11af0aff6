package repository

import (
	"context"
	"time"

	"github.com/jwalitptl/patient-records/internal/model"
)

// OutboxReader is the slice of the outbox store the relay needs
type OutboxReader interface {
	GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
}

// OutboxPurger removes delivered events
type OutboxPurger interface {
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
