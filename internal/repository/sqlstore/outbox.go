package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/patient-records/internal/model"
	"github.com/jwalitptl/patient-records/internal/repository"
)

type outboxRepository struct {
	db *sqlx.DB
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{db: db}
}

// outboxRow scans payload as bytes; drivers hand JSON back as TEXT or jsonb
type outboxRow struct {
	ID           string     `db:"id"`
	EventType    string     `db:"event_type"`
	Payload      []byte     `db:"payload"`
	Status       string     `db:"status"`
	ErrorMessage *string    `db:"error_message"`
	RetryCount   int        `db:"retry_count"`
	CreatedAt    time.Time  `db:"created_at"`
	ProcessedAt  *time.Time `db:"processed_at"`
}

func (row *outboxRow) event() *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:           row.ID,
		EventType:    row.EventType,
		Payload:      json.RawMessage(row.Payload),
		Status:       model.OutboxStatus(row.Status),
		ErrorMessage: row.ErrorMessage,
		RetryCount:   row.RetryCount,
		CreatedAt:    row.CreatedAt,
		ProcessedAt:  row.ProcessedAt,
	}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := r.db.Rebind(`
		INSERT INTO outbox_events (
			id, event_type, payload, status, retry_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`)
	event.ID = uuid.NewString()
	event.Status = model.OutboxStatusPending
	event.RetryCount = 0
	event.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		string(event.Payload),
		string(event.Status),
		event.RetryCount,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepository) GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := r.db.Rebind(`
		SELECT id, event_type, payload, status, error_message, retry_count, created_at, processed_at
		FROM outbox_events
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?
	`)

	var rows []outboxRow
	if err := r.db.SelectContext(ctx, &rows, query, string(model.OutboxStatusPending), limit); err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}

	events := make([]*model.OutboxEvent, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].event())
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id string) error {
	query := r.db.Rebind(`
		UPDATE outbox_events
		SET status = ?, error_message = NULL, processed_at = ?
		WHERE id = ?
	`)
	_, err := r.db.ExecContext(ctx, query, string(model.OutboxStatusProcessed), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	query := r.db.Rebind(`
		UPDATE outbox_events
		SET status = ?, error_message = ?, retry_count = retry_count + 1
		WHERE id = ?
	`)
	_, err := r.db.ExecContext(ctx, query, string(model.OutboxStatusFailed), errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := r.db.Rebind(`
		DELETE FROM outbox_events
		WHERE status = ?
		AND processed_at < ?
	`)
	result, err := r.db.ExecContext(ctx, query, string(model.OutboxStatusProcessed), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}

	return result.RowsAffected()
}
