package sqlstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/patient-records/internal/model"
	"github.com/jwalitptl/patient-records/internal/repository"
)

func newTestOutbox(t *testing.T) repository.OutboxRepository {
	t.Helper()
	db := newTestDB(t)
	require.NoError(t, NewPatientRepository(db, nil).Initialize(context.Background()))
	return NewOutboxRepository(db)
}

func TestOutbox_CreateAndGetPending(t *testing.T) {
	repo := newTestOutbox(t)
	ctx := context.Background()

	evt := &model.OutboxEvent{
		EventType: model.EventPatientCreated,
		Payload:   json.RawMessage(`{"id":1,"pid":"PID-2026-0001"}`),
	}
	require.NoError(t, repo.Create(ctx, evt))
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, model.OutboxStatusPending, evt.Status)

	pending, err := repo.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, evt.ID, pending[0].ID)
	assert.Equal(t, model.EventPatientCreated, pending[0].EventType)
	assert.JSONEq(t, `{"id":1,"pid":"PID-2026-0001"}`, string(pending[0].Payload))
	assert.WithinDuration(t, evt.CreatedAt, pending[0].CreatedAt, time.Second)
	assert.Nil(t, pending[0].ProcessedAt)
}

func TestOutbox_CreateRejectsEmpty(t *testing.T) {
	repo := newTestOutbox(t)

	assert.Error(t, repo.Create(context.Background(), nil))
	assert.Error(t, repo.Create(context.Background(), &model.OutboxEvent{EventType: model.EventPatientDeleted}))
}

func TestOutbox_GetPendingRespectsLimitAndOrder(t *testing.T) {
	repo := newTestOutbox(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		evt := &model.OutboxEvent{EventType: model.EventPatientUpdated, Payload: json.RawMessage(`{}`)}
		require.NoError(t, repo.Create(ctx, evt))
		ids = append(ids, evt.ID)
		time.Sleep(2 * time.Millisecond)
	}

	pending, err := repo.GetPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ids[0], pending[0].ID)
	assert.Equal(t, ids[1], pending[1].ID)
}

func TestOutbox_MarkProcessedAndPurge(t *testing.T) {
	repo := newTestOutbox(t)
	ctx := context.Background()

	evt := &model.OutboxEvent{EventType: model.EventPatientDeleted, Payload: json.RawMessage(`{"id":7}`)}
	require.NoError(t, repo.Create(ctx, evt))
	require.NoError(t, repo.MarkProcessed(ctx, evt.ID))

	pending, err := repo.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	purged, err := repo.DeleteProcessedBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), purged)

	purged, err = repo.DeleteProcessedBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestOutbox_MarkFailed(t *testing.T) {
	repo := newTestOutbox(t)
	ctx := context.Background()

	evt := &model.OutboxEvent{EventType: model.EventPatientCreated, Payload: json.RawMessage(`{}`)}
	require.NoError(t, repo.Create(ctx, evt))
	require.NoError(t, repo.MarkFailed(ctx, evt.ID, "broker unavailable"))

	pending, err := repo.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// failed events are not purged by retention
	purged, err := repo.DeleteProcessedBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), purged)
}
