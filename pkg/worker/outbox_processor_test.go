package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/patient-records/internal/model"
	"github.com/jwalitptl/patient-records/pkg/messaging"
	"github.com/jwalitptl/patient-records/pkg/metrics"
	"github.com/jwalitptl/patient-records/pkg/repository"
)

type mockOutbox struct {
	mock.Mock
}

var (
	_ repository.OutboxReader = (*mockOutbox)(nil)
	_ repository.OutboxPurger = (*mockOutbox)(nil)
)

func (m *mockOutbox) GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	events, _ := args.Get(0).([]*model.OutboxEvent)
	return events, args.Error(1)
}

func (m *mockOutbox) MarkProcessed(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockOutbox) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return m.Called(ctx, id, errMsg).Error(0)
}

func (m *mockOutbox) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type published struct {
	eventType string
	payload   json.RawMessage
}

// fakePublisher fails the first failures calls
type fakePublisher struct {
	failures int
	calls    int
	sent     []published
}

var _ messaging.Publisher = (*fakePublisher)(nil)

func (p *fakePublisher) Publish(_ context.Context, eventType string, payload json.RawMessage) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, published{eventType: eventType, payload: payload})
	return nil
}

func testConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  10 * time.Millisecond,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}
}

func pendingEvent(id, eventType string) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:        id,
		EventType: eventType,
		Payload:   json.RawMessage(`{"id":1,"pid":"PID-1"}`),
		Status:    model.OutboxStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func TestNewOutboxProcessor_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*OutboxProcessorConfig)
	}{
		{"batch size", func(c *OutboxProcessorConfig) { c.BatchSize = 0 }},
		{"poll interval", func(c *OutboxProcessorConfig) { c.PollInterval = 0 }},
		{"retry attempts", func(c *OutboxProcessorConfig) { c.RetryAttempts = 0 }},
		{"retry delay", func(c *OutboxProcessorConfig) { c.RetryDelay = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := NewOutboxProcessor(&mockOutbox{}, &fakePublisher{}, cfg, nil, nil)
			assert.Error(t, err)
		})
	}
}

func TestProcessBatch_PublishesAndMarksProcessed(t *testing.T) {
	repo := &mockOutbox{}
	pub := &fakePublisher{}
	m := metrics.NewMetrics("test")

	events := []*model.OutboxEvent{
		pendingEvent("e1", model.EventPatientCreated),
		pendingEvent("e2", model.EventPatientUpdated),
	}
	repo.On("GetPending", mock.Anything, 10).Return(events, nil)
	repo.On("MarkProcessed", mock.Anything, "e1").Return(nil)
	repo.On("MarkProcessed", mock.Anything, "e2").Return(nil)

	p, err := NewOutboxProcessor(repo, pub, testConfig(), nil, m)
	require.NoError(t, err)

	delivered, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, delivered)
	require.Len(t, pub.sent, 2)
	assert.Equal(t, model.EventPatientCreated, pub.sent[0].eventType)
	assert.JSONEq(t, `{"id":1,"pid":"PID-1"}`, string(pub.sent[0].payload))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxEventsProcessed))
	repo.AssertExpectations(t)
}

func TestProcessBatch_RetriesTransientFailure(t *testing.T) {
	repo := &mockOutbox{}
	pub := &fakePublisher{failures: 2}

	repo.On("GetPending", mock.Anything, 10).Return([]*model.OutboxEvent{pendingEvent("e1", model.EventPatientDeleted)}, nil)
	repo.On("MarkProcessed", mock.Anything, "e1").Return(nil)

	p, err := NewOutboxProcessor(repo, pub, testConfig(), nil, nil)
	require.NoError(t, err)

	delivered, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, delivered)
	assert.Equal(t, 3, pub.calls)
	repo.AssertExpectations(t)
}

func TestProcessBatch_MarksFailedAfterRetries(t *testing.T) {
	repo := &mockOutbox{}
	pub := &fakePublisher{failures: 100}
	m := metrics.NewMetrics("test")

	repo.On("GetPending", mock.Anything, 10).Return([]*model.OutboxEvent{pendingEvent("e1", model.EventPatientCreated)}, nil)
	repo.On("MarkFailed", mock.Anything, "e1", "broker unavailable").Return(nil)

	p, err := NewOutboxProcessor(repo, pub, testConfig(), nil, m)
	require.NoError(t, err)

	delivered, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Zero(t, delivered)
	assert.Equal(t, 3, pub.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEventsFailed))
	repo.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestProcessBatch_StoreError(t *testing.T) {
	repo := &mockOutbox{}
	m := metrics.NewMetrics("test")
	repo.On("GetPending", mock.Anything, 10).Return(nil, errors.New("disk I/O error"))

	p, err := NewOutboxProcessor(repo, &fakePublisher{}, testConfig(), nil, m)
	require.NoError(t, err)

	_, err = p.ProcessBatch(context.Background())
	assert.ErrorContains(t, err, "disk I/O error")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatabaseOperations.WithLabelValues("outbox_get_pending", "error")))
}

func TestStart_StopsOnCancel(t *testing.T) {
	repo := &mockOutbox{}
	repo.On("GetPending", mock.Anything, 10).Return([]*model.OutboxEvent{}, nil)

	p, err := NewOutboxProcessor(repo, &fakePublisher{}, testConfig(), nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
	repo.AssertCalled(t, "GetPending", mock.Anything, 10)
}

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := retry(ctx, 5, time.Hour, func() error {
		calls++
		cancel()
		return errors.New("boom")
	})

	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, calls)
}
