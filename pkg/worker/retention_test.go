package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/patient-records/pkg/metrics"
)

func TestNewRetentionWorker_Invalid(t *testing.T) {
	_, err := NewRetentionWorker(&mockOutbox{}, 0, time.Minute, nil, nil)
	assert.Error(t, err)

	_, err = NewRetentionWorker(&mockOutbox{}, time.Hour, 0, nil, nil)
	assert.Error(t, err)
}

func TestCleanup_UsesRetentionCutoff(t *testing.T) {
	repo := &mockOutbox{}
	m := metrics.NewMetrics("test")
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	repo.On("DeleteProcessedBefore", mock.Anything, now.Add(-7*24*time.Hour)).Return(int64(4), nil)

	w, err := NewRetentionWorker(repo, 7*24*time.Hour, time.Hour, nil, m)
	require.NoError(t, err)
	w.now = func() time.Time { return now }

	rows, err := w.Cleanup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), rows)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.OutboxEventsPurged))
	repo.AssertExpectations(t)
}

func TestCleanup_StoreError(t *testing.T) {
	repo := &mockOutbox{}
	repo.On("DeleteProcessedBefore", mock.Anything, mock.Anything).Return(int64(0), errors.New("database is locked"))

	w, err := NewRetentionWorker(repo, time.Hour, time.Hour, nil, nil)
	require.NoError(t, err)

	_, err = w.Cleanup(context.Background())
	assert.ErrorContains(t, err, "database is locked")
}
