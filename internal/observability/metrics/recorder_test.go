package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestRecorder(t *testing.T) {
	t.Parallel()

	r := NewTestRecorder()
	r.RecordOperation("append:Ratings", StatusSuccess)
	r.RecordOperation("append:Ratings", StatusSuccess)
	r.RecordOperation("append:Ratings", StatusError)
	r.RecordDuration(OpJob, 0.25)
	r.RecordError("read:Strains", "network")

	assert.Equal(t, 2, r.OperationCount("append:Ratings", StatusSuccess))
	assert.Equal(t, 1, r.OperationCount("append:Ratings", StatusError))
	assert.Equal(t, 0, r.OperationCount("read:Strains", StatusSuccess))
	assert.Equal(t, []float64{0.25}, r.Durations(OpJob))
	assert.Nil(t, r.Durations("missing"))
	assert.Equal(t, 1, r.ErrorCount("read:Strains", "network"))
}

func TestParseTableFromOperation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, op, table string
	}{
		{"read:Strains", "read", "Strains"},
		{"job", "job", ""},
		{"update:Odd:Name", "update", "Odd:Name"},
	}
	for _, tt := range tests {
		op, table := parseTableFromOperation(tt.in)
		assert.Equal(t, tt.op, op, tt.in)
		assert.Equal(t, tt.table, table, tt.in)
	}
}

func TestDatastoreMetricsRecorder(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewDatastoreMetrics(reg)
	require.NoError(t, err)

	m.RecordOperation("append:Ratings", StatusSuccess)
	m.RecordError("append:Ratings", "network")
	m.RecordOperation(OpJob, StatusSuccess)
	m.RecordDuration(OpLimiterWait, 0.5)
	m.RecordDuration("read:Strains", 0.02)

	assert.InDelta(t, 1, testutil.ToFloat64(m.operationsTotal.WithLabelValues(OpAppend, "Ratings", StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.operationsTotal.WithLabelValues(OpAppend, "Ratings", StatusError)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.operationErrorsTotal.WithLabelValues(OpAppend, "Ratings", "network")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.jobsTotal.WithLabelValues(StatusSuccess)), 0)

	var metric dto.Metric
	require.NoError(t, m.limiterWait.Write(&metric))
	assert.Equal(t, uint64(1), metric.GetHistogram().GetSampleCount())
	assert.InDelta(t, 0.5, metric.GetHistogram().GetSampleSum(), 1e-9)
}

func TestDatastoreMetricsTrackCache(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewDatastoreMetrics(reg)
	require.NoError(t, err)

	hits := uint64(3)
	require.NoError(t, m.TrackCache(func() (uint64, uint64, int) { return hits, 1, 7 }))

	assert.InDelta(t, 3, testutil.ToFloat64(m.cacheHits), 0)
	hits = 5
	assert.InDelta(t, 5, testutil.ToFloat64(m.cacheHits), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(m.cacheEntries), 0)
}

func TestModerationMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewModerationMetrics(reg)
	require.NoError(t, err)

	m.RecordCommand("submit", StatusSuccess, 20*time.Millisecond)
	m.RecordCommand("submit", StatusError, 5*time.Millisecond)
	m.RecordRejection("duplicate")
	m.SetPending(4)
	m.RecordAlert("posted")

	assert.InDelta(t, 1, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("submit", StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RejectionsTotal.WithLabelValues("duplicate")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.PendingItems), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AlertsTotal.WithLabelValues("posted")), 0)

	n, err := testutil.GatherAndCount(reg, "moderation_commands_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMQTTAndNotificationMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	mq, err := NewMQTTMetrics(reg)
	require.NoError(t, err)
	nm, err := NewNotificationMetrics(reg)
	require.NoError(t, err)
	hm, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	mq.UpdateConnectionStatus(true)
	mq.RecordDelivered("event", 128, 3*time.Millisecond)
	mq.IncrementErrors()
	nm.RecordDelivery("discord", StatusSuccess, 100*time.Millisecond)
	nm.RecordDeliveryError("telegram", "network")
	hm.RecordHTTPRequest("GET", "/health", 200, 0.01)
	hm.RecordHealthCheck("store", false)

	assert.InDelta(t, 1, testutil.ToFloat64(mq.ConnectionStatus), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(mq.MessagesDelivered.WithLabelValues("event")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(nm.DeliveriesTotal.WithLabelValues("discord", StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(hm.healthChecksTotal.WithLabelValues("store", "unhealthy")), 0)

	mq.UpdateConnectionStatus(false)
	assert.InDelta(t, 0, testutil.ToFloat64(mq.ConnectionStatus), 0)
}

func TestDuplicateRegistrationFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewModerationMetrics(reg)
	require.NoError(t, err)
	_, err = NewModerationMetrics(reg)
	assert.Error(t, err)
}
