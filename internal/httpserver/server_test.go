package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/strainbot/internal/observability"
	"github.com/tphakala/strainbot/internal/status"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakePresence bool

func (f fakePresence) IsConnected() bool { return bool(f) }

type fakeBoard []status.Section

func (f fakeBoard) Snapshot() []status.Section { return f }

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthHealthy(t *testing.T) {
	t.Parallel()

	s := New(Config{}, WithStore(fakePinger{}), WithPresence(fakePresence(true)))
	rec := get(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeHealth(t, rec)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, StatusHealthy, resp.Services["store"].Status)
	assert.Equal(t, StatusHealthy, resp.Services["presence"].Status)
	assert.Contains(t, resp.Services["process"].Details, "uptime_seconds")
	_, err := time.Parse(time.RFC3339, resp.Timestamp)
	assert.NoError(t, err)
}

func TestHealthStoreDown(t *testing.T) {
	t.Parallel()

	s := New(Config{}, WithStore(fakePinger{err: errors.New("datastore unavailable")}))
	rec := get(t, s, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	resp := decodeHealth(t, rec)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "datastore unavailable", resp.Services["store"].Error)
	assert.Equal(t, StatusDisabled, resp.Services["presence"].Status)
}

func TestHealthPresenceDown(t *testing.T) {
	t.Parallel()

	s := New(Config{}, WithStore(fakePinger{}), WithPresence(fakePresence(false)))
	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, decodeHealth(t, rec).Services["presence"].Details["connected"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	m, err := observability.NewMetrics()
	require.NoError(t, err)
	s := New(Config{}, WithStore(fakePinger{}), WithMetrics(m))

	require.Equal(t, http.StatusOK, get(t, s, "/health").Code)

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `http_requests_total{method="GET",path="/health",status="200"} 1`)
	assert.Contains(t, body, `health_checks_total{service="store",status="healthy"} 1`)
}

func TestMetricsRouteNeedsMetrics(t *testing.T) {
	t.Parallel()

	s := New(Config{})
	assert.Equal(t, http.StatusNotFound, get(t, s, "/metrics").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/status").Code)
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	board := fakeBoard{{Key: status.SectionRecentRatings, Title: "⭐ Recent Ratings"}}
	s := New(Config{}, WithStatus(board))

	rec := get(t, s, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Sections []status.Section `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sections, 1)
	assert.Equal(t, status.SectionRecentRatings, body.Sections[0].Key)
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	s := New(Config{Host: "127.0.0.1"})
	assert.Equal(t, "127.0.0.1:8080", s.config.Address())
	assert.Equal(t, DefaultShutdownTimeout, s.config.ShutdownTimeout)
}

type queuedStore struct{ fakePinger }

func (queuedStore) QueueDepth() int     { return 3 }
func (queuedStore) QuotaRemaining() int { return 87 }

func TestHealthStoreQueueDetails(t *testing.T) {
	t.Parallel()

	s := New(Config{}, WithStore(queuedStore{}))
	rec := get(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	details := decodeHealth(t, rec).Services["store"].Details
	assert.InDelta(t, 3, details["queue_depth"], 0)
	assert.InDelta(t, 87, details["quota_remaining"], 0)
}
