package telemetry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/strainbot/internal/errors"
)

// mockTransport implements sentry.Transport and keeps every event
type mockTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

//nolint:gocritic // hugeParam: interface requirement
func (t *mockTransport) Configure(sentry.ClientOptions) {}

func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *mockTransport) Flush(time.Duration) bool              { return true }
func (t *mockTransport) FlushWithContext(context.Context) bool { return true }
func (t *mockTransport) Close()                                {}

func (t *mockTransport) all() []*sentry.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*sentry.Event(nil), t.events...)
}

func initMock(t *testing.T) *mockTransport {
	t.Helper()
	transport := &mockTransport{}
	ok, err := Init(Options{DSN: "https://public@example.com/1", Release: "strainbot@test", Transport: transport})
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(func() {
		errors.SetTelemetryReporter(nil)
		enabled.Store(false)
	})
	return transport
}

func TestInitWithoutDSN(t *testing.T) {
	ok, err := Init(Options{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, errors.GetTelemetryReporter())

	// no client, nothing to do
	CaptureError(fmt.Errorf("ignored"), "test")
	Flush(10 * time.Millisecond)
}

func TestEnhancedErrorsAreReported(t *testing.T) {
	transport := initMock(t)

	_ = errors.New(fmt.Errorf("sheet api returned 500")).
		Component("sheetdb").
		Category(errors.CategoryDatabase).
		Build()

	events := transport.all()
	require.Len(t, events, 1)
	assert.Equal(t, "sheetdb", events[0].Tags["component"])
	assert.Equal(t, string(errors.CategoryDatabase), events[0].Tags["category"])
	assert.Empty(t, events[0].ServerName)
}

func TestExpectedOutcomesAreNotReported(t *testing.T) {
	transport := initMock(t)

	for _, cat := range []errors.ErrorCategory{
		errors.CategoryValidation, errors.CategoryNotFound, errors.CategoryConflict, errors.CategoryLimit,
	} {
		_ = errors.New(fmt.Errorf("expected %s", cat)).Component("moderation").Category(cat).Build()
	}
	assert.Empty(t, transport.all())
}

func TestCaptureErrorScrubsMessage(t *testing.T) {
	transport := initMock(t)

	CaptureError(fmt.Errorf("post to https://discord.com/api/webhooks/1?token=secret failed"), "notify")

	events := transport.all()
	require.Len(t, events, 1)
	assert.NotContains(t, events[0].Message, "secret")
	assert.Equal(t, "notify", events[0].Tags["component"])
}

func TestApplyPrivacyFilters(t *testing.T) {
	event := sentry.NewEvent()
	event.ServerName = "db-host-01"
	event.User = sentry.User{ID: "42", Username: "alice"}
	event.Contexts["os"] = sentry.Context{"name": "linux"}
	event.Extra["error_type"] = "x"
	event.Extra["path"] = "/home/alice"
	event.Tags["hostname"] = "db-host-01"

	out := applyPrivacyFilters(event)
	assert.Empty(t, out.ServerName)
	assert.True(t, out.User.IsEmpty())
	assert.NotContains(t, out.Contexts, "os")
	assert.Equal(t, map[string]any{"error_type": "x"}, out.Extra)
	assert.NotContains(t, out.Tags, "hostname")
}
