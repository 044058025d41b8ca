// Package telemetry reports unexpected errors to Sentry. Reporting is opt-in:
// nothing is sent unless a DSN is configured.
package telemetry

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/strainbot/internal/errors"
	"github.com/tphakala/strainbot/internal/logger"
	"github.com/tphakala/strainbot/internal/privacy"
)

func getLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}

// Options configures Sentry
type Options struct {
	DSN         string
	Release     string
	Environment string
	// Transport overrides the HTTP transport, used by tests
	Transport sentry.Transport
}

var enabled atomic.Bool

// Init installs the Sentry client and routes enhanced errors to it. It
// returns false without error when no DSN is configured.
func Init(opts Options) (bool, error) {
	if opts.DSN == "" {
		getLogger().Info("error reporting is disabled")
		errors.SetTelemetryReporter(nil)
		enabled.Store(false)
		return false, nil
	}
	if opts.Environment == "" {
		opts.Environment = "production"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              opts.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      opts.Environment,
		ServerName:       "",
		Release:          opts.Release,
		Transport:        opts.Transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return false, errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetContext("platform", map[string]any{
			"num_cpu":    runtime.NumCPU(),
			"go_version": runtime.Version(),
		})
	})

	errors.SetTelemetryReporter(unexpectedOnly{errors.NewSentryReporter(true)})
	enabled.Store(true)
	getLogger().Info("error reporting enabled",
		logger.String("release", opts.Release),
		logger.String("environment", opts.Environment))
	return true, nil
}

// unexpectedOnly drops errors that describe normal user facing outcomes
type unexpectedOnly struct {
	*errors.SentryReporter
}

func (u unexpectedOnly) ReportError(ee *errors.EnhancedError) {
	switch ee.Category {
	case errors.CategoryValidation, errors.CategoryNotFound, errors.CategoryConflict,
		errors.CategoryLimit, errors.CategoryCancellation:
		return
	}
	u.SentryReporter.ReportError(ee)
}

// applyPrivacyFilters strips host and user identifying data from an event
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}

// CaptureError sends a plain error with its message scrubbed
func CaptureError(err error, component string) {
	if err == nil || !enabled.Load() {
		return
	}
	msg := privacy.ScrubMessage(err.Error())

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetFingerprint([]string{component, fmt.Sprintf("%T", err)})

		event := sentry.NewEvent()
		event.Level = sentry.LevelError
		event.Message = msg
		event.Exception = []sentry.Exception{{Type: component + " error", Value: msg}}
		sentry.CaptureEvent(event)
	})
}

// Flush waits up to timeout for buffered events to be sent
func Flush(timeout time.Duration) {
	if !enabled.Load() {
		return
	}
	if !sentry.Flush(timeout) {
		getLogger().Warn("not all error reports were delivered", logger.Duration("timeout", timeout))
	}
}
