// Package notify sends moderator alerts to chat services through shoutrrr
// service URLs (discord://, slack://, telegram://, generic+https:// ...).
package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/google/uuid"

	"github.com/tphakala/strainbot/internal/errors"
	"github.com/tphakala/strainbot/internal/logger"
	"github.com/tphakala/strainbot/internal/observability/metrics"
	"github.com/tphakala/strainbot/internal/privacy"
)

// DefaultTimeout bounds a single delivery
const DefaultTimeout = 10 * time.Second

const providerName = "shoutrrr"

func getLogger() logger.Logger {
	return logger.Global().Module("notify")
}

// Notice is a message for moderators
type Notice struct {
	Title   string
	Message string
}

// Shoutrrr delivers notices to every configured service URL
type Shoutrrr struct {
	urls    []string
	timeout time.Duration
	metrics *metrics.NotificationMetrics

	// send is the router's Send, replaced in tests
	send func(message string, params *stypes.Params) []error
}

// NewShoutrrr validates urls and builds a sender. m may be nil.
func NewShoutrrr(urls []string, timeout time.Duration, m *metrics.NotificationMetrics) (*Shoutrrr, error) {
	if len(urls) == 0 {
		return nil, errors.New(fmt.Errorf("at least one notification URL is required")).
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// the error text may echo a URL with its token
		return nil, errors.New(privacy.WrapError(err)).
			Component("notify").
			Category(errors.CategoryConfiguration).
			Context("services", len(urls)).
			Build()
	}
	sender.Timeout = timeout
	sender.SetLogger(log.New(io.Discard, "", 0))

	redacted := make([]string, 0, len(urls))
	for _, u := range urls {
		redacted = append(redacted, privacy.RedactURL(u))
	}
	getLogger().Info("notification services configured", logger.Any("services", redacted))

	return &Shoutrrr{
		urls:    slices.Clone(urls),
		timeout: timeout,
		metrics: m,
		send:    sender.Send,
	}, nil
}

// Send delivers n to all services. The first failure is returned after
// every service was tried.
func (s *Shoutrrr) Send(ctx context.Context, n Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := stypes.Params{}
	if n.Title != "" {
		params.SetTitle(n.Title)
	}

	start := time.Now()
	errs := s.send(n.Message, &params)
	elapsed := time.Since(start)

	var firstErr error
	for i, e := range errs {
		if e == nil {
			continue
		}
		provider := providerName
		if i < len(s.urls) {
			provider = privacy.Scheme(s.urls[i])
		}
		if s.metrics != nil {
			s.metrics.RecordDelivery(provider, metrics.StatusError, elapsed)
			s.metrics.RecordDeliveryError(provider, string(errors.CategoryNotification))
		}
		getLogger().Warn("notification delivery failed",
			logger.String("provider", provider),
			logger.Error(privacy.WrapError(e)))
		if firstErr == nil {
			firstErr = e
		}
	}
	if firstErr != nil {
		return errors.New(privacy.WrapError(firstErr)).
			Component("notify").
			Category(errors.CategoryNotification).
			Timing("send", elapsed).
			Build()
	}

	if s.metrics != nil {
		for _, u := range s.urls {
			s.metrics.RecordDelivery(privacy.Scheme(u), metrics.StatusSuccess, elapsed)
		}
	}
	return nil
}

// Post sends a notice and returns an id that Retract accepts
func (s *Shoutrrr) Post(ctx context.Context, n Notice) (string, error) {
	if err := s.Send(ctx, n); err != nil {
		return "", err
	}
	return uuid.NewString(), nil
}

// Retract is a no-op: webhook transports cannot delete a delivered message
func (s *Shoutrrr) Retract(_ context.Context, id string) error {
	getLogger().Debug("notice retraction not supported by webhook transports", logger.String("id", id))
	return nil
}

// Discard accepts notices without sending them. It is used when no
// notification URL is configured.
type Discard struct{}

func (Discard) Post(_ context.Context, n Notice) (string, error) {
	getLogger().Debug("notice discarded", logger.String("title", n.Title))
	return uuid.NewString(), nil
}

func (Discard) Retract(context.Context, string) error { return nil }
