// Package moderation implements the community workflow on top of the record
// store: submissions, moderator approval, ratings and the producer registry.
// Every command returns either its result or a *Rejection.
package moderation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/strainbot/internal/datastore"
	"github.com/tphakala/strainbot/internal/events"
	"github.com/tphakala/strainbot/internal/logger"
	"github.com/tphakala/strainbot/internal/notify"
	"github.com/tphakala/strainbot/internal/observability/metrics"
	"github.com/tphakala/strainbot/internal/ratelimit"
)

// Quota defaults
const (
	DefaultPerUserLimit   = 5
	DefaultCommunityLimit = 50
	DefaultRateWindow     = 60 * time.Second
)

func getLogger() logger.Logger {
	return logger.Global().Module("moderation")
}

// Store is the part of the record store the workflow uses
type Store interface {
	Submit(ctx context.Context, sub datastore.Submission) (string, error)
	Approve(ctx context.Context, identifier string) (datastore.Item, error)
	Rename(ctx context.Context, id, newName string) (datastore.Item, error)
	Rate(ctx context.Context, in datastore.RatingInput) (datastore.Item, error)

	GetByIdentifier(ctx context.Context, identifier, category string) (datastore.Item, error)
	Search(ctx context.Context, query, category string) ([]datastore.Item, error)
	ListApproved(ctx context.Context, category string) ([]datastore.Item, error)
	ListPending(ctx context.Context) ([]datastore.Item, error)
	PendingCount(ctx context.Context) (int, error)
	TopRated(ctx context.Context, category string, limit int) ([]datastore.Item, error)
	RecentRatings(ctx context.Context, limit int) ([]datastore.RatingView, error)
	LastRatings(ctx context.Context, limit int) ([]datastore.RatingView, error)
	LastSubmissions(ctx context.Context, limit int) ([]datastore.SubmissionRecord, error)
	ItemRatings(ctx context.Context, itemID string, limit int) ([]datastore.Rating, error)

	AddProducer(ctx context.Context, name string) (string, error)
	RemoveProducer(ctx context.Context, name string) error
	ListProducers(ctx context.Context) ([]string, error)
}

// EventSink receives activity events without blocking
type EventSink interface {
	TryPublish(event events.Event) bool
}

// Refresher is asked to rebuild the status board after a change
type Refresher interface {
	Trigger()
}

// Options configures a Service. Zero values select defaults and nil
// collaborators are replaced by no-ops.
type Options struct {
	PerUserLimit   int
	CommunityLimit int
	RateWindow     time.Duration
	AlertCooldown  time.Duration
	AlertRetract   time.Duration

	Notifier Notifier
	Events   EventSink
	Status   Refresher
	Metrics  *metrics.ModerationMetrics
}

// Service runs the moderation and rating workflow
type Service struct {
	store     Store
	policy    *Policy
	users     *ratelimit.Keyed
	community *ratelimit.Window
	alerts    *alerter
	events    EventSink
	status    Refresher
	stats     *commandStats
	metrics   *metrics.ModerationMetrics
}

type noopSink struct{}

func (noopSink) TryPublish(events.Event) bool { return false }

type noopRefresher struct{}

func (noopRefresher) Trigger() {}

// New creates a Service. Call Close on shutdown to retract open alerts.
func New(store Store, policy *Policy, opts Options) *Service {
	if opts.PerUserLimit <= 0 {
		opts.PerUserLimit = DefaultPerUserLimit
	}
	if opts.CommunityLimit <= 0 {
		opts.CommunityLimit = DefaultCommunityLimit
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = DefaultRateWindow
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{}
	}
	if opts.Events == nil {
		opts.Events = noopSink{}
	}
	if opts.Status == nil {
		opts.Status = noopRefresher{}
	}
	if policy == nil {
		policy = NewPolicy(nil, false, nil)
	}

	s := &Service{
		store:     store,
		policy:    policy,
		users:     ratelimit.NewKeyed(opts.PerUserLimit, opts.RateWindow),
		community: ratelimit.NewWindow(opts.CommunityLimit, opts.RateWindow),
		events:    opts.Events,
		status:    opts.Status,
		stats:     newCommandStats(opts.Metrics),
		metrics:   opts.Metrics,
	}
	s.alerts = newAlerter(opts.Notifier, opts.AlertCooldown, opts.AlertRetract, s.emit, s.recordAlert)

	getLogger().Info("moderation service ready",
		logger.Int("per_user_limit", opts.PerUserLimit),
		logger.Int("community_limit", opts.CommunityLimit),
		logger.Duration("rate_window", opts.RateWindow),
		logger.Any("moderator_roles", policy.ModeratorRoles()))
	return s
}

// Close retracts open moderator alerts and stops their timers
func (s *Service) Close() {
	s.alerts.close()
}

// Stats returns per-command success and failure counts
func (s *Service) Stats() map[string]CommandCount {
	return s.stats.snapshot()
}

// IsModerator reports whether actor passes the permission policy
func (s *Service) IsModerator(actor Actor) bool {
	return s.policy.IsModerator(actor)
}

// SweepLimiters drops idle per-user windows and returns how many went
func (s *Service) SweepLimiters() int {
	return s.users.Sweep()
}

// begin tags ctx with a fresh trace id and returns a logger carrying it
func (s *Service) begin(ctx context.Context) (context.Context, logger.Logger, string) {
	traceID := uuid.NewString()
	ctx = logger.WithTraceID(ctx, traceID)
	return ctx, getLogger().WithContext(ctx), traceID
}

// checkQuota applies the per-user and the community quota
func (s *Service) checkQuota(actor Actor, verb string) error {
	if !s.users.Allow(actor.UserID) {
		wait := s.users.ResetIn(actor.UserID).Round(time.Second)
		return reject(ReasonTooManyRequests, "You're %s too quickly! Please wait %s before trying again.", verb, wait)
	}
	if !s.community.Allow() {
		wait := s.community.ResetIn().Round(time.Second)
		return reject(ReasonTooManyRequests, "The community is very busy right now. Please try again in %s.", wait)
	}
	return nil
}

func (s *Service) requireModerator(actor Actor, action string) error {
	if !s.policy.IsModerator(actor) {
		return reject(ReasonForbidden, "You do not have permission to %s.", action)
	}
	return nil
}

func (s *Service) emit(ev events.Event) {
	if !s.events.TryPublish(ev) {
		getLogger().Trace("event not published", logger.String("type", string(ev.Type)))
	}
}

func (s *Service) recordAlert(action string) {
	if s.metrics != nil {
		s.metrics.RecordAlert(action)
	}
}

func (s *Service) event(t events.Type, traceID string, actor Actor) events.Event {
	ev := events.New(t)
	ev.TraceID = traceID
	ev.UserID = actor.UserID
	ev.Username = actor.Username
	return ev
}
