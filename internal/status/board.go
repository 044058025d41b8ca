// Package status keeps the community status board up to date: a leaderboard
// per category plus the latest ratings and submissions. Sections are
// published as retained messages so late subscribers always see the board.
package status

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/tphakala/strainbot/internal/datastore"
	"github.com/tphakala/strainbot/internal/errors"
	"github.com/tphakala/strainbot/internal/ident"
	"github.com/tphakala/strainbot/internal/logger"
)

// Board defaults
const (
	DefaultRefreshInterval = 5 * time.Minute
	DefaultTopLimit        = 10
	DefaultRecentLimit     = 10
)

func getLogger() logger.Logger {
	return logger.Global().Module("status")
}

// Source provides the data the board renders
type Source interface {
	TopRated(ctx context.Context, category string, limit int) ([]datastore.Item, error)
	RecentRatings(ctx context.Context, limit int) ([]datastore.RatingView, error)
	LastSubmissions(ctx context.Context, limit int) ([]datastore.SubmissionRecord, error)
}

// Publisher stores a rendered section where readers can find it
type Publisher interface {
	PublishSection(ctx context.Context, section string, body []byte) error
}

// Options configures a Board. Zero values select defaults.
type Options struct {
	RefreshInterval time.Duration
	TopLimit        int
	RecentLimit     int
	Clock           func() time.Time
}

// Board renders and publishes the status sections
type Board struct {
	source    Source
	publisher Publisher
	opts      Options
	log       logger.Logger

	mu      sync.Mutex // serializes Refresh
	trigger chan struct{}

	lastMu sync.RWMutex
	last   []Section
}

// New creates a Board. publisher may be nil, in which case sections are only
// kept for Snapshot.
func New(source Source, publisher Publisher, opts Options) *Board {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.TopLimit <= 0 {
		opts.TopLimit = DefaultTopLimit
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = DefaultRecentLimit
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Board{
		source:    source,
		publisher: publisher,
		opts:      opts,
		log:       getLogger(),
		trigger:   make(chan struct{}, 1),
	}
}

// Trigger asks Run for a refresh without waiting for it. Repeated triggers
// before the refresh starts collapse into one.
func (b *Board) Trigger() {
	select {
	case b.trigger <- struct{}{}:
	default:
	}
}

// Render builds all sections from the current data
func (b *Board) Render(ctx context.Context) ([]Section, error) {
	now := b.opts.Clock().UTC()
	sections := make([]Section, 0, len(ident.Categories)+2)

	for _, category := range ident.Categories {
		items, err := b.source.TopRated(ctx, category, b.opts.TopLimit)
		if err != nil {
			return nil, b.wrap(err, "top_rated", category)
		}
		sections = append(sections, renderTop(category, items, b.opts.TopLimit, now))
	}

	ratings, err := b.source.RecentRatings(ctx, b.opts.RecentLimit)
	if err != nil {
		return nil, b.wrap(err, "recent_ratings", "")
	}
	sections = append(sections, renderRatings(ratings, b.opts.RecentLimit, now))

	subs, err := b.source.LastSubmissions(ctx, b.opts.RecentLimit)
	if err != nil {
		return nil, b.wrap(err, "recent_submissions", "")
	}
	sections = append(sections, renderSubmissions(subs, b.opts.RecentLimit, now))

	return sections, nil
}

func (b *Board) wrap(err error, section, category string) error {
	builder := errors.New(err).
		Component("status").
		Category(errors.CategoryDatabase).
		Context("section", section)
	if category != "" {
		builder = builder.Context("category", category)
	}
	return builder.Build()
}

// Refresh renders the board and publishes every section. A failed publish
// is logged and does not stop the remaining sections.
func (b *Board) Refresh(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	sections, err := b.Render(ctx)
	if err != nil {
		b.log.Error("status board refresh failed", logger.Error(err))
		return err
	}
	b.lastMu.Lock()
	b.last = sections
	b.lastMu.Unlock()

	if b.publisher == nil {
		return nil
	}
	var firstErr error
	for _, sec := range sections {
		body, err := json.Marshal(sec)
		if err != nil {
			return errors.New(err).Component("status").Category(errors.CategoryGeneric).Build()
		}
		if err := b.publisher.PublishSection(ctx, sec.Key, body); err != nil {
			b.log.Warn("could not publish status section",
				logger.String("section", sec.Key),
				logger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	b.log.Debug("status board refreshed",
		logger.Int("sections", len(sections)),
		logger.Duration("elapsed", time.Since(start)))
	return firstErr
}

// Snapshot returns the sections of the last successful refresh
func (b *Board) Snapshot() []Section {
	b.lastMu.RLock()
	defer b.lastMu.RUnlock()
	out := make([]Section, len(b.last))
	copy(out, b.last)
	return out
}

// Run refreshes once, then on every interval tick and every Trigger until
// ctx is done
func (b *Board) Run(ctx context.Context) error {
	b.log.Info("status board started",
		logger.Duration("interval", b.opts.RefreshInterval),
		logger.Int("top_limit", b.opts.TopLimit),
		logger.Int("recent_limit", b.opts.RecentLimit))

	_ = b.Refresh(ctx)

	ticker := time.NewTicker(b.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = b.Refresh(ctx)
		case <-b.trigger:
			_ = b.Refresh(ctx)
		case <-ctx.Done():
			b.log.Info("status board stopping")
			return nil
		}
	}
}
