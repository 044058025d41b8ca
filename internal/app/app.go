// Package app wires the configured components together and runs them
package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/strainbot/internal/buildinfo"
	"github.com/tphakala/strainbot/internal/cache"
	"github.com/tphakala/strainbot/internal/conf"
	"github.com/tphakala/strainbot/internal/datastore"
	"github.com/tphakala/strainbot/internal/errors"
	"github.com/tphakala/strainbot/internal/events"
	"github.com/tphakala/strainbot/internal/httpserver"
	"github.com/tphakala/strainbot/internal/logger"
	"github.com/tphakala/strainbot/internal/moderation"
	"github.com/tphakala/strainbot/internal/notify"
	"github.com/tphakala/strainbot/internal/observability"
	"github.com/tphakala/strainbot/internal/sheetdb"
	"github.com/tphakala/strainbot/internal/status"
	"github.com/tphakala/strainbot/internal/telemetry"
)

const (
	sweepInterval   = 10 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func getLogger() logger.Logger {
	return logger.Global().Module("app")
}

// App holds the running components
type App struct {
	Settings   *conf.Settings
	Build      *buildinfo.Context
	Metrics    *observability.Metrics
	Backend    sheetdb.Backend
	Store      *datastore.Store
	Bus        *events.EventBus
	MQTT       *events.MQTTPublisher
	Moderation *moderation.Service
	Board      *status.Board

	log logger.Logger
}

// OpenBackend opens the configured backing store
func OpenBackend(ctx context.Context, settings *conf.Settings) (sheetdb.Backend, error) {
	switch settings.Store.Backend {
	case conf.BackendGoogle:
		cred, err := sheetdb.CredentialsOption(ctx, settings.Sheets.CredentialsPath)
		if err != nil {
			return nil, err
		}
		return sheetdb.NewGoogle(ctx, settings.Sheets.SpreadsheetID, cred)
	case conf.BackendSQLite:
		return sheetdb.OpenSQLite(settings.Store.SQLite.Path)
	case conf.BackendMySQL:
		return sheetdb.OpenMySQL(settings.Store.MySQL.DSN)
	case conf.BackendMemory:
		return sheetdb.NewMemory(), nil
	default:
		return nil, errors.Newf("unknown store backend %q", settings.Store.Backend).
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// New builds every component from settings. backend may be nil, in which
// case the configured one is opened. Nothing is started until Run.
func New(ctx context.Context, settings *conf.Settings, build *buildinfo.Context, backend sheetdb.Backend) (*App, error) {
	a := &App{Settings: settings, Build: build, log: getLogger()}

	if _, err := telemetry.Init(telemetry.Options{
		DSN:     settings.Telemetry.SentryDSN,
		Release: build.Release(),
	}); err != nil {
		a.log.Warn("error reporting not available", logger.Error(err))
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	a.Metrics = m

	if backend == nil {
		if backend, err = OpenBackend(ctx, settings); err != nil {
			return nil, err
		}
	}
	a.Backend = backend

	c := cache.New(cache.DefaultCleanupInterval)
	if err := m.Datastore.TrackCache(func() (uint64, uint64, int) {
		st := c.Stats()
		return st.Hits, st.Misses, st.Items
	}); err != nil {
		a.log.Warn("cache metrics not registered", logger.Error(err))
	}

	a.Store = datastore.New(backend, datastore.Options{
		RateLimit:  settings.Store.RateLimit,
		RateWindow: settings.Store.Window(),
		QueueSize:  settings.Store.QueueSize,
		Cache:      c,
		Recorder:   m.Datastore,
	})
	if err := a.Store.EnsureSchema(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to prepare tables: %w", err)
	}

	a.Bus = events.NewEventBus(events.DefaultConfig())
	if settings.MQTT.Enabled() {
		a.connectMQTT(ctx)
	}

	var notifier moderation.Notifier = notify.Discard{}
	if len(settings.Notify.URLs) > 0 {
		sender, err := notify.NewShoutrrr(settings.Notify.URLs, settings.Notify.Timeout, m.Notification)
		if err != nil {
			a.log.Warn("moderator alerts disabled", logger.Error(err))
		} else {
			notifier = sender
		}
	}

	var publisher status.Publisher
	if a.MQTT != nil {
		publisher = a.MQTT
	}
	a.Board = status.New(a.Store, publisher, status.Options{
		RefreshInterval: settings.Status.RefreshInterval,
		TopLimit:        settings.Status.TopLimit,
		RecentLimit:     settings.Status.RecentLimit,
	})

	mod := settings.Moderation
	roles := append([]string{mod.RoleID}, mod.RoleIDs...)
	a.Moderation = moderation.New(a.Store,
		moderation.NewPolicy(roles, mod.Hierarchical, moderation.StaticRoles(mod.RolePositions)),
		moderation.Options{
			PerUserLimit:   mod.PerUserLimit,
			CommunityLimit: mod.CommunityLimit,
			RateWindow:     mod.Window(),
			AlertCooldown:  mod.AlertCooldown,
			AlertRetract:   mod.AlertRetract,
			Notifier:       notifier,
			Events:         a.Bus,
			Status:         a.Board,
			Metrics:        m.Moderation,
		})

	a.log.Info("strainbot initialized",
		logger.String("version", build.GetVersion()),
		logger.String("backend", settings.Store.Backend),
		logger.Bool("mqtt", a.MQTT != nil),
		logger.Int("notify_targets", len(settings.Notify.URLs)))
	return a, nil
}

// connectMQTT attaches the broker as an event consumer. A broker that is
// down at startup is logged; paho keeps retrying in the background.
func (a *App) connectMQTT(ctx context.Context) {
	s := a.Settings.MQTT
	cfg := events.DefaultMQTTConfig()
	cfg.Broker = s.Broker
	cfg.ClientID = s.ClientID
	cfg.Username = s.Username
	cfg.Password = s.Password
	cfg.TopicPrefix = s.TopicPrefix
	cfg.Retain = s.Retain

	pub := events.NewMQTTPublisher(cfg, a.Metrics.MQTT)
	if err := pub.Connect(ctx); err != nil {
		a.log.Warn("MQTT broker not reachable, events will not be published", logger.Error(err))
	}
	if err := a.Bus.RegisterConsumer(pub); err != nil {
		a.log.Warn("could not register MQTT consumer", logger.Error(err))
		return
	}
	a.MQTT = pub
}

// Run serves until ctx is done: the status board, the HTTP endpoints and
// the idle limiter sweeper
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.Settings.Status.Enabled {
		g.Go(func() error { return a.Board.Run(gctx) })
	}

	if a.Settings.HTTP.Enabled {
		opts := []httpserver.Option{
			httpserver.WithStore(a.Store),
			httpserver.WithMetrics(a.Metrics),
			httpserver.WithStatus(a.Board),
		}
		if a.MQTT != nil {
			opts = append(opts, httpserver.WithPresence(a.MQTT))
		}
		srv := httpserver.New(httpserver.Config{Port: a.Settings.HTTP.Port}, opts...)
		g.Go(func() error { return srv.Run(gctx) })
	}

	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := a.Moderation.SweepLimiters(); n > 0 {
					a.log.Debug("dropped idle rate limit windows", logger.Int("count", n))
				}
			case <-gctx.Done():
				return nil
			}
		}
	})

	a.log.Info("strainbot running")
	err := g.Wait()
	if err != nil {
		telemetry.CaptureError(err, "app")
	}
	return err
}

// Close stops components in reverse start order
func (a *App) Close() error {
	var errs []error
	if a.Moderation != nil {
		a.Moderation.Close()
	}
	if err := a.Bus.Shutdown(shutdownTimeout); err != nil {
		errs = append(errs, err)
	}
	if a.MQTT != nil {
		a.MQTT.Disconnect()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Backend != nil {
		if err := a.Backend.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	telemetry.Flush(2 * time.Second)
	return errors.Join(errs...)
}
