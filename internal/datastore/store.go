package datastore

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/strainbot/internal/cache"
	"github.com/tphakala/strainbot/internal/errors"
	"github.com/tphakala/strainbot/internal/logger"
	"github.com/tphakala/strainbot/internal/observability/metrics"
	"github.com/tphakala/strainbot/internal/ratelimit"
	"github.com/tphakala/strainbot/internal/sheetdb"
)

// Defaults for Options
const (
	DefaultRateLimit  = 90
	DefaultRateWindow = 60 * time.Second
	DefaultQueueSize  = 64
)

// Cache lifetimes and key prefixes
const (
	searchTTL      = 60 * time.Second
	leaderboardTTL = 120 * time.Second

	prefixItem        = "strain_"
	prefixTop         = "top_strains"
	prefixAllApproved = "all_approved_strains"
)

// Options configures a Store. Zero values select the defaults.
type Options struct {
	RateLimit  int
	RateWindow time.Duration
	QueueSize  int
	Cache      *cache.Cache
	Recorder   metrics.Recorder
	// Clock returns the time stamped on new rows
	Clock func() time.Time
}

type job struct {
	ctx      context.Context
	name     string
	enqueued time.Time
	fn       func(ctx context.Context) error
	done     chan error
}

// Store owns the four tables. All backend access is serialized through one
// worker goroutine in FIFO order and throttled by a sliding window limiter.
type Store struct {
	backend  sheetdb.Backend
	limiter  *ratelimit.Window
	cache    *cache.Cache
	recorder metrics.Recorder
	clock    func() time.Time

	mu     sync.RWMutex // guards closed and sends on jobs
	closed bool
	jobs   chan *job
	done   chan struct{}
}

// New starts the store worker. Call Close to stop it.
func New(backend sheetdb.Backend, opts Options) *Store {
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = DefaultRateWindow
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Cache == nil {
		opts.Cache = cache.New(cache.DefaultCleanupInterval)
	}
	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	s := &Store{
		backend:  backend,
		limiter:  ratelimit.NewWindow(opts.RateLimit, opts.RateWindow),
		cache:    opts.Cache,
		recorder: opts.Recorder,
		clock:    opts.Clock,
		jobs:     make(chan *job, opts.QueueSize),
		done:     make(chan struct{}),
	}
	go s.run()

	getLogger().Info("record store started",
		logger.Int("rate_limit", opts.RateLimit),
		logger.Duration("rate_window", opts.RateWindow),
		logger.Int("queue_size", opts.QueueSize))
	return s
}

// Cache returns the cache used for derived reads
func (s *Store) Cache() *cache.Cache { return s.cache }

// QueueDepth returns the number of jobs waiting for the worker
func (s *Store) QueueDepth() int { return len(s.jobs) }

// QuotaRemaining returns the store calls left in the current window
func (s *Store) QuotaRemaining() int { return s.limiter.Remaining() }

// Close stops accepting jobs, waits for queued jobs to finish and stops the
// worker. The backend is not closed.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	<-s.done
	getLogger().Info("record store stopped")
	return nil
}

func (s *Store) run() {
	defer close(s.done)
	for j := range s.jobs {
		j.done <- s.execute(j)
	}
}

func (s *Store) execute(j *job) error {
	s.recorder.RecordDuration(metrics.OpQueueWait, time.Since(j.enqueued).Seconds())

	// the caller may have given up while the job was queued
	if err := j.ctx.Err(); err != nil {
		return err
	}

	waitStart := time.Now()
	if err := s.limiter.Wait(j.ctx); err != nil {
		return err
	}
	if waited := time.Since(waitStart); waited > time.Millisecond {
		s.recorder.RecordDuration(metrics.OpLimiterWait, waited.Seconds())
		getLogger().Debug("store call quota exhausted, waited",
			logger.String("job", j.name),
			logger.Duration("waited", waited))
	}

	start := time.Now()
	err := j.fn(j.ctx)
	s.recorder.RecordDuration(metrics.OpJob, time.Since(start).Seconds())
	if err != nil && errors.Is(err, ErrStoreUnavailable) {
		s.recorder.RecordError(metrics.OpJob, "backend")
	} else {
		s.recorder.RecordOperation(metrics.OpJob, metrics.StatusSuccess)
	}
	return err
}

// do queues fn and waits for its result. ctx bounds the wait for a queue
// slot and the wait for the store call quota.
func (s *Store) do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	j := &job{
		ctx:      ctx,
		name:     name,
		enqueued: time.Now(),
		fn:       fn,
		done:     make(chan error, 1),
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return errors.New(ErrClosed).
			Component("datastore").
			Category(errors.CategoryJobQueue).
			Context("job", name).
			Build()
	}
	select {
	case s.jobs <- j:
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	s.mu.RUnlock()

	return <-j.done
}

// invalidate drops every cached read that a mutation can change
func (s *Store) invalidate() {
	n := s.cache.DeletePrefix(prefixItem)
	n += s.cache.DeletePrefix(prefixTop)
	n += s.cache.DeletePrefix(prefixAllApproved)
	getLogger().Debug("cache invalidated", logger.Int("entries", n))
}

func (s *Store) now() time.Time { return s.clock() }

// backend helpers, only called from inside a job

func (s *Store) call(op, table string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	if err != nil {
		return s.backendError(err, op, table, elapsed)
	}
	name := op
	if table != "" {
		name = op + ":" + table
	}
	s.recorder.RecordOperation(name, metrics.StatusSuccess)
	s.recorder.RecordDuration(name, elapsed.Seconds())
	return nil
}

func (s *Store) readRows(ctx context.Context, table string) ([][]string, error) {
	var rows [][]string
	err := s.call(metrics.OpRead, table, func() error {
		var err error
		rows, err = s.backend.ReadRows(ctx, table)
		return err
	})
	return rows, err
}

func (s *Store) appendRow(ctx context.Context, table string, row []string) error {
	return s.call(metrics.OpAppend, table, func() error {
		return s.backend.AppendRow(ctx, table, row)
	})
}

func (s *Store) updateCells(ctx context.Context, table string, row, col int, values []string) error {
	return s.call(metrics.OpUpdate, table, func() error {
		return s.backend.UpdateCells(ctx, table, row, col, values)
	})
}

func (s *Store) deleteRow(ctx context.Context, table string, row int) error {
	return s.call(metrics.OpDelete, table, func() error {
		return s.backend.DeleteRow(ctx, table, row)
	})
}

func (s *Store) readItems(ctx context.Context) ([]Item, error) {
	rows, err := s.readRows(ctx, TableStrains)
	if err != nil {
		return nil, err
	}
	return decodeItems(rows), nil
}

// Ping runs an empty job through the queue and limiter, then pings the backend
func (s *Store) Ping(ctx context.Context) error {
	return s.do(ctx, "ping", func(ctx context.Context) error {
		return s.call(metrics.OpPing, "", func() error {
			return s.backend.Ping(ctx)
		})
	})
}
