package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/strainbot/internal/logger"
)

// Defaults for Config
const (
	DefaultBufferSize = 1000
	DefaultWorkers    = 1
)

// Config holds event bus configuration. With more than one worker events
// may reach consumers out of order.
type Config struct {
	BufferSize int
	Workers    int
}

// DefaultConfig returns the default event bus configuration
func DefaultConfig() Config {
	return Config{BufferSize: DefaultBufferSize, Workers: DefaultWorkers}
}

func getLogger() logger.Logger {
	return logger.Global().Module("events")
}

// EventBus provides asynchronous event processing with non-blocking publish
type EventBus struct {
	eventChan chan Event
	workers   int

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	mu      sync.Mutex

	consumers []Consumer

	received  atomic.Uint64
	processed atomic.Uint64
	dropped   atomic.Uint64
	errs      atomic.Uint64
}

// NewEventBus creates a bus. Workers start with the first consumer.
func NewEventBus(config Config) *EventBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBufferSize
	}
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	eb := &EventBus{
		eventChan: make(chan Event, config.BufferSize),
		workers:   config.Workers,
		ctx:       ctx,
		cancel:    cancel,
	}
	getLogger().Info("event bus initialized",
		logger.Int("buffer_size", config.BufferSize),
		logger.Int("workers", config.Workers))
	return eb
}

// RegisterConsumer adds a consumer. Names must be unique.
func (eb *EventBus) RegisterConsumer(consumer Consumer) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, existing := range eb.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}
	eb.consumers = append(eb.consumers, consumer)
	getLogger().Info("registered event consumer", logger.String("consumer", consumer.Name()))

	if len(eb.consumers) == 1 && eb.ctx.Err() == nil {
		eb.start()
	}
	return nil
}

// TryPublish queues event without blocking. It returns false when the event
// was dropped because the bus is stopped, has no consumers or is full.
func (eb *EventBus) TryPublish(event Event) bool {
	if eb == nil || !eb.running.Load() {
		return false
	}

	select {
	case eb.eventChan <- event:
		eb.received.Add(1)
		return true
	default:
		eb.dropped.Add(1)
		getLogger().Debug("event dropped due to full buffer",
			logger.String("type", string(event.Type)),
			logger.String("id", event.ID))
		return false
	}
}

func (eb *EventBus) start() {
	if eb.running.Swap(true) {
		return
	}
	for i := range eb.workers {
		eb.wg.Add(1)
		go eb.worker(i)
	}
}

func (eb *EventBus) worker(id int) {
	defer eb.wg.Done()
	log := getLogger().With(logger.Int("worker_id", id))

	for {
		select {
		case <-eb.ctx.Done():
			// deliver what was accepted before shutdown
			for {
				select {
				case event := <-eb.eventChan:
					eb.processEvent(event, log)
				default:
					return
				}
			}
		case event := <-eb.eventChan:
			eb.processEvent(event, log)
		}
	}
}

// processEvent sends the event to all registered consumers
func (eb *EventBus) processEvent(event Event, log logger.Logger) {
	eb.mu.Lock()
	consumers := make([]Consumer, len(eb.consumers))
	copy(consumers, eb.consumers)
	eb.mu.Unlock()

	for _, consumer := range consumers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					eb.errs.Add(1)
					log.Error("consumer panicked",
						logger.String("consumer", consumer.Name()),
						logger.Any("panic", r),
						logger.String("type", string(event.Type)))
				}
			}()

			if err := consumer.Consume(event); err != nil {
				eb.errs.Add(1)
				log.Warn("consumer error",
					logger.String("consumer", consumer.Name()),
					logger.String("type", string(event.Type)),
					logger.Error(err))
				return
			}
			eb.processed.Add(1)
		}()
	}
}

// Shutdown stops accepting events, delivers queued ones and waits for the
// workers up to timeout
func (eb *EventBus) Shutdown(timeout time.Duration) error {
	if eb == nil {
		return nil
	}
	eb.running.Store(false)
	eb.cancel()

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		getLogger().Info("event bus shutdown complete")
		return nil
	case <-time.After(timeout):
		getLogger().Warn("event bus shutdown timeout exceeded", logger.Duration("timeout", timeout))
		return fmt.Errorf("event bus shutdown timeout exceeded")
	}
}

// Stats returns current event bus statistics
func (eb *EventBus) Stats() Stats {
	if eb == nil {
		return Stats{}
	}
	return Stats{
		EventsReceived:  eb.received.Load(),
		EventsProcessed: eb.processed.Load(),
		EventsDropped:   eb.dropped.Load(),
		ConsumerErrors:  eb.errs.Load(),
	}
}
