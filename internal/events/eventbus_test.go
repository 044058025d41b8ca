package events

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockConsumer implements Consumer for testing
type mockConsumer struct {
	name           string
	processedCount atomic.Int32
	errorOnProcess bool
	panicOnProcess bool
	processDelay   time.Duration
	mu             sync.Mutex
	events         []Event
}

func (m *mockConsumer) Name() string { return m.name }

func (m *mockConsumer) Consume(event Event) error {
	if m.processDelay > 0 {
		time.Sleep(m.processDelay)
	}
	if m.panicOnProcess {
		panic("consumer exploded")
	}

	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	m.processedCount.Add(1)

	if m.errorOnProcess {
		return fmt.Errorf("mock error")
	}
	return nil
}

func (m *mockConsumer) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

func TestEventBusDeliversInOrder(t *testing.T) {
	eb := NewEventBus(DefaultConfig())
	consumer := &mockConsumer{name: "test"}
	require.NoError(t, eb.RegisterConsumer(consumer))

	types := []Type{TypeSubmitted, TypeApproved, TypeRated, TypeRenamed}
	for _, typ := range types {
		assert.True(t, eb.TryPublish(New(typ)))
	}

	require.NoError(t, eb.Shutdown(time.Second))

	got := consumer.Events()
	require.Len(t, got, len(types))
	for i, typ := range types {
		assert.Equal(t, typ, got[i].Type)
		assert.NotEmpty(t, got[i].ID)
	}

	stats := eb.Stats()
	assert.Equal(t, uint64(4), stats.EventsReceived)
	assert.Equal(t, uint64(4), stats.EventsProcessed)
	assert.Zero(t, stats.EventsDropped)
}

func TestEventBusWithoutConsumersDrops(t *testing.T) {
	eb := NewEventBus(DefaultConfig())
	assert.False(t, eb.TryPublish(New(TypeRated)))
	require.NoError(t, eb.Shutdown(time.Second))
}

func TestEventBusDuplicateConsumer(t *testing.T) {
	eb := NewEventBus(DefaultConfig())
	defer func() { _ = eb.Shutdown(time.Second) }()

	require.NoError(t, eb.RegisterConsumer(&mockConsumer{name: "dup"}))
	err := eb.RegisterConsumer(&mockConsumer{name: "dup"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestEventBusFullBufferDrops(t *testing.T) {
	eb := NewEventBus(Config{BufferSize: 1, Workers: 1})
	slow := &mockConsumer{name: "slow", processDelay: 50 * time.Millisecond}
	require.NoError(t, eb.RegisterConsumer(slow))

	accepted := 0
	for range 10 {
		if eb.TryPublish(New(TypeRated)) {
			accepted++
		}
	}
	require.NoError(t, eb.Shutdown(5*time.Second))

	stats := eb.Stats()
	assert.Less(t, accepted, 10)
	assert.Equal(t, uint64(10-accepted), stats.EventsDropped)
	assert.Equal(t, int32(accepted), slow.processedCount.Load())
}

func TestEventBusConsumerFailuresAreIsolated(t *testing.T) {
	eb := NewEventBus(DefaultConfig())
	failing := &mockConsumer{name: "failing", errorOnProcess: true}
	panicking := &mockConsumer{name: "panicking", panicOnProcess: true}
	healthy := &mockConsumer{name: "healthy"}
	for _, c := range []*mockConsumer{failing, panicking, healthy} {
		require.NoError(t, eb.RegisterConsumer(c))
	}

	assert.True(t, eb.TryPublish(New(TypeApproved)))
	require.NoError(t, eb.Shutdown(time.Second))

	assert.Equal(t, int32(1), healthy.processedCount.Load())
	assert.Equal(t, uint64(2), eb.Stats().ConsumerErrors)
	assert.Equal(t, uint64(1), eb.Stats().EventsProcessed)
}

func TestEventBusPublishAfterShutdown(t *testing.T) {
	eb := NewEventBus(DefaultConfig())
	require.NoError(t, eb.RegisterConsumer(&mockConsumer{name: "c"}))
	require.NoError(t, eb.Shutdown(time.Second))
	assert.False(t, eb.TryPublish(New(TypeRated)))

	var nilBus *EventBus
	assert.False(t, nilBus.TryPublish(New(TypeRated)))
	assert.NoError(t, nilBus.Shutdown(time.Second))
}
