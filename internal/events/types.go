// Package events carries activity events from the moderation workflow to
// asynchronous consumers such as the MQTT feed, without blocking commands.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type names an activity event
type Type string

const (
	TypeSubmitted       Type = "submitted"
	TypeApproved        Type = "approved"
	TypeRated           Type = "rated"
	TypeRenamed         Type = "renamed"
	TypeProducerAdded   Type = "producer_added"
	TypeProducerRemoved Type = "producer_removed"
	TypeAlert           Type = "alert"
	TypeAlertRetracted  Type = "alert_retracted"
)

// Event is one activity record. Fields not relevant to Type are left empty.
type Event struct {
	ID       string    `json:"id"`
	Type     Type      `json:"type"`
	Time     time.Time `json:"time"`
	TraceID  string    `json:"trace_id,omitempty"`
	ItemID   string    `json:"item_id,omitempty"`
	Name     string    `json:"name,omitempty"`
	Category string    `json:"category,omitempty"`
	Producer string    `json:"producer,omitempty"`
	UserID   int64     `json:"user_id,omitempty"`
	Username string    `json:"username,omitempty"`
	Value    int       `json:"value,omitempty"`
	Average  float64   `json:"average,omitempty"`
	Total    int       `json:"total,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// New returns an event of type t with a fresh id and timestamp
func New(t Type) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: t,
		Time: time.Now().UTC(),
	}
}

// Consumer processes events taken off the bus
type Consumer interface {
	// Name identifies the consumer in logs and stats
	Name() string

	// Consume handles a single event
	Consume(event Event) error
}

// Stats contains runtime statistics for monitoring
type Stats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}
