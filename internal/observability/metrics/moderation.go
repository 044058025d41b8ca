package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ModerationMetrics contains Prometheus metrics for bot commands
type ModerationMetrics struct {
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	RejectionsTotal *prometheus.CounterVec
	PendingItems    prometheus.Gauge
	AlertsTotal     *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewModerationMetrics creates and registers moderation metrics
func NewModerationMetrics(registry *prometheus.Registry) (*ModerationMetrics, error) {
	m := &ModerationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register moderation metrics: %w", err)
	}
	return m, nil
}

func (m *ModerationMetrics) initMetrics() {
	m.CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_commands_total",
		Help: "Total number of commands handled by command and status",
	}, []string{"command", "status"})

	m.CommandDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moderation_command_duration_seconds",
		Help:    "Time taken to handle a command",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
	}, []string{"command"})

	m.RejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_rejections_total",
		Help: "Total number of rejected commands by reason",
	}, []string{"reason"})

	m.PendingItems = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "moderation_pending_items",
		Help: "Number of submissions waiting for approval at the last check",
	})

	m.AlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_alerts_total",
		Help: "Total number of moderator alerts by action",
	}, []string{"action"}) // action: posted, retracted, suppressed, failed
}

// RecordCommand records a handled command
func (m *ModerationMetrics) RecordCommand(command, status string, duration time.Duration) {
	m.CommandsTotal.WithLabelValues(command, status).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordRejection counts a rejection reason
func (m *ModerationMetrics) RecordRejection(reason string) {
	m.RejectionsTotal.WithLabelValues(reason).Inc()
}

// SetPending updates the pending items gauge
func (m *ModerationMetrics) SetPending(n int) {
	m.PendingItems.Set(float64(n))
}

// RecordAlert counts a moderator alert action
func (m *ModerationMetrics) RecordAlert(action string) {
	m.AlertsTotal.WithLabelValues(action).Inc()
}

// Describe implements the prometheus.Collector interface
func (m *ModerationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.CommandsTotal.Describe(ch)
	m.CommandDuration.Describe(ch)
	m.RejectionsTotal.Describe(ch)
	ch <- m.PendingItems.Desc()
	m.AlertsTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *ModerationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.CommandsTotal.Collect(ch)
	m.CommandDuration.Collect(ch)
	m.RejectionsTotal.Collect(ch)
	ch <- m.PendingItems
	m.AlertsTotal.Collect(ch)
}
