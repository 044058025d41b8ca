package moderation

import (
	"maps"
	"sync"
	"time"

	"github.com/tphakala/strainbot/internal/logger"
	"github.com/tphakala/strainbot/internal/observability/metrics"
)

// CommandCount holds the outcome counters of one command
type CommandCount struct {
	Success uint64 `json:"success"`
	Failure uint64 `json:"failure"`
}

// commandStats counts command outcomes in process and mirrors them to
// Prometheus when metrics are configured
type commandStats struct {
	mu      sync.Mutex
	counts  map[string]CommandCount
	metrics *metrics.ModerationMetrics
}

func newCommandStats(m *metrics.ModerationMetrics) *commandStats {
	return &commandStats{counts: make(map[string]CommandCount), metrics: m}
}

// record logs and counts one finished command. err is nil on success.
func (c *commandStats) record(log logger.Logger, command string, actor Actor, start time.Time, err error) {
	elapsed := time.Since(start)

	c.mu.Lock()
	cc := c.counts[command]
	if err == nil {
		cc.Success++
	} else {
		cc.Failure++
	}
	c.counts[command] = cc
	c.mu.Unlock()

	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	if c.metrics != nil {
		c.metrics.RecordCommand(command, status, elapsed)
		if reason := ReasonOf(err); reason != "" {
			c.metrics.RecordRejection(string(reason))
		}
	}

	fields := []logger.Field{
		logger.String("command", command),
		logger.Int64("user_id", actor.UserID),
		logger.Duration("elapsed", elapsed),
	}
	switch reason := ReasonOf(err); {
	case err == nil:
		log.Info("command executed", fields...)
	case reason == ReasonStorage:
		log.Error("command failed", append(fields, logger.String("reason", string(reason)), logger.Error(err))...)
	default:
		// rejections are expected outcomes
		log.Debug("command rejected", append(fields, logger.String("reason", string(reason)))...)
	}
}

func (c *commandStats) snapshot() map[string]CommandCount {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.counts)
}
