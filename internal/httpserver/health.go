package httpserver

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/strainbot/internal/logger"
)

// Health states
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDisabled  = "disabled"
)

// ServiceHealth is the result of one dependency probe
type ServiceHealth struct {
	Status    string         `json:"status"`
	LatencyMS float64        `json:"latency_ms"`
	Error     string         `json:"error,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HealthResponse is the /health payload
type HealthResponse struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services"`
}

// healthCheck probes every dependency concurrently and answers 503 when a
// required one is down
func (s *Server) healthCheck(c echo.Context) error {
	resp := s.CheckHealth(c.Request().Context())
	code := http.StatusOK
	if resp.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

// CheckHealth runs all probes within the configured timeout
func (s *Server) CheckHealth(ctx context.Context) HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, s.config.CheckTimeout)
	defer cancel()

	var mu sync.Mutex
	services := make(map[string]ServiceHealth, 3)
	set := func(name string, h ServiceHealth) {
		mu.Lock()
		services[name] = h
		mu.Unlock()
		if s.metrics != nil && h.Status != StatusDisabled {
			s.metrics.HTTP.RecordHealthCheck(name, h.Status == StatusHealthy)
		}
	}

	// probes report failures in their result, never through the group
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		set("store", s.checkStore(gctx))
		return nil
	})
	g.Go(func() error {
		set("presence", s.checkPresence())
		return nil
	})
	g.Go(func() error {
		set("process", s.checkProcess(gctx))
		return nil
	})
	_ = g.Wait()

	overall := StatusHealthy
	for name, h := range services {
		if h.Status == StatusUnhealthy && name != "process" {
			overall = StatusUnhealthy
		}
	}
	if overall != StatusHealthy {
		s.log.Warn("health check failed", logger.Any("services", services))
	}

	return HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	}
}

func (s *Server) checkStore(ctx context.Context) ServiceHealth {
	if s.store == nil {
		return ServiceHealth{Status: StatusDisabled}
	}
	start := time.Now()
	err := s.store.Ping(ctx)
	h := ServiceHealth{Status: StatusHealthy, LatencyMS: msSince(start)}
	if err != nil {
		h.Status = StatusUnhealthy
		h.Error = err.Error()
	}
	if q, ok := s.store.(queueStats); ok {
		h.Details = map[string]any{
			"queue_depth":     q.QueueDepth(),
			"quota_remaining": q.QuotaRemaining(),
		}
	}
	return h
}

// queueStats is implemented by stores with a job queue and call quota
type queueStats interface {
	QueueDepth() int
	QuotaRemaining() int
}

func (s *Server) checkPresence() ServiceHealth {
	if s.presence == nil {
		return ServiceHealth{Status: StatusDisabled}
	}
	connected := s.presence.IsConnected()
	h := ServiceHealth{Status: StatusHealthy, Details: map[string]any{"connected": connected}}
	if !connected {
		h.Status = StatusUnhealthy
		h.Error = "not connected"
	}
	return h
}

// checkProcess reports resource usage of this process. It only fails when
// the process cannot be inspected, which does not make the service unhealthy.
func (s *Server) checkProcess(ctx context.Context) ServiceHealth {
	start := time.Now()
	uptime := time.Since(s.startTime)
	details := map[string]any{
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": uptime.Seconds(),
		"pid":            os.Getpid(),
	}

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return ServiceHealth{Status: StatusUnhealthy, Error: err.Error(), Details: details}
	}
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil {
		details["rss_mb"] = float64(mem.RSS) / 1024 / 1024
	}
	if cpu, err := proc.CPUPercentWithContext(ctx); err == nil {
		details["cpu_percent"] = cpu
	}
	if n, err := proc.NumThreadsWithContext(ctx); err == nil {
		details["threads"] = n
	}
	return ServiceHealth{Status: StatusHealthy, LatencyMS: msSince(start), Details: details}
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
