package output

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/xoelrdgz/ransomradar/internal/app"
)

// StatusSource is satisfied by *app.Monitor.
type StatusSource interface {
	Status() app.MonitorStatus
}

// QueueSource is satisfied by *app.Dispatcher.
type QueueSource interface {
	IsRunning() bool
	QueueLength() int
	QueueCapacity() int
	Overflowed() int64
	Dropped() int64
}

type HealthStatus struct {
	Healthy         bool          `json:"healthy"`
	Status          string        `json:"status"`
	MonitorState    app.State     `json:"monitor_state"`
	QueueLength     int           `json:"queue_length"`
	QueueCapacity   int           `json:"queue_capacity"`
	Utilization     float64       `json:"utilization_percent"`
	OverflowedItems int64         `json:"overflowed_items"`
	DroppedItems    int64         `json:"dropped_items"`
	TickAge         time.Duration `json:"tick_age_ns"`
	Uptime          time.Duration `json:"uptime_ns"`
	Reason          string        `json:"reason,omitempty"`
}

type HealthChecker struct {
	monitor      StatusSource
	dispatcher   QueueSource
	breakerState func() string
	maxTickAge   time.Duration
	startTime    time.Time

	lastCheck     HealthStatus
	lastCheckTime time.Time
	lastCheckMu   sync.RWMutex
	checkInterval time.Duration
}

type HealthCheckerConfig struct {
	MaxTickAge    time.Duration // A running loop with no tick or scan progress for longer is STALLED
	CheckInterval time.Duration // Results are cached this long
	BreakerState  func() string // Optional; "open" degrades health
}

func DefaultHealthCheckerConfig() HealthCheckerConfig {
	return HealthCheckerConfig{
		MaxTickAge:    30 * time.Second,
		CheckInterval: time.Second,
	}
}

func NewHealthChecker(monitor StatusSource, dispatcher QueueSource, config HealthCheckerConfig) *HealthChecker {
	return &HealthChecker{
		monitor:       monitor,
		dispatcher:    dispatcher,
		breakerState:  config.BreakerState,
		maxTickAge:    config.MaxTickAge,
		checkInterval: config.CheckInterval,
		startTime:     time.Now(),
	}
}

// Check returns the cached status when it is younger than the check
// interval.
func (h *HealthChecker) Check() HealthStatus {
	h.lastCheckMu.RLock()
	if !h.lastCheckTime.IsZero() && time.Since(h.lastCheckTime) < h.checkInterval {
		cached := h.lastCheck
		h.lastCheckMu.RUnlock()
		return cached
	}
	h.lastCheckMu.RUnlock()

	status := h.performCheck()

	h.lastCheckMu.Lock()
	h.lastCheck = status
	h.lastCheckTime = time.Now()
	h.lastCheckMu.Unlock()

	return status
}

func (h *HealthChecker) performCheck() HealthStatus {
	status := HealthStatus{
		Uptime: time.Since(h.startTime),
	}
	if h.dispatcher == nil || !h.dispatcher.IsRunning() {
		status.Status = "OFFLINE"
		status.Reason = "event dispatcher not running"
		return status
	}

	status.QueueLength = h.dispatcher.QueueLength()
	status.QueueCapacity = h.dispatcher.QueueCapacity()
	if status.QueueCapacity > 0 {
		status.Utilization = float64(status.QueueLength) / float64(status.QueueCapacity) * 100
	}
	status.OverflowedItems = h.dispatcher.Overflowed()
	status.DroppedItems = h.dispatcher.Dropped()

	if status.Utilization >= 95 {
		status.Status = "SATURATED"
		status.Reason = fmt.Sprintf("queue utilization at %.1f%%", status.Utilization)
		return status
	}

	ms := h.monitor.Status()
	status.MonitorState = ms.State
	if ms.State == app.StateRunning {
		since := ms.StartedAt
		for _, t := range []time.Time{ms.LastTick, ms.LastProgress} {
			if t.After(since) {
				since = t
			}
		}
		status.TickAge = time.Since(since)
		if h.maxTickAge > 0 && status.TickAge > h.maxTickAge {
			status.Status = "STALLED"
			status.Reason = fmt.Sprintf("no monitor progress for %v", status.TickAge.Round(time.Millisecond))
			return status
		}
	}

	status.Healthy = true
	switch {
	case h.breakerState != nil && h.breakerState() == "open":
		status.Status = "DEGRADED"
		status.Reason = "signature scanner circuit open"
	case status.Utilization >= 80:
		status.Status = "DEGRADED"
		status.Reason = fmt.Sprintf("queue utilization elevated at %.1f%%", status.Utilization)
	case ms.State != app.StateRunning:
		status.Status = "IDLE"
	default:
		status.Status = "HEALTHY"
	}
	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check()

	w.Header().Set("Content-Type", "application/json")
	if status.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}
