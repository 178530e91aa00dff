package output

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/ransomradar/internal/app"
)

type fakeStatus struct{ status app.MonitorStatus }

func (f *fakeStatus) Status() app.MonitorStatus { return f.status }

type fakeQueue struct {
	running  bool
	length   int
	capacity int
}

func (f *fakeQueue) IsRunning() bool    { return f.running }
func (f *fakeQueue) QueueLength() int   { return f.length }
func (f *fakeQueue) QueueCapacity() int { return f.capacity }
func (f *fakeQueue) Overflowed() int64  { return 0 }
func (f *fakeQueue) Dropped() int64     { return 0 }

func TestHealthChecker_States(t *testing.T) {
	now := time.Now()
	running := app.MonitorStatus{State: app.StateRunning, StartedAt: now.Add(-time.Minute), LastTick: now}
	stalled := app.MonitorStatus{State: app.StateRunning, StartedAt: now.Add(-time.Hour), LastTick: now.Add(-time.Hour)}
	longScan := app.MonitorStatus{State: app.StateRunning, StartedAt: now.Add(-time.Hour), LastTick: now.Add(-time.Hour), LastProgress: now}

	tests := []struct {
		name    string
		queue   *fakeQueue
		status  app.MonitorStatus
		breaker string
		healthy bool
		want    string
	}{
		{"dispatcher down", &fakeQueue{running: false, capacity: 10}, running, "", false, "OFFLINE"},
		{"saturated", &fakeQueue{running: true, length: 10, capacity: 10}, running, "", false, "SATURATED"},
		{"stalled loop", &fakeQueue{running: true, capacity: 10}, stalled, "", false, "STALLED"},
		{"long scan pass still progressing", &fakeQueue{running: true, capacity: 10}, longScan, "", true, "HEALTHY"},
		{"idle", &fakeQueue{running: true, capacity: 10}, app.MonitorStatus{State: app.StateIdle}, "", true, "IDLE"},
		{"breaker open", &fakeQueue{running: true, capacity: 10}, running, "open", true, "DEGRADED"},
		{"busy queue", &fakeQueue{running: true, length: 85, capacity: 100}, running, "", true, "DEGRADED"},
		{"healthy", &fakeQueue{running: true, capacity: 10}, running, "closed", true, "HEALTHY"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultHealthCheckerConfig()
			breaker := tc.breaker
			cfg.BreakerState = func() string { return breaker }
			h := NewHealthChecker(&fakeStatus{tc.status}, tc.queue, cfg)

			got := h.Check()
			assert.Equal(t, tc.healthy, got.Healthy)
			assert.Equal(t, tc.want, got.Status)
		})
	}
}

func TestHealthChecker_CachesResult(t *testing.T) {
	q := &fakeQueue{running: true, capacity: 10}
	h := NewHealthChecker(&fakeStatus{app.MonitorStatus{State: app.StateIdle}}, q, HealthCheckerConfig{CheckInterval: time.Hour})

	assert.Equal(t, "IDLE", h.Check().Status)
	q.running = false
	assert.Equal(t, "IDLE", h.Check().Status)
}

func TestHealthChecker_ServeHTTP(t *testing.T) {
	h := NewHealthChecker(&fakeStatus{}, &fakeQueue{running: false}, DefaultHealthCheckerConfig())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OFFLINE", body.Status)
	assert.False(t, body.Healthy)
}
