package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/ransomradar/internal/adapters/output"
	"github.com/xoelrdgz/ransomradar/internal/app"
	"github.com/xoelrdgz/ransomradar/internal/domain"
)

type fakeMonitor struct {
	mu       sync.Mutex
	running  bool
	cleared  int
	counters domain.CountersSnapshot
	startCtx context.Context
}

func (f *fakeMonitor) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	f.startCtx = ctx
	return nil
}

func (f *fakeMonitor) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	return nil
}

func (f *fakeMonitor) ClearLogs() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	f.counters = domain.CountersSnapshot{}
}

func (f *fakeMonitor) Status() app.MonitorStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := app.MonitorStatus{State: app.StateIdle, Dirs: []string{"/data"}, Counters: f.counters}
	if f.running {
		st.State = app.StateRunning
	}
	return st
}

type fakeArchive struct {
	events []*domain.Event
	query  output.ArchiveQuery
	err    error
}

func (f *fakeArchive) List(q output.ArchiveQuery) ([]*domain.Event, error) {
	f.query = q
	return f.events, f.err
}

func newTestServer(mon *fakeMonitor, mem *output.MemoryAlerter, archive EventStore) *Server {
	return NewServer(Config{Monitor: mon, Events: mem, Archive: archive})
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestServer_StartStopToggleState(t *testing.T) {
	mon := &fakeMonitor{}
	s := newTestServer(mon, output.NewMemoryAlerter(10), nil)

	rec := do(t, s, http.MethodPost, "/api/v1/monitor/start")
	require.Equal(t, http.StatusOK, rec.Code)
	var st app.MonitorStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, app.StateRunning, st.State)
	assert.NotNil(t, mon.startCtx)

	rec = do(t, s, http.MethodGet, "/api/v1/status")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, app.StateRunning, st.State)

	rec = do(t, s, http.MethodPost, "/api/v1/monitor/stop")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, app.StateIdle, st.State)
}

func TestServer_CountersAndClear(t *testing.T) {
	mon := &fakeMonitor{counters: domain.CountersSnapshot{Behavioral: 4, Anomaly: 1, Signature: 2}}
	s := newTestServer(mon, output.NewMemoryAlerter(10), nil)

	rec := do(t, s, http.MethodGet, "/api/v1/counters")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]int64{"behavioral": 4, "anomaly": 1, "signature": 2, "total": 7}, body)

	rec = do(t, s, http.MethodDelete, "/api/v1/logs")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, mon.cleared)
}

func TestServer_Events(t *testing.T) {
	mem := output.NewMemoryAlerter(10)
	mem.OnEvent(domain.NewEvent(domain.ChannelBehavioral, "b1"))
	mem.OnEvent(domain.NewEvent(domain.ChannelSignature, "s1"))
	mem.OnEvent(domain.NewEvent(domain.ChannelBehavioral, "b2"))
	s := newTestServer(&fakeMonitor{}, mem, nil)

	tests := []struct {
		target string
		code   int
		want   []string
	}{
		{"/api/v1/events", http.StatusOK, []string{"b1", "s1", "b2"}},
		{"/api/v1/events?limit=1", http.StatusOK, []string{"b2"}},
		{"/api/v1/events?channel=BEHAVIORAL", http.StatusOK, []string{"b1", "b2"}},
		{"/api/v1/events?channel=anomaly", http.StatusOK, []string{}},
		{"/api/v1/events?channel=bogus", http.StatusBadRequest, nil},
		{"/api/v1/events?limit=-3", http.StatusBadRequest, nil},
	}
	for _, tc := range tests {
		t.Run(tc.target, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, tc.target)
			require.Equal(t, tc.code, rec.Code)
			if tc.want == nil {
				return
			}
			var events []domain.Event
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
			got := make([]string, len(events))
			for i, ev := range events {
				got[i] = ev.Message
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestServer_ExportFromArchive(t *testing.T) {
	ev := domain.NewEvent(domain.ChannelSignature, "RANSOMWARE DETECTED in /data/note.txt")
	archive := &fakeArchive{events: []*domain.Event{ev}}
	s := newTestServer(&fakeMonitor{}, output.NewMemoryAlerter(10), archive)

	rec := do(t, s, http.MethodGet, "/api/v1/logs/export?session=abc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", archive.query.SessionID)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "ransomware_logs_")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "=== Behavioral Logs ===\n"))
	assert.Contains(t, rec.Body.String(), "=== Signature Logs ===\n"+ev.LogLine()+"\n")
}

func TestServer_ExportArchiveError(t *testing.T) {
	s := newTestServer(&fakeMonitor{}, output.NewMemoryAlerter(10), &fakeArchive{err: errors.New("db closed")})

	rec := do(t, s, http.MethodGet, "/api/v1/logs/export")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_ExportFromMemory(t *testing.T) {
	mem := output.NewMemoryAlerter(10)
	ev := domain.NewEvent(domain.ChannelAnomaly, "ANOMALY DETECTED! Files: 50, CPU: 80.0%, Score: -0.12")
	mem.OnEvent(ev)
	s := newTestServer(&fakeMonitor{}, mem, nil)

	rec := do(t, s, http.MethodGet, "/api/v1/logs/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "=== Anomaly Logs ===\n"+ev.LogLine()+"\n")
}

func TestServer_HealthAndMetricsMounted(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("metrics")) })
	s := NewServer(Config{Monitor: &fakeMonitor{}, Events: output.NewMemoryAlerter(1), Metrics: metrics})

	rec := do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, "metrics", rec.Body.String())
}
