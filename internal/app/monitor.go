package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/ransomradar/internal/domain"
	"github.com/xoelrdgz/ransomradar/internal/ports"
)

const DefaultInterval = 300 * time.Millisecond

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Clearable is an output whose buffered events are discarded by ClearLogs.
type Clearable interface {
	Clear()
}

type MonitorConfig struct {
	Dirs     []string
	Interval time.Duration
}

// MonitorStatus is a point-in-time view of the monitor.
type MonitorStatus struct {
	State        State                   `json:"state"`
	SessionID    string                  `json:"session_id,omitempty"`
	Dirs         []string                `json:"dirs"`
	StartedAt    time.Time               `json:"started_at,omitempty"`
	LastTick     time.Time               `json:"last_tick,omitempty"`     // End of the last completed tick
	LastProgress time.Time               `json:"last_progress,omitempty"` // Last tick end or file scanned
	Ticks        int64                   `json:"ticks"`
	LastSnapshot domain.SampleSnapshot   `json:"last_snapshot"`
	LastVerdict  domain.AnomalyVerdict   `json:"last_verdict"`
	Counters     domain.CountersSnapshot `json:"counters"`
	MatchedFiles int                     `json:"matched_files"`
}

// StatusLine is the one-line summary shown by the TUI and headless mode.
func (s MonitorStatus) StatusLine() string {
	if s.State == StateRunning {
		return fmt.Sprintf("Status: Monitoring %d directories", len(s.Dirs))
	}
	return "Status: Idle"
}

// Monitor runs the detection loop: sample, score, scan, sleep. It owns the
// session lifecycle, the watch adapter and the set of matched files.
//
// Thread Safety: Start, Stop, ClearLogs and Status may be called from any
// goroutine. The loop itself runs on a single goroutine.
type Monitor struct {
	config    MonitorConfig
	bus       *EventBus
	sampler   ports.Sampler
	evaluator ports.AnomalyEvaluator
	scanner   ports.SignatureScanner
	watcher   ports.WatchAdapter
	matched   *domain.MatchedFileSet
	clearable []Clearable

	mu        sync.Mutex // Serializes Start, Stop and ClearLogs
	running   bool
	stopping  atomic.Bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
	sessionID string
	startedAt time.Time

	statusMu     sync.RWMutex
	ticks        int64
	lastTick     time.Time
	lastProgress time.Time
	lastSnapshot domain.SampleSnapshot
	lastVerdict  domain.AnomalyVerdict
}

func NewMonitor(
	config MonitorConfig,
	bus *EventBus,
	sampler ports.Sampler,
	evaluator ports.AnomalyEvaluator,
	scanner ports.SignatureScanner,
	watcher ports.WatchAdapter,
	matched *domain.MatchedFileSet,
) *Monitor {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if matched == nil {
		matched = domain.NewMatchedFileSet()
	}
	return &Monitor{
		config:    config,
		bus:       bus,
		sampler:   sampler,
		evaluator: evaluator,
		scanner:   scanner,
		watcher:   watcher,
		matched:   matched,
	}
}

// AddClearable registers an output purged by ClearLogs.
func (m *Monitor) AddClearable(c Clearable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearable = append(m.clearable, c)
}

// Start begins a new session. It is a no-op while running.
//
// A watch adapter that fails to start is logged; the polling loop still
// runs.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	m.sessionID = uuid.NewString()
	m.startedAt = time.Now()
	m.bus.SetSession(m.sessionID)
	m.matched.Clear()
	if m.scanner != nil {
		m.scanner.Reset()
	}

	m.bus.Log(domain.ChannelBehavioral, "Starting monitoring...")

	if m.watcher != nil {
		if err := m.watcher.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start file watcher")
		}
	}

	m.stopping.Store(false)
	m.stopCh = make(chan struct{})
	m.running = true

	m.wg.Add(1)
	go m.loop(ctx, m.stopCh)

	log.Info().
		Str("session", m.sessionID).
		Int("dirs", len(m.config.Dirs)).
		Dur("interval", m.config.Interval).
		Msg("Monitor started")
	return nil
}

func (m *Monitor) loop(ctx context.Context, stop <-chan struct{}) {
	defer m.wg.Done()

	timer := time.NewTimer(m.config.Interval)
	defer timer.Stop()

	for {
		if m.stopping.Load() || ctx.Err() != nil {
			return
		}

		m.tick(ctx)

		timer.Reset(m.config.Interval)
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// tick runs one sample-score-scan pass. It does not observe the stop
// signal, so a stop requested mid-tick waits for it to finish.
func (m *Monitor) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Monitoring loop panic recovered")
			m.bus.Log(domain.ChannelBehavioral, fmt.Sprintf("Monitoring error: %v", r))
		}
	}()

	sample := m.sampler.Sample(ctx)

	var verdict domain.AnomalyVerdict
	if sample.CPUErr == nil && m.evaluator != nil {
		verdict = m.evaluator.Evaluate(sample.Snapshot)
	}

	m.statusMu.Lock()
	m.lastSnapshot = sample.Snapshot
	m.lastVerdict = verdict
	m.lastProgress = time.Now()
	m.statusMu.Unlock()

	if m.scanner != nil {
		m.scanner.Scan(ctx, sample.Files)
	}

	now := time.Now()
	m.statusMu.Lock()
	m.ticks++
	m.lastTick = now
	m.lastProgress = now
	m.statusMu.Unlock()
}

// ObserveScan implements ports.ScanObserver. Each file handed to the
// matcher counts as loop progress, so a long scan pass is not mistaken for
// a stalled loop.
func (m *Monitor) ObserveScan(time.Duration, bool, error) {
	m.statusMu.Lock()
	m.lastProgress = time.Now()
	m.statusMu.Unlock()
}

// Stop ends the session. It is a no-op while idle.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.stopping.Store(true)
	close(m.stopCh)

	var watchErr error
	if m.watcher != nil {
		if watchErr = m.watcher.Stop(); watchErr != nil {
			log.Error().Err(watchErr).Msg("Error stopping file watcher")
		}
	}

	m.wg.Wait()
	m.running = false
	m.matched.Clear()

	m.bus.Log(domain.ChannelBehavioral, "Monitoring stopped.")
	log.Info().Str("session", m.sessionID).Msg("Monitor stopped")
	return watchErr
}

// ClearLogs resets the detection counters, forgets matched files and
// purges buffered outputs.
func (m *Monitor) ClearLogs() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bus.ResetCounters()
	m.matched.Clear()
	for _, c := range m.clearable {
		c.Clear()
	}
	log.Info().Msg("Detection logs cleared")
}

func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) Status() MonitorStatus {
	m.mu.Lock()
	status := MonitorStatus{
		State:        StateIdle,
		Dirs:         append([]string(nil), m.config.Dirs...),
		Counters:     m.bus.Counters(),
		MatchedFiles: m.matched.Len(),
	}
	if m.running {
		status.State = StateRunning
		status.SessionID = m.sessionID
		status.StartedAt = m.startedAt
	}
	m.mu.Unlock()

	m.statusMu.RLock()
	status.Ticks = m.ticks
	status.LastTick = m.lastTick
	status.LastProgress = m.lastProgress
	status.LastSnapshot = m.lastSnapshot
	status.LastVerdict = m.lastVerdict
	m.statusMu.RUnlock()

	return status
}

func (m *Monitor) Matched() *domain.MatchedFileSet {
	return m.matched
}

func (m *Monitor) Bus() *EventBus {
	return m.bus
}

// WaitForSignal blocks until SIGINT or SIGTERM, then stops the monitor.
func (m *Monitor) WaitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	if err := m.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}

func (m *Monitor) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}

	m.WaitForSignal()
	return nil
}
