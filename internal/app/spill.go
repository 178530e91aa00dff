package app

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

// OverflowWriter appends events the dispatcher queue could not accept to a
// JSON-lines file. A writer created with an empty path is disabled and
// every call is a no-op.
type OverflowWriter struct {
	file    *os.File
	writer  *bufio.Writer
	mu      sync.Mutex
	count   atomic.Int64
	enabled bool
	path    string
}

type overflowRecord struct {
	SpilledAt time.Time     `json:"spilled_at"`
	Event     *domain.Event `json:"event"`
}

func NewOverflowWriter(path string) (*OverflowWriter, error) {
	if path == "" {
		return &OverflowWriter{}, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open overflow file: %w", err)
	}

	log.Info().Str("path", path).Msg("Overflow writer initialized")

	return &OverflowWriter{
		file:    file,
		writer:  bufio.NewWriterSize(file, 16*1024),
		enabled: true,
		path:    path,
	}, nil
}

func (w *OverflowWriter) WriteEvent(event *domain.Event) error {
	if !w.enabled {
		return nil
	}

	line, err := json.Marshal(overflowRecord{SpilledAt: time.Now(), Event: event})
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.writer.Write(line); err != nil {
		return err
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.writer.Flush(); err != nil {
		return err
	}
	w.count.Add(1)
	return nil
}

func (w *OverflowWriter) Close() error {
	if !w.enabled {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}
	if n := w.count.Load(); n > 0 {
		log.Warn().
			Int64("overflow_count", n).
			Str("path", w.path).
			Msg("Overflow file contains undelivered events")
	}
	return w.file.Close()
}

func (w *OverflowWriter) Count() int64  { return w.count.Load() }
func (w *OverflowWriter) Enabled() bool { return w.enabled }
func (w *OverflowWriter) Path() string  { return w.path }

// QuarantineWriter records events whose delivery panicked, together with
// the panic value, for later analysis.
type QuarantineWriter struct {
	file    *os.File
	mu      sync.Mutex
	count   atomic.Int64
	enabled bool
	path    string
}

type quarantineRecord struct {
	Timestamp  time.Time     `json:"timestamp"`
	PanicError string        `json:"panic_error"`
	Event      *domain.Event `json:"event"`
}

func NewQuarantineWriter(path string) (*QuarantineWriter, error) {
	if path == "" {
		return &QuarantineWriter{}, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open quarantine file: %w", err)
	}

	log.Info().Str("path", path).Msg("Quarantine writer initialized")

	return &QuarantineWriter{file: file, enabled: true, path: path}, nil
}

func (w *QuarantineWriter) WriteToxicEvent(panicErr interface{}, event *domain.Event) error {
	if !w.enabled {
		return nil
	}

	panicStr := "unknown panic"
	switch v := panicErr.(type) {
	case nil:
	case error:
		panicStr = v.Error()
	case string:
		panicStr = v
	default:
		panicStr = fmt.Sprintf("%v", v)
	}

	line, err := json.Marshal(quarantineRecord{Timestamp: time.Now(), PanicError: panicStr, Event: event})
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Write(append(line, '\n')); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	w.count.Add(1)

	log.Warn().
		Str("panic", panicStr).
		Int64("quarantine_count", w.count.Load()).
		Msg("Toxic event quarantined")
	return nil
}

func (w *QuarantineWriter) Close() error {
	if !w.enabled {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *QuarantineWriter) Count() int64  { return w.count.Load() }
func (w *QuarantineWriter) Enabled() bool { return w.enabled }
