// Package output provides event output adapters for RansomRadar.
//
// This file implements the JSON lines destination:
//   - JSONAlerter: Buffered JSON output to file or stdout
//
// Features:
//   - Buffered I/O (64KB buffer)
//   - Periodic automatic flushing (1 second)
//   - File sync on flush for durability
//
// Thread Safety: All implementations are safe for concurrent Send() calls.
package output

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

// JSONAlerter writes events as JSON lines to a file or stdout.
type JSONAlerter struct {
	bufWriter *bufio.Writer // Buffered writer (64KB)
	file      *os.File      // File handle (nil for stdout)
	mu        sync.Mutex    // Protects writes
	encoder   *json.Encoder // Reused encoder
	stopFlush chan struct{} // Stop periodic flush
	closeOnce sync.Once
}

// JSONAlerterConfig configures JSON event output.
type JSONAlerterConfig struct {
	FilePath string    // Output file path (empty for discard)
	Stdout   bool      // Write to stdout
	Pretty   bool      // Pretty-print JSON
	Writer   io.Writer // Explicit destination, takes priority over the others
}

// NewJSONAlerter creates a JSON event output.
//
// Output Priority:
//  1. config.Writer when set
//  2. Stdout if config.Stdout is true
//  3. File if config.FilePath is set (parent directories are created)
//  4. io.Discard otherwise
//
// File Permissions: 0600 (owner read/write only)
func NewJSONAlerter(config JSONAlerterConfig) (*JSONAlerter, error) {
	var writer io.Writer
	var file *os.File

	switch {
	case config.Writer != nil:
		writer = config.Writer
	case config.Stdout:
		writer = os.Stdout
	case config.FilePath != "":
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
		var err error
		file, err = os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, err
		}
		writer = file
	default:
		writer = io.Discard
	}

	const bufferSize = 64 * 1024
	bufWriter := bufio.NewWriterSize(writer, bufferSize)

	alerter := &JSONAlerter{
		bufWriter: bufWriter,
		file:      file,
		stopFlush: make(chan struct{}),
	}

	alerter.encoder = json.NewEncoder(bufWriter)
	if config.Pretty {
		alerter.encoder.SetIndent("", "  ")
	}

	go alerter.periodicFlush()

	return alerter, nil
}

func (a *JSONAlerter) periodicFlush() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Flush()
		case <-a.stopFlush:
			return
		}
	}
}

// Send writes an event as one JSON document.
func (a *JSONAlerter) Send(ctx context.Context, event *domain.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.encoder.Encode(event)
}

// Flush forces buffered data to disk.
func (a *JSONAlerter) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.bufWriter.Flush(); err != nil {
		return err
	}
	if a.file != nil {
		return a.file.Sync()
	}
	return nil
}

// Close stops periodic flushing, flushes the remaining buffer and closes
// the file. Safe to call more than once.
func (a *JSONAlerter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.stopFlush)

		a.mu.Lock()
		defer a.mu.Unlock()

		if err = a.bufWriter.Flush(); err != nil {
			return
		}
		if a.file != nil {
			if err = a.file.Sync(); err != nil {
				return
			}
			err = a.file.Close()
		}
	})
	return err
}
