// Package ports defines the primary and secondary port interfaces following
// hexagonal architecture (ports and adapters pattern).
//
// This package contains interfaces that define the contract between the core
// detection engine and external infrastructure (watch service, host metrics,
// outlier model, content scanner, output destinations).
//
// Design Principles:
//   - Interfaces are small and focused (Interface Segregation Principle)
//   - Dependencies flow inward (core domain has no external dependencies)
//   - Implementations provided by adapters in internal/adapters/
package ports

import (
	"context"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

// EventSink receives every detection produced by the core.
//
// Implementations:
//   - app.EventBus: counts, logs and fans out to alerters and subscribers
//
// Thread Safety: Implementations MUST be safe for concurrent calls. The
// watch adapter goroutine and the monitor loop both write to the sink.
type EventSink interface {
	// Log records a detection on a channel. Each call increments the
	// channel's counter exactly once.
	Log(channel domain.Channel, message string)

	// Emit records a pre-built event (for example one carrying a path or
	// metadata). Counting is identical to Log.
	Emit(event *domain.Event)
}

// Alerter defines the interface for dispatching detection events to outputs.
//
// Implementations:
//   - JSONAlerter: Writes events as JSON to file or stdout
//   - MemoryAlerter: In-memory ring buffer for the API and TUI
//   - EventArchive: Persistent bbolt store used by log export
//   - NATSPublisher: Publishes events to a NATS subject
//
// Thread Safety: Implementations MUST be safe for concurrent Send() calls.
type Alerter interface {
	// Send dispatches an event to the output destination.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - event: Immutable event to dispatch
	//
	// Returns:
	//   - nil on success
	//   - Error if dispatch fails (caller logs and continues)
	Send(ctx context.Context, event *domain.Event) error

	// Flush forces pending events to be written to destination.
	// Called during graceful shutdown to ensure delivery.
	Flush() error

	// Close releases resources and ensures all events are flushed.
	// Must be called during application shutdown.
	Close() error
}

// EventSubscriber defines the callback interface for event notification.
// Used by the dispatcher to notify interested components (TUI, metrics, bell).
type EventSubscriber interface {
	// OnEvent is called from the dispatcher goroutine for each event.
	//
	// Performance: Implementation should return quickly to avoid blocking
	// delivery to other subscribers. Use buffering for expensive operations.
	OnEvent(event *domain.Event)
}

// SampleObserver is notified of every resource sample taken by the loop.
// Implemented by the Prometheus adapter (gauges) and the TUI (CPU trace).
type SampleObserver interface {
	ObserveSample(snapshot domain.SampleSnapshot)
}
