// Package app wires the detection core together: the event bus and its
// asynchronous dispatcher, the monitor orchestrator, and configuration.
package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/ransomradar/internal/domain"
	"github.com/xoelrdgz/ransomradar/internal/ports"
)

// Dispatcher fans events out to alerters and subscribers on its own
// goroutine so that the watcher callback and the monitor loop never block
// on slow outputs.
//
// Features:
//   - Bounded queue with timeout-based backpressure
//   - Overflow to disk when the queue stays full (optional)
//   - Quarantine for events whose delivery panicked (optional)
//   - Automatic restart of the delivery goroutine on panic
//
// Thread Safety: All public methods are safe for concurrent access.
type Dispatcher struct {
	queue       chan *domain.Event
	alerters    []ports.Alerter
	subscribers []ports.EventSubscriber
	queueSize   int

	submitTimeout time.Duration

	overflow   *OverflowWriter
	quarantine *QuarantineWriter

	delivered  atomic.Int64
	dropped    atomic.Int64
	overflowed atomic.Int64

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
	running  bool
	mu       sync.RWMutex // Protects running state, alerters and subscribers
}

type DispatcherConfig struct {
	QueueSize      int           // Buffered events (default: 1024)
	SubmitTimeout  time.Duration // Backpressure timeout (default: 50ms)
	OverflowPath   string        // JSON-lines file for events that did not fit (empty disables)
	QuarantinePath string        // JSON-lines file for events that panicked (empty disables)
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:     1024,
		SubmitTimeout: 50 * time.Millisecond,
	}
}

func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.QueueSize <= 0 {
		config.QueueSize = 1024
	}
	if config.SubmitTimeout <= 0 {
		config.SubmitTimeout = 50 * time.Millisecond
	}

	d := &Dispatcher{
		queue:         make(chan *domain.Event, config.QueueSize),
		queueSize:     config.QueueSize,
		submitTimeout: config.SubmitTimeout,
		stopChan:      make(chan struct{}),
	}

	if overflow, err := NewOverflowWriter(config.OverflowPath); err != nil {
		log.Error().Err(err).Str("path", config.OverflowPath).Msg("Failed to create overflow writer")
		d.overflow = &OverflowWriter{}
	} else {
		d.overflow = overflow
	}

	if quarantine, err := NewQuarantineWriter(config.QuarantinePath); err != nil {
		log.Error().Err(err).Str("path", config.QuarantinePath).Msg("Failed to create quarantine writer")
		d.quarantine = &QuarantineWriter{}
	} else {
		d.quarantine = quarantine
	}

	return d
}

// Start launches the delivery goroutine. Idempotent.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run(ctx)

	log.Debug().
		Int("queue", d.queueSize).
		Dur("submit_timeout", d.submitTimeout).
		Bool("overflow", d.overflow.Enabled()).
		Msg("Event dispatcher started")
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	var current *domain.Event

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Dispatcher panic recovered")
			if err := d.quarantine.WriteToxicEvent(r, current); err != nil {
				log.Error().Err(err).Msg("Failed to quarantine toxic event")
			}

			d.wg.Add(1)
			go d.run(ctx)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			d.drain(context.WithoutCancel(ctx), &current)
			return
		case <-d.stopChan:
			d.drain(ctx, &current)
			return
		case event := <-d.queue:
			current = event
			d.deliver(ctx, event)
			current = nil
		}
	}
}

// drain delivers whatever is still queued at shutdown.
func (d *Dispatcher) drain(ctx context.Context, current **domain.Event) {
	for {
		select {
		case event := <-d.queue:
			*current = event
			d.deliver(ctx, event)
			*current = nil
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event *domain.Event) {
	d.mu.RLock()
	alerters := d.alerters
	subscribers := d.subscribers
	d.mu.RUnlock()

	for _, alerter := range alerters {
		if err := alerter.Send(ctx, event); err != nil {
			log.Debug().Err(err).Msg("Event send failed")
		}
	}
	for _, sub := range subscribers {
		sub.OnEvent(event)
	}
	d.delivered.Add(1)
}

// Submit queues an event for delivery. When the queue is full it waits up
// to the submit timeout, then spills to the overflow file or drops.
//
// Returns false if the dispatcher is not running or the event was dropped.
func (d *Dispatcher) Submit(event *domain.Event) bool {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()

	if !running {
		return false
	}

	select {
	case d.queue <- event:
		return true
	default:
	}

	timer := time.NewTimer(d.submitTimeout)
	defer timer.Stop()
	select {
	case d.queue <- event:
		return true
	case <-timer.C:
	}

	if d.overflow.Enabled() {
		if err := d.overflow.WriteEvent(event); err != nil {
			log.Error().Err(err).Msg("Failed to write event to overflow")
		} else {
			d.overflowed.Add(1)
			return true
		}
	}

	d.dropped.Add(1)
	log.Warn().Str("channel", event.Channel.String()).Int64("dropped", d.dropped.Load()).Msg("Event queue full, event dropped")
	return false
}

// Stop delivers queued events, flushes alerters and shuts down. Idempotent.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()

		close(d.stopChan)
		d.wg.Wait()

		d.mu.RLock()
		for _, alerter := range d.alerters {
			if err := alerter.Flush(); err != nil {
				log.Error().Err(err).Msg("Failed to flush alerter")
			}
		}
		d.mu.RUnlock()

		if err := d.overflow.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close overflow writer")
		}
		if err := d.quarantine.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close quarantine writer")
		}

		log.Info().
			Int64("delivered", d.delivered.Load()).
			Int64("dropped", d.dropped.Load()).
			Int64("overflowed", d.overflowed.Load()).
			Msg("Event dispatcher stopped")
	})
}

func (d *Dispatcher) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

func (d *Dispatcher) Delivered() int64  { return d.delivered.Load() }
func (d *Dispatcher) Dropped() int64    { return d.dropped.Load() }
func (d *Dispatcher) Overflowed() int64 { return d.overflowed.Load() }
func (d *Dispatcher) QueueLength() int  { return len(d.queue) }
func (d *Dispatcher) QueueCapacity() int {
	return d.queueSize
}

func (d *Dispatcher) AddAlerter(alerter ports.Alerter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerters = append(d.alerters, alerter)
}

func (d *Dispatcher) AddSubscriber(sub ports.EventSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, sub)
}
