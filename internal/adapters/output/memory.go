package output

import (
	"context"
	"sync"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

// DefaultMemoryEvents is the ring size used when none is configured.
const DefaultMemoryEvents = 500

// MemoryAlerter stores events in a fixed-size ring buffer.
//
// Used by the TUI panes and the events API to show recent detections
// while keeping memory bounded.
//
// Thread Safety: Safe for concurrent access via RWMutex.
type MemoryAlerter struct {
	events    []*domain.Event // Ring buffer storage
	head      int             // Next write position
	count     int             // Current event count
	maxEvents int             // Buffer capacity
	mu        sync.RWMutex    // Protects all fields
}

// NewMemoryAlerter creates an in-memory event buffer.
// maxEvents <= 0 selects DefaultMemoryEvents.
func NewMemoryAlerter(maxEvents int) *MemoryAlerter {
	if maxEvents <= 0 {
		maxEvents = DefaultMemoryEvents
	}
	return &MemoryAlerter{
		events:    make([]*domain.Event, maxEvents),
		maxEvents: maxEvents,
	}
}

// Send stores an event, overwriting the oldest one when the buffer is full.
func (a *MemoryAlerter) Send(ctx context.Context, event *domain.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.events[a.head] = event
	a.head = (a.head + 1) % a.maxEvents
	if a.count < a.maxEvents {
		a.count++
	}
	return nil
}

func (a *MemoryAlerter) Flush() error { return nil }
func (a *MemoryAlerter) Close() error { return nil }

// Events returns all stored events, oldest first.
func (a *MemoryAlerter) Events() []*domain.Event {
	return a.Latest(0)
}

// Latest returns the n most recent events, oldest first. n <= 0 returns
// everything stored.
func (a *MemoryAlerter) Latest(n int) []*domain.Event {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if n <= 0 || n > a.count {
		n = a.count
	}
	result := make([]*domain.Event, n)
	for i := 0; i < n; i++ {
		idx := (a.head - n + i + a.maxEvents) % a.maxEvents
		result[i] = a.events[idx]
	}
	return result
}

// ByChannel returns up to n of the most recent events on channel, oldest
// first. n <= 0 returns every stored event on that channel.
func (a *MemoryAlerter) ByChannel(channel domain.Channel, n int) []*domain.Event {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var reversed []*domain.Event
	for i := 0; i < a.count; i++ {
		idx := (a.head - 1 - i + a.maxEvents) % a.maxEvents
		ev := a.events[idx]
		if ev.Channel != channel {
			continue
		}
		reversed = append(reversed, ev)
		if n > 0 && len(reversed) == n {
			break
		}
	}

	result := make([]*domain.Event, len(reversed))
	for i, ev := range reversed {
		result[len(reversed)-1-i] = ev
	}
	return result
}

func (a *MemoryAlerter) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.count
}

// Clear removes all stored events.
func (a *MemoryAlerter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.head = 0
	a.count = 0
	for i := range a.events {
		a.events[i] = nil
	}
}

// OnEvent implements ports.EventSubscriber.
func (a *MemoryAlerter) OnEvent(event *domain.Event) {
	_ = a.Send(context.Background(), event)
}
