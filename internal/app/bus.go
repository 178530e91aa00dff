package app

import (
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/ransomradar/internal/domain"
)

// EventBus is the event sink shared by the watcher goroutine and the
// monitor loop. It counts every event synchronously and hands it to the
// dispatcher for delivery.
type EventBus struct {
	counters   *domain.DetectionCounters
	dispatcher *Dispatcher
	session    atomic.Pointer[string]
}

// NewEventBus creates a bus. A nil dispatcher only counts and logs.
func NewEventBus(dispatcher *Dispatcher) *EventBus {
	return &EventBus{
		counters:   domain.NewDetectionCounters(),
		dispatcher: dispatcher,
	}
}

func (b *EventBus) Log(channel domain.Channel, message string) {
	b.Emit(domain.NewEvent(channel, message))
}

// Emit stamps the current session, counts, logs and queues the event.
// Events on an unknown channel are treated as behavioral.
func (b *EventBus) Emit(event *domain.Event) {
	if _, err := domain.ParseChannel(event.Channel.String()); err != nil {
		event.Channel = domain.ChannelBehavioral
		event.Level = event.Channel.Level()
	}
	if event.SessionID == "" {
		event.SessionID = b.Session()
	}

	b.counters.Increment(event.Channel)
	logEvent(event)

	if b.dispatcher != nil && !b.dispatcher.Submit(event) {
		log.Debug().Str("id", event.ID).Msg("Event not dispatched")
	}
}

func logEvent(event *domain.Event) {
	var ev *zerolog.Event
	switch event.Level {
	case domain.AlertLevelCritical:
		ev = log.Error()
	case domain.AlertLevelWarning:
		ev = log.Warn()
	default:
		ev = log.Info()
	}
	if event.Path != "" {
		ev = ev.Str("path", event.Path)
	}
	ev.Msg("[" + strings.ToUpper(event.Channel.String()) + "] " + event.Message)
}

// SetSession tags subsequent events with id.
func (b *EventBus) SetSession(id string) {
	b.session.Store(&id)
}

func (b *EventBus) Session() string {
	if id := b.session.Load(); id != nil {
		return *id
	}
	return ""
}

func (b *EventBus) Counters() domain.CountersSnapshot {
	return b.counters.Snapshot()
}

func (b *EventBus) ResetCounters() {
	b.counters.Reset()
}

func (b *EventBus) Dispatcher() *Dispatcher {
	return b.dispatcher
}
