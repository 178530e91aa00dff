package domain

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "INFO"
	AlertLevelWarning  AlertLevel = "WARNING"
	AlertLevelCritical AlertLevel = "CRITICAL"
)

// Event is a single detection forwarded through the event sink.
type Event struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Channel   Channel           `json:"channel"`
	Level     AlertLevel        `json:"level"`
	Message   string            `json:"message"`
	Path      string            `json:"path,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func NewEvent(channel Channel, message string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Channel:   channel,
		Level:     channel.Level(),
		Message:   message,
	}
}

// WithPath records the file the event refers to.
func (e *Event) WithPath(path string) *Event {
	e.Path = path
	return e
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func (e *Event) ToJSONPretty() ([]byte, error) {
	return json.MarshalIndent(e, "", "  ")
}

func (e *Event) AddMetadata(key, value string) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
}

// LogLine renders the event the way the channel panes and log exports show
// it: local ctime followed by the message.
func (e *Event) LogLine() string {
	return e.Timestamp.Local().Format(time.ANSIC) + ": " + e.Message
}

func (e *Event) LevelColor() string {
	switch e.Level {
	case AlertLevelCritical:
		return "\033[31m"
	case AlertLevelWarning:
		return "\033[33m"
	case AlertLevelInfo:
		return "\033[36m"
	default:
		return "\033[0m"
	}
}
