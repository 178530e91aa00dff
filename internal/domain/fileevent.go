package domain

import "time"

// FileEventKind classifies a raw file-system notification.
type FileEventKind int

const (
	FileCreated FileEventKind = iota
	FileModified
	FileDeleted
)

func (k FileEventKind) String() string {
	switch k {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileEvent is a behavior observation. It only lives while it travels
// through the dedup filter into the sink.
type FileEvent struct {
	Kind      FileEventKind
	Path      string
	IsDir     bool
	Timestamp time.Time
}

// DedupKey identifies repeated identical observations.
func (e FileEvent) DedupKey() string {
	return e.Kind.String() + ":" + e.Path
}

// Message is the behavioral event text, e.g. "File created: /home/u/a.txt".
func (e FileEvent) Message() string {
	return "File " + e.Kind.String() + ": " + e.Path
}
