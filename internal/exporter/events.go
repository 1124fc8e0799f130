package exporter

// EventKind names a note outcome published to subscribers.
type EventKind string

const (
	EventExported EventKind = "note.exported"
	EventSkipped  EventKind = "note.skipped"
	EventFailed   EventKind = "note.failed"
	EventRemoved  EventKind = "note.removed"
)

// Event describes what happened to one source note.
type Event struct {
	Kind        EventKind `json:"-"`
	Source      string    `json:"source"`
	Destination string    `json:"destination,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Notifier receives export events. It is called from worker goroutines and
// must not block.
type Notifier func(Event)
