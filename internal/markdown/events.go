// Package markdown holds the ordered event stream a note body is reduced to
// before postprocessing, and the goldmark-backed tokenizer that produces it.
package markdown

import "slices"

// Kind identifies the type of an Event.
type Kind int

// Event kinds. Opaque covers every marker postprocessors do not interpret;
// it is carried through untouched.
const (
	Text Kind = iota
	SoftBreak
	HardBreak
	Opaque
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case SoftBreak:
		return "softbreak"
	case HardBreak:
		return "hardbreak"
	default:
		return "opaque"
	}
}

// Event is one element of a note's markdown stream.
type Event struct {
	Kind Kind
	Text string
}

// TextEvent returns a text run.
func TextEvent(s string) Event { return Event{Kind: Text, Text: s} }

// SoftBreakEvent returns a soft line break.
func SoftBreakEvent() Event { return Event{Kind: SoftBreak} }

// HardBreakEvent returns a hard line break.
func HardBreakEvent() Event { return Event{Kind: HardBreak} }

// OpaqueEvent returns a verbatim marker.
func OpaqueEvent(raw string) Event { return Event{Kind: Opaque, Text: raw} }

// Events is the mutable, ordered event stream of one note.
type Events struct {
	items []Event
}

// NewEvents returns a stream holding evs.
func NewEvents(evs ...Event) *Events {
	return &Events{items: slices.Clone(evs)}
}

// Len returns the number of events.
func (e *Events) Len() int { return len(e.items) }

// At returns the i-th event.
func (e *Events) At(i int) Event { return e.items[i] }

// Set replaces the i-th event in place.
func (e *Events) Set(i int, ev Event) { e.items[i] = ev }

// Prepend inserts evs at the front, keeping their order.
func (e *Events) Prepend(evs ...Event) {
	e.items = slices.Insert(e.items, 0, evs...)
}

// Append adds evs at the back.
func (e *Events) Append(evs ...Event) {
	e.items = append(e.items, evs...)
}

// Splice replaces n events starting at i with evs.
func (e *Events) Splice(i, n int, evs ...Event) {
	e.items = slices.Replace(e.items, i, i+n, evs...)
}

// Slice returns a copy of the events.
func (e *Events) Slice() []Event {
	return slices.Clone(e.items)
}

// Count returns how many events have kind k.
func (e *Events) Count(k Kind) int {
	n := 0
	for _, ev := range e.items {
		if ev.Kind == k {
			n++
		}
	}
	return n
}
