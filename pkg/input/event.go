// Package input turns a game controller into a stream of axis and button
// events.
package input

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Kind says whether an event carries an axis position or a button state.
type Kind int

const (
	KindAxis Kind = iota
	KindButton
)

func (k Kind) String() string {
	switch k {
	case KindAxis:
		return "axis"
	case KindButton:
		return "button"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event is a single axis sample or button transition.
type Event struct {
	Kind  Kind
	Code  uint16
	Value int32 // raw axis position, or 1 = pressed and 0 = released
	Time  time.Time
}

// Axis builds an axis event.
func Axis(code uint16, value int32) Event {
	return Event{Kind: KindAxis, Code: code, Value: value}
}

// Button builds a button event.
func Button(code uint16, pressed bool) Event {
	e := Event{Kind: KindButton, Code: code}
	if pressed {
		e.Value = 1
	}
	return e
}

// Pressed reports whether e is a button press.
func (e Event) Pressed() bool {
	return e.Kind == KindButton && e.Value == 1
}

func (e Event) String() string {
	return fmt.Sprintf("%s %d=%d", e.Kind, e.Code, e.Value)
}

// Source yields input events. ReadEvent blocks until the next event; it
// returns io.EOF once the source is exhausted or closed.
type Source interface {
	ReadEvent() (Event, error)
	Close() error
}

// Replay is a Source that plays back a fixed list of events.
type Replay struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

// NewReplay creates a source that yields events in order.
func NewReplay(events ...Event) *Replay {
	return &Replay{events: events}
}

// ReadEvent returns the next scripted event, or io.EOF.
func (r *Replay) ReadEvent() (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.events) == 0 {
		return Event{}, io.EOF
	}
	e := r.events[0]
	r.events = r.events[1:]
	return e, nil
}

// Close makes every following read return io.EOF.
func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
