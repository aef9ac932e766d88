// Package notify fans ticket events out to interested audiences: connected
// websocket clients grouped into rooms, and optionally an AMQP exchange for
// other service instances. Delivery is best-effort.
package notify

import (
	"errors"
	"sync"
	"time"
)

// Broadcaster delivers an event to every subscriber of any of the rooms.
// Implementations must be safe for concurrent use and must not block the
// caller on slow consumers.
type Broadcaster interface {
	Broadcast(rooms []string, event string, payload any) error
}

// Envelope is the wire form of a broadcast event.
type Envelope struct {
	Event   string    `json:"event"`
	Rooms   []string  `json:"rooms"`
	Payload any       `json:"payload"`
	SentAt  time.Time `json:"sentAt"`
}

// Multi broadcasts through every member, collecting errors. A failing
// member never prevents the others from receiving the event.
type Multi []Broadcaster

// Broadcast implements Broadcaster.
func (m Multi) Broadcast(rooms []string, event string, payload any) error {
	var errs []error
	for _, b := range m {
		if err := b.Broadcast(rooms, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder is a Broadcaster for tests: it stores every event and can be
// primed to fail.
type Recorder struct {
	mu      sync.Mutex
	events  []RecordedEvent
	failErr error
}

// RecordedEvent is one captured broadcast.
type RecordedEvent struct {
	Rooms   []string
	Event   string
	Payload any
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes every subsequent Broadcast return err (nil restores
// success).
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failErr = err
}

// Broadcast implements Broadcaster.
func (r *Recorder) Broadcast(rooms []string, event string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	r.events = append(r.events, RecordedEvent{Rooms: rooms, Event: event, Payload: payload})
	return nil
}

// Events returns a copy of all captured broadcasts.
func (r *Recorder) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedEvent, len(r.events))
	copy(out, r.events)
	return out
}
