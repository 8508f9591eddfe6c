package testutil

import (
	"sync"

	"github.com/npratt/cellpilot/internal/events"
)

// RecordingEmitter collects emitted events for assertions.
type RecordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

// Emit records ev.
func (r *RecordingEmitter) Emit(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything recorded.
func (r *RecordingEmitter) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events with the given type.
func (r *RecordingEmitter) OfType(t events.EventType) []events.Event {
	var out []events.Event
	for _, ev := range r.Events() {
		if ev.Type() == t {
			out = append(out, ev)
		}
	}
	return out
}
