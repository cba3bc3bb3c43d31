package events

import (
	"log/slog"
	"sync"

	"stakevault/core/types"
)

// Event represents a structured state change emitted by a ledger.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorder keeps every emitted event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events in emission order.
func (r *Recorder) Events() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType filters the recorded events by type.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, evt := range r.Events() {
		if evt.EventType() == eventType {
			out = append(out, evt)
		}
	}
	return out
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// LogEmitter writes each event as a structured log line.
type LogEmitter struct {
	Logger *slog.Logger
	// Next optionally receives the event after it has been logged.
	Next Emitter
}

// Emit implements the Emitter interface.
func (l LogEmitter) Emit(evt Event) {
	if evt == nil {
		return
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if payload := evt.Event(); payload != nil {
		args := make([]any, 0, 2*len(payload.Attributes)+2)
		args = append(args, slog.String("event", payload.Type))
		for _, key := range payload.Keys() {
			args = append(args, slog.String(key, payload.Attributes[key]))
		}
		logger.Info("ledger event", args...)
	}
	if l.Next != nil {
		l.Next.Emit(evt)
	}
}
