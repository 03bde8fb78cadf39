package events

import "trailchain/core/types"

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
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

// Raw extracts the underlying typed payload when the event carries one.
func Raw(evt Event) *types.Event {
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return nil
	}
	return carrier.Event()
}

// Recorder collects emitted events in order. Intended for tests and for the
// node's in-memory event feed.
type Recorder struct {
	Events []Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	r.Events = append(r.Events, evt)
}
