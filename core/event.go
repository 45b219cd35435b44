package core

type IEvent interface {
	GetId() string // Returns the unique identifier of the event.
}

// EventSink receives events emitted by a session. Implementations must be
// safe for concurrent use; overlapping round trips emit concurrently.
type EventSink interface {
	Emit(event IEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(event IEvent)

func (f EventSinkFunc) Emit(event IEvent) { f(event) }

// NopSink drops every event.
var NopSink EventSink = EventSinkFunc(func(IEvent) {})
