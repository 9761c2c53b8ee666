package events

// Event is a typed state change raised by an engine during a call.
type Event interface {
	EventType() string
}

// Emitter receives events from engines. The host collects them per call and
// publishes them only after the call commits.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards every event.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}
