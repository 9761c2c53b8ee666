package events

import (
	"sync"

	"nftmarket/core/types"
)

// Typed is implemented by events that can render their attribute payload.
type Typed interface {
	Event
	Event() *types.Event
}

// Buffer is an Emitter that records events in emission order. The host uses
// one buffer per call and only forwards its contents once the call commits.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer { return &Buffer{} }

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
}

// Events returns the recorded events.
func (b *Buffer) Events() []Event {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Payloads renders every recorded event that exposes an attribute payload.
func (b *Buffer) Payloads() []*types.Event {
	recorded := b.Events()
	out := make([]*types.Event, 0, len(recorded))
	for _, evt := range recorded {
		if typed, ok := evt.(Typed); ok {
			if payload := typed.Event(); payload != nil {
				out = append(out, payload)
			}
		}
	}
	return out
}

// Reset discards recorded events.
func (b *Buffer) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}
