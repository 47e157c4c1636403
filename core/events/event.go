package events

import (
	"sync"

	"moneymarket/core/types"
)

// Event represents a structured state change emitted by the chain.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(*types.Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(*types.Event) {}

// Buffer keeps every emitted event in order. Tests and the local daemon use it
// to expose recent activity.
type Buffer struct {
	mu     sync.Mutex
	events []*types.Event
}

func (b *Buffer) Emit(ev *types.Event) {
	if b == nil || ev == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

// Events returns a snapshot of the buffered events.
func (b *Buffer) Events() []*types.Event {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Event(nil), b.events...)
}
