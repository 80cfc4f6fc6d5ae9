package service

import (
	"sync"

	"github.com/joeblew999/plat-overlay/internal/mapengine"
	"github.com/joeblew999/plat-overlay/internal/overlay"
)

// Event represents an engine mutation or an overlay lifecycle transition.
type Event struct {
	Resource string // "source", "layer" or "overlay"
	Action   string // e.g. "added", "removed", "mounted"
	ID       string // resource ID
}

// EventBus is a simple fan-out pub/sub for events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers (non-blocking).
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}

// EngineEvents publishes engine mutations on b.
func EngineEvents(b *EventBus) mapengine.ChangeFunc {
	return func(c mapengine.Change) {
		e := Event{ID: c.ID}
		switch c.Kind {
		case mapengine.SourceAdded:
			e.Resource, e.Action = "source", "added"
		case mapengine.SourceUpdated:
			e.Resource, e.Action = "source", "updated"
		case mapengine.SourceRemoved:
			e.Resource, e.Action = "source", "removed"
		case mapengine.LayerAdded:
			e.Resource, e.Action = "layer", "added"
		case mapengine.LayerRemoved:
			e.Resource, e.Action = "layer", "removed"
		default:
			e.Resource, e.Action = "engine", string(c.Kind)
		}
		b.Publish(e)
	}
}

func lifecycleEvents(b *EventBus) overlay.TransitionFunc {
	return func(identity string, _, to overlay.State) {
		b.Publish(Event{Resource: "overlay", Action: to.String(), ID: identity})
	}
}
