// Package eventbus fans store change events out to asynchronous listeners.
package eventbus

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	EventLoaded     EventType = "loaded"
	EventLoadFailed EventType = "load_failed"
	EventReset      EventType = "reset"
	EventCreated    EventType = "task_created"
	EventUpdated    EventType = "task_updated"
	EventDeleted    EventType = "task_deleted"
)

type Event struct {
	ID        string
	Type      EventType
	TaskID    string // empty for collection-wide events
	Version   uint64
	CreatedAt time.Time
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan Event),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan Event) {
	id := ulid.Make().String()
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Publish never blocks; a subscriber whose buffer is full misses the event.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *Bus) PublishNew(eventType EventType, taskID string, version uint64) {
	b.Publish(Event{
		ID:        ulid.Make().String(),
		Type:      eventType,
		TaskID:    taskID,
		Version:   version,
		CreatedAt: time.Now(),
	})
}
