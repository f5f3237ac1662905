// Package events fans ingestion progress out to subscribers such as SSE
// clients.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Micos01/dir-analysis/internal/entry"
	"github.com/Micos01/dir-analysis/internal/metrics"
)

const (
	EventProgress = "progress"
	EventComplete = "complete"
	EventError    = "error"
)

const subscriberBuffer = 64

// Event is a progress notification. Count is -1 during indexing.
type Event struct {
	Type      string `json:"type"`
	Count     int64  `json:"count"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// FromProgress wraps a pipeline progress value.
func FromProgress(p entry.Progress) Event {
	return Event{Type: EventProgress, Count: p.Count, Status: p.Status}
}

// Broadcaster manages subscribers and publishes events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(n)
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(n)
}

// Publish sends an event to all subscribers. Non-blocking: drops events
// for slow consumers.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Progress publishes a progress event. Its signature matches the pipeline's
// progress callback.
func (b *Broadcaster) Progress(count int64, status string) {
	b.Publish(FromProgress(entry.Progress{Count: count, Status: status}))
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// MarshalEvent serializes an event to JSON.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
