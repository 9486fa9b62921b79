// Package pubsub fans per-job progress events out to interested listeners.
package pubsub

import (
	"sync"
	"time"

	"github.com/thuongerikdev/FilmZone-sub003/internal/model"
)

// Event is one progress or terminal notification for a job.
type Event struct {
	JobID          string          `json:"jobId"`
	Status         model.JobStatus `json:"status"`
	Progress       int             `json:"progress"`
	VendorVideoURI string          `json:"vendorVideoUri,omitempty"`
	Error          string          `json:"error,omitempty"`
	At             time.Time       `json:"at"`
}

// Terminal reports whether the event closes the job's lifecycle.
func (e Event) Terminal() bool {
	return e.Status.Terminal()
}

// Publisher is the narrow contract the coordinator publishes through.
type Publisher interface {
	Publish(jobID string, event Event)
}

// Multi forwards every event to each wrapped publisher.
type Multi []Publisher

func (m Multi) Publish(jobID string, event Event) {
	for _, p := range m {
		p.Publish(jobID, event)
	}
}

const subscriberBuffer = 16

// Bus is the in-process publisher: subscribers register per job id and
// receive events published for that job. There is no replay; a subscriber
// that joins after an event was published must poll the job record instead.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
	closed      bool
}

// NewBus builds an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]chan Event)}
}

// Subscribe registers a listener for one job's events. The returned channel
// is buffered; events are dropped for listeners that fall behind.
func (b *Bus) Subscribe(jobID string) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[jobID] = append(b.subscribers[jobID], ch)
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (b *Bus) Unsubscribe(jobID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[jobID]
	for i, sub := range subs {
		if sub == ch {
			b.subscribers[jobID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(b.subscribers[jobID]) == 0 {
		delete(b.subscribers, jobID)
	}
}

// Publish delivers the event to all current subscribers of the job's group.
func (b *Bus) Publish(jobID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[jobID] {
		select {
		case ch <- event:
		default:
			// Slow subscriber, drop rather than block the coordinator.
		}
	}
}

// Close shuts down every subscriber channel. Further subscriptions get an
// already-closed channel and further publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, id)
	}
}
