// Package queue carries work items from the HTTP handlers to the background
// coordinator over an in-process FIFO channel.
package queue

import (
	"errors"
	"sync"

	"github.com/thuongerikdev/FilmZone-sub003/internal/model"
)

// ErrClosed is returned by Enqueue once the queue has been closed.
var ErrClosed = errors.New("work queue is closed")

// DefaultCapacity is used when the configured capacity is zero or negative.
// Items are lightweight references (no buffered bytes), so a generous buffer
// keeps producers from blocking in practice.
const DefaultCapacity = 256

// Queue is a multi-producer, single-consumer FIFO of upload work items. It is
// created once at process start; HTTP handlers enqueue, the coordinator is
// the sole consumer. Enqueue blocks when the buffer is full (backpressure).
type Queue struct {
	mu     sync.RWMutex
	ch     chan model.WorkItem
	closed bool
}

// New builds a queue with the given buffer capacity. A capacity <= 0 selects
// DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{ch: make(chan model.WorkItem, capacity)}
}

// Enqueue hands one work item to the consumer in FIFO order. It suspends the
// caller while the buffer is full and fails with ErrClosed after Close.
func (q *Queue) Enqueue(item model.WorkItem) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	q.ch <- item
	return nil
}

// Items exposes the receive side. The consumer ranges over it; the channel is
// closed by Close after all buffered items have been handed out, so a range
// loop drains remaining work before exiting.
func (q *Queue) Items() <-chan model.WorkItem {
	return q.ch
}

// Len reports the number of buffered items.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting new items. Safe to call more than once. Items already
// enqueued stay receivable until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
