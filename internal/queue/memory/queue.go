// Package memory provides queue implementations for local development.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
)

// ErrClosed is returned by Dequeue after Close has drained the queue.
var ErrClosed = errors.New("queue closed")

// Queue is a bounded in-memory enrichment queue with context-aware operations.
type Queue struct {
	ch      chan discovery.EnrichTask
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan discovery.EnrichTask, capacity),
	}
}

// Enqueue pushes a task into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, task discovery.EnrichTask) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (discovery.EnrichTask, error) {
	select {
	case <-ctx.Done():
		return discovery.EnrichTask{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return discovery.EnrichTask{}, ErrClosed
		}
		return task, nil
	}
}

// Close closes the underlying channel for shutdown. Buffered tasks remain
// dequeueable until drained.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
