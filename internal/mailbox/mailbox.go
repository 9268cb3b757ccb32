// Package mailbox implements the per-actor bounded priority queue
// described in spec §3.3 / §4.5. Messages drain in priority order
// (lower number first) with insertion-order tie-breaks; when full, an
// incoming message only displaces the current lowest-priority occupant
// if it is strictly higher priority than that occupant, otherwise the
// incoming message itself is dropped.
package mailbox

import (
	"sync"

	"github.com/meshfabric/commhub/internal/pqueue"
)

// Envelope is the minimal shape the mailbox needs from a message: a
// priority to order by. The concrete payload is carried by T.
type Envelope[T any] struct {
	Value    T
	Priority int
}

// Mailbox is a bounded, thread-safe priority queue with a blocking
// Dequeue (the actor's internal suspension point, spec §5) and a
// non-blocking Enqueue with an overflow policy.
type Mailbox[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	queue    *pqueue.Queue[T]
	capacity int
	closed   bool
}

// New creates a mailbox with the given capacity. Capacity <= 0 means
// unbounded.
func New[T any](capacity int) *Mailbox[T] {
	m := &Mailbox[T]{
		queue:    pqueue.New[T](),
		capacity: capacity,
	}
	m.notEmpty = sync.NewCond(&m.mu)
	return m
}

// Enqueue is non-suspending (spec §5). It returns true if the message
// was accepted, false if it was dropped by the overflow policy.
func (m *Mailbox[T]) Enqueue(value T, priority int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	if m.capacity <= 0 || m.queue.Len() < m.capacity {
		m.queue.Push(value, priority)
		m.notEmpty.Signal()
		return true
	}

	// Full: only displace the current lowest-priority occupant if the
	// incoming message is strictly higher priority (lower number).
	idx, worstPriority, ok := m.queue.PeekLowestPriority()
	if !ok || priority >= worstPriority {
		return false
	}
	m.queue.RemoveAt(idx)
	m.queue.Push(value, priority)
	m.notEmpty.Signal()
	return true
}

// Dequeue blocks until a message is available or the mailbox is closed.
// ok is false only when the mailbox has been closed and drained.
func (m *Mailbox[T]) Dequeue() (value T, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.queue.Len() == 0 && !m.closed {
		m.notEmpty.Wait()
	}
	if m.queue.Len() == 0 {
		var zero T
		return zero, false
	}
	v, _, _ := m.queue.Pop()
	return v, true
}

// TryDequeue returns immediately with ok=false if nothing is queued.
func (m *Mailbox[T]) TryDequeue() (value T, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queue.Len() == 0 {
		var zero T
		return zero, false
	}
	v, _, _ := m.queue.Pop()
	return v, true
}

// Len returns the number of queued messages.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// Close marks the mailbox closed and wakes any blocked Dequeue so it can
// observe closure once drained. Further Enqueue calls are rejected.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.notEmpty.Broadcast()
}
