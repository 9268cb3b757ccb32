// Package collector implements the CommHub's barrier objects: each one
// awaits exactly N named contributions before releasing callers blocked
// in WaitForAll (spec §3.5/§4.7).
package collector

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTimeout is returned by WaitForAll when the deadline passes before
// expected contributions arrive. Results/errors gathered so far remain
// readable through Results/Errors.
type ErrTimeout struct{ ID string }

func (e *ErrTimeout) Error() string { return "collector timeout: " + e.ID }

// Collector is a barrier awaiting `expected` contributions by name.
type Collector struct {
	ID       string
	expected int

	mu        sync.Mutex
	results   map[string]interface{}
	errs      map[string]error
	completed bool
	destroyed error
	done      chan struct{}
	doneOnce  sync.Once
}

// New creates a collector. expected == 0 resolves immediately with an
// empty map, per the spec's resolution of that open question.
func New(id string, expected int) *Collector {
	c := &Collector{
		ID:       id,
		expected: expected,
		results:  make(map[string]interface{}),
		errs:     make(map[string]error),
		done:     make(chan struct{}),
	}
	if expected == 0 {
		c.completed = true
		close(c.done)
	}
	return c
}

func (c *Collector) checkComplete() {
	if c.completed {
		return
	}
	if len(c.results)+len(c.errs) >= c.expected {
		c.completed = true
		c.doneOnce.Do(func() { close(c.done) })
	}
}

// SubmitResult records a successful contribution from name. Subsequent
// submissions for a name already recorded (as result or error) are
// ignored (K1).
func (c *Collector) SubmitResult(name string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.results[name]; ok {
		return
	}
	if _, ok := c.errs[name]; ok {
		return
	}
	c.results[name] = value
	c.checkComplete()
}

// SubmitError records a failed contribution from name. Same
// at-most-once discipline as SubmitResult.
func (c *Collector) SubmitError(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.results[name]; ok {
		return
	}
	if _, ok := c.errs[name]; ok {
		return
	}
	c.errs[name] = err
	c.checkComplete()
}

// WaitForAll blocks until results.size+errors.size == expected, or
// timeout elapses (0 meaning no timeout). On success it resolves with a
// snapshot of results only (K2); errors are read separately via Errors.
func (c *Collector) WaitForAll(timeout time.Duration) (map[string]interface{}, error) {
	if timeout <= 0 {
		<-c.done
		return c.snapshotResults(), c.destroyErr()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.done:
		return c.snapshotResults(), c.destroyErr()
	case <-timer.C:
		return c.snapshotResults(), &ErrTimeout{ID: c.ID}
	}
}

func (c *Collector) destroyErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

func (c *Collector) snapshotResults() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]interface{}, len(c.results))
	for k, v := range c.results {
		out[k] = v
	}
	return out
}

// Results returns the current partial/complete result snapshot, safe to
// call after a timeout.
func (c *Collector) Results() map[string]interface{} {
	return c.snapshotResults()
}

// Errors returns the current partial/complete error snapshot.
func (c *Collector) Errors() map[string]error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]error, len(c.errs))
	for k, v := range c.errs {
		out[k] = v
	}
	return out
}

// Completed reports whether expected contributions have all arrived.
func (c *Collector) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// Table owns every live collector, keyed by id.
type Table struct {
	mu         sync.Mutex
	collectors map[string]*Collector
}

// NewTable creates an empty collector table.
func NewTable() *Table {
	return &Table{collectors: make(map[string]*Collector)}
}

// Create allocates and registers a new collector.
func (t *Table) Create(expected int) *Collector {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := uuid.New().String()
	c := New(id, expected)
	t.collectors[id] = c
	return c
}

// Dispose removes a collector from the table (explicit or post-resolve
// cleanup per the lifecycle table in spec §3.7).
func (t *Table) Dispose(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.collectors, id)
}

// DestroyAll fails every live collector's pending wait with err by
// forcing completion without satisfying `expected`, then clears the
// table. Waiters currently blocked in WaitForAll see the partial
// snapshot alongside err.
func (t *Table) DestroyAll(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.collectors {
		c.mu.Lock()
		if !c.completed {
			c.completed = true
			c.destroyed = err
			c.doneOnce.Do(func() { close(c.done) })
		}
		c.mu.Unlock()
	}
	t.collectors = make(map[string]*Collector)
}
