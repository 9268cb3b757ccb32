// Package hub implements CommHub (spec §4.1): the centralized,
// in-process message bus with typed envelopes, pub/sub topics,
// request-reply with correlation ids, advisory locks, barrier
// collectors, and a deadlock detector over the lock wait-for graph.
//
// CommHub composes the envelope model with four smaller components —
// subscription registry, lock table, collector table, and the deadlock
// detector — following spec §2's dependency order C1 -> {C2..C6} -> C7
// (the priority mailbox, C3, is used by the mesh rather than the hub).
package hub

import (
	"sync"
	"time"

	"github.com/meshfabric/commhub/envelope"
	"github.com/meshfabric/commhub/internal/collector"
	"github.com/meshfabric/commhub/internal/deadlock"
	"github.com/meshfabric/commhub/internal/locktable"
	"github.com/meshfabric/commhub/internal/subscription"
	"github.com/meshfabric/commhub/logging"
)

// DefaultHistorySize bounds the envelope ring-buffer (spec I4). The
// teacher's broker caps per-topic history at 100; CommHub keeps one
// global ring since envelopes already self-describe their (to, topic).
const DefaultHistorySize = 1000

// Config tunes a Hub instance. Zero values fall back to the defaults
// below.
type Config struct {
	HistorySize int
	Debug       bool
}

type pendingRequest struct {
	replyCh chan *envelope.Envelope
	timer   *time.Timer
}

// Hub is CommHub. A consumer constructs one explicitly — no package
// global, no singleton (spec §9 "global mutable singletons").
type Hub struct {
	cfg Config

	subs *subscription.Registry
	locks *locktable.Table
	collectors *collector.Table
	observers *observerSet
	log *logging.Logger

	histMu  sync.Mutex
	history []*envelope.Envelope
	histPos int
	histLen int

	reqMu    sync.Mutex
	requests map[string]*pendingRequest

	destroyed   bool
	destroyOnce sync.Once
	destroyMu   sync.RWMutex
}

// New constructs a Hub ready for use.
func New(cfg Config) *Hub {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	return &Hub{
		cfg:        cfg,
		subs:       subscription.New(),
		locks:      locktable.New(),
		collectors: collector.NewTable(),
		observers:  newObserverSet(),
		log:        logging.New("hub", cfg.Debug),
		history:    make([]*envelope.Envelope, cfg.HistorySize),
		requests:   make(map[string]*pendingRequest),
	}
}

// Subscribe registers an observer for hub events.
func (h *Hub) Subscribe(obs Observer) {
	h.observers.Subscribe(obs)
}

func (h *Hub) isDestroyed() bool {
	h.destroyMu.RLock()
	defer h.destroyMu.RUnlock()
	return h.destroyed
}

// recordHistory appends to the ring buffer, evicting the oldest entry
// once full (I4).
func (h *Hub) recordHistory(e *envelope.Envelope) {
	h.histMu.Lock()
	defer h.histMu.Unlock()
	h.history[h.histPos] = e
	h.histPos = (h.histPos + 1) % len(h.history)
	if h.histLen < len(h.history) {
		h.histLen++
	}
}

// Send pushes envelope into the history ring and dispatches
// synchronously to every matching subscription (spec §4.1). Fails
// silently when nothing matches — the envelope is still recorded.
func (h *Hub) Send(e *envelope.Envelope) {
	if h.isDestroyed() {
		return
	}
	h.recordHistory(e)

	var handlers []subscription.Handler
	if e.To == envelope.Broadcast {
		handlers = h.subs.MatchBroadcast(e.Topic, e.From) // self-exclude on broadcast (spec open question, recommended choice)
	} else {
		handlers = h.subs.MatchConcrete(e.To, e.Topic)
	}

	for _, handler := range handlers {
		handler(e)
	}

	h.observers.Emit(Event{Kind: EventMessageSent, Envelope: e})

	// Correlated reply delivery: wake any pending Request waiting on this id.
	if e.Correlation != "" {
		h.reqMu.Lock()
		pending, ok := h.requests[e.Correlation]
		if ok {
			delete(h.requests, e.Correlation)
		}
		h.reqMu.Unlock()
		if ok {
			pending.timer.Stop()
			pending.replyCh <- e
		}
	}
}

// Broadcast is equivalent to Send with To=Broadcast.
func (h *Hub) Broadcast(from, topic string, payload interface{}, priority envelope.Priority) {
	e := envelope.New(from, envelope.Broadcast, topic, payload, priority)
	h.Send(e)
}

// Request sends an envelope with a fresh correlation id and blocks until
// the first envelope whose Correlation matches arrives, or timeoutMs
// elapses. The pending entry is always cleared before returning so a
// late arrival cannot double-signal (spec's cancellation discipline).
func (h *Hub) Request(to, topic string, payload interface{}, from string, timeoutMs int64) (*envelope.Envelope, error) {
	if h.isDestroyed() {
		return nil, &HubDestroyedError{}
	}

	e := envelope.New(from, to, topic, payload, envelope.Normal)
	replyCh := make(chan *envelope.Envelope, 1)

	timeout := time.Duration(timeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	pending := &pendingRequest{replyCh: replyCh}
	pending.timer = time.AfterFunc(timeout, func() {
		h.reqMu.Lock()
		_, stillPending := h.requests[e.ID]
		if stillPending {
			delete(h.requests, e.ID)
		}
		h.reqMu.Unlock()
		if stillPending {
			replyCh <- nil
		}
	})

	h.reqMu.Lock()
	h.requests[e.ID] = pending
	h.reqMu.Unlock()

	h.Send(e)

	reply := <-replyCh
	if reply == nil {
		if h.isDestroyed() {
			return nil, &HubDestroyedError{}
		}
		return nil, &TimeoutError{CorrelationID: e.ID}
	}
	return reply, nil
}

// Reply constructs and routes a reply envelope carrying Correlation =
// correlationID. If no waiter is registered under that id the reply is
// discarded: it is recorded in history and reported as message:sent, but
// not dispatched to any subscriber.
func (h *Hub) Reply(correlationID, from string, payload interface{}) {
	e := envelope.New(from, "", "", payload, envelope.Normal)
	e.Type = envelope.Reply
	e.Correlation = correlationID

	h.reqMu.Lock()
	_, ok := h.requests[correlationID]
	h.reqMu.Unlock()
	if !ok {
		h.recordHistory(e)
		h.observers.Emit(Event{Kind: EventMessageSent, Envelope: e})
		return
	}
	h.Send(e)
}

// SubscribeTopic registers handler for (address, topic). Returns an
// unsubscribe function; unsubscription is idempotent (spec §3.2).
func (h *Hub) SubscribeTopic(address, topic string, handler func(*envelope.Envelope)) func() {
	_, unsub := h.subs.Subscribe(address, topic, func(msg interface{}) {
		if e, ok := msg.(*envelope.Envelope); ok {
			handler(e)
		}
	})
	return unsub
}

// GetMessages returns the newest-first history for addressOrStar,
// optionally filtered by topic ("" matches any topic).
func (h *Hub) GetMessages(addressOrStar, topic string) []*envelope.Envelope {
	h.histMu.Lock()
	defer h.histMu.Unlock()

	out := make([]*envelope.Envelope, 0, h.histLen)
	for i := 0; i < h.histLen; i++ {
		idx := (h.histPos - 1 - i + len(h.history)) % len(h.history)
		e := h.history[idx]
		if e == nil {
			continue
		}
		if addressOrStar != envelope.Broadcast && e.To != addressOrStar && e.From != addressOrStar {
			continue
		}
		if topic != "" && e.Topic != topic {
			continue
		}
		out = append(out, e)
	}
	return out
}

// AcquireLock blocks until holder owns resource, re-entrantly succeeding
// if holder already does. timeoutMs <= 0 means no timeout.
func (h *Hub) AcquireLock(resource, holder string, timeoutMs int64) error {
	if h.isDestroyed() {
		return &HubDestroyedError{}
	}
	timeout := time.Duration(timeoutMs) * time.Millisecond
	err := h.locks.Acquire(resource, holder, timeout)
	if err != nil {
		if _, isTimeout := err.(*locktable.ErrLockTimeout); isTimeout {
			h.observers.Emit(Event{Kind: EventLockTimeout, Resource: resource, Holder: holder})
			return &LockTimeoutError{Resource: resource, Holder: holder}
		}
		return err
	}
	h.observers.Emit(Event{Kind: EventLockAcquired, Resource: resource, Holder: holder})
	return nil
}

// ReleaseLock releases resource if holder currently owns it, handing it
// to the FIFO head before returning (L3). Returns true on success.
func (h *Hub) ReleaseLock(resource, holder string) bool {
	ok := h.locks.Release(resource, holder)
	if ok {
		h.observers.Emit(Event{Kind: EventLockReleased, Resource: resource, Holder: holder})
	}
	return ok
}

// ForceReleaseLock administratively breaks resource's lock, handing it
// to the FIFO head (or clearing it if empty) and emits
// lock:force-released naming the evicted holder. Every acquisition the
// evicted holder is still queued for on other resources is failed with
// locktable.ErrCanceled.
func (h *Hub) ForceReleaseLock(resource string) {
	evicted := h.locks.ForceRelease(resource)
	if evicted != "" {
		for _, s := range h.locks.Snapshot() {
			for _, w := range s.Waiters {
				if w == evicted {
					h.locks.CancelWaiter(s.Resource, evicted)
					break
				}
			}
		}
	}
	h.log.Info("force-released %s (was held by %s)", resource, evicted)
	h.observers.Emit(Event{Kind: EventLockForceReleased, Resource: resource, Holder: evicted})
}

// DetectDeadlocks runs one DFS pass over the current lock wait-for graph.
func (h *Hub) DetectDeadlocks() []deadlock.Info {
	snapshot := h.locks.Snapshot()
	cycles := deadlock.Detect(snapshot)
	for _, c := range cycles {
		h.log.Info("deadlock detected: cycle=%v resources=%v", c.Cycle, c.Resources)
		h.observers.Emit(Event{Kind: EventDeadlockDetected, Cycle: c.Cycle, Resources: c.Resources})
	}
	return cycles
}

// ResolveDeadlock force-releases the victim resource chosen by strategy
// for each detected cycle, then re-runs detection once; it repeats this
// up to maxIterations times total, stopping early once the graph is
// acyclic (spec §4.2, "MUST re-run once ... repeat, limited to a small
// bounded number of iterations").
func (h *Hub) ResolveDeadlock(strategy deadlock.Strategy, maxIterations int) {
	if maxIterations <= 0 {
		maxIterations = 5
	}
	for i := 0; i < maxIterations; i++ {
		snapshot := h.locks.Snapshot()
		cycles := deadlock.Detect(snapshot)
		if len(cycles) == 0 {
			return
		}
		for _, c := range cycles {
			victim := deadlock.SelectVictim(c, snapshot, strategy)
			if victim == "" {
				continue
			}
			h.ForceReleaseLock(victim)
			h.observers.Emit(Event{Kind: EventDeadlockResolved, Cycle: c.Cycle, Resources: []string{victim}})
		}
	}
}

// CreateCollector allocates a barrier awaiting `expected` named
// contributions.
func (h *Hub) CreateCollector(expected int) *collector.Collector {
	return h.collectors.Create(expected)
}

// WaitForCollector blocks on c.WaitForAll and emits the matching
// completion/timeout event. A timeout is reported as
// CollectorTimeoutError alongside the partial results.
func (h *Hub) WaitForCollector(c *collector.Collector, timeoutMs int64) (map[string]interface{}, error) {
	timeout := time.Duration(timeoutMs) * time.Millisecond
	results, err := c.WaitForAll(timeout)
	if _, isTimeout := err.(*collector.ErrTimeout); isTimeout {
		err = &CollectorTimeoutError{CollectorID: c.ID}
	}
	if err != nil {
		h.observers.Emit(Event{Kind: EventCollectorTimeout, CollectorID: c.ID})
	} else {
		h.observers.Emit(Event{Kind: EventCollectorComplete, CollectorID: c.ID})
	}
	return results, err
}

// DisposeCollector removes a collector from the table.
func (h *Hub) DisposeCollector(id string) {
	h.collectors.Dispose(id)
}

// Destroy clears all subscriptions, drains pending requests/locks/
// collectors, rejecting each with HubDestroyedError, per spec §4.1 and
// the failure-semantics table in §4.8.
func (h *Hub) Destroy() {
	h.destroyOnce.Do(func() {
		h.destroyMu.Lock()
		h.destroyed = true
		h.destroyMu.Unlock()

		h.subs.Clear()

		h.reqMu.Lock()
		pending := h.requests
		h.requests = make(map[string]*pendingRequest)
		h.reqMu.Unlock()
		for _, p := range pending {
			p.timer.Stop()
			p.replyCh <- nil
		}

		h.locks.DestroyAll(&HubDestroyedError{})
		h.collectors.DestroyAll(&HubDestroyedError{})
	})
}
