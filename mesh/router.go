// Package mesh implements the ActorSystem (mesh) side of the
// communication substrate: the Router (C8), the SWIM-inspired Gossip
// protocol (C9), and the Actor/ActorSystem pair (C10/C11) built on top
// of it.
package mesh

import (
	"sync"
	"time"

	"github.com/meshfabric/commhub/envelope"
	"github.com/meshfabric/commhub/internal/mailbox"
	"github.com/meshfabric/commhub/logging"
)

// RouterShutdownError is returned to any caller with pending work when
// the router is destroyed.
type RouterShutdownError struct{}

func (e *RouterShutdownError) Error() string { return "router shutdown" }

// AskTimeoutError is returned by Ask when no reply/error-reply arrives
// before the deadline. It is also returned, without waiting, when the ask
// itself is undeliverable (no route, loop, expired, mailbox full); no
// separate error type carries that reason.
type AskTimeoutError struct{ CorrelationID string }

func (e *AskTimeoutError) Error() string { return "ask timeout: " + e.CorrelationID }

// RouterEventKind names the events the router emits (spec §4.4).
type RouterEventKind string

const (
	EventDelivered     RouterEventKind = "delivered"
	EventUndeliverable RouterEventKind = "undeliverable"
	EventExpired       RouterEventKind = "expired"
)

// RouterEvent is the payload delivered to router observers.
type RouterEvent struct {
	Kind     RouterEventKind
	Envelope *envelope.Envelope
	Reason   string
}

// RouterObserver receives router events synchronously.
type RouterObserver func(RouterEvent)

// deliverable is the minimal shape the router needs in order to enqueue
// into an actor's mailbox: an address and the mailbox itself. Topic
// subscriptions are kept by the router, not by the deliverable.
type deliverable interface {
	Address() string
	Mailbox() *mailbox.Mailbox[*envelope.Envelope]
}

type askWaiter struct {
	replyCh chan *envelope.Envelope
	timer   *time.Timer
}

// Router is the mesh's single entry point for delivery (spec C8): it
// resolves addresses, fans out broadcasts to topic subscribers, enforces
// TTL/loop invariants R1/R2, and runs ask/reply correlation the same way
// hub.Request does for CommHub.
type Router struct {
	mu      sync.RWMutex
	actors  map[string]deliverable
	subs    map[string]map[string]bool // actorId -> topic -> true
	selfID  string

	askMu sync.Mutex
	asks  map[string]*askWaiter

	obsMu     sync.RWMutex
	observers []RouterObserver

	log *logging.Logger

	destroyed bool
}

// NewRouter creates an empty router.
func NewRouter(debug bool) *Router {
	return &Router{
		actors: make(map[string]deliverable),
		subs:   make(map[string]map[string]bool),
		asks:   make(map[string]*askWaiter),
		log:    logging.New("router", debug),
	}
}

// Observe registers obs for every router event.
func (r *Router) Observe(obs RouterObserver) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, obs)
}

func (r *Router) emit(e RouterEvent) {
	r.obsMu.RLock()
	observers := append([]RouterObserver(nil), r.observers...)
	r.obsMu.RUnlock()
	for _, obs := range observers {
		obs(e)
	}
}

// AddActor registers a for delivery under its own address.
func (r *Router) AddActor(a deliverable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actors[a.Address()] = a
}

// RemoveActor unregisters id and clears its topic subscriptions.
func (r *Router) RemoveActor(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actors, id)
	delete(r.subs, id)
}

// Subscribe registers actorId's interest in topic for broadcast delivery.
func (r *Router) Subscribe(actorID, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs[actorID] == nil {
		r.subs[actorID] = make(map[string]bool)
	}
	r.subs[actorID][topic] = true
}

// Unsubscribe removes actorId's interest in topic.
func (r *Router) Unsubscribe(actorID, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs[actorID] != nil {
		delete(r.subs[actorID], topic)
	}
}

func (r *Router) isDestroyed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.destroyed
}

// Route is the router's single entry point (spec §4.4). It enforces
// TTL expiry (R1) and loop detection (R2) before attempting delivery.
func (r *Router) Route(e *envelope.Envelope) {
	if r.isDestroyed() {
		return
	}
	if e.IsExpired() {
		r.emit(RouterEvent{Kind: EventExpired, Envelope: e, Reason: "expired"})
		r.emit(RouterEvent{Kind: EventUndeliverable, Envelope: e, Reason: "expired"})
		r.failAsk(e, "expired")
		return
	}

	nextHop := e.To
	if nextHop != envelope.Broadcast && e.HasHop(nextHop) {
		r.emit(RouterEvent{Kind: EventUndeliverable, Envelope: e, Reason: "loop"})
		r.failAsk(e, "loop")
		return
	}

	if e.To == envelope.Broadcast {
		r.routeBroadcast(e)
		return
	}
	r.routeConcrete(e)
}

func (r *Router) routeConcrete(e *envelope.Envelope) {
	r.mu.RLock()
	target, ok := r.actors[e.To]
	r.mu.RUnlock()

	if !ok {
		// A reply addressed to a non-actor caller of Ask is delivered to
		// that caller's waiter rather than to a mailbox.
		if r.resolveAsk(e) {
			r.emit(RouterEvent{Kind: EventDelivered, Envelope: e})
			return
		}
		r.log.Debug("no route for %s", e.To)
		r.emit(RouterEvent{Kind: EventUndeliverable, Envelope: e, Reason: "no route"})
		r.failAsk(e, "no route")
		return
	}

	e.AddHop(e.To)
	if !target.Mailbox().Enqueue(e, int(e.Priority)) {
		r.emit(RouterEvent{Kind: EventUndeliverable, Envelope: e, Reason: "mailbox full"})
		r.failAsk(e, "mailbox full")
		return
	}
	r.emit(RouterEvent{Kind: EventDelivered, Envelope: e})
	r.resolveAsk(e)
}

func (r *Router) routeBroadcast(e *envelope.Envelope) {
	r.mu.RLock()
	var targets []deliverable
	for id, a := range r.actors {
		if id == e.From {
			continue
		}
		if e.Topic != "" {
			if !r.subs[id][e.Topic] {
				continue
			}
		}
		targets = append(targets, a)
	}
	r.mu.RUnlock()

	delivered := false
	for _, a := range targets {
		clone := e.Clone()
		clone.AddHop(a.Address())
		if a.Mailbox().Enqueue(clone, int(clone.Priority)) {
			delivered = true
			r.emit(RouterEvent{Kind: EventDelivered, Envelope: clone})
		} else {
			r.emit(RouterEvent{Kind: EventUndeliverable, Envelope: clone, Reason: "mailbox full"})
		}
	}
	_ = delivered
}

// resolveAsk wakes a pending Ask whose correlation id matches a reply or
// error-reply envelope being routed, and reports whether one was woken.
func (r *Router) resolveAsk(e *envelope.Envelope) bool {
	if e.Type != envelope.Reply && e.Type != envelope.ErrorReply {
		return false
	}
	r.askMu.Lock()
	w, ok := r.asks[e.Correlation]
	if ok {
		delete(r.asks, e.Correlation)
	}
	r.askMu.Unlock()
	if ok {
		w.timer.Stop()
		w.replyCh <- e
	}
	return ok
}

func (r *Router) failAsk(e *envelope.Envelope, reason string) {
	if e.Type != envelope.Ask {
		return
	}
	r.askMu.Lock()
	w, ok := r.asks[e.ID]
	if ok {
		delete(r.asks, e.ID)
	}
	r.askMu.Unlock()
	if ok {
		w.timer.Stop()
		w.replyCh <- nil
	}
}

// Ask mints a fresh ask envelope, routes it, and blocks until a matching
// reply/error-reply arrives, timeoutMs elapses, or the ask is found
// undeliverable while routing (spec §4.4). Mirrors
// the teacher's request/reply correlation pattern used throughout
// internal/client/broker.go's call().
func (r *Router) Ask(from, to string, payload interface{}, priority envelope.Priority, timeoutMs int64) (*envelope.Envelope, error) {
	if r.isDestroyed() {
		return nil, &RouterShutdownError{}
	}

	e := envelope.NewAsk(from, to, payload, priority)
	replyCh := make(chan *envelope.Envelope, 1)

	timeout := time.Duration(timeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	w := &askWaiter{replyCh: replyCh}
	w.timer = time.AfterFunc(timeout, func() {
		r.askMu.Lock()
		_, stillPending := r.asks[e.ID]
		if stillPending {
			delete(r.asks, e.ID)
		}
		r.askMu.Unlock()
		if stillPending {
			replyCh <- nil
		}
	})

	r.askMu.Lock()
	r.asks[e.ID] = w
	r.askMu.Unlock()

	r.Route(e)

	reply := <-replyCh
	if reply == nil {
		if r.isDestroyed() {
			return nil, &RouterShutdownError{}
		}
		return nil, &AskTimeoutError{CorrelationID: e.ID}
	}
	if reply.Type == envelope.ErrorReply {
		if msg, ok := reply.Payload.(string); ok {
			return reply, &ProtocolErrorReply{Message: msg}
		}
		return reply, &ProtocolErrorReply{Message: "error-reply"}
	}
	return reply, nil
}

// ProtocolErrorReply wraps an error-reply envelope's payload as a Go error.
type ProtocolErrorReply struct{ Message string }

func (e *ProtocolErrorReply) Error() string { return e.Message }

// Destroy clears all routing/subscription/ask state, rejecting every
// pending ask with RouterShutdownError.
func (r *Router) Destroy() {
	r.mu.Lock()
	r.destroyed = true
	r.actors = make(map[string]deliverable)
	r.subs = make(map[string]map[string]bool)
	r.mu.Unlock()

	r.askMu.Lock()
	pending := r.asks
	r.asks = make(map[string]*askWaiter)
	r.askMu.Unlock()
	for _, w := range pending {
		w.timer.Stop()
		w.replyCh <- nil
	}
}
