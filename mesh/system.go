package mesh

import (
	"sync"
	"time"

	"github.com/meshfabric/commhub/envelope"
)

// ActorDiagnostics reports one actor's connection-style bookkeeping:
// when it was spawned and when it last dispatched an envelope.
type ActorDiagnostics struct {
	ID         string
	SpawnedAt  time.Time
	LastActive time.Time
}

// SystemConfig tunes the ActorSystem's router and gossip components.
type SystemConfig struct {
	MailboxCapacity int
	Gossip          GossipConfig
	Debug           bool
}

// ActorRef is the external handle a caller uses to interact with a
// spawned actor without holding the Actor value itself.
type ActorRef struct {
	id     string
	system *ActorSystem
}

// ID returns the actor's address.
func (r *ActorRef) ID() string { return r.id }

// Tell sends a fire-and-forget envelope to this actor.
func (r *ActorRef) Tell(from string, payload interface{}, priority envelope.Priority) {
	e := envelope.New(from, r.id, "", payload, priority)
	r.system.router.Route(e)
}

// Ask sends a request to this actor and blocks for its reply.
func (r *ActorRef) Ask(from string, payload interface{}, priority envelope.Priority, timeoutMs int64) (*envelope.Envelope, error) {
	return r.system.router.Ask(from, r.id, payload, priority, timeoutMs)
}

// Stop kills the underlying actor and removes it from the system.
func (r *ActorRef) Stop() {
	r.system.Stop(r.id)
}

// ActorSystem wires the Router and Gossip components together and
// exposes ActorRef handles to spawned actors (spec C11).
type ActorSystem struct {
	cfg    SystemConfig
	router *Router
	gossip *Gossip

	mu     sync.Mutex
	actors map[string]*Actor
}

// NewSystem creates an ActorSystem identified by selfID, wiring a fresh
// Router and Gossip instance.
func NewSystem(selfID string, cfg SystemConfig) *ActorSystem {
	if cfg.Gossip.IntervalMs <= 0 {
		cfg.Gossip = DefaultGossipConfig()
	}
	return &ActorSystem{
		cfg:    cfg,
		router: NewRouter(cfg.Debug),
		gossip: NewGossip(selfID, cfg.Gossip, cfg.Debug),
		actors: make(map[string]*Actor),
	}
}

// Router exposes the underlying Router for advanced callers (topic
// subscription management, observers).
func (s *ActorSystem) Router() *Router { return s.router }

// Gossip exposes the underlying Gossip component.
func (s *ActorSystem) Gossip() *Gossip { return s.gossip }

// Spawn creates, registers, and starts an actor running behavior, and
// registers it in the gossip view under the same id. Returns a handle
// through which other components address it.
func (s *ActorSystem) Spawn(id string, behavior Behavior, expertise, capabilities []string) *ActorRef {
	a := NewActor(id, s.router, s.cfg.MailboxCapacity, behavior)

	s.mu.Lock()
	s.actors[id] = a
	s.mu.Unlock()

	s.router.AddActor(a)
	s.gossip.Register(id, expertise, capabilities)
	a.Run()

	return &ActorRef{id: id, system: s}
}

// Diagnostics returns spawn/last-active bookkeeping for every live
// actor, for health introspection (spec's per-process lastSeen
// requirement, generalized here to the per-actor level).
func (s *ActorSystem) Diagnostics() []ActorDiagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActorDiagnostics, 0, len(s.actors))
	for id, a := range s.actors {
		out = append(out, ActorDiagnostics{ID: id, SpawnedAt: a.SpawnedAt(), LastActive: a.LastActive()})
	}
	return out
}

// Stop kills the actor at id, removes it from the router, and clears
// its local bookkeeping. Its gossip peer view is left intact: liveness
// there is owned by the sweep/merge state machine, not local spawn
// status.
func (s *ActorSystem) Stop(id string) {
	s.mu.Lock()
	a, ok := s.actors[id]
	delete(s.actors, id)
	s.mu.Unlock()

	if !ok {
		return
	}
	s.router.RemoveActor(id)
	a.Kill()
}

// Shutdown stops every actor, then destroys the router and gossip
// components.
func (s *ActorSystem) Shutdown() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.actors))
	for id := range s.actors {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Stop(id)
	}
	s.gossip.Destroy()
	s.router.Destroy()
}
