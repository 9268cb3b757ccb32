package mesh

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meshfabric/commhub/envelope"
	"github.com/meshfabric/commhub/internal/mailbox"
)

// Behavior processes one envelope delivered to an actor. A non-nil error
// is isolated by the actor: it is logged and, if the incoming envelope
// was an ask, turned into an error-reply (spec §4.5).
type Behavior func(e *envelope.Envelope, ctx *Context) error

// Context is the handle a Behavior uses to reply, tell, or ask other
// actors, and to read its own id.
type Context struct {
	actor *Actor
	in    *envelope.Envelope
}

// ID returns the owning actor's address.
func (c *Context) ID() string { return c.actor.id }

// Reply synthesizes a reply envelope (type=reply, correlation=incoming
// id, to=incoming from) and routes it, per spec §4.5.
func (c *Context) Reply(payload interface{}) {
	reply := envelope.NewReply(c.in, c.actor.id, payload)
	c.actor.router.Route(reply)
}

// Tell sends a fire-and-forget envelope to another address.
func (c *Context) Tell(to string, payload interface{}, priority envelope.Priority) {
	e := envelope.New(c.actor.id, to, "", payload, priority)
	c.actor.router.Route(e)
}

// Ask sends a request to another address and blocks for its reply.
func (c *Context) Ask(to string, payload interface{}, priority envelope.Priority, timeoutMs int64) (*envelope.Envelope, error) {
	return c.actor.router.Ask(c.actor.id, to, payload, priority, timeoutMs)
}

// Actor owns a priority mailbox and drains it single-threaded,
// cooperative per spec §4.5/§5: one envelope at a time, waiting for the
// behavior to return before dequeuing the next.
type Actor struct {
	id       string
	router   *Router
	behavior Behavior
	mbox     *mailbox.Mailbox[*envelope.Envelope]

	spawnedAt      time.Time
	lastActiveNano int64 // atomic, unix nanoseconds

	killed int32
	wg     sync.WaitGroup
}

// NewActor creates an actor bound to router with the given mailbox
// capacity (<=0 unbounded) and behavior function.
func NewActor(id string, router *Router, mailboxCapacity int, behavior Behavior) *Actor {
	now := time.Now()
	return &Actor{
		id:             id,
		router:         router,
		behavior:       behavior,
		mbox:           mailbox.New[*envelope.Envelope](mailboxCapacity),
		spawnedAt:      now,
		lastActiveNano: now.UnixNano(),
	}
}

// SpawnedAt returns when the actor was created.
func (a *Actor) SpawnedAt() time.Time { return a.spawnedAt }

// LastActive returns the timestamp of the last envelope this actor
// dispatched, for connection-style health diagnostics (spec's
// per-process lastSeen requirement, generalized to the per-actor level).
func (a *Actor) LastActive() time.Time {
	return time.Unix(0, atomic.LoadInt64(&a.lastActiveNano))
}

// Address implements the router's deliverable interface.
func (a *Actor) Address() string { return a.id }

// Mailbox implements the router's deliverable interface.
func (a *Actor) Mailbox() *mailbox.Mailbox[*envelope.Envelope] { return a.mbox }

// Run starts the actor's single-threaded behavior loop in its own
// goroutine. It returns immediately; Kill and mailbox closure are how
// the loop is stopped.
func (a *Actor) Run() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for atomic.LoadInt32(&a.killed) == 0 {
			e, ok := a.mbox.Dequeue()
			if !ok {
				return
			}
			if atomic.LoadInt32(&a.killed) != 0 {
				return
			}
			a.dispatch(e)
		}
	}()
}

func (a *Actor) dispatch(e *envelope.Envelope) {
	atomic.StoreInt64(&a.lastActiveNano, time.Now().UnixNano())
	ctx := &Context{actor: a, in: e}
	err := a.invokeSafely(e, ctx)
	if err == nil {
		return
	}
	log.Printf("mesh: actor %s behavior error on %s: %v", a.id, e.ID, err)
	if e.Type == envelope.Ask {
		errReply := envelope.NewErrorReply(e, a.id, err.Error())
		a.router.Route(errReply)
	}
}

// invokeSafely runs the behavior, converting a panic into an error so a
// single misbehaving handler cannot take down the actor's loop (spec
// "Behavior exceptions are isolated").
func (a *Actor) invokeSafely(e *envelope.Envelope, ctx *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.behavior(e, ctx)
}

// Kill stops the behavior loop at the next cooperative suspension point
// (or after the current envelope) and drains the mailbox without
// executing further handlers. Pending asks targeting this actor are left
// to time out or are rejected by the router once RemoveActor runs.
func (a *Actor) Kill() {
	atomic.StoreInt32(&a.killed, 1)
	a.mbox.Close()
	a.wg.Wait()
}
