package hub

import (
	"log"
	"sync"

	"github.com/meshfabric/commhub/envelope"
)

// EventKind names the observer events the hub emits (spec §4.1).
type EventKind string

const (
	EventMessageSent        EventKind = "message:sent"
	EventLockAcquired        EventKind = "lock:acquired"
	EventLockReleased        EventKind = "lock:released"
	EventLockTimeout         EventKind = "lock:timeout"
	EventLockForceReleased   EventKind = "lock:force-released"
	EventCollectorComplete   EventKind = "collector:complete"
	EventCollectorTimeout    EventKind = "collector:timeout"
	EventDeadlockDetected    EventKind = "deadlock:detected"
	EventDeadlockResolved    EventKind = "deadlock:resolved"
)

// Event is the payload delivered to observers. Fields not relevant to
// Kind are left zero.
type Event struct {
	Kind       EventKind
	Envelope   *envelope.Envelope
	Resource   string
	Holder     string
	CollectorID string
	Cycle      []string
	Resources  []string
	Reason     string
}

// Observer receives hub events synchronously on the mutating goroutine.
// Per spec §5, an observer must complete quickly and never call back
// into the hub.
type Observer func(Event)

// observerSet dispatches events to every registered observer, catching
// and logging any panic so a broken observer cannot affect the hub
// (spec §4.1, §7: "handler exceptions are caught and swallowed").
type observerSet struct {
	mu        sync.RWMutex
	observers []Observer
}

func newObserverSet() *observerSet {
	return &observerSet{}
}

func (o *observerSet) Subscribe(obs Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, obs)
}

func (o *observerSet) Emit(e Event) {
	o.mu.RLock()
	observers := append([]Observer(nil), o.observers...)
	o.mu.RUnlock()

	for _, obs := range observers {
		dispatchSafely(obs, e)
	}
}

func dispatchSafely(obs Observer, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("hub: observer panicked on %s: %v", e.Kind, r)
		}
	}()
	obs(e)
}
