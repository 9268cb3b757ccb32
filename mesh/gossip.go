package mesh

import (
	"math/rand"
	"sync"
	"time"

	"github.com/meshfabric/commhub/logging"
)

// PeerStatus is a peer's position in the alive/suspect/dead state
// machine (spec §4.7).
type PeerStatus string

const (
	Alive   PeerStatus = "alive"
	Suspect PeerStatus = "suspect"
	Dead    PeerStatus = "dead"
)

// PeerView is one process's view of a peer (spec §3.6).
type PeerView struct {
	ID           string
	Expertise    []string
	Capabilities []string
	Status       PeerStatus
	Generation   uint64
	LastSeen     time.Time
}

func (p PeerView) hasExpertise(tag string) bool {
	for _, e := range p.Expertise {
		if e == tag {
			return true
		}
	}
	return false
}

// GossipEventKind names the events Gossip emits.
type GossipEventKind string

const (
	EventPeerDiscovered GossipEventKind = "peer:discovered"
	EventPeerSuspect    GossipEventKind = "peer:suspect"
	EventPeerDead       GossipEventKind = "peer:dead"
)

// GossipEvent is the payload delivered to gossip observers.
type GossipEvent struct {
	Kind GossipEventKind
	Peer PeerView
}

// GossipObserver receives gossip events synchronously.
type GossipObserver func(GossipEvent)

// GossipConfig tunes sweep timing and fan-out (spec §4.6 defaults).
type GossipConfig struct {
	IntervalMs        int64
	FanoutK           int
	SuspectTimeoutMs  int64
	DeadTimeoutMs     int64
}

// DefaultGossipConfig matches the spec's stated typical defaults.
func DefaultGossipConfig() GossipConfig {
	return GossipConfig{
		IntervalMs:       1000,
		FanoutK:          3,
		SuspectTimeoutMs: 5000,
		DeadTimeoutMs:    15000,
	}
}

// Gossip implements the SWIM-inspired membership protocol (spec C9):
// peer views keyed by id, a monotone generation counter per peer used to
// arbitrate merges, and a periodic sweep that ages alive peers into
// suspect and suspect peers into dead. Grounded on the teacher's
// periodic-timer lifecycle idiom (cancel-then-reinstall on every
// start()) seen across its framework/orchestrator code, generalized here
// to a SWIM sweep.
type Gossip struct {
	selfID string
	cfg    GossipConfig

	mu    sync.Mutex
	peers map[string]PeerView

	obsMu     sync.RWMutex
	observers []GossipObserver

	timerMu sync.Mutex
	stopCh  chan struct{}

	log *logging.Logger
}

// NewGossip creates a Gossip instance for selfID.
func NewGossip(selfID string, cfg GossipConfig, debug bool) *Gossip {
	if cfg.IntervalMs <= 0 {
		cfg = DefaultGossipConfig()
	}
	return &Gossip{
		selfID: selfID,
		cfg:    cfg,
		peers:  make(map[string]PeerView),
		log:    logging.New("gossip", debug),
	}
}

// Observe registers obs for every gossip event.
func (g *Gossip) Observe(obs GossipObserver) {
	g.obsMu.Lock()
	defer g.obsMu.Unlock()
	g.observers = append(g.observers, obs)
}

func (g *Gossip) emit(e GossipEvent) {
	g.obsMu.RLock()
	observers := append([]GossipObserver(nil), g.observers...)
	g.obsMu.RUnlock()
	for _, obs := range observers {
		obs(e)
	}
}

// Register bumps id's generation counter and inserts/replaces id's view
// as alive, now. Emits peer:discovered if id was previously unknown.
func (g *Gossip) Register(id string, expertise, capabilities []string) {
	g.mu.Lock()
	existing, known := g.peers[id]
	gen := uint64(1)
	if known {
		gen = existing.Generation + 1
	}
	view := PeerView{
		ID:           id,
		Expertise:    expertise,
		Capabilities: capabilities,
		Status:       Alive,
		Generation:   gen,
		LastSeen:     time.Now(),
	}
	g.peers[id] = view
	g.mu.Unlock()

	if !known {
		g.emit(GossipEvent{Kind: EventPeerDiscovered, Peer: view})
	}
}

// Merge folds remote views into the local table: unknown peers are
// inserted (emitting peer:discovered); known peers are replaced only if
// the remote generation is strictly greater. Returns the views that
// changed as a result.
func (g *Gossip) Merge(remoteViews []PeerView) []PeerView {
	var changed []PeerView
	var discovered []PeerView

	g.mu.Lock()
	for _, rv := range remoteViews {
		local, known := g.peers[rv.ID]
		if !known {
			g.peers[rv.ID] = rv
			changed = append(changed, rv)
			discovered = append(discovered, rv)
			continue
		}
		if rv.Generation > local.Generation {
			g.peers[rv.ID] = rv
			changed = append(changed, rv)
		}
	}
	g.mu.Unlock()

	for _, d := range discovered {
		g.emit(GossipEvent{Kind: EventPeerDiscovered, Peer: d})
	}
	return changed
}

// GetView returns a snapshot of every known peer view, for transmission
// to other processes.
func (g *Gossip) GetView() []PeerView {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]PeerView, 0, len(g.peers))
	for _, v := range g.peers {
		out = append(out, v)
	}
	return out
}

// SelectTargets returns up to fanoutK alive peers chosen by a partial
// Fisher-Yates shuffle, excluding any id in exclude.
func (g *Gossip) SelectTargets(exclude map[string]bool) []string {
	g.mu.Lock()
	var alive []string
	for id, v := range g.peers {
		if v.Status != Alive {
			continue
		}
		if exclude != nil && exclude[id] {
			continue
		}
		alive = append(alive, id)
	}
	g.mu.Unlock()

	k := g.cfg.FanoutK
	if k > len(alive) {
		k = len(alive)
	}
	for i := 0; i < k; i++ {
		j := i + rand.Intn(len(alive)-i)
		alive[i], alive[j] = alive[j], alive[i]
	}
	return alive[:k]
}

// FindByExpertise returns every alive peer advertising tag.
func (g *Gossip) FindByExpertise(tag string) []PeerView {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []PeerView
	for _, v := range g.peers {
		if v.Status == Alive && v.hasExpertise(tag) {
			out = append(out, v)
		}
	}
	return out
}

// Sweep ages every peer's status against the configured suspect/dead
// timeouts (spec §4.6).
func (g *Gossip) Sweep() {
	now := time.Now()
	var suspected, died []PeerView

	g.mu.Lock()
	for id, v := range g.peers {
		delta := now.Sub(v.LastSeen)
		switch v.Status {
		case Alive:
			if delta.Milliseconds() > g.cfg.SuspectTimeoutMs {
				v.Status = Suspect
				v.Generation++
				g.peers[id] = v
				suspected = append(suspected, v)
			}
		case Suspect:
			if delta.Milliseconds() > g.cfg.DeadTimeoutMs {
				v.Status = Dead
				v.Generation++
				g.peers[id] = v
				died = append(died, v)
			}
		}
	}
	g.mu.Unlock()

	for _, v := range suspected {
		g.log.Info("peer %s -> suspect", v.ID)
		g.emit(GossipEvent{Kind: EventPeerSuspect, Peer: v})
	}
	for _, v := range died {
		g.log.Info("peer %s -> dead", v.ID)
		g.emit(GossipEvent{Kind: EventPeerDead, Peer: v})
	}
}

// Start schedules Sweep on a periodic timer. Idempotent: a prior timer
// is always cancelled before a new one is installed (spec "Periodic
// tasks" design note).
func (g *Gossip) Start() {
	g.timerMu.Lock()
	defer g.timerMu.Unlock()

	if g.stopCh != nil {
		close(g.stopCh)
	}
	stop := make(chan struct{})
	g.stopCh = stop

	interval := time.Duration(g.cfg.IntervalMs) * time.Millisecond
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

// Stop cancels the periodic sweep timer without clearing peer state.
func (g *Gossip) Stop() {
	g.timerMu.Lock()
	defer g.timerMu.Unlock()
	if g.stopCh != nil {
		close(g.stopCh)
		g.stopCh = nil
	}
}

// Destroy stops the sweep timer and clears observers and peer state.
func (g *Gossip) Destroy() {
	g.Stop()
	g.obsMu.Lock()
	g.observers = nil
	g.obsMu.Unlock()
	g.mu.Lock()
	g.peers = make(map[string]PeerView)
	g.mu.Unlock()
}
