package mesh

import (
	"testing"
	"time"
)

func TestRegisterEmitsDiscoveredOnlyOnce(t *testing.T) {
	g := NewGossip("self", GossipConfig{IntervalMs: 100, FanoutK: 1, SuspectTimeoutMs: 50, DeadTimeoutMs: 100}, false)
	var events []GossipEvent
	g.Observe(func(e GossipEvent) { events = append(events, e) })

	g.Register("peer-1", []string{"math"}, nil)
	g.Register("peer-1", []string{"math"}, nil)

	count := 0
	for _, e := range events {
		if e.Kind == EventPeerDiscovered {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 discovered event, got %d", count)
	}
}

func TestMergeOnlyAdoptsStrictlyGreaterGeneration(t *testing.T) {
	g := NewGossip("self", DefaultGossipConfig(), false)
	g.Register("peer-1", nil, nil) // generation 1

	stale := PeerView{ID: "peer-1", Status: Dead, Generation: 1}
	changed := g.Merge([]PeerView{stale})
	if len(changed) != 0 {
		t.Fatalf("expected stale generation to be rejected, got %v", changed)
	}

	fresher := PeerView{ID: "peer-1", Status: Suspect, Generation: 2}
	changed = g.Merge([]PeerView{fresher})
	if len(changed) != 1 || changed[0].Status != Suspect {
		t.Fatalf("expected fresher generation adopted, got %v", changed)
	}
}

func TestMergeDiscoversUnknownPeers(t *testing.T) {
	g := NewGossip("self", DefaultGossipConfig(), false)
	var events []GossipEvent
	g.Observe(func(e GossipEvent) { events = append(events, e) })

	g.Merge([]PeerView{{ID: "peer-2", Status: Alive, Generation: 1}})

	found := false
	for _, e := range events {
		if e.Kind == EventPeerDiscovered && e.Peer.ID == "peer-2" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected peer-2 discovery event from Merge")
	}
}

func TestSelectTargetsExcludesAndCapsAtFanout(t *testing.T) {
	g := NewGossip("self", GossipConfig{IntervalMs: 100, FanoutK: 2, SuspectTimeoutMs: 50, DeadTimeoutMs: 100}, false)
	g.Register("a", nil, nil)
	g.Register("b", nil, nil)
	g.Register("c", nil, nil)

	targets := g.SelectTargets(map[string]bool{"a": true})
	if len(targets) != 2 {
		t.Fatalf("expected fanout capped at 2, got %d", len(targets))
	}
	for _, id := range targets {
		if id == "a" {
			t.Fatal("excluded peer must not be selected")
		}
	}
}

func TestFindByExpertiseFiltersAliveAndTag(t *testing.T) {
	g := NewGossip("self", DefaultGossipConfig(), false)
	g.Register("a", []string{"nlp"}, nil)
	g.Register("b", []string{"vision"}, nil)

	found := g.FindByExpertise("nlp")
	if len(found) != 1 || found[0].ID != "a" {
		t.Fatalf("expected only peer a, got %v", found)
	}
}

func TestSweepAgesAliveIntoSuspectThenDead(t *testing.T) {
	g := NewGossip("self", GossipConfig{IntervalMs: 100, FanoutK: 1, SuspectTimeoutMs: 10, DeadTimeoutMs: 20}, false)
	var events []GossipEvent
	g.Observe(func(e GossipEvent) { events = append(events, e) })

	g.Register("peer-1", nil, nil)
	time.Sleep(15 * time.Millisecond)
	g.Sweep()

	view := g.GetView()
	if len(view) != 1 || view[0].Status != Suspect {
		t.Fatalf("expected peer-1 suspect after sweep, got %v", view)
	}

	time.Sleep(25 * time.Millisecond)
	g.Sweep()

	view = g.GetView()
	if view[0].Status != Dead {
		t.Fatalf("expected peer-1 dead after second sweep, got %v", view)
	}

	var sawSuspect, sawDead bool
	for _, e := range events {
		if e.Kind == EventPeerSuspect {
			sawSuspect = true
		}
		if e.Kind == EventPeerDead {
			sawDead = true
		}
	}
	if !sawSuspect || !sawDead {
		t.Fatalf("expected both suspect and dead events, got %v", events)
	}
}

func TestStartStopDoesNotPanic(t *testing.T) {
	g := NewGossip("self", GossipConfig{IntervalMs: 10, FanoutK: 1, SuspectTimeoutMs: 5, DeadTimeoutMs: 10}, false)
	g.Start()
	g.Start() // idempotent re-arm
	time.Sleep(30 * time.Millisecond)
	g.Stop()
	g.Destroy()
}
