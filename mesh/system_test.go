package mesh

import (
	"testing"

	"github.com/meshfabric/commhub/envelope"
)

func TestSpawnRegistersActorInRouterAndGossip(t *testing.T) {
	s := NewSystem("node-1", SystemConfig{})
	ref := s.Spawn("worker-1", func(e *envelope.Envelope, ctx *Context) error {
		ctx.Reply("pong")
		return nil
	}, []string{"math"}, nil)
	defer s.Shutdown()

	reply, err := ref.Ask("client", "ping", envelope.Normal, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Payload != "pong" {
		t.Fatalf("expected pong, got %v", reply.Payload)
	}

	found := s.Gossip().FindByExpertise("math")
	if len(found) != 1 || found[0].ID != "worker-1" {
		t.Fatalf("expected worker-1 registered under math expertise, got %v", found)
	}
}

func TestDiagnosticsTracksSpawnAndActivity(t *testing.T) {
	s := NewSystem("node-1", SystemConfig{})
	ref := s.Spawn("worker-1", func(e *envelope.Envelope, ctx *Context) error {
		ctx.Reply("pong")
		return nil
	}, nil, nil)
	defer s.Shutdown()

	before := s.Diagnostics()
	if len(before) != 1 || before[0].ID != "worker-1" {
		t.Fatalf("expected one diagnostics entry for worker-1, got %v", before)
	}
	firstActive := before[0].LastActive

	if _, err := ref.Ask("client", "ping", envelope.Normal, 1000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after := s.Diagnostics()
	if !after[0].LastActive.After(firstActive) && !after[0].LastActive.Equal(firstActive) {
		t.Fatalf("expected last-active to advance after dispatch, before=%v after=%v", firstActive, after[0].LastActive)
	}
}

func TestStopRemovesActorFromRouting(t *testing.T) {
	s := NewSystem("node-1", SystemConfig{})
	ref := s.Spawn("worker-1", func(e *envelope.Envelope, ctx *Context) error {
		ctx.Reply("pong")
		return nil
	}, nil, nil)
	defer s.Shutdown()

	ref.Stop()

	_, err := s.Router().Ask("client", "worker-1", "ping", envelope.Normal, 50)
	if err == nil {
		t.Fatal("expected ask to a stopped actor to fail")
	}
}

func TestShutdownStopsAllActorsAndDestroysRouterAndGossip(t *testing.T) {
	s := NewSystem("node-1", SystemConfig{})
	s.Spawn("w1", func(e *envelope.Envelope, ctx *Context) error { return nil }, nil, nil)
	s.Spawn("w2", func(e *envelope.Envelope, ctx *Context) error { return nil }, nil, nil)

	s.Shutdown()

	if _, err := s.Router().Ask("client", "w1", "x", envelope.Normal, 10); err == nil {
		t.Fatal("expected router to be destroyed after shutdown")
	}
}
