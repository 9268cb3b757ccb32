// Package main wires a CommHub and an ActorSystem together and runs a
// small end-to-end demonstration: a client asking an actor and getting its reply,
// a fan-out across three workers, and graceful shutdown on signal.
//
// Called by: operator invocation (go run ./cmd/meshdemo [config.yaml]).
// Calls: hub.New, mesh.NewSystem, patterns.FanOut.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meshfabric/commhub/config"
	"github.com/meshfabric/commhub/envelope"
	"github.com/meshfabric/commhub/hub"
	"github.com/meshfabric/commhub/mesh"
	"github.com/meshfabric/commhub/patterns"
)

func main() {
	var cfg *config.Config
	var configSource string

	if len(os.Args) >= 2 {
		loaded, err := config.Load(os.Args[1])
		if err != nil {
			log.Fatalf("failed to load config from %s: %v", os.Args[1], err)
		}
		cfg = loaded
		configSource = fmt.Sprintf("config file: %s", os.Args[1])
	} else {
		cfg = config.Default()
		configSource = "hardcoded defaults"
	}

	log.Printf("starting meshdemo using %s", configSource)

	h := hub.New(hub.Config{HistorySize: cfg.Hub.HistorySize, Debug: cfg.Debug})
	h.Subscribe(func(e hub.Event) {
		log.Printf("hub event: %s", e.Kind)
	})

	system := mesh.NewSystem("meshdemo", mesh.SystemConfig{
		MailboxCapacity: cfg.Mesh.MailboxCapacity,
		Gossip: mesh.GossipConfig{
			IntervalMs:       cfg.Mesh.GossipIntervalMs,
			FanoutK:          cfg.Mesh.GossipFanout,
			SuspectTimeoutMs: cfg.Mesh.SuspectTimeoutMs,
			DeadTimeoutMs:    cfg.Mesh.DeadTimeoutMs,
		},
		Debug: cfg.Debug,
	})
	system.Gossip().Start()

	worker := system.Spawn("worker-1", func(e *envelope.Envelope, ctx *mesh.Context) error {
		ctx.Reply(fmt.Sprintf("handled: %v", e.Payload))
		return nil
	}, []string{"echo"}, nil)

	reply, err := worker.Ask("client", "ping", envelope.Normal, cfg.Hub.DefaultRequestTimeout)
	if err != nil {
		log.Printf("ask failed: %v", err)
	} else {
		log.Printf("worker replied: %v", reply.Payload)
	}

	h.SubscribeTopic("worker-1", "work", func(e *envelope.Envelope) {
		log.Printf("worker-1 saw: %v", e.Payload)
		h.Reply(e.ID, "worker-1", "worker-1 processed")
	})

	for i := 2; i <= 3; i++ {
		id := fmt.Sprintf("worker-%d", i)
		system.Spawn(id, func(e *envelope.Envelope, ctx *mesh.Context) error {
			ctx.Reply(fmt.Sprintf("%s done", ctx.ID()))
			return nil
		}, []string{"echo"}, nil)

		h.SubscribeTopic(id, "work", func(e *envelope.Envelope) {
			log.Printf("%s saw: %v", id, e.Payload)
			h.Reply(e.ID, id, fmt.Sprintf("%s processed", id))
		})
	}

	results := patterns.FanOut(h, "client", "work", "process batch",
		[]string{"worker-1", "worker-2", "worker-3"}, cfg.Hub.DefaultRequestTimeout)
	log.Printf("fan-out collected %d/%d results", len(results), 3)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal: %s, shutting down", sig)
	case <-time.After(2 * time.Second):
		log.Printf("demo window elapsed, shutting down")
	}

	system.Shutdown()
	h.Destroy()
	log.Printf("meshdemo stopped")
}
