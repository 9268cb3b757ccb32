package mesh

import (
	"errors"
	"testing"
	"time"

	"github.com/meshfabric/commhub/envelope"
)

func TestActorRepliesToAsk(t *testing.T) {
	r := NewRouter(false)
	a := NewActor("echo", r, 0, func(e *envelope.Envelope, ctx *Context) error {
		ctx.Reply(e.Payload)
		return nil
	})
	r.AddActor(a)
	a.Run()
	defer a.Kill()

	reply, err := r.Ask("client", "echo", "hi", envelope.Normal, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Payload != "hi" {
		t.Fatalf("expected echoed payload, got %v", reply.Payload)
	}
}

func TestActorBehaviorErrorBecomesErrorReplyOnAsk(t *testing.T) {
	r := NewRouter(false)
	a := NewActor("failer", r, 0, func(e *envelope.Envelope, ctx *Context) error {
		return errors.New("boom")
	})
	r.AddActor(a)
	a.Run()
	defer a.Kill()

	_, err := r.Ask("client", "failer", "hi", envelope.Normal, 1000)
	if _, ok := err.(*ProtocolErrorReply); !ok {
		t.Fatalf("expected ProtocolErrorReply, got %v", err)
	}
}

func TestActorPanicIsIsolated(t *testing.T) {
	r := NewRouter(false)
	calls := 0
	a := NewActor("panicky", r, 0, func(e *envelope.Envelope, ctx *Context) error {
		calls++
		if calls == 1 {
			panic("kaboom")
		}
		ctx.Reply("survived")
		return nil
	})
	r.AddActor(a)
	a.Run()
	defer a.Kill()

	_, err := r.Ask("client", "panicky", "hi", envelope.Normal, 1000)
	if err == nil {
		t.Fatal("expected an error-reply after the behavior panicked")
	}

	// The actor loop must still be alive for a second message.
	reply, err := r.Ask("client", "panicky", "hi again", envelope.Normal, 1000)
	if err != nil {
		t.Fatalf("expected the actor loop to survive the panic, got %v", err)
	}
	if reply.Payload != "survived" {
		t.Fatalf("unexpected reply payload: %v", reply.Payload)
	}
}

func TestKillStopsDeliveryProcessing(t *testing.T) {
	r := NewRouter(false)
	processed := make(chan struct{}, 1)
	a := NewActor("worker", r, 0, func(e *envelope.Envelope, ctx *Context) error {
		processed <- struct{}{}
		return nil
	})
	r.AddActor(a)
	a.Run()

	a.Kill()

	select {
	case <-processed:
		t.Fatal("did not expect any message to be processed after Kill")
	case <-time.After(50 * time.Millisecond):
	}
}
