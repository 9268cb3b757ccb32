package patterns

import (
	"strings"
	"testing"

	"github.com/meshfabric/commhub/envelope"
	"github.com/meshfabric/commhub/hub"
)

func TestPipelineFoldsPayloadThroughStages(t *testing.T) {
	h := hub.New(hub.Config{})
	h.SubscribeTopic("upper", "step1", func(e *envelope.Envelope) {
		h.Reply(e.ID, "upper", strings.ToUpper(e.Payload.(string)))
	})
	h.SubscribeTopic("exclaim", "step2", func(e *envelope.Envelope) {
		h.Reply(e.ID, "exclaim", e.Payload.(string)+"!")
	})

	stages := []Stage{{Agent: "upper", Topic: "step1"}, {Agent: "exclaim", Topic: "step2"}}
	result, err := Pipeline(h, stages, "hi", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "HI!" {
		t.Fatalf("expected HI!, got %v", result)
	}
}

func TestPipelineAbortsOnStageFailure(t *testing.T) {
	h := hub.New(hub.Config{})
	h.SubscribeTopic("ok", "step1", func(e *envelope.Envelope) {
		h.Reply(e.ID, "ok", "survived")
	})
	// "broken" never replies, forcing a timeout.

	stages := []Stage{{Agent: "ok", Topic: "step1"}, {Agent: "broken", Topic: "step2"}}
	_, err := Pipeline(h, stages, "start", 50)
	if err == nil {
		t.Fatal("expected pipeline to abort on the second stage's timeout")
	}
}
