package patterns

import (
	"fmt"

	"github.com/meshfabric/commhub/hub"
)

// pipelineSender is the synthetic `from` address used when a pipeline
// stage issues its request, so replies can't be mistaken for ordinary
// agent-to-agent traffic in history/tracing.
const pipelineSender = "__pipeline__"

// Stage is one step of a Pipeline: a target agent and the topic it
// expects the running payload on.
type Stage struct {
	Agent string
	Topic string
}

// Pipeline folds payload through stages sequentially; stage i receives
// the reply of stage i-1 as its payload. Any timeout or error-reply
// aborts the whole pipeline with no partial success (spec §4.3).
func Pipeline(h *hub.Hub, stages []Stage, initialPayload interface{}, timeoutMs int64) (interface{}, error) {
	payload := initialPayload
	for i, stage := range stages {
		reply, err := h.Request(stage.Agent, stage.Topic, payload, pipelineSender, timeoutMs)
		if err != nil {
			return nil, fmt.Errorf("pipeline stage %d (%s): %w", i, stage.Agent, err)
		}
		payload = reply.Payload
	}
	return payload, nil
}
