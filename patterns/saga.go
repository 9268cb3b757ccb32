package patterns

import (
	"fmt"

	"github.com/meshfabric/commhub/hub"
)

const sagaSender = "__saga__"

// Step is one unit of a Saga: a request on Topic to Agent runs the step,
// and a request on CompensateTopic (if set) to the same Agent undoes it.
// The compensation request carries the payload the step's reply
// returned so it can target the right resource.
type Step struct {
	Agent           string
	Topic           string
	CompensateTopic string
}

// SagaError reports the step that originally failed along with how many
// compensations (if any) also failed during rollback (spec §4.3: "throw
// a single error describing the originating failure and the count of
// compensation failures").
type SagaError struct {
	StepIndex          int
	Agent              string
	Cause              error
	CompensationErrors int
}

func (e *SagaError) Error() string {
	return fmt.Sprintf("saga: step %d (%s) failed: %v (%d compensation failures)",
		e.StepIndex, e.Agent, e.Cause, e.CompensationErrors)
}

func (e *SagaError) Unwrap() error { return e.Cause }

type completedStep struct {
	step    Step
	payload interface{}
}

// Saga executes steps sequentially. On any step's failure, every
// already-completed step is compensated in reverse order; compensation
// failures are counted but do not abort the rollback.
func Saga(h *hub.Hub, steps []Step, initialPayload interface{}, timeoutMs int64) error {
	var done []completedStep
	payload := initialPayload

	for i, step := range steps {
		reply, err := h.Request(step.Agent, step.Topic, payload, sagaSender, timeoutMs)
		if err != nil {
			compensationFailures := rollback(h, done, timeoutMs)
			return &SagaError{StepIndex: i, Agent: step.Agent, Cause: err, CompensationErrors: compensationFailures}
		}
		payload = reply.Payload
		done = append(done, completedStep{step: step, payload: payload})
	}
	return nil
}

func rollback(h *hub.Hub, done []completedStep, timeoutMs int64) int {
	failures := 0
	for i := len(done) - 1; i >= 0; i-- {
		c := done[i]
		if c.step.CompensateTopic == "" {
			continue
		}
		if _, err := h.Request(c.step.Agent, c.step.CompensateTopic, c.payload, sagaSender, timeoutMs); err != nil {
			failures++
		}
	}
	return failures
}
