// Package patterns implements the higher-order coordination patterns of
// spec §4.3, built entirely on CommHub's public primitives — no pattern
// here reaches into hub-internal state.
package patterns

import (
	"sync"

	"github.com/meshfabric/commhub/hub"
)

// FanOut issues a request to every target in parallel and returns only
// the successful replies, keyed by target address. Partial failure is
// tolerated by design: callers detect loss by comparing len(results) to
// len(targets) (spec §4.3).
func FanOut(h *hub.Hub, from, topic string, payload interface{}, targets []string, timeoutMs int64) map[string]interface{} {
	collector := h.CreateCollector(len(targets))

	var wg sync.WaitGroup
	wg.Add(len(targets))
	for _, target := range targets {
		target := target
		go func() {
			defer wg.Done()
			reply, err := h.Request(target, topic, payload, from, timeoutMs)
			if err != nil {
				collector.SubmitError(target, err)
				return
			}
			collector.SubmitResult(target, reply.Payload)
		}()
	}

	results, _ := h.WaitForCollector(collector, timeoutMs)
	wg.Wait()
	h.DisposeCollector(collector.ID)
	return results
}
