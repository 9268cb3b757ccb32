package patterns

import (
	"fmt"
	"sync"

	"github.com/meshfabric/commhub/hub"
)

const (
	mapReduceSender = "__mapreduce__"
	mapTopic        = "__map__"
	reduceTopic     = "__reduce__"
)

// mapChunk is the payload sent to each mapper.
type mapChunk struct {
	Chunk interface{} `json:"chunk"`
	Index int         `json:"index"`
}

// ResultEntry is one [name, payload] pair, in the order its
// contribution was submitted — the shape the reducer receives.
type ResultEntry struct {
	Name    string
	Payload interface{}
}

// reduceRequest is what the reducer receives on reduceTopic.
type reduceRequest struct {
	Results []ResultEntry `json:"results"`
}

// MapReduce partitions data into len(mapAgents) roughly equal
// contiguous chunks, fans them out to the mappers, collects results
// preserving submission order, then sends them to the reducer as a
// single array (spec §4.3). Any mapper error or reducer error aborts
// the whole operation.
func MapReduce(h *hub.Hub, mapAgents []string, reduceAgent string, data []interface{}, timeoutMs int64) (interface{}, error) {
	if len(mapAgents) == 0 {
		return nil, fmt.Errorf("mapReduce: no map agents")
	}

	chunkSize := (len(data) + len(mapAgents) - 1) / len(mapAgents)
	if chunkSize == 0 {
		chunkSize = 1
	}

	var (
		mu      sync.Mutex
		ordered []ResultEntry
		firstErr error
		wg      sync.WaitGroup
	)

	for i, agent := range mapAgents {
		start := i * chunkSize
		if start >= len(data) {
			break
		}
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[start:end]

		wg.Add(1)
		go func(agent string, chunk []interface{}, index int) {
			defer wg.Done()
			reply, err := h.Request(agent, mapTopic, mapChunk{Chunk: chunk, Index: index}, mapReduceSender, timeoutMs)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("mapReduce: mapper %s: %w", agent, err)
				}
				return
			}
			ordered = append(ordered, ResultEntry{Name: agent, Payload: reply.Payload})
		}(agent, chunk, i)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	reply, err := h.Request(reduceAgent, reduceTopic, reduceRequest{Results: ordered}, mapReduceSender, timeoutMs)
	if err != nil {
		return nil, fmt.Errorf("mapReduce: reducer %s: %w", reduceAgent, err)
	}
	return reply.Payload, nil
}
