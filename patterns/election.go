package patterns

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meshfabric/commhub/envelope"
	"github.com/meshfabric/commhub/hub"
)

// Candidate is one participant in an Election; Index determines
// priority (higher index wins ties the bully algorithm resolves).
type Candidate struct {
	Address string
	Index   int
}

type candidacyMessage struct {
	Address string `json:"address"`
	Index   int    `json:"index"`
}

// Election runs the bully algorithm over candidates: each subscribes to
// a fresh topic, broadcasts its candidacy, and yields on seeing a
// strictly higher index. After one propagation window (capped at
// 100ms), the highest-indexed non-yielding candidate wins. A single
// candidate wins immediately without waiting out the window.
func Election(h *hub.Hub, candidates []Candidate, timeoutMs int64) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("election: no candidates")
	}
	if len(candidates) == 1 {
		return candidates[0].Address, nil
	}

	topic := "__election__:" + uuid.New().String()

	var mu sync.Mutex
	yielded := make(map[string]bool)

	var unsubs []func()
	for _, c := range candidates {
		c := c
		unsub := h.SubscribeTopic(c.Address, topic, func(e *envelope.Envelope) {
			msg, ok := e.Payload.(candidacyMessage)
			if !ok {
				return
			}
			if msg.Index > c.Index {
				mu.Lock()
				yielded[c.Address] = true
				mu.Unlock()
			}
		})
		unsubs = append(unsubs, unsub)
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	for _, c := range candidates {
		h.Broadcast(c.Address, topic, candidacyMessage{Address: c.Address, Index: c.Index}, envelope.High)
	}

	window := time.Duration(timeoutMs) * time.Millisecond
	if window > 100*time.Millisecond || window <= 0 {
		window = 100 * time.Millisecond
	}
	time.Sleep(window)

	mu.Lock()
	defer mu.Unlock()

	winner := ""
	winnerIndex := -1
	for _, c := range candidates {
		if yielded[c.Address] {
			continue
		}
		if c.Index > winnerIndex {
			winner = c.Address
			winnerIndex = c.Index
		}
	}
	if winner == "" {
		return "", fmt.Errorf("election: no winner (all candidates yielded)")
	}
	return winner, nil
}
