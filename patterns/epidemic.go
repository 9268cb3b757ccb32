package patterns

import (
	"math/rand"

	"github.com/meshfabric/commhub/envelope"
	"github.com/meshfabric/commhub/hub"
)

// gossipPayload wraps an application payload with the application-level
// flag spec §4.3 calls for, marking it as epidemically propagated
// rather than a direct send.
type gossipPayload struct {
	IsGossip bool        `json:"isGossip"`
	Payload  interface{} `json:"payload"`
}

// Gossip selects up to fanout random peers from the hub's topic message
// history (excluding from) and sends payload to each at low priority,
// tagged as gossip traffic. This is a best-effort coordination pattern,
// not the mesh's membership protocol (mesh/gossip.go) — it piggybacks on
// CommHub's pub/sub history instead of a peer view.
func Gossip(h *hub.Hub, from, topic string, payload interface{}, fanout int) {
	history := h.GetMessages(envelope.Broadcast, topic)

	seen := make(map[string]bool)
	var peers []string
	for _, e := range history {
		candidate := e.From
		if candidate == "" || candidate == from || seen[candidate] {
			continue
		}
		seen[candidate] = true
		peers = append(peers, candidate)
	}

	if fanout > len(peers) {
		fanout = len(peers)
	}
	for i := 0; i < fanout; i++ {
		j := i + rand.Intn(len(peers)-i)
		peers[i], peers[j] = peers[j], peers[i]
	}

	wrapped := gossipPayload{IsGossip: true, Payload: payload}
	for _, peer := range peers[:fanout] {
		e := envelope.New(from, peer, topic, wrapped, envelope.Low)
		h.Send(e)
	}
}
