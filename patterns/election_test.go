package patterns

import (
	"testing"

	"github.com/meshfabric/commhub/hub"
)

func TestElectionSingleCandidateWinsImmediately(t *testing.T) {
	h := hub.New(hub.Config{})
	winner, err := Election(h, []Candidate{{Address: "solo", Index: 1}}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner != "solo" {
		t.Fatalf("expected solo to win, got %s", winner)
	}
}

func TestElectionHighestIndexWins(t *testing.T) {
	h := hub.New(hub.Config{})
	candidates := []Candidate{
		{Address: "low", Index: 1},
		{Address: "mid", Index: 5},
		{Address: "high", Index: 9},
	}
	winner, err := Election(h, candidates, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner != "high" {
		t.Fatalf("expected high (index 9) to win, got %s", winner)
	}
}

func TestElectionNoCandidatesErrors(t *testing.T) {
	h := hub.New(hub.Config{})
	_, err := Election(h, nil, 100)
	if err == nil {
		t.Fatal("expected an error with zero candidates")
	}
}
