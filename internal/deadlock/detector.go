// Package deadlock implements the wait-for graph cycle detector described
// in spec §4.2: build an edge waiter -> holder for every lock, DFS with
// three-colour marking, canonicalize and dedupe discovered cycles, then
// report the resources linking each cycle's members.
package deadlock

import (
	"math/rand"
	"sort"

	"github.com/meshfabric/commhub/internal/locktable"
)

// Info describes one discovered cycle.
type Info struct {
	Cycle     []string // addresses in the cycle
	Resources []string // resources linking cycle members
}

type color int

const (
	white color = iota
	grey
	black
)

// Detect runs one DFS pass over the lock table's current wait-for graph
// and returns every unique cycle found.
func Detect(snapshot []locktable.Snapshot) []Info {
	// edges: waiter -> holder, derived from every (resource, holder, waiter) triple.
	edges := make(map[string][]string) // waiter -> holders it is blocked on
	holderOf := make(map[string]map[string]string) // waiter -> holder -> resource
	nodes := make(map[string]bool)

	for _, s := range snapshot {
		nodes[s.Holder] = true
		for _, w := range s.Waiters {
			nodes[w] = true
			edges[w] = append(edges[w], s.Holder)
			if holderOf[w] == nil {
				holderOf[w] = make(map[string]string)
			}
			holderOf[w][s.Holder] = s.Resource
		}
	}

	colors := make(map[string]color, len(nodes))
	var stack []string
	var cycles []Info
	seen := make(map[string]bool)

	var roots []string
	for n := range nodes {
		roots = append(roots, n)
	}
	sort.Strings(roots)

	var dfs func(node string)
	dfs = func(node string) {
		colors[node] = grey
		stack = append(stack, node)

		nexts := append([]string(nil), edges[node]...)
		sort.Strings(nexts)

		for _, next := range nexts {
			switch colors[next] {
			case white:
				dfs(next)
			case grey:
				cycle := extractCycle(stack, next)
				key := canonicalKey(cycle)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, Info{
						Cycle:     cycle,
						Resources: resourcesLinking(cycle, holderOf),
					})
				}
			case black:
				// already fully explored, no new cycle through it
			}
		}

		stack = stack[:len(stack)-1]
		colors[node] = black
	}

	for _, root := range roots {
		if colors[root] == white {
			dfs(root)
		}
	}

	return cycles
}

// extractCycle walks the DFS stack back from its top to the grey node
// where the cycle closes.
func extractCycle(stack []string, closeAt string) []string {
	idx := -1
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == closeAt {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	cycle := make([]string, len(stack)-idx)
	copy(cycle, stack[idx:])
	return cycle
}

// canonicalKey produces a dedupe key independent of which root
// discovered the cycle or rotation within it.
func canonicalKey(cycle []string) string {
	sorted := append([]string(nil), cycle...)
	sort.Strings(sorted)
	key := ""
	for _, s := range sorted {
		key += s + "|"
	}
	return key
}

// resourcesLinking finds every resource where a cycle member holds and
// another cycle member waits (spec step 3).
func resourcesLinking(cycle []string, holderOf map[string]map[string]string) []string {
	inCycle := make(map[string]bool, len(cycle))
	for _, c := range cycle {
		inCycle[c] = true
	}

	seen := make(map[string]bool)
	var resources []string
	for _, waiter := range cycle {
		for holder, resource := range holderOf[waiter] {
			if inCycle[holder] && !seen[resource] {
				seen[resource] = true
				resources = append(resources, resource)
			}
		}
	}
	sort.Strings(resources)
	return resources
}

// Strategy selects which resource to force-release to break a cycle.
type Strategy string

const (
	Youngest      Strategy = "youngest"
	LowestPriority Strategy = "lowest-priority"
	Random        Strategy = "random"
)

// SelectVictim picks the resource to force-release for one cycle,
// according to strategy. snapshot supplies acquisition timestamps for
// the "youngest" strategy.
func SelectVictim(info Info, snapshot []locktable.Snapshot, strategy Strategy) string {
	if len(info.Resources) == 0 {
		return ""
	}

	switch strategy {
	case LowestPriority:
		sorted := append([]string(nil), info.Cycle...)
		sort.Strings(sorted)
		// Resource held by the first address in sorted cycle order.
		first := sorted[0]
		for _, s := range snapshot {
			if s.Holder == first {
				for _, r := range info.Resources {
					if r == s.Resource {
						return r
					}
				}
			}
		}
		return info.Resources[0]

	case Random:
		return info.Resources[rand.Intn(len(info.Resources))]

	case Youngest:
		fallthrough
	default:
		byResource := make(map[string]locktable.Snapshot, len(snapshot))
		for _, s := range snapshot {
			byResource[s.Resource] = s
		}
		var youngest string
		for _, r := range info.Resources {
			s, ok := byResource[r]
			if !ok {
				continue
			}
			if youngest == "" || s.AcquiredAt.After(byResource[youngest].AcquiredAt) {
				youngest = r
			}
		}
		if youngest == "" {
			return info.Resources[0]
		}
		return youngest
	}
}
