package detect

import (
	"github.com/rawblock/aml-network-engine/internal/graph"
	"github.com/rawblock/aml-network-engine/pkg/models"
)

// Cycle Detection (layered round-tripping)
//
// Funds that leave an account and return to it through 3-5 intermediaries
// are the classic laundering loop. Cycles of length 1-2 (self-transfers,
// simple back-and-forth) are deliberately not treated as suspicious.
//
// Search strategy: per start node, a bounded depth-first search over
// simple paths using an explicit stack of (node, path-set, depth) states.
// The first cycle found through a start node flags every node on that
// path and terminates the search for that root — no enumeration of all
// cycles. Nodes already flagged are skipped as an optimization; any
// cycle through them was recorded when it was first discovered.

const (
	cycleMinDepth = 3
	cycleMaxDepth = 5
)

type cycleSearchState struct {
	current string
	onPath  models.StringSet
	depth   int
}

// detectCycles populates flags.Cycles with every node on the first
// bounded cycle discovered through each start node.
func detectCycles(g *graph.Graph, flags models.FlagSet) {
	for _, start := range g.Nodes() {
		if flags.Cycles.Has(start) {
			continue
		}
		if path, found := findCycleFrom(g, start); found {
			for _, id := range path.Members() {
				flags.Cycles.Add(id)
			}
		}
	}
}

// findCycleFrom runs the per-root search state machine: Exploring until a
// successor closes back to start at depth >= 3 (terminal: cycle found) or
// the stack drains (terminal: no cycle).
func findCycleFrom(g *graph.Graph, start string) (models.StringSet, bool) {
	stack := []cycleSearchState{{
		current: start,
		onPath:  models.NewStringSet(start),
		depth:   1,
	}}

	for len(stack) > 0 {
		st := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, next := range g.Successors(st.current) {
			if next == start && st.depth >= cycleMinDepth {
				return st.onPath, true
			}
			if !st.onPath.Has(next) && st.depth < cycleMaxDepth {
				extended := models.NewStringSet(st.onPath.Members()...)
				extended.Add(next)
				stack = append(stack, cycleSearchState{
					current: next,
					onPath:  extended,
					depth:   st.depth + 1,
				})
			}
		}
	}
	return nil, false
}
