package graph

import (
	"sort"

	"github.com/rawblock/aml-network-engine/pkg/models"
)

// Directed Account Graph
//
// Nodes are account-id strings. An edge a→b exists iff at least one
// transaction moved funds from a to b; multiplicity is discarded. The
// graph is built once per analysis run and is read-only afterward.
//
// Nodes are kept in insertion order so that every traversal over the same
// ledger visits accounts in the same order. Adjacency queries return
// sorted slices for the same reason: audit runs must be reproducible.

// Graph is a directed, deduplicated account graph.
type Graph struct {
	order []string // insertion order of first appearance
	succ  map[string]map[string]struct{}
	pred  map[string]map[string]struct{}
	edges int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		succ: make(map[string]map[string]struct{}),
		pred: make(map[string]map[string]struct{}),
	}
}

// Build constructs the account graph from a transaction sequence.
// An empty ledger yields a graph with zero nodes and edges.
func Build(txs []models.Transaction) *Graph {
	g := New()
	for _, tx := range txs {
		g.AddEdge(tx.SenderID, tx.ReceiverID)
	}
	return g
}

func (g *Graph) addNode(id string) {
	if _, ok := g.succ[id]; ok {
		return
	}
	g.succ[id] = make(map[string]struct{})
	g.pred[id] = make(map[string]struct{})
	g.order = append(g.order, id)
}

// AddEdge inserts the directed edge from→to, creating nodes as needed.
// Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.addNode(from)
	g.addNode(to)
	if _, ok := g.succ[from][to]; ok {
		return
	}
	g.succ[from][to] = struct{}{}
	g.pred[to][from] = struct{}{}
	g.edges++
}

// HasNode reports whether id is present in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.succ[id]
	return ok
}

// HasEdge reports whether the directed edge from→to exists.
func (g *Graph) HasEdge(from, to string) bool {
	next, ok := g.succ[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Nodes returns all node ids in insertion order. The returned slice is a copy.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.order) }

// EdgeCount returns the number of distinct directed edges.
func (g *Graph) EdgeCount() int { return g.edges }

// Edges returns every directed edge as (source, target), ordered by source
// insertion order and sorted target.
func (g *Graph) Edges() [][2]string {
	out := make([][2]string, 0, g.edges)
	for _, from := range g.order {
		for _, to := range sortedKeys(g.succ[from]) {
			out = append(out, [2]string{from, to})
		}
	}
	return out
}

// Successors returns the sorted out-neighbors of id.
func (g *Graph) Successors(id string) []string {
	return sortedKeys(g.succ[id])
}

// Predecessors returns the sorted in-neighbors of id.
func (g *Graph) Predecessors(id string) []string {
	return sortedKeys(g.pred[id])
}

// OutDegree returns the number of distinct out-neighbors of id.
func (g *Graph) OutDegree(id string) int { return len(g.succ[id]) }

// InDegree returns the number of distinct in-neighbors of id.
func (g *Graph) InDegree(id string) int { return len(g.pred[id]) }

// Subgraph returns the subgraph induced by keep: the kept nodes plus every
// edge whose endpoints are both kept.
func (g *Graph) Subgraph(keep models.StringSet) *Graph {
	sub := New()
	for _, id := range g.order {
		if keep.Has(id) {
			sub.addNode(id)
		}
	}
	for _, from := range sub.order {
		for to := range g.succ[from] {
			if keep.Has(to) {
				sub.AddEdge(from, to)
			}
		}
	}
	return sub
}

// EgoNetwork returns the subgraph induced by every node reachable from
// center within radius hops, treating edges as undirected for reachability.
// Edge directions are retained in the result. A center absent from the
// graph yields an empty graph.
func (g *Graph) EgoNetwork(center string, radius int) *Graph {
	if !g.HasNode(center) {
		return New()
	}

	reach := models.NewStringSet(center)
	frontier := []string{center}
	for hop := 0; hop < radius && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for nb := range g.succ[id] {
				if !reach.Has(nb) {
					reach.Add(nb)
					next = append(next, nb)
				}
			}
			for nb := range g.pred[id] {
				if !reach.Has(nb) {
					reach.Add(nb)
					next = append(next, nb)
				}
			}
		}
		frontier = next
	}

	return g.Subgraph(reach)
}

// WeaklyConnectedComponents returns the node sets of every weakly connected
// component (edge direction ignored for connectivity). Components are
// emitted in node insertion order of their first-seen member.
func (g *Graph) WeaklyConnectedComponents() []models.StringSet {
	seen := make(map[string]struct{}, len(g.order))
	var comps []models.StringSet

	for _, start := range g.order {
		if _, done := seen[start]; done {
			continue
		}
		comp := models.NewStringSet()
		stack := []string{start}
		seen[start] = struct{}{}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp.Add(id)
			for nb := range g.succ[id] {
				if _, done := seen[nb]; !done {
					seen[nb] = struct{}{}
					stack = append(stack, nb)
				}
			}
			for nb := range g.pred[id] {
				if _, done := seen[nb]; !done {
					seen[nb] = struct{}{}
					stack = append(stack, nb)
				}
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

// ShortestCycleThrough returns the length of the shortest directed simple
// cycle through node with length <= maxLen, or 0 if none exists. Used to
// label cycle-flagged accounts with a concrete cycle length.
func (g *Graph) ShortestCycleThrough(node string, maxLen int) int {
	if !g.HasNode(node) {
		return 0
	}

	// BFS over simple paths starting at node; the first path that returns
	// to node is a shortest cycle through it.
	type state struct {
		current string
		depth   int
		onPath  models.StringSet
	}
	queue := []state{{current: node, depth: 0, onPath: models.NewStringSet(node)}}

	for len(queue) > 0 {
		st := queue[0]
		queue = queue[1:]
		for _, nb := range g.Successors(st.current) {
			if nb == node {
				return st.depth + 1
			}
			if st.onPath.Has(nb) || st.depth+1 >= maxLen {
				continue
			}
			next := models.NewStringSet(st.onPath.Members()...)
			next.Add(nb)
			queue = append(queue, state{current: nb, depth: st.depth + 1, onPath: next})
		}
	}
	return 0
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
