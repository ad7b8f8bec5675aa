package isomorph

import (
	"sort"

	"github.com/rawblock/aml-network-engine/internal/graph"
)

// Exact Directed Graph Isomorphism (backtracking matcher)
//
// Decides whether two directed graphs admit a structure-preserving node
// bijection: f maps edges to edges and non-edges to non-edges, in both
// directions. The algorithm is the classic candidate-pair backtracker:
//
//   1. Cheap rejections first (node count, edge count, degree sequences)
//   2. Order pattern nodes most-constrained-first (highest degree)
//   3. Extend a partial mapping one pair at a time, checking consistency
//      against every already-mapped neighbor, undoing on dead ends
//
// Worst case is exponential in node count. Callers are expected to
// pre-filter candidates so the matcher only sees small, plausible pairs;
// long-running searches are cancelled one level up.
//
// The matcher is deliberately a standalone unit behind the Matcher
// interface so a faster algorithm (e.g. full VF2 with look-ahead) can be
// swapped in without touching the clone search.

// Matcher decides exact isomorphism between two directed graphs.
type Matcher interface {
	Isomorphic(a, b *graph.Graph) bool
}

// BacktrackingMatcher is the default exact matcher.
type BacktrackingMatcher struct{}

// NewBacktrackingMatcher returns the default matcher.
func NewBacktrackingMatcher() *BacktrackingMatcher {
	return &BacktrackingMatcher{}
}

// Isomorphic reports whether a and b are isomorphic as directed graphs.
func (m *BacktrackingMatcher) Isomorphic(a, b *graph.Graph) bool {
	if a.NodeCount() != b.NodeCount() || a.EdgeCount() != b.EdgeCount() {
		return false
	}
	if a.NodeCount() == 0 {
		return true
	}
	if !sameDegreeSequences(a, b) {
		return false
	}

	s := &matchState{
		a:       a,
		b:       b,
		aNodes:  orderByConstraint(a),
		mapping: make(map[string]string, a.NodeCount()),
		used:    make(map[string]struct{}, b.NodeCount()),
	}
	return s.extend(0)
}

type matchState struct {
	a, b    *graph.Graph
	aNodes  []string          // pattern nodes, most-constrained-first
	mapping map[string]string // a node → b node
	used    map[string]struct{}
}

// extend tries to map aNodes[idx] onto every compatible unused b node.
func (s *matchState) extend(idx int) bool {
	if idx == len(s.aNodes) {
		return true
	}
	an := s.aNodes[idx]

	for _, bn := range s.b.Nodes() {
		if _, taken := s.used[bn]; taken {
			continue
		}
		if !s.compatible(an, bn) {
			continue
		}
		s.mapping[an] = bn
		s.used[bn] = struct{}{}
		if s.extend(idx + 1) {
			return true
		}
		delete(s.mapping, an)
		delete(s.used, bn)
	}
	return false
}

// compatible checks degree equality and edge consistency of the pair
// (an, bn) against every already-mapped node.
func (s *matchState) compatible(an, bn string) bool {
	if s.a.InDegree(an) != s.b.InDegree(bn) || s.a.OutDegree(an) != s.b.OutDegree(bn) {
		return false
	}
	for mappedA, mappedB := range s.mapping {
		if s.a.HasEdge(an, mappedA) != s.b.HasEdge(bn, mappedB) {
			return false
		}
		if s.a.HasEdge(mappedA, an) != s.b.HasEdge(mappedB, bn) {
			return false
		}
	}
	return true
}

// sameDegreeSequences compares the sorted (in, out) degree multisets.
func sameDegreeSequences(a, b *graph.Graph) bool {
	return degreeSequence(a) == degreeSequence(b)
}

type degreePair struct{ in, out int }

func degreeSequence(g *graph.Graph) string {
	pairs := make([]degreePair, 0, g.NodeCount())
	for _, id := range g.Nodes() {
		pairs = append(pairs, degreePair{g.InDegree(id), g.OutDegree(id)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].in != pairs[j].in {
			return pairs[i].in < pairs[j].in
		}
		return pairs[i].out < pairs[j].out
	})
	buf := make([]byte, 0, len(pairs)*4)
	for _, p := range pairs {
		buf = append(buf, byte(p.in), byte(p.in>>8), byte(p.out), byte(p.out>>8))
	}
	return string(buf)
}

// orderByConstraint returns the pattern nodes sorted by total degree
// descending (id ascending on ties) so the backtracker binds the most
// constrained nodes first.
func orderByConstraint(g *graph.Graph) []string {
	nodes := g.Nodes()
	sort.SliceStable(nodes, func(i, j int) bool {
		di := g.InDegree(nodes[i]) + g.OutDegree(nodes[i])
		dj := g.InDegree(nodes[j]) + g.OutDegree(nodes[j])
		if di != dj {
			return di > dj
		}
		return nodes[i] < nodes[j]
	})
	return nodes
}
