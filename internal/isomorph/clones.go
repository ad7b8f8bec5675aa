// Package isomorph finds structural clones: sub-networks elsewhere in the
// account graph whose connection pattern exactly matches a target node's
// neighborhood. Mule herds and franchise-style laundering setups reuse
// the same wiring with different account ids; exact isomorphism over ego
// networks surfaces them.
package isomorph

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/rawblock/aml-network-engine/internal/graph"
	"github.com/rawblock/aml-network-engine/pkg/models"
)

// CloneSearch runs ego-network isomorphism queries over a built graph.
type CloneSearch struct {
	matcher Matcher
	logger  *zap.Logger
}

// NewCloneSearch returns a search using the default backtracking matcher.
func NewCloneSearch(logger *zap.Logger) *CloneSearch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloneSearch{matcher: NewBacktrackingMatcher(), logger: logger}
}

// WithMatcher swaps in an alternative isomorphism algorithm.
func (cs *CloneSearch) WithMatcher(m Matcher) *CloneSearch {
	cs.matcher = m
	return cs
}

// FindStructuralClones locates every node whose ego network at the given
// hop radius is isomorphic to the target's, and returns the union of all
// matching nodes and edges (the target's own ego network always matches).
//
// A target absent from the graph is a non-fatal empty result. The search
// has no intrinsic size bound; ctx cancellation is checked between
// candidates so callers can impose a time budget on the exponential
// worst case.
func (cs *CloneSearch) FindStructuralClones(ctx context.Context, g *graph.Graph, targetNode string, hops int) (models.IsomorphismResult, error) {
	empty := models.IsomorphismResult{
		MatchNodes: []string{},
		MatchEdges: [][2]string{},
	}

	if hops < 1 {
		hops = 1
	}
	if !g.HasNode(targetNode) {
		cs.logger.Warn("isomorphism target not found",
			zap.String("target_node", targetNode))
		return empty, nil
	}

	reference := g.EgoNetwork(targetNode, hops)
	refSize := reference.NodeCount()

	cs.logger.Info("isomorphism search start",
		zap.String("target_node", targetNode),
		zap.Int("hops", hops),
		zap.Int("reference_size", refSize),
		zap.Int("graph_nodes", g.NodeCount()))

	targetIn := g.InDegree(targetNode)
	targetOut := g.OutDegree(targetNode)

	matchNodes := models.NewStringSet()
	matchEdges := make(map[[2]string]struct{})

	for _, candidate := range g.Nodes() {
		if err := ctx.Err(); err != nil {
			cs.logger.Warn("isomorphism search cancelled",
				zap.String("target_node", targetNode),
				zap.Error(err))
			return empty, err
		}

		// Cheap necessary filter: the candidate center must mirror the
		// target's exact in/out degree before we pay for extraction.
		if g.InDegree(candidate) != targetIn || g.OutDegree(candidate) != targetOut {
			continue
		}

		ego := g.EgoNetwork(candidate, hops)
		if ego.NodeCount() != refSize {
			continue
		}

		if cs.matcher.Isomorphic(reference, ego) {
			for _, id := range ego.Nodes() {
				matchNodes.Add(id)
			}
			for _, e := range ego.Edges() {
				matchEdges[e] = struct{}{}
			}
		}
	}

	result := models.IsomorphismResult{
		MatchNodes: matchNodes.Members(),
		MatchEdges: sortEdges(matchEdges),
	}
	result.MatchCount = len(result.MatchNodes)

	cs.logger.Info("isomorphism search complete",
		zap.Int("match_nodes", len(result.MatchNodes)),
		zap.Int("match_edges", len(result.MatchEdges)))
	return result, nil
}

func sortEdges(set map[[2]string]struct{}) [][2]string {
	out := make([][2]string, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}
