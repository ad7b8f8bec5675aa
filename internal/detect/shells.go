package detect

import (
	"github.com/rawblock/aml-network-engine/internal/graph"
	"github.com/rawblock/aml-network-engine/pkg/models"
)

// Layered Shell Detection
//
// Shell accounts are near-dormant pass-throughs: an account that appears
// in only 2-3 transactions total (as sender or receiver) and forwards to
// another equally quiet account is the signature of a layering chain.
//
// Each candidate is checked independently: a candidate with at least one
// successor inside the candidate set flags itself and those successors.
// Longer chains accumulate flags across the per-candidate sweep rather
// than through explicit chain-following. Candidates are visited in
// sorted order so chain propagation is identical on every run.

const (
	shellMinActivity = 2
	shellMaxActivity = 3
)

// detectShells populates flags.Shells from per-account activity counts
// and candidate-to-candidate edges.
func detectShells(txs []models.Transaction, g *graph.Graph, flags models.FlagSet) {
	activity := make(map[string]int)
	for _, tx := range txs {
		activity[tx.SenderID]++
		activity[tx.ReceiverID]++
	}

	candidates := models.NewStringSet()
	for account, count := range activity {
		if count >= shellMinActivity && count <= shellMaxActivity {
			candidates.Add(account)
		}
	}

	for _, account := range candidates.Members() {
		if !g.HasNode(account) {
			continue
		}
		for _, next := range g.Successors(account) {
			if candidates.Has(next) {
				flags.Shells.Add(account)
				flags.Shells.Add(next)
			}
		}
	}
}
