package detect

import (
	"strings"

	"github.com/rawblock/aml-network-engine/internal/graph"
	"github.com/rawblock/aml-network-engine/pkg/models"
)

// Risk Scoring
//
// Pure additive scoring over the four pattern flags, capped at 100:
//
//   cycle    +40   (round-tripping is the strongest signal)
//   fan_in   +35
//   fan_out  +35
//   shell    +25
//
// Levels: High >= 40, Medium for any non-zero score below 40, Low at 0.
// Reasons are assembled in fixed category order so identical inputs
// always produce identical audit text.

const (
	cycleWeight  = 40
	fanInWeight  = 35
	fanOutWeight = 35
	shellWeight  = 25

	highRiskThreshold = 40
)

// scoreAccounts produces one RiskEntry per graph node, in node order.
// Unflagged accounts score 0 with reason "Normal".
func scoreAccounts(g *graph.Graph, flags models.FlagSet) []models.RiskEntry {
	nodes := g.Nodes()
	entries := make([]models.RiskEntry, 0, len(nodes))

	for _, account := range nodes {
		score := 0
		var reasons []string

		if flags.Cycles.Has(account) {
			score += cycleWeight
			reasons = append(reasons, "Cycle (Ring)")
		}
		if flags.FanIn.Has(account) {
			score += fanInWeight
			reasons = append(reasons, "Fan-in (Aggregator)")
		}
		if flags.FanOut.Has(account) {
			score += fanOutWeight
			reasons = append(reasons, "Fan-out (Disperser)")
		}
		if flags.Shells.Has(account) {
			score += shellWeight
			reasons = append(reasons, "Shell Layer")
		}

		if score > 100 {
			score = 100
		}

		reasonText := "Normal"
		if len(reasons) > 0 {
			reasonText = strings.Join(reasons, ", ")
		}

		entries = append(entries, models.RiskEntry{
			AccountID: account,
			Score:     score,
			RiskLevel: riskLevel(score),
			Reasons:   reasonText,
		})
	}
	return entries
}

// riskLevel maps a score to its tier.
func riskLevel(score int) string {
	switch {
	case score >= highRiskThreshold:
		return models.RiskLevelHigh
	case score > 0:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}
