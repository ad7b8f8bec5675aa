package detect

import (
	"fmt"
	"sort"

	"github.com/rawblock/aml-network-engine/internal/graph"
	"github.com/rawblock/aml-network-engine/pkg/models"
)

// Structured Output Builder
//
// Folds the per-account flags, risk entries, and ring ownership into the
// investigator-facing report: suspicious accounts (score > 0) with their
// detected pattern labels and owning ring, plus the run summary.

// cycleLabelBound caps the simple-cycle search used for labeling. Slightly
// wider than the detector's depth bound so component-merged cycles still
// get a concrete length.
const cycleLabelBound = 6

// buildSuspiciousAccounts derives the sorted suspicious-account list.
// Sort order: suspicion score descending, account id ascending on ties —
// the secondary key keeps equal-score output stable across runs.
func buildSuspiciousAccounts(g *graph.Graph, flags models.FlagSet, entries []models.RiskEntry, ringOf map[string]string) []models.SuspiciousAccount {
	cycleSub := g.Subgraph(flags.Cycles)

	accounts := make([]models.SuspiciousAccount, 0)
	for _, entry := range entries {
		if entry.Score <= 0 {
			continue
		}
		accounts = append(accounts, models.SuspiciousAccount{
			AccountID:        entry.AccountID,
			SuspicionScore:   float64(entry.Score),
			DetectedPatterns: detectedPatterns(entry.AccountID, flags, cycleSub),
			RingID:           ringOf[entry.AccountID],
		})
	}

	sort.SliceStable(accounts, func(i, j int) bool {
		if accounts[i].SuspicionScore != accounts[j].SuspicionScore {
			return accounts[i].SuspicionScore > accounts[j].SuspicionScore
		}
		return accounts[i].AccountID < accounts[j].AccountID
	})
	return accounts
}

// detectedPatterns assembles the ordered, deduplicated pattern labels for
// one account: cycle label first, then velocity labels, then shell.
func detectedPatterns(account string, flags models.FlagSet, cycleSub *graph.Graph) []string {
	var patterns []string

	if flags.Cycles.Has(account) {
		if n := cycleSub.ShortestCycleThrough(account, cycleLabelBound); n > 0 {
			patterns = append(patterns, fmt.Sprintf("cycle_length_%d", n))
		} else {
			// Flagged via a path whose closing cycle fell outside the
			// induced subgraph bound.
			patterns = append(patterns, "cycle")
		}
	}
	if flags.FanIn.Has(account) {
		patterns = append(patterns, "high_velocity", "fan_in_aggregator")
	}
	if flags.FanOut.Has(account) {
		patterns = append(patterns, "high_velocity", "fan_out_disperser")
	}
	if flags.Shells.Has(account) {
		patterns = append(patterns, "shell_layer")
	}

	return dedupKeepFirst(patterns)
}

// dedupKeepFirst removes duplicates preserving first occurrence.
func dedupKeepFirst(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// buildStats derives the dashboard counters from the run artifacts.
func buildStats(g *graph.Graph, txCount int, flags models.FlagSet, entries []models.RiskEntry) models.ReportStats {
	stats := models.ReportStats{
		TotalNodes:        g.NodeCount(),
		TotalEdges:        g.EdgeCount(),
		TotalTransactions: txCount,
		CyclesDetected:    len(flags.Cycles),
		FanInDetected:     len(flags.FanIn),
		FanOutDetected:    len(flags.FanOut),
		ShellsDetected:    len(flags.Shells),
	}
	for _, e := range entries {
		switch e.RiskLevel {
		case models.RiskLevelHigh:
			stats.HighRiskCount++
		case models.RiskLevelMedium:
			stats.MediumRiskCount++
		}
	}
	return stats
}

// BuildGraphPayload produces the serializable network view: every account
// with its risk verdict and every deduplicated edge, with match markers
// from an optional isomorphism result.
func BuildGraphPayload(g *graph.Graph, entries []models.RiskEntry, match *models.IsomorphismResult) models.GraphPayload {
	matchNodes := models.NewStringSet()
	matchEdges := make(map[[2]string]struct{})
	if match != nil {
		matchNodes = models.NewStringSet(match.MatchNodes...)
		for _, e := range match.MatchEdges {
			matchEdges[e] = struct{}{}
		}
	}

	byAccount := make(map[string]models.RiskEntry, len(entries))
	for _, e := range entries {
		byAccount[e.AccountID] = e
	}

	payload := models.GraphPayload{
		Nodes: make([]models.GraphNode, 0, g.NodeCount()),
		Links: make([]models.GraphLink, 0, g.EdgeCount()),
	}
	for _, id := range g.Nodes() {
		entry, ok := byAccount[id]
		if !ok {
			entry = models.RiskEntry{AccountID: id, RiskLevel: models.RiskLevelLow, Reasons: "Normal"}
		}
		isMatch := 0
		if matchNodes.Has(id) {
			isMatch = 1
		}
		payload.Nodes = append(payload.Nodes, models.GraphNode{
			ID:        id,
			Score:     entry.Score,
			RiskLevel: entry.RiskLevel,
			Reasons:   entry.Reasons,
			IsMatch:   isMatch,
		})
	}
	for _, edge := range g.Edges() {
		isMatch := 0
		if _, ok := matchEdges[edge]; ok {
			isMatch = 1
		}
		payload.Links = append(payload.Links, models.GraphLink{
			Source:  edge[0],
			Target:  edge[1],
			IsMatch: isMatch,
		})
	}
	return payload
}
