// Package detect implements the AML pattern-detection pipeline: graph
// construction, the four structural detectors (smurfing fan-in/fan-out,
// bounded cycles, layered shells), risk scoring, fraud-ring assembly,
// and the structured report.
//
// The pipeline is a pure, single-threaded computation: identical ledgers
// produce identical reports, and distinct analyses share no state. No
// detector consults transaction amounts — the signal set is strictly
// topological and temporal.
package detect

import (
	"math"
	"time"

	"github.com/rawblock/aml-network-engine/internal/graph"
	"github.com/rawblock/aml-network-engine/pkg/models"
)

// Analyze runs the full pipeline over one ledger. An empty ledger is not
// an error: it yields empty flags, no risk entries, no rings, and a
// zero-valued summary.
func Analyze(txs []models.Transaction) models.Report {
	started := time.Now()

	g := graph.Build(txs)
	flags := DetectPatterns(txs, g)
	entries := scoreAccounts(g, flags)
	rings, ringOf := assembleRings(g, flags, entries)
	if rings == nil {
		rings = []models.FraudRing{}
	}
	suspicious := buildSuspiciousAccounts(g, flags, entries, ringOf)

	elapsed := time.Since(started).Seconds()

	return models.Report{
		Flags:              flags,
		RiskEntries:        entries,
		FraudRings:         rings,
		SuspiciousAccounts: suspicious,
		Summary: models.Summary{
			TotalAccountsAnalyzed:     g.NodeCount(),
			SuspiciousAccountsFlagged: len(suspicious),
			FraudRingsDetected:        len(rings),
			ProcessingTimeSeconds:     math.Round(elapsed*100) / 100,
		},
		Stats: buildStats(g, len(txs), flags, entries),
	}
}

// DetectPatterns runs the three structural detectors over an already-built
// graph and returns the populated flag record.
func DetectPatterns(txs []models.Transaction, g *graph.Graph) models.FlagSet {
	flags := models.NewFlagSet()
	detectSmurfing(txs, flags)
	detectCycles(g, flags)
	detectShells(txs, g, flags)
	return flags
}
