package detect

import (
	"fmt"
	"math"

	"github.com/rawblock/aml-network-engine/internal/graph"
	"github.com/rawblock/aml-network-engine/pkg/models"
)

// Fraud Ring Assembly
//
// Clusters flagged accounts into named rings with strict category
// precedence: cycle > fan_in > fan_out > shell_layering. An account is
// claimed by exactly one ring — the first category to claim it wins and
// the claim is never revisited. All assembly state (the sequential ring
// counter and the account→ring map) lives in a local accumulator that is
// threaded through the four passes; nothing is shared or global.

// ringAccumulator carries assembly state across the four precedence passes.
type ringAccumulator struct {
	counter   int
	rings     []models.FraudRing
	byAccount map[string]string // account id → owning ring id
}

func newRingAccumulator() *ringAccumulator {
	return &ringAccumulator{byAccount: make(map[string]string)}
}

// nextRingID advances the sequential counter: RING_001, RING_002, ...
func (acc *ringAccumulator) nextRingID() string {
	acc.counter++
	return fmt.Sprintf("RING_%03d", acc.counter)
}

// addRing appends a ring over members (sorted) and maps every member not
// yet claimed by an earlier ring to it.
func (acc *ringAccumulator) addRing(members []string, patternType string, scores map[string]int) {
	ringID := acc.nextRingID()
	acc.rings = append(acc.rings, models.FraudRing{
		RingID:         ringID,
		MemberAccounts: members,
		PatternType:    patternType,
		RiskScore:      meanScore(members, scores),
	})
	for _, m := range members {
		if _, claimed := acc.byAccount[m]; !claimed {
			acc.byAccount[m] = ringID
		}
	}
}

// assembleRings runs the four precedence passes and returns the rings plus
// the account→ring ownership map.
func assembleRings(g *graph.Graph, flags models.FlagSet, entries []models.RiskEntry) ([]models.FraudRing, map[string]string) {
	scores := make(map[string]int, len(entries))
	for _, e := range entries {
		scores[e.AccountID] = e.Score
	}

	acc := newRingAccumulator()

	// 1. Cycle rings: weakly connected components of the cycle-induced
	//    subgraph. Direction is ignored for connectivity only.
	if len(flags.Cycles) > 0 {
		for _, comp := range g.Subgraph(flags.Cycles).WeaklyConnectedComponents() {
			if len(comp) >= 2 {
				acc.addRing(comp.Members(), models.PatternCycle, scores)
			}
		}
	}

	// 2. Fan-in rings: aggregator plus its direct senders, smallest
	//    aggregator id first. The aggregator must be unclaimed; members
	//    already owned (e.g. by a cycle ring) stay with their prior ring
	//    but still count toward this ring's roster and mean score.
	for _, aggregator := range flags.FanIn.Members() {
		cluster := models.NewStringSet(aggregator)
		for _, p := range g.Predecessors(aggregator) {
			cluster.Add(p)
		}
		if _, claimed := acc.byAccount[aggregator]; len(cluster) >= 3 && !claimed {
			acc.addRing(cluster.Members(), models.PatternFanIn, scores)
		}
	}

	// 3. Fan-out rings: symmetric over successors.
	for _, disperser := range flags.FanOut.Members() {
		cluster := models.NewStringSet(disperser)
		for _, s := range g.Successors(disperser) {
			cluster.Add(s)
		}
		if _, claimed := acc.byAccount[disperser]; len(cluster) >= 3 && !claimed {
			acc.addRing(cluster.Members(), models.PatternFanOut, scores)
		}
	}

	// 4. Shell rings: weakly connected components of the shell-induced
	//    subgraph. Lowest precedence.
	if len(flags.Shells) > 0 {
		for _, comp := range g.Subgraph(flags.Shells).WeaklyConnectedComponents() {
			if len(comp) >= 2 {
				acc.addRing(comp.Members(), models.PatternShellLayering, scores)
			}
		}
	}

	return acc.rings, acc.byAccount
}

// meanScore returns the mean member risk score rounded to 1 decimal.
func meanScore(members []string, scores map[string]int) float64 {
	if len(members) == 0 {
		return 0.0
	}
	total := 0
	for _, m := range members {
		total += scores[m]
	}
	return math.Round(float64(total)/float64(len(members))*10) / 10
}
