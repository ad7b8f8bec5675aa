package detect

import (
	"reflect"
	"testing"

	"github.com/rawblock/aml-network-engine/internal/graph"
	"github.com/rawblock/aml-network-engine/pkg/models"
)

func TestAssembleRings_CycleComponentBecomesRing(t *testing.T) {
	g := graphFromEdges([][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}})
	flags := models.NewFlagSet()
	detectCycles(g, flags)
	entries := scoreAccounts(g, flags)

	rings, ringOf := assembleRings(g, flags, entries)

	if len(rings) != 1 {
		t.Fatalf("Expected 1 cycle ring, got %d", len(rings))
	}
	ring := rings[0]
	if ring.RingID != "RING_001" {
		t.Errorf("Expected sequential id RING_001, got %s", ring.RingID)
	}
	if ring.PatternType != models.PatternCycle {
		t.Errorf("Expected pattern cycle, got %s", ring.PatternType)
	}
	if !reflect.DeepEqual(ring.MemberAccounts, []string{"A", "B", "C"}) {
		t.Errorf("Expected sorted members [A B C], got %v", ring.MemberAccounts)
	}
	// All three members score 40 → mean 40.0
	if ring.RiskScore != 40.0 {
		t.Errorf("Expected mean risk 40.0, got %.1f", ring.RiskScore)
	}
	for _, m := range ring.MemberAccounts {
		if ringOf[m] != "RING_001" {
			t.Errorf("Member %s not mapped to the ring", m)
		}
	}
}

func TestAssembleRings_FanInClusterNeedsThreeMembers(t *testing.T) {
	g := graphFromEdges([][2]string{{"p1", "agg"}, {"p2", "agg"}})
	flags := models.NewFlagSet()
	flags.FanIn.Add("agg")
	entries := scoreAccounts(g, flags)

	rings, _ := assembleRings(g, flags, entries)

	if len(rings) != 1 {
		t.Fatalf("Expected 1 fan_in ring (agg + 2 predecessors), got %d", len(rings))
	}
	if rings[0].PatternType != models.PatternFanIn {
		t.Errorf("Expected fan_in, got %s", rings[0].PatternType)
	}
	if !reflect.DeepEqual(rings[0].MemberAccounts, []string{"agg", "p1", "p2"}) {
		t.Errorf("Unexpected members %v", rings[0].MemberAccounts)
	}
}

func TestAssembleRings_FanInTooSmallSkipped(t *testing.T) {
	g := graphFromEdges([][2]string{{"p1", "agg"}})
	flags := models.NewFlagSet()
	flags.FanIn.Add("agg")
	entries := scoreAccounts(g, flags)

	rings, _ := assembleRings(g, flags, entries)

	if len(rings) != 0 {
		t.Errorf("Cluster of 2 is below the fan ring minimum of 3, got %d rings", len(rings))
	}
}

func TestAssembleRings_CyclePrecedenceOverFanIn(t *testing.T) {
	// agg is both cycle-flagged and fan_in-flagged. The cycle ring claims
	// it first; the fan_in pass must then skip it as aggregator.
	g := graphFromEdges([][2]string{
		{"agg", "B"}, {"B", "C"}, {"C", "agg"},
		{"p1", "agg"}, {"p2", "agg"},
	})
	flags := models.NewFlagSet()
	detectCycles(g, flags)
	flags.FanIn.Add("agg")
	entries := scoreAccounts(g, flags)

	rings, ringOf := assembleRings(g, flags, entries)

	if len(rings) != 1 {
		t.Fatalf("Expected only the cycle ring, got %d rings", len(rings))
	}
	if rings[0].PatternType != models.PatternCycle {
		t.Errorf("Account flagged cycle+fan_in must land in a cycle ring, got %s", rings[0].PatternType)
	}
	if ringOf["agg"] != rings[0].RingID {
		t.Errorf("agg must stay owned by the cycle ring")
	}
}

func TestAssembleRings_ClaimedMemberKeepsPriorRing(t *testing.T) {
	// B is in a cycle ring; it is also a predecessor of the fan_in
	// aggregator. The fan ring lists B but does not re-claim it.
	g := graphFromEdges([][2]string{
		{"A", "B"}, {"B", "C"}, {"C", "A"},
		{"B", "agg"}, {"p1", "agg"}, {"p2", "agg"},
	})
	flags := models.NewFlagSet()
	detectCycles(g, flags)
	flags.FanIn.Add("agg")
	entries := scoreAccounts(g, flags)

	rings, ringOf := assembleRings(g, flags, entries)

	if len(rings) != 2 {
		t.Fatalf("Expected cycle ring + fan_in ring, got %d", len(rings))
	}
	cycleRing, fanRing := rings[0], rings[1]
	if ringOf["B"] != cycleRing.RingID {
		t.Errorf("B must keep its cycle-ring ownership, got %s", ringOf["B"])
	}
	found := false
	for _, m := range fanRing.MemberAccounts {
		if m == "B" {
			found = true
		}
	}
	if !found {
		t.Error("Fan ring roster must still list the already-claimed predecessor B")
	}
	if ringOf["agg"] != fanRing.RingID || ringOf["p1"] != fanRing.RingID {
		t.Error("Unclaimed cluster members must map to the fan ring")
	}
}

func TestAssembleRings_ShellComponentLowestPrecedence(t *testing.T) {
	g := graphFromEdges([][2]string{{"s1", "s2"}, {"x", "s1"}, {"s2", "y"}})
	flags := models.NewFlagSet()
	flags.Shells.Add("s1")
	flags.Shells.Add("s2")
	entries := scoreAccounts(g, flags)

	rings, _ := assembleRings(g, flags, entries)

	if len(rings) != 1 {
		t.Fatalf("Expected 1 shell ring, got %d", len(rings))
	}
	if rings[0].PatternType != models.PatternShellLayering {
		t.Errorf("Expected shell_layering, got %s", rings[0].PatternType)
	}
	// Both members score 25 → mean 25.0
	if rings[0].RiskScore != 25.0 {
		t.Errorf("Expected mean 25.0, got %.1f", rings[0].RiskScore)
	}
}

func TestAssembleRings_EveryRingHasAtLeastTwoMembers(t *testing.T) {
	// Isolated cycle-flagged node (flag without companions) forms no ring.
	g := graph.New()
	g.AddEdge("lonely", "other")
	flags := models.NewFlagSet()
	flags.Cycles.Add("lonely")
	entries := scoreAccounts(g, flags)

	rings, _ := assembleRings(g, flags, entries)

	for _, r := range rings {
		if len(r.MemberAccounts) < 2 {
			t.Errorf("Ring %s has %d members, minimum is 2", r.RingID, len(r.MemberAccounts))
		}
	}
	if len(rings) != 0 {
		t.Errorf("Single-member component must not form a ring, got %d rings", len(rings))
	}
}

func TestAssembleRings_MeanScoreOneDecimal(t *testing.T) {
	// Cycle members A,B,C where A additionally fan_out-flagged:
	// scores 75,40,40 → mean 51.666… → 51.7
	g := graphFromEdges([][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}})
	flags := models.NewFlagSet()
	detectCycles(g, flags)
	flags.FanOut.Add("A")
	entries := scoreAccounts(g, flags)

	rings, _ := assembleRings(g, flags, entries)

	if len(rings) != 1 {
		t.Fatalf("Expected 1 ring, got %d", len(rings))
	}
	if rings[0].RiskScore != 51.7 {
		t.Errorf("Expected mean 51.7, got %.2f", rings[0].RiskScore)
	}
}
