package graph

import (
	"reflect"
	"testing"

	"github.com/rawblock/aml-network-engine/pkg/models"
)

func TestBuild_DeduplicatesEdges(t *testing.T) {
	txs := []models.Transaction{
		{SenderID: "A", ReceiverID: "B"},
		{SenderID: "A", ReceiverID: "B"}, // duplicate movement
		{SenderID: "B", ReceiverID: "C"},
	}

	g := Build(txs)

	if g.NodeCount() != 3 {
		t.Errorf("Expected 3 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 2 {
		t.Errorf("Expected 2 deduplicated edges, got %d", g.EdgeCount())
	}
	if !g.HasEdge("A", "B") || !g.HasEdge("B", "C") {
		t.Error("Expected edges A->B and B->C to exist")
	}
	if g.HasEdge("B", "A") {
		t.Error("Edge direction must be preserved: B->A should not exist")
	}
}

func TestBuild_EmptyLedger(t *testing.T) {
	g := Build(nil)

	if g.NodeCount() != 0 || g.EdgeCount() != 0 {
		t.Errorf("Empty ledger must yield empty graph, got %d nodes / %d edges",
			g.NodeCount(), g.EdgeCount())
	}
	if comps := g.WeaklyConnectedComponents(); len(comps) != 0 {
		t.Errorf("Expected no components, got %d", len(comps))
	}
}

func TestNodes_InsertionOrder(t *testing.T) {
	txs := []models.Transaction{
		{SenderID: "Z", ReceiverID: "A"},
		{SenderID: "M", ReceiverID: "Z"},
	}

	g := Build(txs)

	want := []string{"Z", "A", "M"}
	if got := g.Nodes(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected insertion order %v, got %v", want, got)
	}
}

func TestWeaklyConnectedComponents(t *testing.T) {
	g := New()
	// Component 1: A->B<-C (weakly connected despite directions)
	g.AddEdge("A", "B")
	g.AddEdge("C", "B")
	// Component 2: X->Y
	g.AddEdge("X", "Y")

	comps := g.WeaklyConnectedComponents()

	if len(comps) != 2 {
		t.Fatalf("Expected 2 components, got %d", len(comps))
	}
	if got := comps[0].Members(); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("Expected first component {A,B,C}, got %v", got)
	}
	if got := comps[1].Members(); !reflect.DeepEqual(got, []string{"X", "Y"}) {
		t.Errorf("Expected second component {X,Y}, got %v", got)
	}
}

func TestSubgraph_InducedEdgesOnly(t *testing.T) {
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "C")
	g.AddEdge("C", "A")

	sub := g.Subgraph(models.NewStringSet("A", "B"))

	if sub.NodeCount() != 2 {
		t.Errorf("Expected 2 nodes, got %d", sub.NodeCount())
	}
	if !sub.HasEdge("A", "B") {
		t.Error("Induced edge A->B missing")
	}
	if sub.HasEdge("B", "C") || sub.HasEdge("C", "A") {
		t.Error("Edges touching excluded nodes must not survive induction")
	}
}

func TestEgoNetwork_UndirectedReachability(t *testing.T) {
	g := New()
	g.AddEdge("hub", "out1")
	g.AddEdge("in1", "hub")
	g.AddEdge("out1", "far") // 2 hops from hub

	ego := g.EgoNetwork("hub", 1)

	wantNodes := []string{"hub", "in1", "out1"}
	got := models.NewStringSet(ego.Nodes()...).Members()
	if !reflect.DeepEqual(got, wantNodes) {
		t.Errorf("Expected 1-hop ego nodes %v, got %v", wantNodes, got)
	}
	// Directions retained inside the ego network
	if !ego.HasEdge("in1", "hub") || !ego.HasEdge("hub", "out1") {
		t.Error("Ego network must retain original edge directions")
	}
	if ego.HasNode("far") {
		t.Error("Node beyond the hop radius must be excluded")
	}
}

func TestEgoNetwork_MissingCenter(t *testing.T) {
	g := New()
	g.AddEdge("A", "B")

	ego := g.EgoNetwork("ghost", 2)

	if ego.NodeCount() != 0 {
		t.Errorf("Expected empty ego network for missing center, got %d nodes", ego.NodeCount())
	}
}

func TestShortestCycleThrough(t *testing.T) {
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("B", "C")
	g.AddEdge("C", "A")
	g.AddEdge("C", "D") // dead end off the cycle

	if got := g.ShortestCycleThrough("A", 6); got != 3 {
		t.Errorf("Expected cycle length 3 through A, got %d", got)
	}
	if got := g.ShortestCycleThrough("D", 6); got != 0 {
		t.Errorf("Expected no cycle through D, got %d", got)
	}
}

func TestShortestCycleThrough_RespectsBound(t *testing.T) {
	g := New()
	ids := []string{"A", "B", "C", "D", "E", "F", "G"}
	for i := range ids {
		g.AddEdge(ids[i], ids[(i+1)%len(ids)]) // 7-cycle
	}

	if got := g.ShortestCycleThrough("A", 6); got != 0 {
		t.Errorf("7-cycle exceeds bound 6, expected 0, got %d", got)
	}
	if got := g.ShortestCycleThrough("A", 7); got != 7 {
		t.Errorf("Expected cycle length 7 within bound 7, got %d", got)
	}
}
