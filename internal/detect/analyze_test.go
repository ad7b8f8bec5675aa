package detect

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/rawblock/aml-network-engine/pkg/models"
)

func TestAnalyze_EmptyLedger(t *testing.T) {
	report := Analyze(nil)

	if report.Summary.TotalAccountsAnalyzed != 0 ||
		report.Summary.SuspiciousAccountsFlagged != 0 ||
		report.Summary.FraudRingsDetected != 0 {
		t.Errorf("Empty ledger must produce a zero summary, got %+v", report.Summary)
	}
	if len(report.RiskEntries) != 0 || len(report.FraudRings) != 0 || len(report.SuspiciousAccounts) != 0 {
		t.Error("Empty ledger must produce empty lists")
	}
	if len(report.Flags.Cycles) != 0 || len(report.Flags.FanIn) != 0 ||
		len(report.Flags.FanOut) != 0 || len(report.Flags.Shells) != 0 {
		t.Error("Empty ledger must produce empty flags")
	}
}

func TestAnalyze_MixedLedger(t *testing.T) {
	txs := mixedLedger()

	report := Analyze(txs)

	if !report.Flags.Cycles.Has("C1") || !report.Flags.Cycles.Has("C2") || !report.Flags.Cycles.Has("C3") {
		t.Errorf("Cycle members missing from flags: %v", report.Flags.Cycles.Members())
	}
	if !report.Flags.FanIn.Has("AGG") {
		t.Errorf("Aggregator missing from fan_in: %v", report.Flags.FanIn.Members())
	}
	if report.Summary.TotalAccountsAnalyzed != report.Stats.TotalNodes {
		t.Error("Summary node count must equal stats node count")
	}
	if report.Summary.SuspiciousAccountsFlagged != len(report.SuspiciousAccounts) {
		t.Error("Summary suspicious count must match the list length")
	}
	if report.Summary.FraudRingsDetected != len(report.FraudRings) {
		t.Error("Summary ring count must match the list length")
	}
	for _, e := range report.RiskEntries {
		if e.Score < 0 || e.Score > 100 {
			t.Errorf("Score out of range: %d", e.Score)
		}
	}
	// Each account maps to at most one ring.
	owner := map[string]string{}
	for _, ring := range report.FraudRings {
		if len(ring.MemberAccounts) < 2 {
			t.Errorf("Ring %s below 2 members", ring.RingID)
		}
	}
	for _, acct := range report.SuspiciousAccounts {
		if acct.RingID == "" {
			continue
		}
		if prev, seen := owner[acct.AccountID]; seen && prev != acct.RingID {
			t.Errorf("Account %s mapped to two rings: %s and %s", acct.AccountID, prev, acct.RingID)
		}
		owner[acct.AccountID] = acct.RingID
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	txs := mixedLedger()

	first := Analyze(txs)
	second := Analyze(txs)

	// Wall-time differs between runs; everything else must be identical.
	first.Summary.ProcessingTimeSeconds = 0
	second.Summary.ProcessingTimeSeconds = 0

	if !reflect.DeepEqual(first, second) {
		t.Error("Identical ledgers must produce identical reports")
	}
}

// mixedLedger builds a fixture with one 3-cycle, one fan-in burst, and a
// 2-account shell chain.
func mixedLedger() []models.Transaction {
	base := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	var txs []models.Transaction

	// Directed 3-cycle
	cycle := [][2]string{{"C1", "C2"}, {"C2", "C3"}, {"C3", "C1"}}
	for i, p := range cycle {
		txs = append(txs, models.Transaction{
			TransactionID: fmt.Sprintf("cyc%d", i),
			SenderID:      p[0], ReceiverID: p[1],
			Amount:    900.0,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
	}

	// 10 senders converging on AGG within one hour
	for i := 0; i < 10; i++ {
		txs = append(txs, models.Transaction{
			TransactionID: fmt.Sprintf("fan%02d", i),
			SenderID:      fmt.Sprintf("S%02d", i), ReceiverID: "AGG",
			Amount:    120.0,
			Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
		})
	}

	// Shell chain: H1 and H2 each appear exactly twice
	txs = append(txs,
		models.Transaction{TransactionID: "sh0", SenderID: "AGG", ReceiverID: "H1", Amount: 1000, Timestamp: base},
		models.Transaction{TransactionID: "sh1", SenderID: "H1", ReceiverID: "H2", Amount: 990, Timestamp: base.Add(time.Hour)},
	)

	return txs
}
