package detect

import (
	"sort"
	"time"

	"github.com/rawblock/aml-network-engine/pkg/models"
)

// Smurfing Detection (fan-in / fan-out velocity)
//
// Structuring ("smurfing") splits a large movement into many small
// transactions to stay under reporting thresholds. The structural
// signature is velocity: ten or more transactions converging on one
// receiver (fan-in) or leaving one sender (fan-out) inside a rolling
// 72-hour window.
//
// The check is purely temporal and topological — amounts are never
// consulted. Rows without a usable timestamp count toward the activity
// gate but produce no window comparison.

const (
	// smurfWindowSize is the number of transactions per rolling window.
	smurfWindowSize = 10
	// smurfWindowSpan is the maximum elapsed time across one window.
	smurfWindowSpan = 72 * time.Hour
)

// detectSmurfing populates flags.FanIn and flags.FanOut from the ledger.
// An account is flagged as a whole; how many windows fire is irrelevant.
func detectSmurfing(txs []models.Transaction, flags models.FlagSet) {
	byReceiver := make(map[string][]models.Transaction)
	bySender := make(map[string][]models.Transaction)
	for _, tx := range txs {
		byReceiver[tx.ReceiverID] = append(byReceiver[tx.ReceiverID], tx)
		bySender[tx.SenderID] = append(bySender[tx.SenderID], tx)
	}

	for account, group := range byReceiver {
		if hasVelocityBurst(group) {
			flags.FanIn.Add(account)
		}
	}
	for account, group := range bySender {
		if hasVelocityBurst(group) {
			flags.FanOut.Add(account)
		}
	}
}

// hasVelocityBurst reports whether any 10-transaction window of the
// group's timestamped rows spans 72 hours or less. The >=10 gate counts
// every row, timestamped or not.
func hasVelocityBurst(group []models.Transaction) bool {
	if len(group) < smurfWindowSize {
		return false
	}

	stamps := make([]time.Time, 0, len(group))
	for _, tx := range group {
		if tx.HasTimestamp() {
			stamps = append(stamps, tx.Timestamp)
		}
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	for i := smurfWindowSize - 1; i < len(stamps); i++ {
		if stamps[i].Sub(stamps[i-(smurfWindowSize-1)]) <= smurfWindowSpan {
			return true
		}
	}
	return false
}
