package detect

import (
	"fmt"
	"testing"
	"time"

	"github.com/rawblock/aml-network-engine/pkg/models"
)

func burstInto(receiver string, count int, start time.Time, gap time.Duration) []models.Transaction {
	txs := make([]models.Transaction, count)
	for i := 0; i < count; i++ {
		txs[i] = models.Transaction{
			TransactionID: fmt.Sprintf("t%03d", i),
			SenderID:      fmt.Sprintf("sender_%02d", i),
			ReceiverID:    receiver,
			Amount:        50.0,
			Timestamp:     start.Add(time.Duration(i) * gap),
		}
	}
	return txs
}

func TestSmurfing_TenTransactionsWithinOneHour(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	txs := burstInto("AGG", 10, start, 6*time.Minute) // all inside 1h

	flags := models.NewFlagSet()
	detectSmurfing(txs, flags)

	if !flags.FanIn.Has("AGG") {
		t.Error("Receiver of 10 transactions within 1 hour must be flagged fan_in")
	}
	if flags.FanOut.Has("AGG") {
		t.Error("AGG never sends, must not be flagged fan_out")
	}
}

func TestSmurfing_NineTransactionsNotFlagged(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	txs := burstInto("AGG", 9, start, time.Minute)

	flags := models.NewFlagSet()
	detectSmurfing(txs, flags)

	if flags.FanIn.Has("AGG") {
		t.Error("9 transactions is below the 10-transaction window, must not flag")
	}
}

func TestSmurfing_WindowWiderThan72HoursNotFlagged(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	// 10 transactions, one every 9 hours: any 10-window spans 81h > 72h.
	txs := burstInto("AGG", 10, start, 9*time.Hour)

	flags := models.NewFlagSet()
	detectSmurfing(txs, flags)

	if flags.FanIn.Has("AGG") {
		t.Error("Windows spanning more than 72h must not flag")
	}
}

func TestSmurfing_SlidingWindowInsideLargerHistory(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	// 5 slow transactions, then a 10-transaction burst: the burst window fires.
	txs := burstInto("AGG", 5, start, 200*time.Hour)
	burst := burstInto("AGG", 10, start.Add(5000*time.Hour), time.Minute)
	for i := range burst {
		burst[i].TransactionID = fmt.Sprintf("b%03d", i)
	}
	txs = append(txs, burst...)

	flags := models.NewFlagSet()
	detectSmurfing(txs, flags)

	if !flags.FanIn.Has("AGG") {
		t.Error("A qualifying window anywhere in the history must flag the account")
	}
}

func TestSmurfing_FanOutSymmetric(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	txs := make([]models.Transaction, 10)
	for i := range txs {
		txs[i] = models.Transaction{
			SenderID:   "DISP",
			ReceiverID: fmt.Sprintf("mule_%02d", i),
			Timestamp:  start.Add(time.Duration(i) * time.Minute),
		}
	}

	flags := models.NewFlagSet()
	detectSmurfing(txs, flags)

	if !flags.FanOut.Has("DISP") {
		t.Error("Sender dispersing 10 transactions within 72h must be flagged fan_out")
	}
}

func TestSmurfing_MissingTimestampsExcludedFromWindows(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	// 12 rows pass the >=10 gate, but only 9 carry timestamps: no valid
	// 10-window exists, so the account must not be flagged.
	txs := burstInto("AGG", 9, start, time.Minute)
	for i := 0; i < 3; i++ {
		txs = append(txs, models.Transaction{
			SenderID:   fmt.Sprintf("late_%d", i),
			ReceiverID: "AGG",
		})
	}

	flags := models.NewFlagSet()
	detectSmurfing(txs, flags)

	if flags.FanIn.Has("AGG") {
		t.Error("Rows without timestamps must not contribute window comparisons")
	}
}

func TestSmurfing_UnsortedInputHandled(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	txs := burstInto("AGG", 10, start, time.Minute)
	// Reverse the slice: the detector sorts timestamps itself.
	for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
		txs[i], txs[j] = txs[j], txs[i]
	}

	flags := models.NewFlagSet()
	detectSmurfing(txs, flags)

	if !flags.FanIn.Has("AGG") {
		t.Error("Detector must sort by timestamp before windowing")
	}
}
