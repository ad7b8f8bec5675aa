// Package ingest parses uploaded transaction files (CSV or JSON) into
// ledger rows. Files are parsed fully in memory; nothing is written to
// disk. Rows with missing or unparseable timestamps are kept with a zero
// timestamp so graph construction still sees the edge.
package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rawblock/aml-network-engine/pkg/models"
)

var requiredColumns = []string{"transaction_id", "sender_id", "receiver_id", "amount", "timestamp"}

// timestampLayouts covers the formats seen in real exports. Naive stamps
// are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

// ParseFile dispatches on the filename extension. Only .csv and .json
// are accepted.
func ParseFile(filename string, data []byte) ([]models.Transaction, error) {
	ext := strings.ToLower(filename)
	if i := strings.LastIndex(ext, "."); i >= 0 {
		ext = ext[i+1:]
	} else {
		ext = ""
	}

	switch ext {
	case "csv":
		return ParseCSV(data)
	case "json":
		return ParseJSON(data)
	default:
		return nil, fmt.Errorf("only CSV and JSON files are accepted, got %q", filename)
	}
}

// ParseCSV reads a headered CSV file. All five canonical columns must be
// present in the header; extra columns are ignored.
func ParseCSV(data []byte) ([]models.Transaction, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %v", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if err := checkColumns(col); err != nil {
		return nil, err
	}

	txs := make([]models.Transaction, 0, len(records)-1)
	for line, rec := range records[1:] {
		amount, err := strconv.ParseFloat(strings.TrimSpace(rec[col["amount"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid amount %q", line+2, rec[col["amount"]])
		}
		txs = append(txs, models.Transaction{
			TransactionID: strings.TrimSpace(rec[col["transaction_id"]]),
			SenderID:      strings.TrimSpace(rec[col["sender_id"]]),
			ReceiverID:    strings.TrimSpace(rec[col["receiver_id"]]),
			Amount:        amount,
			Timestamp:     ParseTimestamp(rec[col["timestamp"]]),
		})
	}
	return txs, nil
}

// jsonRow mirrors one object of a JSON array upload. Amount arrives as a
// number or a numeric string; timestamp as a string or null.
type jsonRow struct {
	TransactionID *string      `json:"transaction_id"`
	SenderID      *string      `json:"sender_id"`
	ReceiverID    *string      `json:"receiver_id"`
	Amount        *json.Number `json:"amount"`
	Timestamp     *string      `json:"timestamp"`
}

// ParseJSON reads a JSON array of transaction objects.
func ParseJSON(data []byte) ([]models.Transaction, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rows []jsonRow
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %v", err)
	}

	txs := make([]models.Transaction, 0, len(rows))
	for i, row := range rows {
		if err := checkRow(row); err != nil {
			return nil, fmt.Errorf("row %d: %v", i, err)
		}
		amount, err := row.Amount.Float64()
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid amount %q", i, row.Amount.String())
		}
		tx := models.Transaction{
			SenderID:   *row.SenderID,
			ReceiverID: *row.ReceiverID,
			Amount:     amount,
		}
		if row.TransactionID != nil {
			tx.TransactionID = *row.TransactionID
		}
		if row.Timestamp != nil {
			tx.Timestamp = ParseTimestamp(*row.Timestamp)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// ParseTimestamp tries every supported layout and returns the zero time
// when none fits. Missing timestamps are tolerated downstream.
func ParseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

func checkColumns(col map[string]int) error {
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required columns: %s (expected: %s)",
			strings.Join(missing, ", "), strings.Join(requiredColumns, ", "))
	}
	return nil
}

func checkRow(row jsonRow) error {
	if row.SenderID == nil {
		return fmt.Errorf("missing sender_id")
	}
	if row.ReceiverID == nil {
		return fmt.Errorf("missing receiver_id")
	}
	if row.Amount == nil {
		return fmt.Errorf("missing amount")
	}
	return nil
}
