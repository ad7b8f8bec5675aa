package models

import (
	"encoding/json"
	"sort"
	"time"
)

// Transaction represents a single money movement between two accounts.
// Rows are immutable once loaded; the engine never mutates a ledger.
type Transaction struct {
	TransactionID string    `json:"transaction_id"`
	SenderID      string    `json:"sender_id"`
	ReceiverID    string    `json:"receiver_id"`
	Amount        float64   `json:"amount"`
	Timestamp     time.Time `json:"timestamp,omitempty"` // zero value = missing/unparseable
}

// HasTimestamp reports whether the row carries a usable timestamp.
// Rows without one still contribute graph edges but are excluded from
// time-window comparisons.
func (t Transaction) HasTimestamp() bool {
	return !t.Timestamp.IsZero()
}

// StringSet is a set of account ids that serializes as a sorted JSON list
// so persisted flag payloads are byte-stable across runs.
type StringSet map[string]struct{}

func NewStringSet(ids ...string) StringSet {
	s := make(StringSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s StringSet) Add(id string) { s[id] = struct{}{} }

func (s StringSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Members returns the set contents sorted ascending.
func (s StringSet) Members() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Members())
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewStringSet(ids...)
	return nil
}

// FlagSet holds the four pattern-detection verdicts as explicit fields.
// The categories are fixed; an account may appear in any combination.
type FlagSet struct {
	Cycles StringSet `json:"cycles"`
	FanIn  StringSet `json:"fan_in"`
	FanOut StringSet `json:"fan_out"`
	Shells StringSet `json:"shells"`
}

// NewFlagSet returns a FlagSet with all four sets allocated.
func NewFlagSet() FlagSet {
	return FlagSet{
		Cycles: make(StringSet),
		FanIn:  make(StringSet),
		FanOut: make(StringSet),
		Shells: make(StringSet),
	}
}
