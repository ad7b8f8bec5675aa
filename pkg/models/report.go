package models

// Risk level thresholds: High at score >= 40, Medium for any non-zero
// score below that, Low for an unflagged account.
const (
	RiskLevelLow    = "Low"
	RiskLevelMedium = "Medium"
	RiskLevelHigh   = "High"
)

// Pattern types a fraud ring can be assembled from, in claim-precedence order.
const (
	PatternCycle         = "cycle"
	PatternFanIn         = "fan_in"
	PatternFanOut        = "fan_out"
	PatternShellLayering = "shell_layering"
)

// RiskEntry is the per-account scoring verdict. One entry exists for every
// node in the graph, including clean accounts (score 0, "Normal").
type RiskEntry struct {
	AccountID string `json:"account_id"`
	Score     int    `json:"score"` // 0-100
	RiskLevel string `json:"risk_level"`
	Reasons   string `json:"reasons"` // category labels joined ", ", or "Normal"
}

// FraudRing is a cluster of flagged accounts sharing one pattern type.
// Members are sorted lexicographically; an account belongs to at most one
// ring (first claim wins across the precedence order).
type FraudRing struct {
	RingID         string   `json:"ring_id"` // "RING_001", sequential
	MemberAccounts []string `json:"member_accounts"`
	PatternType    string   `json:"pattern_type"`
	RiskScore      float64  `json:"risk_score"` // mean member score, 1 decimal
}

// SuspiciousAccount is the investigator-facing view of a flagged account.
type SuspiciousAccount struct {
	AccountID        string   `json:"account_id"`
	SuspicionScore   float64  `json:"suspicion_score"`
	DetectedPatterns []string `json:"detected_patterns"`
	RingID           string   `json:"ring_id,omitempty"`
}

// Summary aggregates one pipeline run.
type Summary struct {
	TotalAccountsAnalyzed     int     `json:"total_accounts_analyzed"`
	SuspiciousAccountsFlagged int     `json:"suspicious_accounts_flagged"`
	FraudRingsDetected        int     `json:"fraud_rings_detected"`
	ProcessingTimeSeconds     float64 `json:"processing_time_seconds"`
}

// Report is the complete output of one analysis pipeline run.
type Report struct {
	Flags              FlagSet             `json:"flags"`
	RiskEntries        []RiskEntry         `json:"risk_entries"`
	FraudRings         []FraudRing         `json:"fraud_rings"`
	SuspiciousAccounts []SuspiciousAccount `json:"suspicious_accounts"`
	Summary            Summary             `json:"summary"`
	Stats              ReportStats         `json:"stats"`
}

// ReportStats carries dashboard counters computed alongside the report.
type ReportStats struct {
	TotalNodes        int `json:"total_nodes"`
	TotalEdges        int `json:"total_edges"`
	TotalTransactions int `json:"total_transactions"`
	HighRiskCount     int `json:"high_risk_count"`
	MediumRiskCount   int `json:"medium_risk_count"`
	CyclesDetected    int `json:"cycles_detected"`
	FanInDetected     int `json:"fan_in_detected"`
	FanOutDetected    int `json:"fan_out_detected"`
	ShellsDetected    int `json:"shells_detected"`
}

// IsomorphismResult is the output of a structural-clone query: the union of
// nodes and edges across every ego network isomorphic to the target's.
type IsomorphismResult struct {
	MatchNodes []string    `json:"match_nodes"`
	MatchEdges [][2]string `json:"match_edges"`
	MatchCount int         `json:"match_count"`
}

// GraphNode is one node of the serializable network payload.
type GraphNode struct {
	ID        string `json:"id"`
	Score     int    `json:"score"`
	RiskLevel string `json:"risk_level"`
	Reasons   string `json:"reasons"`
	IsMatch   int    `json:"is_match"`
}

// GraphLink is one deduplicated directed edge of the network payload.
type GraphLink struct {
	Source  string `json:"source"`
	Target  string `json:"target"`
	IsMatch int    `json:"is_match"`
}

// GraphPayload is the full network view handed to the calling layer.
type GraphPayload struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}
