// Package runner executes analysis pipelines and isomorphism searches in
// the background. HTTP handlers accept the request, create the lifecycle
// row, and hand off to a goroutine here so the request cycle stays free.
package runner

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rawblock/aml-network-engine/internal/db"
	"github.com/rawblock/aml-network-engine/internal/detect"
	"github.com/rawblock/aml-network-engine/internal/graph"
	"github.com/rawblock/aml-network-engine/internal/isomorph"
	"github.com/rawblock/aml-network-engine/pkg/models"
)

// Rings at or above this mean score trigger a high_risk_ring alert.
const highRiskRingScore = 40.0

// Alert is a real-time notification pushed through the WebSocket hub.
type Alert struct {
	Type        string  `json:"type"` // analysis_complete | analysis_failed | high_risk_ring | isomorphism_complete
	AnalysisID  string  `json:"analysis_id"`
	DatasetID   string  `json:"dataset_id,omitempty"`
	RingID      string  `json:"ring_id,omitempty"`
	PatternType string  `json:"pattern_type,omitempty"`
	RiskScore   float64 `json:"risk_score,omitempty"`
	MemberCount int     `json:"member_count,omitempty"`
	MatchCount  int     `json:"match_count,omitempty"`
	TargetNode  string  `json:"target_node,omitempty"`
	Error       string  `json:"error,omitempty"`
	Timestamp   string  `json:"timestamp"`
}

// Progress is the runner's current state for the API.
type Progress struct {
	ActiveRuns    int64 `json:"active_runs"`
	CompletedRuns int64 `json:"completed_runs"`
	FailedRuns    int64 `json:"failed_runs"`
}

// Runner owns the background execution of analyses. All counters are
// atomic for safe concurrent reads from the progress endpoint.
type Runner struct {
	store     *db.PostgresStore
	clones    *isomorph.CloneSearch
	logger    *zap.Logger
	alertFunc func(Alert) // optional broadcast callback

	activeRuns    atomic.Int64
	completedRuns atomic.Int64
	failedRuns    atomic.Int64
}

func New(store *db.PostgresStore, logger *zap.Logger, alertFunc func(Alert)) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:     store,
		clones:    isomorph.NewCloneSearch(logger),
		logger:    logger,
		alertFunc: alertFunc,
	}
}

// GetProgress returns the current runner state (thread-safe).
func (r *Runner) GetProgress() Progress {
	return Progress{
		ActiveRuns:    r.activeRuns.Load(),
		CompletedRuns: r.completedRuns.Load(),
		FailedRuns:    r.failedRuns.Load(),
	}
}

// StartAnalysis launches the full pipeline for a dataset asynchronously.
// The caller has already created the pending analysis row.
func (r *Runner) StartAnalysis(ctx context.Context, analysisID, datasetID uuid.UUID) {
	r.activeRuns.Add(1)
	go func() {
		defer r.activeRuns.Add(-1)
		r.runPipeline(ctx, analysisID, datasetID)
	}()
}

// statsPayload is the persisted stats_json shape: dashboard counters plus
// the full structured output, so exports never recompute anything.
type statsPayload struct {
	models.ReportStats
	SuspiciousAccounts []models.SuspiciousAccount `json:"suspicious_accounts"`
	FraudRings         []models.FraudRing         `json:"fraud_rings"`
	Summary            models.Summary             `json:"summary"`
}

func (r *Runner) runPipeline(ctx context.Context, analysisID, datasetID uuid.UUID) {
	log := r.logger.With(
		zap.String("analysis_id", analysisID.String()),
		zap.String("dataset_id", datasetID.String()))
	log.Info("analysis pipeline start")

	if err := r.store.MarkAnalysisRunning(ctx, analysisID); err != nil {
		r.fail(ctx, log, analysisID, datasetID, "failed to mark analysis running: "+err.Error())
		return
	}

	txs, err := r.store.LoadTransactions(ctx, datasetID)
	if err != nil {
		r.fail(ctx, log, analysisID, datasetID, "failed to load transactions: "+err.Error())
		return
	}
	if len(txs) == 0 {
		r.fail(ctx, log, analysisID, datasetID, "no transactions found for dataset")
		return
	}
	log.Info("transactions loaded", zap.Int("rows", len(txs)))

	report := detect.Analyze(txs)

	g := graph.Build(txs)
	graphPayload := detect.BuildGraphPayload(g, report.RiskEntries, nil)

	graphJSON, err := json.Marshal(graphPayload)
	if err != nil {
		r.fail(ctx, log, analysisID, datasetID, "failed to marshal graph payload: "+err.Error())
		return
	}
	riskJSON, err := json.Marshal(report.RiskEntries)
	if err != nil {
		r.fail(ctx, log, analysisID, datasetID, "failed to marshal risk entries: "+err.Error())
		return
	}
	flagsJSON, err := json.Marshal(report.Flags)
	if err != nil {
		r.fail(ctx, log, analysisID, datasetID, "failed to marshal flags: "+err.Error())
		return
	}
	statsJSON, err := json.Marshal(statsPayload{
		ReportStats:        report.Stats,
		SuspiciousAccounts: report.SuspiciousAccounts,
		FraudRings:         report.FraudRings,
		Summary:            report.Summary,
	})
	if err != nil {
		r.fail(ctx, log, analysisID, datasetID, "failed to marshal stats: "+err.Error())
		return
	}

	if err := r.store.CompleteAnalysis(ctx, analysisID, graphJSON, riskJSON, flagsJSON, statsJSON); err != nil {
		r.fail(ctx, log, analysisID, datasetID, "failed to persist results: "+err.Error())
		return
	}
	if err := r.store.SetDatasetStatus(ctx, datasetID, db.DatasetCompleted); err != nil {
		log.Warn("failed to update dataset status", zap.Error(err))
	}

	r.completedRuns.Add(1)
	log.Info("analysis pipeline complete",
		zap.Int("suspicious_accounts", len(report.SuspiciousAccounts)),
		zap.Int("fraud_rings", len(report.FraudRings)),
		zap.Float64("processing_seconds", report.Summary.ProcessingTimeSeconds))

	r.emit(Alert{
		Type:       "analysis_complete",
		AnalysisID: analysisID.String(),
		DatasetID:  datasetID.String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
	for _, ring := range report.FraudRings {
		if ring.RiskScore < highRiskRingScore {
			continue
		}
		r.emit(Alert{
			Type:        "high_risk_ring",
			AnalysisID:  analysisID.String(),
			DatasetID:   datasetID.String(),
			RingID:      ring.RingID,
			PatternType: ring.PatternType,
			RiskScore:   ring.RiskScore,
			MemberCount: len(ring.MemberAccounts),
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// StartIsomorphism runs a structural-clone search asynchronously and
// rewrites the stored graph payload with match highlights.
func (r *Runner) StartIsomorphism(ctx context.Context, analysisID, datasetID uuid.UUID, targetNode string, hops int) {
	r.activeRuns.Add(1)
	go func() {
		defer r.activeRuns.Add(-1)
		r.runIsomorphism(ctx, analysisID, datasetID, targetNode, hops)
	}()
}

func (r *Runner) runIsomorphism(ctx context.Context, analysisID, datasetID uuid.UUID, targetNode string, hops int) {
	log := r.logger.With(
		zap.String("analysis_id", analysisID.String()),
		zap.String("target_node", targetNode),
		zap.Int("hops", hops))
	log.Info("isomorphism run start")

	txs, err := r.store.LoadTransactions(ctx, datasetID)
	if err != nil {
		r.failedRuns.Add(1)
		log.Error("failed to load transactions", zap.Error(err))
		return
	}
	g := graph.Build(txs)

	result, err := r.clones.FindStructuralClones(ctx, g, targetNode, hops)
	if err != nil {
		r.failedRuns.Add(1)
		log.Error("isomorphism search failed", zap.Error(err))
		return
	}

	// Re-attach the stored risk scores to the refreshed payload.
	var entries []models.RiskEntry
	if rec, err := r.store.GetAnalysis(ctx, analysisID); err != nil {
		log.Warn("failed to load analysis for risk overlay", zap.Error(err))
	} else if rec != nil && len(rec.RiskJSON) > 0 {
		if err := json.Unmarshal(rec.RiskJSON, &entries); err != nil {
			log.Warn("failed to decode stored risk entries", zap.Error(err))
		}
	}

	graphPayload := detect.BuildGraphPayload(g, entries, &result)
	graphJSON, err := json.Marshal(graphPayload)
	if err != nil {
		r.failedRuns.Add(1)
		log.Error("failed to marshal highlighted graph", zap.Error(err))
		return
	}
	if err := r.store.UpdateAnalysisGraph(ctx, analysisID, graphJSON); err != nil {
		r.failedRuns.Add(1)
		log.Error("failed to persist highlighted graph", zap.Error(err))
		return
	}

	r.completedRuns.Add(1)
	log.Info("isomorphism run complete", zap.Int("match_count", result.MatchCount))

	r.emit(Alert{
		Type:       "isomorphism_complete",
		AnalysisID: analysisID.String(),
		DatasetID:  datasetID.String(),
		TargetNode: targetNode,
		MatchCount: result.MatchCount,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Runner) fail(ctx context.Context, log *zap.Logger, analysisID, datasetID uuid.UUID, message string) {
	r.failedRuns.Add(1)
	log.Error("analysis pipeline failed", zap.String("reason", message))

	if err := r.store.FailAnalysis(ctx, analysisID, message); err != nil {
		log.Error("failed to record analysis failure", zap.Error(err))
	}
	if err := r.store.SetDatasetStatus(ctx, datasetID, db.DatasetFailed); err != nil {
		log.Warn("failed to update dataset status", zap.Error(err))
	}

	r.emit(Alert{
		Type:       "analysis_failed",
		AnalysisID: analysisID.String(),
		DatasetID:  datasetID.String(),
		Error:      message,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Runner) emit(alert Alert) {
	if r.alertFunc != nil {
		r.alertFunc(alert)
	}
}
