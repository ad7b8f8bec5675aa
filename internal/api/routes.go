// Package api exposes the engine over HTTP: file upload, analysis
// lifecycle, network graph retrieval, isomorphism queries, and a
// WebSocket alert stream.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rawblock/aml-network-engine/internal/db"
	"github.com/rawblock/aml-network-engine/internal/ingest"
	"github.com/rawblock/aml-network-engine/internal/runner"
)

// Uploads larger than this are rejected before parsing.
const maxUploadBytes = 50 << 20

type APIHandler struct {
	store  *db.PostgresStore
	hub    *Hub
	runner *runner.Runner
	logger *zap.Logger
}

func SetupRouter(store *db.PostgresStore, hub *Hub, analysisRunner *runner.Runner, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.Default()

	// Enable CORS — configurable via ALLOWED_ORIGINS env var
	// Production: ALLOWED_ORIGINS=https://app.example.com
	// Development: ALLOWED_ORIGINS=http://localhost:3000 (or leave empty for *)
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{store: store, hub: hub, runner: analysisRunner, logger: logger}

	// Upload and isomorphism are the expensive endpoints.
	uploadLimiter := NewRateLimiter(10, 5)
	isoLimiter := NewRateLimiter(30, 10)

	api := r.Group("/api/v1")
	{
		// Public endpoints
		api.GET("/health", handler.handleHealth)
		api.GET("/stream", hub.Subscribe)
		api.GET("/runner/progress", handler.handleRunnerProgress)

		protected := api.Group("", AuthMiddleware(logger))
		{
			protected.POST("/upload", uploadLimiter.Middleware(), handler.handleUpload)

			protected.POST("/analysis/start", handler.handleStartAnalysis)
			protected.GET("/analysis", handler.handleListAnalyses)
			protected.GET("/analysis/:id", handler.handleGetAnalysis)
			protected.GET("/analysis/:id/status", handler.handleAnalysisStatus)
			protected.GET("/analysis/:id/export", handler.handleExportAnalysis)
			protected.DELETE("/analysis/:id", handler.handleDeleteAnalysis)

			protected.GET("/network/graph/:id", handler.handleGetGraph)
			protected.POST("/network/isomorphism", isoLimiter.Middleware(), handler.handleStartIsomorphism)
		}
	}

	return r
}

// handleUpload accepts a CSV or JSON transaction file, parses it fully in
// memory, and persists every row. No file is kept on disk.
func (h *APIHandler) handleUpload(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file field in multipart form"})
		return
	}
	filename := fileHeader.Filename
	lower := strings.ToLower(filename)
	if !strings.HasSuffix(lower, ".csv") && !strings.HasSuffix(lower, ".json") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only CSV and JSON files are accepted."})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File exceeds the 50 MiB upload limit"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload", "details": err.Error()})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload", "details": err.Error()})
		return
	}

	txs, err := ingest.ParseFile(filename, data)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to parse file", "details": err.Error()})
		return
	}

	ctx := c.Request.Context()
	datasetID, err := h.store.CreateDataset(ctx, filename, len(txs))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create dataset", "details": err.Error()})
		return
	}
	if err := h.store.InsertTransactions(ctx, datasetID, txs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store transactions", "details": err.Error()})
		return
	}

	h.logger.Info("file ingested",
		zap.String("filename", filename),
		zap.Int("rows", len(txs)),
		zap.String("dataset_id", datasetID.String()))

	c.JSON(http.StatusCreated, gin.H{
		"dataset_id": datasetID,
		"filename":   filename,
		"row_count":  len(txs),
		"message":    "Successfully ingested " + strconv.Itoa(len(txs)) + " transactions.",
	})
}

// handleStartAnalysis creates a pending analysis row and hands the
// pipeline to the background runner.
// POST /api/v1/analysis/start { "dataset_id": "<uuid>" }
func (h *APIHandler) handleStartAnalysis(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	var req struct {
		DatasetID uuid.UUID `json:"dataset_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. Expected: {dataset_id}"})
		return
	}

	ctx := c.Request.Context()
	dataset, err := h.store.GetDataset(ctx, req.DatasetID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up dataset", "details": err.Error()})
		return
	}
	if dataset == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
		return
	}

	analysisID, err := h.store.CreateAnalysis(ctx, dataset.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create analysis", "details": err.Error()})
		return
	}
	if err := h.store.SetDatasetStatus(ctx, dataset.ID, db.DatasetAnalyzing); err != nil {
		h.logger.Warn("failed to update dataset status", zap.Error(err))
	}

	h.logger.Info("analysis started",
		zap.String("analysis_id", analysisID.String()),
		zap.String("dataset_id", dataset.ID.String()))

	// Background work outlives the request context.
	h.runner.StartAnalysis(context.Background(), analysisID, dataset.ID)

	c.JSON(http.StatusAccepted, gin.H{"analysis_id": analysisID})
}

func (h *APIHandler) handleAnalysisStatus(c *gin.Context) {
	rec, ok := h.loadAnalysis(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"analysis_id":   rec.ID,
		"status":        rec.Status,
		"error_message": rec.ErrorMessage,
		"created_at":    rec.CreatedAt,
		"completed_at":  rec.CompletedAt,
	})
}

func (h *APIHandler) handleGetAnalysis(c *gin.Context) {
	rec, ok := h.loadAnalysis(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"analysis_id":  rec.ID,
		"dataset_id":   rec.DatasetID,
		"status":       rec.Status,
		"graph_data":   rawOrNull(rec.GraphJSON),
		"risk_data":    rawOrNull(rec.RiskJSON),
		"flags":        rawOrNull(rec.FlagsJSON),
		"stats":        rawOrNull(rec.StatsJSON),
		"created_at":   rec.CreatedAt,
		"completed_at": rec.CompletedAt,
	})
}

// handleExportAnalysis returns the pre-computed structured output stored
// in stats_json, so exports never recompute against a reloaded graph.
func (h *APIHandler) handleExportAnalysis(c *gin.Context) {
	rec, ok := h.loadAnalysis(c)
	if !ok {
		return
	}
	if rec.Status != db.AnalysisCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "Analysis not complete. Status: " + rec.Status})
		return
	}
	if len(rec.StatsJSON) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Structured data not available"})
		return
	}

	var stats map[string]json.RawMessage
	if err := json.Unmarshal(rec.StatsJSON, &stats); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stored stats are corrupt", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"suspicious_accounts": rawOrDefault(stats["suspicious_accounts"], "[]"),
		"fraud_rings":         rawOrDefault(stats["fraud_rings"], "[]"),
		"summary":             rawOrDefault(stats["summary"], "{}"),
	})
}

func (h *APIHandler) handleListAnalyses(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	items, err := h.store.ListAnalyses(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list analyses", "details": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(items))
	for _, item := range items {
		out = append(out, gin.H{
			"id":           item.ID,
			"dataset_id":   item.DatasetID,
			"filename":     item.Filename,
			"row_count":    item.RowCount,
			"status":       item.Status,
			"stats":        rawOrNull(item.StatsJSON),
			"created_at":   item.CreatedAt,
			"completed_at": item.CompletedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

// handleDeleteAnalysis removes an analysis together with its parent
// dataset and that dataset's transactions.
func (h *APIHandler) handleDeleteAnalysis(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid analysis id"})
		return
	}

	deleted, err := h.store.DeleteAnalysis(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete analysis", "details": err.Error()})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
		return
	}

	h.logger.Info("analysis deleted", zap.String("analysis_id", id.String()))
	c.Status(http.StatusNoContent)
}

// handleGetGraph returns the full graph payload for a completed analysis.
func (h *APIHandler) handleGetGraph(c *gin.Context) {
	rec, ok := h.loadAnalysis(c)
	if !ok {
		return
	}
	if rec.Status != db.AnalysisCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "Analysis is not complete yet. Current status: " + rec.Status})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"graph": rawOrNull(rec.GraphJSON),
		"risk":  rawOrNull(rec.RiskJSON),
		"stats": rawOrNull(rec.StatsJSON),
	})
}

// handleStartIsomorphism dispatches a structural-clone search for a
// completed analysis.
// POST /api/v1/network/isomorphism { "analysis_id", "target_node", "hops" }
func (h *APIHandler) handleStartIsomorphism(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	var req struct {
		AnalysisID uuid.UUID `json:"analysis_id" binding:"required"`
		TargetNode string    `json:"target_node" binding:"required"`
		Hops       int       `json:"hops"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. Expected: {analysis_id, target_node, hops}"})
		return
	}
	if req.Hops < 1 {
		req.Hops = 1
	}

	rec, err := h.store.GetAnalysis(c.Request.Context(), req.AnalysisID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up analysis", "details": err.Error()})
		return
	}
	if rec == nil || rec.Status != db.AnalysisCompleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Completed analysis not found"})
		return
	}

	h.logger.Info("isomorphism dispatched",
		zap.String("analysis_id", rec.ID.String()),
		zap.String("target_node", req.TargetNode),
		zap.Int("hops", req.Hops))

	h.runner.StartIsomorphism(context.Background(), rec.ID, rec.DatasetID, req.TargetNode, req.Hops)

	c.JSON(http.StatusAccepted, gin.H{
		"analysis_id": rec.ID,
		"message":     "Isomorphism search started for node '" + req.TargetNode + "'.",
	})
}

// handleHealth returns engine status and capabilities for service discovery.
func (h *APIHandler) handleHealth(c *gin.Context) {
	dbConnected := h.store != nil
	if dbConnected {
		if err := h.store.GetPool().Ping(c.Request.Context()); err != nil {
			dbConnected = false
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "AML Network Engine v1.0",
		"capabilities": gin.H{
			"smurfing_detection":  true,
			"cycle_detection":     true,
			"shell_detection":     true,
			"fraud_ring_assembly": true,
			"isomorphism_search":  true,
			"websocket_alerts":    true,
		},
		"dbConnected": dbConnected,
	})
}

// handleRunnerProgress returns the background runner's counters.
func (h *APIHandler) handleRunnerProgress(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Runner not initialized"})
		return
	}
	c.JSON(http.StatusOK, h.runner.GetProgress())
}

// loadAnalysis resolves the :id param into an analysis record, writing
// the error response itself when lookup fails.
func (h *APIHandler) loadAnalysis(c *gin.Context) (*db.AnalysisRecord, bool) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid analysis id"})
		return nil, false
	}
	rec, err := h.store.GetAnalysis(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up analysis", "details": err.Error()})
		return nil, false
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
		return nil, false
	}
	return rec, true
}

func rawOrNull(data []byte) json.RawMessage {
	if len(data) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(data)
}

func rawOrDefault(data json.RawMessage, fallback string) json.RawMessage {
	if len(data) == 0 {
		return json.RawMessage(fallback)
	}
	return data
}
