package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rawblock/aml-network-engine/pkg/models"
)

// schemaSQL is compiled into the binary at build time.
// This ensures schema init works inside the Docker runtime image which
// does not copy internal/db/schema.sql into the final stage.
//
//go:embed schema.sql
var schemaSQL string

// Dataset lifecycle states.
const (
	DatasetParsed    = "parsed"
	DatasetAnalyzing = "analyzing"
	DatasetCompleted = "completed"
	DatasetFailed    = "failed"
)

// Analysis lifecycle states.
const (
	AnalysisPending   = "pending"
	AnalysisRunning   = "running"
	AnalysisCompleted = "completed"
	AnalysisFailed    = "failed"
)

type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	logger.Info("connected to PostgreSQL")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *PostgresStore) InitSchema() error {
	_, err := s.pool.Exec(context.Background(), schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	s.logger.Info("AML schema initialized")
	return nil
}

// GetPool exposes the connection pool for health checks and subsystems.
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}

// DatasetInfo is one row of the datasets table.
type DatasetInfo struct {
	ID        uuid.UUID `json:"id"`
	Filename  string    `json:"filename"`
	RowCount  int       `json:"row_count"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateDataset inserts a dataset record and returns its id.
func (s *PostgresStore) CreateDataset(ctx context.Context, filename string, rowCount int) (uuid.UUID, error) {
	id := uuid.New()
	sql := `
		INSERT INTO datasets (id, filename, row_count, status)
		VALUES ($1, $2, $3, $4);
	`
	if _, err := s.pool.Exec(ctx, sql, id, filename, rowCount, DatasetParsed); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert dataset: %v", err)
	}
	return id, nil
}

// SetDatasetStatus moves a dataset through its lifecycle.
func (s *PostgresStore) SetDatasetStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.pool.Exec(ctx, `UPDATE datasets SET status = $1 WHERE id = $2`, status, id)
	return err
}

// GetDataset returns a dataset row, or nil when the id is unknown.
func (s *PostgresStore) GetDataset(ctx context.Context, id uuid.UUID) (*DatasetInfo, error) {
	sql := `SELECT id, filename, row_count, status, created_at FROM datasets WHERE id = $1`

	var d DatasetInfo
	err := s.pool.QueryRow(ctx, sql, id).Scan(&d.ID, &d.Filename, &d.RowCount, &d.Status, &d.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// InsertTransactions persists all rows of an ingested file inside one
// database transaction. Zero timestamps are stored as NULL.
func (s *PostgresStore) InsertTransactions(ctx context.Context, datasetID uuid.UUID, txs []models.Transaction) error {
	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = dbTx.Rollback(ctx) }()

	insertSQL := `
		INSERT INTO transactions (id, dataset_id, transaction_id, sender_id, receiver_id, amount, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	for _, t := range txs {
		var ts *time.Time
		if t.HasTimestamp() {
			stamp := t.Timestamp
			ts = &stamp
		}
		_, err = dbTx.Exec(ctx, insertSQL,
			uuid.New(), datasetID, t.TransactionID, t.SenderID, t.ReceiverID, t.Amount, ts)
		if err != nil {
			return fmt.Errorf("failed to insert transaction row: %v", err)
		}
	}

	return dbTx.Commit(ctx)
}

// LoadTransactions returns every row of a dataset ordered by timestamp
// (rows without one sort last). NULL timestamps come back as zero times.
func (s *PostgresStore) LoadTransactions(ctx context.Context, datasetID uuid.UUID) ([]models.Transaction, error) {
	sql := `
		SELECT transaction_id, sender_id, receiver_id, amount, timestamp
		FROM transactions
		WHERE dataset_id = $1
		ORDER BY timestamp NULLS LAST, transaction_id;
	`
	rows, err := s.pool.Query(ctx, sql, datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]models.Transaction, 0)
	for rows.Next() {
		var t models.Transaction
		var txID *string
		var ts *time.Time
		if err := rows.Scan(&txID, &t.SenderID, &t.ReceiverID, &t.Amount, &ts); err != nil {
			return nil, err
		}
		if txID != nil {
			t.TransactionID = *txID
		}
		if ts != nil {
			t.Timestamp = ts.UTC()
		}
		txs = append(txs, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return txs, nil
}

// AnalysisRecord is one row of analysis_results. JSON payloads are raw
// bytes; callers unmarshal what they need.
type AnalysisRecord struct {
	ID           uuid.UUID
	DatasetID    uuid.UUID
	Status       string
	ErrorMessage string
	GraphJSON    []byte
	RiskJSON     []byte
	FlagsJSON    []byte
	StatsJSON    []byte
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// CreateAnalysis inserts a pending analysis row for a dataset.
func (s *PostgresStore) CreateAnalysis(ctx context.Context, datasetID uuid.UUID) (uuid.UUID, error) {
	id := uuid.New()
	sql := `
		INSERT INTO analysis_results (id, dataset_id, status)
		VALUES ($1, $2, $3);
	`
	if _, err := s.pool.Exec(ctx, sql, id, datasetID, AnalysisPending); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert analysis: %v", err)
	}
	return id, nil
}

// MarkAnalysisRunning flips a pending analysis to running.
func (s *PostgresStore) MarkAnalysisRunning(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE analysis_results SET status = $1 WHERE id = $2`, AnalysisRunning, id)
	return err
}

// CompleteAnalysis stores the four result payloads and stamps completion.
func (s *PostgresStore) CompleteAnalysis(ctx context.Context, id uuid.UUID, graphJSON, riskJSON, flagsJSON, statsJSON []byte) error {
	sql := `
		UPDATE analysis_results
		SET status = $1,
		    graph_json = $2,
		    risk_json = $3,
		    flags_json = $4,
		    stats_json = $5,
		    completed_at = NOW()
		WHERE id = $6;
	`
	_, err := s.pool.Exec(ctx, sql, AnalysisCompleted,
		string(graphJSON), string(riskJSON), string(flagsJSON), string(statsJSON), id)
	return err
}

// FailAnalysis records a pipeline failure with its error message.
func (s *PostgresStore) FailAnalysis(ctx context.Context, id uuid.UUID, message string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE analysis_results SET status = $1, error_message = $2 WHERE id = $3`,
		AnalysisFailed, message, id)
	return err
}

// UpdateAnalysisGraph rewrites graph_json in place. Used by the
// isomorphism runner to add match highlights after the fact.
func (s *PostgresStore) UpdateAnalysisGraph(ctx context.Context, id uuid.UUID, graphJSON []byte) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE analysis_results SET graph_json = $1 WHERE id = $2`, string(graphJSON), id)
	return err
}

// GetAnalysis returns an analysis row, or nil when the id is unknown.
func (s *PostgresStore) GetAnalysis(ctx context.Context, id uuid.UUID) (*AnalysisRecord, error) {
	sql := `
		SELECT id, dataset_id, status, COALESCE(error_message, ''),
		       graph_json, risk_json, flags_json, stats_json,
		       created_at, completed_at
		FROM analysis_results
		WHERE id = $1;
	`
	var rec AnalysisRecord
	var graphJSON, riskJSON, flagsJSON, statsJSON *string
	err := s.pool.QueryRow(ctx, sql, id).Scan(
		&rec.ID, &rec.DatasetID, &rec.Status, &rec.ErrorMessage,
		&graphJSON, &riskJSON, &flagsJSON, &statsJSON,
		&rec.CreatedAt, &rec.CompletedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.GraphJSON = jsonBytes(graphJSON)
	rec.RiskJSON = jsonBytes(riskJSON)
	rec.FlagsJSON = jsonBytes(flagsJSON)
	rec.StatsJSON = jsonBytes(statsJSON)
	return &rec, nil
}

// AnalysisHistoryItem joins an analysis with its dataset for listings.
type AnalysisHistoryItem struct {
	ID          uuid.UUID  `json:"id"`
	DatasetID   uuid.UUID  `json:"dataset_id"`
	Filename    string     `json:"filename"`
	RowCount    int        `json:"row_count"`
	Status      string     `json:"status"`
	StatsJSON   []byte     `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// ListAnalyses returns the full analysis history, newest first.
func (s *PostgresStore) ListAnalyses(ctx context.Context) ([]AnalysisHistoryItem, error) {
	sql := `
		SELECT a.id, a.dataset_id, d.filename, d.row_count, a.status,
		       a.stats_json, a.created_at, a.completed_at
		FROM analysis_results a
		JOIN datasets d ON a.dataset_id = d.id
		ORDER BY a.created_at DESC;
	`
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]AnalysisHistoryItem, 0)
	for rows.Next() {
		var item AnalysisHistoryItem
		var statsJSON *string
		err := rows.Scan(&item.ID, &item.DatasetID, &item.Filename, &item.RowCount,
			&item.Status, &statsJSON, &item.CreatedAt, &item.CompletedAt)
		if err != nil {
			return nil, err
		}
		item.StatsJSON = jsonBytes(statsJSON)
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// DeleteAnalysis removes an analysis and its parent dataset (transactions
// cascade with the dataset). Returns false when the analysis is unknown.
func (s *PostgresStore) DeleteAnalysis(ctx context.Context, id uuid.UUID) (bool, error) {
	var datasetID uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT dataset_id FROM analysis_results WHERE id = $1`, id).Scan(&datasetID)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM datasets WHERE id = $1`, datasetID); err != nil {
		return false, err
	}
	return true, nil
}

func jsonBytes(s *string) []byte {
	if s == nil {
		return nil
	}
	return []byte(*s)
}
