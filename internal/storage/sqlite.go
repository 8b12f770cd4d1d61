package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/nuevorag/internal/models"
)

// SQLiteLedger implements RunLedger using SQLite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ingestion_runs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		document_type TEXT NOT NULL DEFAULT '',
		bucket TEXT NOT NULL DEFAULT '',
		object_key TEXT NOT NULL,
		filename TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		code TEXT NOT NULL DEFAULT '',
		stage TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		collection TEXT NOT NULL DEFAULT '',
		characters INTEGER NOT NULL DEFAULT 0,
		chunks INTEGER NOT NULL DEFAULT 0,
		embeddings INTEGER NOT NULL DEFAULT 0,
		failed_embeddings INTEGER NOT NULL DEFAULT 0,
		indexed INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_tenant_started ON ingestion_runs(tenant_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON ingestion_runs(status);
	`
	_, err := db.Exec(schema)
	return err
}

const runColumns = `id, tenant_id, document_type, bucket, object_key, filename, status, code, stage,
	message, collection, characters, chunks, embeddings, failed_embeddings, indexed, started_at, finished_at`

// CreateRun inserts run. StartedAt is set when zero.
func (s *SQLiteLedger) CreateRun(ctx context.Context, run *models.IngestionRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = models.StatusRunning
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestion_runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.TenantID, run.DocumentType, run.Bucket, run.ObjectKey, run.Filename,
		string(run.Status), run.Code, string(run.Stage), run.Message, run.Collection,
		run.Characters, run.Chunks, run.Embeddings, run.Failed, run.Indexed, run.StartedAt, run.FinishedAt,
	)
	return err
}

// FinishRun stores the outcome fields of run.
func (s *SQLiteLedger) FinishRun(ctx context.Context, run *models.IngestionRun) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE ingestion_runs SET status = ?, code = ?, stage = ?, message = ?, collection = ?,
		 characters = ?, chunks = ?, embeddings = ?, failed_embeddings = ?, indexed = ?, finished_at = ?
		 WHERE id = ?`,
		string(run.Status), run.Code, string(run.Stage), run.Message, run.Collection,
		run.Characters, run.Chunks, run.Embeddings, run.Failed, run.Indexed, run.FinishedAt, run.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// GetRun returns a run by ID.
func (s *SQLiteLedger) GetRun(ctx context.Context, id string) (*models.IngestionRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM ingestion_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *SQLiteLedger) ListRuns(ctx context.Context, filter models.RunFilter) ([]*models.IngestionRun, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM ingestion_runs
		 WHERE (? = '' OR tenant_id = ?) AND (? = '' OR status = ?)
		 ORDER BY started_at DESC, id LIMIT ? OFFSET ?`,
		filter.TenantID, filter.TenantID, string(filter.Status), string(filter.Status), limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*models.IngestionRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountRuns returns the number of runs per status, optionally for one tenant.
func (s *SQLiteLedger) CountRuns(ctx context.Context, tenantID string) (map[models.IngestStatus]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM ingestion_runs
		 WHERE (? = '' OR tenant_id = ?) GROUP BY status`,
		tenantID, tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.IngestStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.IngestStatus(status)] = n
	}
	return counts, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.IngestionRun, error) {
	var run models.IngestionRun
	var status, stage string
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.TenantID, &run.DocumentType, &run.Bucket, &run.ObjectKey, &run.Filename,
		&status, &run.Code, &stage, &run.Message, &run.Collection,
		&run.Characters, &run.Chunks, &run.Embeddings, &run.Failed, &run.Indexed, &run.StartedAt, &finished)
	if err != nil {
		return nil, err
	}
	run.Status = models.IngestStatus(status)
	run.Stage = models.Stage(stage)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
