// Package storage persists the ingestion run ledger.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/nuevorag/internal/models"
)

// ErrRunNotFound is returned by GetRun for unknown IDs.
var ErrRunNotFound = errors.New("run not found")

// DefaultListLimit caps ListRuns when the filter sets no limit.
const DefaultListLimit = 50

// RunLedger records every ingest attempt and its outcome.
type RunLedger interface {
	CreateRun(ctx context.Context, run *models.IngestionRun) error
	FinishRun(ctx context.Context, run *models.IngestionRun) error
	GetRun(ctx context.Context, id string) (*models.IngestionRun, error)
	ListRuns(ctx context.Context, filter models.RunFilter) ([]*models.IngestionRun, error)
	CountRuns(ctx context.Context, tenantID string) (map[models.IngestStatus]int64, error)

	Close() error
}

// NopLedger discards runs. It is used when the ledger is disabled.
type NopLedger struct{}

func (NopLedger) CreateRun(context.Context, *models.IngestionRun) error { return nil }
func (NopLedger) FinishRun(context.Context, *models.IngestionRun) error { return nil }
func (NopLedger) GetRun(context.Context, string) (*models.IngestionRun, error) {
	return nil, ErrRunNotFound
}
func (NopLedger) ListRuns(context.Context, models.RunFilter) ([]*models.IngestionRun, error) {
	return []*models.IngestionRun{}, nil
}
func (NopLedger) CountRuns(context.Context, string) (map[models.IngestStatus]int64, error) {
	return map[models.IngestStatus]int64{}, nil
}
func (NopLedger) Close() error { return nil }
