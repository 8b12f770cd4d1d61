package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/nuevorag/internal/models"
)

func newTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	ledger, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "data", "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func TestSQLiteLedger_CreateAndFinish(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	run := &models.IngestionRun{
		ID:           "run1",
		TenantID:     "acme",
		DocumentType: "contracts",
		Bucket:       "docs",
		ObjectKey:    "uploads/acme/contracts/a.pdf",
		Filename:     "a.pdf",
	}
	if err := ledger.CreateRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if run.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}
	if run.Status != models.StatusRunning {
		t.Errorf("status = %s, want running", run.Status)
	}

	got, err := ledger.GetRun(ctx, "run1")
	if err != nil {
		t.Fatal(err)
	}
	if got.FinishedAt != nil || got.Status != models.StatusRunning {
		t.Errorf("unexpected run before finish: %+v", got)
	}

	run.Finish(&models.IngestResult{
		Status:  models.StatusProcessed,
		Message: "ok",
		Details: &models.IngestDetails{IndexName: "rag-documents-acme"},
		Stats:   &models.IngestStats{Chunks: 3, Embeddings: 3, Indexed: 3},
	}, time.Now().UTC())
	if err := ledger.FinishRun(ctx, run); err != nil {
		t.Fatal(err)
	}

	got, err = ledger.GetRun(ctx, "run1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusProcessed || got.Collection != "rag-documents-acme" {
		t.Errorf("got %+v", got)
	}
	if got.Chunks != 3 || got.Indexed != 3 {
		t.Errorf("counts not stored: %+v", got)
	}
	if got.FinishedAt == nil {
		t.Fatal("FinishedAt should be set")
	}
	if got.Duration() < 0 {
		t.Errorf("negative duration %v", got.Duration())
	}
}

func TestSQLiteLedger_NotFound(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun: expected ErrRunNotFound, got %v", err)
	}
	err := ledger.FinishRun(ctx, &models.IngestionRun{ID: "missing", Status: models.StatusFailed})
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun: expected ErrRunNotFound, got %v", err)
	}
}

func TestSQLiteLedger_ListAndCount(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	runs := []*models.IngestionRun{
		{ID: "a", TenantID: "acme", ObjectKey: "k1", Status: models.StatusProcessed, StartedAt: base},
		{ID: "b", TenantID: "acme", ObjectKey: "k2", Status: models.StatusFailed, StartedAt: base.Add(time.Minute)},
		{ID: "c", TenantID: "globex", ObjectKey: "k3", Status: models.StatusProcessed, StartedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range runs {
		if err := ledger.CreateRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	all, err := ledger.ListRuns(ctx, models.RunFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("expected newest first, got %v", ids(all))
	}

	acme, err := ledger.ListRuns(ctx, models.RunFilter{TenantID: "acme"})
	if err != nil {
		t.Fatal(err)
	}
	if len(acme) != 2 {
		t.Errorf("expected 2 acme runs, got %v", ids(acme))
	}

	failed, err := ledger.ListRuns(ctx, models.RunFilter{Status: models.StatusFailed})
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].ID != "b" {
		t.Errorf("expected run b, got %v", ids(failed))
	}

	page, err := ledger.ListRuns(ctx, models.RunFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != "b" {
		t.Errorf("expected run b on second page, got %v", ids(page))
	}

	counts, err := ledger.CountRuns(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if counts[models.StatusProcessed] != 2 || counts[models.StatusFailed] != 1 {
		t.Errorf("counts = %v", counts)
	}
	counts, err = ledger.CountRuns(ctx, "globex")
	if err != nil {
		t.Fatal(err)
	}
	if counts[models.StatusProcessed] != 1 || counts[models.StatusFailed] != 0 {
		t.Errorf("globex counts = %v", counts)
	}
}

func TestNopLedger(t *testing.T) {
	var l RunLedger = NopLedger{}
	ctx := context.Background()
	if err := l.CreateRun(ctx, &models.IngestionRun{ID: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := l.GetRun(ctx, "x"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	runs, err := l.ListRuns(ctx, models.RunFilter{})
	if err != nil || len(runs) != 0 {
		t.Errorf("ListRuns = %v, %v", runs, err)
	}
}

func ids(runs []*models.IngestionRun) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.ID
	}
	return out
}
