package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/nuevorag/internal/models"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{" JSON ", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutputFormat(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteIngestResult_JSON(t *testing.T) {
	res := &models.IngestResult{
		Success:   true,
		Message:   "PDF procesado e indexado: 3 chunks",
		Status:    models.StatusProcessed,
		ObjectKey: "uploads/acme/contracts/a.pdf",
		Details:   &models.IngestDetails{TenantID: "acme", IndexName: "rag-documents-acme", ChunksCount: 3},
	}
	var buf bytes.Buffer
	if err := WriteIngestResult(&buf, res, OutputJSON); err != nil {
		t.Fatalf("WriteIngestResult(json): %v", err)
	}
	var decoded models.IngestResult
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Details == nil || decoded.Details.ChunksCount != 3 {
		t.Errorf("decoded details: %+v", decoded.Details)
	}
}

func TestWriteIngestResult_text(t *testing.T) {
	res := &models.IngestResult{
		Message:   "no text",
		Status:    models.StatusFailed,
		Code:      "extraction_error",
		Stage:     models.StageExtract,
		RunID:     "run-1",
		ObjectKey: "uploads/acme/contracts/a.pdf",
	}
	var buf bytes.Buffer
	if err := WriteIngestResult(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"[failed]", "uploads/acme/contracts/a.pdf", "extraction_error", "stage extract", "run: run-1"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteBatchResult_text(t *testing.T) {
	res := &models.BatchResult{
		Success: true,
		Message: "Procesados 2 archivos exitosamente",
		Records: []models.IngestResult{
			{Status: models.StatusProcessed, ObjectKey: "uploads/a/x/1.pdf", Message: "ok"},
			{Status: models.StatusSkipped, ObjectKey: "uploads/a/x/2.txt", Code: "unsupported_format", Message: "skip"},
		},
	}
	var buf bytes.Buffer
	if err := WriteBatchResult(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "Procesados 2 archivos exitosamente") {
		t.Errorf("batch header missing:\n%s", out)
	}
	if !strings.Contains(out, "[skipped] uploads/a/x/2.txt") {
		t.Errorf("skipped record missing:\n%s", out)
	}
}

func TestWriteQueryResult_text(t *testing.T) {
	res := &models.QueryResult{
		Success: true,
		Answer:  "El contrato vence en marzo.",
		Sources: []models.RetrievalMatch{
			{Content: "vence en marzo", SourceFile: "a.pdf", DocumentType: "contracts", ChunkIndex: 2, Score: 0.91},
		},
		TotalDocumentsSearched: 1,
	}
	var buf bytes.Buffer
	if err := WriteQueryResult(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"El contrato vence en marzo.", "Sources (1 of 1 searched)", "a.pdf [contracts] chunk 2", "0.9100"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteQueryResult_failure(t *testing.T) {
	res := &models.QueryResult{Code: "invalid_input", Message: "question cannot be empty", Sources: []models.RetrievalMatch{}}
	var buf bytes.Buffer
	if err := WriteQueryResult(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Error (invalid_input)") {
		t.Errorf("failure not reported:\n%s", buf.String())
	}
}

func TestWriteRuns(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(1500 * time.Millisecond)
	runs := []*models.IngestionRun{
		{ID: "r1", TenantID: "acme", ObjectKey: "uploads/acme/x/a.pdf", Status: models.StatusProcessed, Chunks: 4, Indexed: 4, StartedAt: start, FinishedAt: &end},
		{ID: "r2", TenantID: "acme", ObjectKey: "uploads/acme/x/b.pdf", Status: models.StatusFailed, Code: "index_error", Message: "boom", StartedAt: start},
	}
	var buf bytes.Buffer
	if err := WriteRuns(&buf, runs, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"2025-03-01T10:00:00Z", "processed", "chunks=4 indexed=4", "1.5s", "index_error: boom"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	if err := WriteRuns(&buf, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty JSON runs = %q", buf.String())
	}

	buf.Reset()
	_ = WriteRuns(&buf, nil, OutputText)
	if !strings.Contains(buf.String(), "No ingestions found") {
		t.Errorf("empty text runs = %q", buf.String())
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"exact", "one two three", 3, "one two three"},
		{"more", "one two three four", 3, "one two three..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateWords(tt.s, tt.maxWords)
			if got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}
