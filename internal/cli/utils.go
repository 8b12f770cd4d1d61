// Package cli formats ingest, query and ledger results for the nuevorag command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/nuevorag/internal/models"
	"github.com/hyperjump/nuevorag/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("invalid output format %q: use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteIngestResult writes one ingest outcome to w.
func WriteIngestResult(w io.Writer, res *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	writeIngestText(w, res)
	return nil
}

// WriteBatchResult writes the outcome of an event with several records.
func WriteBatchResult(w io.Writer, res *models.BatchResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "%s\n", res.Message)
	for i := range res.Records {
		writeIngestText(w, &res.Records[i])
	}
	return nil
}

func writeIngestText(w io.Writer, res *models.IngestResult) {
	fmt.Fprintf(w, "[%s] %s\n", res.Status, res.ObjectKey)
	fmt.Fprintf(w, "  %s\n", res.Message)
	if res.Code != "" {
		fmt.Fprintf(w, "  code: %s (stage %s)\n", res.Code, res.Stage)
	}
	if res.Details != nil {
		fmt.Fprintf(w, "  index: %s  chunks: %d  embeddings: %d\n",
			res.Details.IndexName, res.Details.ChunksCount, res.Details.EmbeddingsCount)
	}
	if res.Stats != nil && res.Stats.FailedEmbeddings > 0 {
		fmt.Fprintf(w, "  failed embeddings: %d\n", res.Stats.FailedEmbeddings)
	}
	if res.RunID != "" {
		fmt.Fprintf(w, "  run: %s\n", res.RunID)
	}
}

// WriteQueryResult writes an answer and its sources.
func WriteQueryResult(w io.Writer, res *models.QueryResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if !res.Success {
		fmt.Fprintf(w, "Error (%s): %s\n", res.Code, res.Message)
	}
	if res.Answer != "" {
		fmt.Fprintf(w, "\n%s\n", res.Answer)
	}
	fmt.Fprintf(w, "\nSources (%d of %d searched):\n", len(res.Sources), res.TotalDocumentsSearched)
	for i, m := range res.Sources {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. %s [%s] chunk %d | Score: %.4f\n", i+1, m.SourceFile, m.DocumentType, m.ChunkIndex, m.Score)
		fmt.Fprintf(w, "%s\n", utils.Truncate(m.Content, 200))
	}
	return nil
}

// WriteRuns writes ledger entries, newest first as returned by the ledger.
func WriteRuns(w io.Writer, runs []*models.IngestionRun, format OutputFormat) error {
	if format == OutputJSON {
		if runs == nil {
			runs = []*models.IngestionRun{}
		}
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No ingestions found.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-9s  %-12s  %s  chunks=%d indexed=%d  %s\n",
			r.StartedAt.Format(time.RFC3339), r.Status, r.TenantID, r.ObjectKey,
			r.Chunks, r.Indexed, formatDuration(r.Duration()))
		if r.Code != "" {
			fmt.Fprintf(w, "    %s: %s\n", r.Code, TruncateWords(r.Message, 20))
		}
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
