package models

import "time"

// IngestionRun is one ledger entry describing an ingest attempt for a single object.
type IngestionRun struct {
	ID           string       `json:"id"`
	TenantID     string       `json:"tenant_id"`
	DocumentType string       `json:"document_type"`
	Bucket       string       `json:"bucket"`
	ObjectKey    string       `json:"object_key"`
	Filename     string       `json:"filename"`
	Status       IngestStatus `json:"status"`
	Code         string       `json:"code,omitempty"`
	Stage        Stage        `json:"stage,omitempty"`
	Message      string       `json:"message,omitempty"`
	Collection   string       `json:"collection,omitempty"`
	Characters   int          `json:"characters"`
	Chunks       int          `json:"chunks"`
	Embeddings   int          `json:"embeddings"`
	Failed       int          `json:"failed_embeddings"`
	Indexed      int          `json:"indexed"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   *time.Time   `json:"finished_at,omitempty"`
}

// Duration returns how long the run took, or zero while it is still running.
func (r *IngestionRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Finish copies the outcome of res onto the run.
func (r *IngestionRun) Finish(res *IngestResult, at time.Time) {
	r.Status = res.Status
	r.Code = res.Code
	r.Stage = res.Stage
	r.Message = res.Message
	if res.Details != nil {
		r.Collection = res.Details.IndexName
	}
	if res.Stats != nil {
		r.Characters = res.Stats.Characters
		r.Chunks = res.Stats.Chunks
		r.Embeddings = res.Stats.Embeddings
		r.Failed = res.Stats.FailedEmbeddings
		r.Indexed = res.Stats.Indexed
	}
	r.FinishedAt = &at
}

// RunFilter narrows ListRuns results. Zero values match everything.
type RunFilter struct {
	TenantID string
	Status   IngestStatus
	Limit    int
	Offset   int
}
