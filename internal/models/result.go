package models

// IngestStatus is the final state of one ingestion run.
type IngestStatus string

const (
	StatusProcessed IngestStatus = "processed"
	StatusFailed    IngestStatus = "failed"
	StatusSkipped   IngestStatus = "skipped"
	StatusRejected  IngestStatus = "rejected"
	StatusRunning   IngestStatus = "running"
)

// IngestDetails describes where a processed document was indexed.
type IngestDetails struct {
	TenantID        string `json:"tenant_id"`
	IndexName       string `json:"index_name"`
	ChunksCount     int    `json:"chunks_count"`
	EmbeddingsCount int    `json:"embeddings_count"`
	DocumentType    string `json:"document_type"`
	Filename        string `json:"filename"`
	CollectionNew   bool   `json:"collection_created"`
}

// IngestStats counts the work done by each ingest stage.
type IngestStats struct {
	Characters       int `json:"characters"`
	Chunks           int `json:"chunks"`
	Embeddings       int `json:"embeddings"`
	FailedEmbeddings int `json:"failed_embeddings"`
	Dimensions       int `json:"dimensions"`
	Indexed          int `json:"indexed"`
}

// IngestResult is the envelope returned for one ingested object.
// On failure Code and Stage identify the reason; Details is only set on success.
type IngestResult struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Status    IngestStatus   `json:"status"`
	Code      string         `json:"code,omitempty"`
	Stage     Stage          `json:"stage,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	ObjectKey string         `json:"object_key"`
	Details   *IngestDetails `json:"details,omitempty"`
	Stats     *IngestStats   `json:"stats,omitempty"`
}

// BatchResult is the envelope returned for an ObjectEvent. Success is true even when
// individual records failed; their outcomes are listed in Records.
type BatchResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Records []IngestResult `json:"records"`
}

// QueryResult is the envelope returned for a question. Sources is always present.
type QueryResult struct {
	Success                bool             `json:"success"`
	Message                string           `json:"message,omitempty"`
	Code                   string           `json:"code,omitempty"`
	Stage                  Stage            `json:"stage,omitempty"`
	Answer                 string           `json:"answer,omitempty"`
	Sources                []RetrievalMatch `json:"sources"`
	TotalDocumentsSearched int              `json:"total_documents_searched"`
}
