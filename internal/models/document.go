// Package models defines core data structures for documents, indexed records, retrieval matches and results.
package models

// Document is one uploaded object for the duration of a single ingestion run.
// The raw bytes are never persisted by this module.
type Document struct {
	Content      []byte `json:"-"`
	TenantID     string `json:"tenant_id"`
	DocumentType string `json:"document_type"`
	Bucket       string `json:"bucket"`
	SourceKey    string `json:"source_key"`
	Filename     string `json:"filename"`
	Extension    string `json:"extension"`
	Size         int64  `json:"size"`
}

// IndexedRecord is the persisted unit in a tenant collection.
type IndexedRecord struct {
	ID           string    `json:"-"`
	Content      string    `json:"content"`
	Embedding    []float32 `json:"embedding"`
	TenantID     string    `json:"tenant_id"`
	DocumentType string    `json:"document_type"`
	FileFormat   string    `json:"file_format"`
	SourceFile   string    `json:"source_file"`
	ChunkIndex   int       `json:"chunk_index"`
}

// RetrievalMatch is a read-only projection of an IndexedRecord plus its similarity score.
type RetrievalMatch struct {
	Content      string  `json:"content"`
	SourceFile   string  `json:"source_file"`
	DocumentType string  `json:"document_type"`
	FileFormat   string  `json:"file_format,omitempty"`
	TenantID     string  `json:"tenant_id"`
	ChunkIndex   int     `json:"chunk_index"`
	Score        float64 `json:"score"`
}

// Answer is a generated response and the matches that grounded it.
type Answer struct {
	Text    string           `json:"answer"`
	Sources []RetrievalMatch `json:"sources"`
}
