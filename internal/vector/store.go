// Package vector stores embedded chunks in tenant-scoped collections and searches them by similarity.
package vector

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/hyperjump/nuevorag/internal/models"
)

// ErrCollectionNotFound is returned by Search and BulkIndex when the collection does not exist.
var ErrCollectionNotFound = errors.New("collection not found")

// Store is a vector store partitioned into named collections.
type Store interface {
	// EnsureCollection creates the collection if it is missing. created reports whether it was created.
	EnsureCollection(ctx context.Context, name string, dimensions int) (created bool, err error)
	// BulkIndex writes records, replacing records with the same ID.
	BulkIndex(ctx context.Context, name string, records []models.IndexedRecord) (*BulkResult, error)
	// Search returns up to k records matching filter, by descending similarity to query.
	Search(ctx context.Context, name string, query []float32, k int, filter Filter) ([]models.RetrievalMatch, error)
	Close() error
}

// Filter restricts a search. TenantID is always applied; DocumentType only when non-empty.
type Filter struct {
	TenantID     string
	DocumentType string
}

// BulkResult reports the outcome of a BulkIndex call. Failed records are not retried.
type BulkResult struct {
	Indexed int
	Failed  int
	Errors  []string
}

const maxBulkErrors = 5

func (r *BulkResult) addError(reason string) {
	r.Failed++
	if len(r.Errors) < maxBulkErrors {
		r.Errors = append(r.Errors, reason)
	}
}

// CollectionName returns the collection holding a tenant's records: "{prefix}-{tenantID}".
// Characters that are not letters, digits, '-', '_' or '.' are replaced with '-'.
func CollectionName(prefix, tenantID string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			return r
		}
		return '-'
	}, tenantID)
	return prefix + "-" + clean
}

func matches(rec *models.IndexedRecord, f Filter) bool {
	if rec.TenantID != f.TenantID {
		return false
	}
	return f.DocumentType == "" || rec.DocumentType == f.DocumentType
}

func toMatch(rec *models.IndexedRecord, score float64) models.RetrievalMatch {
	return models.RetrievalMatch{
		Content:      rec.Content,
		SourceFile:   rec.SourceFile,
		DocumentType: rec.DocumentType,
		FileFormat:   rec.FileFormat,
		TenantID:     rec.TenantID,
		ChunkIndex:   rec.ChunkIndex,
		Score:        score,
	}
}

// InnerProduct returns the inner product of two vectors (for normalized vectors equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
