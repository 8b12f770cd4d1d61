package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/nuevorag/internal/fileid"
	"github.com/hyperjump/nuevorag/internal/models"
	"github.com/hyperjump/nuevorag/internal/vector"
	"github.com/hyperjump/nuevorag/pkg/utils"
	"go.uber.org/zap"
)

// WriteRequest is one document's chunks and their index-aligned vectors.
type WriteRequest struct {
	TenantID     string
	DocumentType string
	SourceFile   string
	FileFormat   string
	Chunks       []string
	Vectors      [][]float32
}

// WriteResult reports where records were written.
type WriteResult struct {
	Collection string
	Indexed    int
	Created    bool
}

// Writer writes embedded chunks into the tenant's collection.
type Writer struct {
	store      vector.Store
	prefix     string
	dimensions int
	logger     *zap.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithLogger sets a logger for collection creation and bulk results.
func WithLogger(l *zap.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// NewWriter creates a writer for collections named "{prefix}-{tenant}" with vectors of the given dimensions.
func NewWriter(store vector.Store, prefix string, dimensions int, opts ...WriterOption) *Writer {
	w := &Writer{store: store, prefix: prefix, dimensions: dimensions}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = utils.OrNop(w.logger)
	return w
}

// Collection returns the collection name for a tenant.
func (w *Writer) Collection(tenantID string) string {
	return vector.CollectionName(w.prefix, tenantID)
}

// Write ensures the tenant collection exists and bulk-indexes one record per chunk.
// Any rejected record fails the whole write; already accepted records are not rolled back.
func (w *Writer) Write(ctx context.Context, req WriteRequest) (*WriteResult, error) {
	if len(req.Chunks) != len(req.Vectors) {
		return nil, indexError(fmt.Errorf("%d chunks but %d vectors", len(req.Chunks), len(req.Vectors)))
	}
	if len(req.Chunks) == 0 {
		return nil, indexError(fmt.Errorf("nothing to index"))
	}
	if req.TenantID == "" {
		return nil, indexError(fmt.Errorf("tenant id is required"))
	}
	collection := w.Collection(req.TenantID)

	created, err := w.store.EnsureCollection(ctx, collection, w.dimensions)
	if err != nil {
		return nil, indexError(fmt.Errorf("ensure collection %s: %w", collection, err))
	}
	if created {
		w.logger.Info("collection created", zap.String("collection", collection), zap.Int("dimensions", w.dimensions))
	}

	records := make([]models.IndexedRecord, len(req.Chunks))
	for i, chunk := range req.Chunks {
		records[i] = models.IndexedRecord{
			ID:           fileid.RecordID(req.TenantID, req.SourceFile, i, chunk),
			Content:      chunk,
			Embedding:    req.Vectors[i],
			TenantID:     req.TenantID,
			DocumentType: req.DocumentType,
			FileFormat:   req.FileFormat,
			SourceFile:   req.SourceFile,
			ChunkIndex:   i,
		}
	}
	res, err := w.store.BulkIndex(ctx, collection, records)
	if err != nil {
		return nil, indexError(fmt.Errorf("bulk index into %s: %w", collection, err))
	}
	if res.Failed > 0 {
		return nil, indexError(fmt.Errorf("bulk index into %s: %d of %d records rejected: %s",
			collection, res.Failed, len(records), strings.Join(res.Errors, "; ")))
	}
	w.logger.Debug("chunks indexed",
		zap.String("collection", collection),
		zap.String("source_file", req.SourceFile),
		zap.Int("records", res.Indexed))
	return &WriteResult{Collection: collection, Indexed: res.Indexed, Created: created}, nil
}

func indexError(err error) error {
	return models.NewStageError(models.StageIndex, models.ErrIndex, err)
}
