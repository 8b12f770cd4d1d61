// Package search retrieves the chunks of a tenant's collection most similar to a question.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hyperjump/nuevorag/internal/embedding"
	"github.com/hyperjump/nuevorag/internal/models"
	"github.com/hyperjump/nuevorag/internal/vector"
	"github.com/hyperjump/nuevorag/pkg/utils"
	"go.uber.org/zap"
)

// DefaultK is the number of matches returned when a request does not set K.
const DefaultK = 5

// RetrieveRequest is a question scoped to a tenant and optionally a document type.
type RetrieveRequest struct {
	Query        string
	TenantID     string
	DocumentType string
	K            int
}

// Retriever embeds questions and searches tenant collections.
type Retriever struct {
	embedder embedding.Embedder
	store    vector.Store
	prefix   string
	defaultK int
	logger   *zap.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLogger sets a logger for search diagnostics.
func WithLogger(l *zap.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// WithDefaultK sets the number of matches used when a request does not set K.
func WithDefaultK(k int) RetrieverOption {
	return func(r *Retriever) {
		if k > 0 {
			r.defaultK = k
		}
	}
}

// NewRetriever creates a retriever over collections named "{prefix}-{tenant}".
func NewRetriever(embedder embedding.Embedder, store vector.Store, prefix string, opts ...RetrieverOption) *Retriever {
	r := &Retriever{embedder: embedder, store: store, prefix: prefix, defaultK: DefaultK}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = utils.OrNop(r.logger)
	return r
}

// Retrieve returns up to K matches from the tenant's collection ordered by descending score.
// A tenant without a collection has no matches. Errors wrap models.ErrRetrieval.
func (r *Retriever) Retrieve(ctx context.Context, req RetrieveRequest) ([]models.RetrievalMatch, error) {
	start := time.Now()
	if err := r.process(&req); err != nil {
		return nil, models.NewStageError(models.StageRetrieve, models.ErrRetrieval, err)
	}

	vec, err := embedding.EmbedQuery(ctx, r.embedder, req.Query)
	if err != nil {
		return nil, models.NewStageError(models.StageRetrieve, models.ErrRetrieval, err)
	}

	collection := vector.CollectionName(r.prefix, req.TenantID)
	filter := vector.Filter{TenantID: req.TenantID, DocumentType: req.DocumentType}
	matches, err := r.store.Search(ctx, collection, vec, req.K, filter)
	if errors.Is(err, vector.ErrCollectionNotFound) {
		r.logger.Debug("collection not found", zap.String("collection", collection))
		return []models.RetrievalMatch{}, nil
	}
	if err != nil {
		return nil, models.NewStageError(models.StageRetrieve, models.ErrRetrieval,
			fmt.Errorf("search %s: %w", collection, err))
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > req.K {
		matches = matches[:req.K]
	}
	r.logger.Debug("retrieved matches",
		zap.String("collection", collection),
		zap.String("document_type", req.DocumentType),
		zap.Int("matches", len(matches)),
		zap.Duration("elapsed", time.Since(start)))
	if matches == nil {
		matches = []models.RetrievalMatch{}
	}
	return matches, nil
}
