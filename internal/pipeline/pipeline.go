// Package pipeline runs the ingest and query flows and turns every outcome into a result envelope.
package pipeline

import (
	"context"

	"github.com/hyperjump/nuevorag/internal/embedding"
	"github.com/hyperjump/nuevorag/internal/indexer"
	"github.com/hyperjump/nuevorag/internal/models"
	"github.com/hyperjump/nuevorag/internal/objectstore"
	"github.com/hyperjump/nuevorag/internal/search"
	"github.com/hyperjump/nuevorag/internal/storage"
	"github.com/hyperjump/nuevorag/pkg/utils"
	"go.uber.org/zap"
)

// NoInformationAnswer is returned when retrieval finds nothing for a question.
const NoInformationAnswer = "No encontré información relevante en los documentos para responder tu pregunta."

// IndexWriter stores embedded chunks in a tenant collection.
type IndexWriter interface {
	Write(ctx context.Context, req indexer.WriteRequest) (*indexer.WriteResult, error)
}

// Retriever finds the best matches for a question in a tenant collection.
type Retriever interface {
	Retrieve(ctx context.Context, req search.RetrieveRequest) ([]models.RetrievalMatch, error)
}

// AnswerGenerator writes a grounded answer from retrieved matches.
type AnswerGenerator interface {
	Generate(ctx context.Context, question string, matches []models.RetrievalMatch) (string, error)
}

// Components are the collaborators of a Pipeline. All are required except Ledger.
type Components struct {
	Objects    objectstore.Store
	Strategies Strategies
	Chunker    *indexer.Chunker
	Embedder   embedding.Embedder
	Writer     IndexWriter
	Retriever  Retriever
	Generator  AnswerGenerator
	Ledger     storage.RunLedger
}

// Pipeline orchestrates document ingestion and question answering.
type Pipeline struct {
	objects    objectstore.Store
	strategies Strategies
	chunker    *indexer.Chunker
	embedder   embedding.Embedder
	writer     IndexWriter
	retriever  Retriever
	generator  AnswerGenerator
	ledger     storage.RunLedger
	topK       int
	logger     *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithTopK sets the number of matches retrieved for a question when the request does not say.
func WithTopK(k int) Option {
	return func(p *Pipeline) {
		if k > 0 {
			p.topK = k
		}
	}
}

// New creates a Pipeline. A nil ledger disables run recording.
func New(c Components, opts ...Option) *Pipeline {
	p := &Pipeline{
		objects:    c.Objects,
		strategies: c.Strategies,
		chunker:    c.Chunker,
		embedder:   c.Embedder,
		writer:     c.Writer,
		retriever:  c.Retriever,
		generator:  c.Generator,
		ledger:     c.Ledger,
		topK:       search.DefaultK,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.ledger == nil {
		p.ledger = storage.NopLedger{}
	}
	if p.strategies == nil {
		p.strategies = Strategies{}
	}
	p.logger = utils.OrNop(p.logger)
	return p
}

// Ledger returns the run ledger used by the pipeline.
func (p *Pipeline) Ledger() storage.RunLedger {
	return p.ledger
}
