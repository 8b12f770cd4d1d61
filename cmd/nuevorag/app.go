package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/nuevorag/internal/bedrock"
	"github.com/hyperjump/nuevorag/internal/config"
	"github.com/hyperjump/nuevorag/internal/embedding"
	"github.com/hyperjump/nuevorag/internal/extract"
	"github.com/hyperjump/nuevorag/internal/generate"
	"github.com/hyperjump/nuevorag/internal/indexer"
	"github.com/hyperjump/nuevorag/internal/objectstore"
	"github.com/hyperjump/nuevorag/internal/pipeline"
	"github.com/hyperjump/nuevorag/internal/search"
	"github.com/hyperjump/nuevorag/internal/storage"
	"github.com/hyperjump/nuevorag/internal/vector"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Objects  objectstore.Store
	Vectors  vector.Store
	Embedder embedding.Embedder
	Ledger   storage.RunLedger
	Pipeline *pipeline.Pipeline
}

// Close releases the ledger and flushes the vector store. A memory store saves its
// snapshot here, so the error must not be dropped.
func (c *Components) Close() error {
	var errs []error
	if c.Ledger != nil {
		if err := c.Ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close run ledger: %w", err))
		}
	}
	if c.Vectors != nil {
		if err := c.Vectors.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close vector store: %w", err))
		}
	}
	return errors.Join(errs...)
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	var ledger storage.RunLedger = storage.NopLedger{}
	if !cfg.Storage.Disabled && cfg.Storage.DatabasePath != "" {
		l, err := storage.NewSQLiteLedger(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize run ledger: %w", err)
		}
		ledger = l
	}
	c := &Components{Ledger: ledger}

	objects, err := objectstore.NewStore(&cfg.ObjectStore, logger)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize object store: %w", err)
	}
	c.Objects = objects

	vectors, err := vector.NewStore(ctx, &cfg.VectorStore, logger)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	c.Vectors = vectors

	// Answers are always generated through Bedrock; the mock provider only replaces embeddings.
	// Generation gets the long configured timeout, embeddings keep the SDK default.
	invoker, err := bedrock.NewClient(ctx, generationClientOptions(cfg), bedrock.WithLogger(logger))
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize bedrock client: %w", err)
	}

	embedder, err := newEmbedder(ctx, cfg, logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Embedder = embedder

	prefix := cfg.VectorStore.IndexPrefix
	generator := generate.NewGenerator(invoker, cfg.Generation.ModelID,
		generate.WithInference(cfg.Generation.MaxTokens, cfg.Generation.TemperatureOrDefault(), cfg.Generation.TopP),
		generate.WithContextMatches(cfg.Retrieval.ContextMatches),
		generate.WithLogger(logger))

	c.Pipeline = pipeline.New(pipeline.Components{
		Objects:    objects,
		Strategies: pipeline.DefaultStrategies(extract.NewExtractor(extract.WithLogger(logger))),
		Chunker:    indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap),
		Embedder:   embedder,
		Writer:     indexer.NewWriter(vectors, prefix, embedder.Dimensions(), indexer.WithLogger(logger)),
		Retriever: search.NewRetriever(embedder, vectors, prefix,
			search.WithDefaultK(cfg.Retrieval.TopK), search.WithLogger(logger)),
		Generator: generator,
		Ledger:    ledger,
	}, pipeline.WithTopK(cfg.Retrieval.TopK), pipeline.WithLogger(logger))

	logger.Info("components initialized",
		zap.String("object_store", cfg.ObjectStore.Type),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("embedding_model", embedder.ModelID()),
		zap.Int("dimensions", embedder.Dimensions()),
		zap.String("generation_model", cfg.Generation.ModelID))
	return c, nil
}

func generationClientOptions(cfg *config.Config) bedrock.Options {
	return bedrock.Options{
		Region:  cfg.AWS.Region,
		Profile: cfg.AWS.Profile,
		Timeout: cfg.Generation.Timeout(),
	}
}

// embeddingClientOptions leaves Timeout zero so the SDK default applies.
func embeddingClientOptions(cfg *config.Config) bedrock.Options {
	return bedrock.Options{
		Region:  cfg.AWS.Region,
		Profile: cfg.AWS.Profile,
	}
}

func newEmbedder(ctx context.Context, cfg *config.Config, logger *zap.Logger) (embedding.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), nil
	case "bedrock", "":
		invoker, err := bedrock.NewClient(ctx, embeddingClientOptions(cfg), bedrock.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize bedrock embedding client: %w", err)
		}
		opts := []embedding.TitanOption{
			embedding.WithRateLimit(cfg.Embedding.RequestsPerSecond),
			embedding.WithLogger(logger),
		}
		if cfg.Embedding.CacheSize > 0 {
			opts = append(opts, embedding.WithCache(embedding.NewEmbeddingCache(cfg.Embedding.CacheSize)))
		}
		e, err := embedding.NewTitanEmbedder(invoker, cfg.Embedding.ModelID, cfg.Embedding.Dimensions, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: bedrock, mock)", cfg.Embedding.Provider)
	}
}
