package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperjump/nuevorag/internal/bedrock"
	"github.com/hyperjump/nuevorag/internal/models"
	"github.com/hyperjump/nuevorag/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TitanEmbedder embeds text with an Amazon Titan text embedding model, one request per item.
type TitanEmbedder struct {
	invoker    bedrock.Invoker
	modelID    string
	dimensions int
	limiter    *rate.Limiter
	cache      *EmbeddingCache
	logger     *zap.Logger
}

// TitanOption configures a TitanEmbedder.
type TitanOption func(*TitanEmbedder)

// WithLogger sets a logger for skipped items.
func WithLogger(l *zap.Logger) TitanOption {
	return func(e *TitanEmbedder) { e.logger = l }
}

// WithRateLimit limits model requests per second. Zero or negative disables limiting.
func WithRateLimit(rps float64) TitanOption {
	return func(e *TitanEmbedder) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithCache reuses embeddings of queries seen before. Document chunks are never cached.
func WithCache(c *EmbeddingCache) TitanOption {
	return func(e *TitanEmbedder) { e.cache = c }
}

// NewTitanEmbedder creates an embedder for modelID producing vectors of the given dimensions.
func NewTitanEmbedder(invoker bedrock.Invoker, modelID string, dimensions int, opts ...TitanOption) (*TitanEmbedder, error) {
	if invoker == nil {
		return nil, errors.New("invoker is required")
	}
	if err := ValidateDimensions(dimensions); err != nil {
		return nil, err
	}
	if native := ModelDimensions(modelID); native != 0 && native != 1024 {
		return nil, fmt.Errorf("model %s has fixed %d dimensions and cannot produce %d", modelID, native, dimensions)
	}
	e := &TitanEmbedder{invoker: invoker, modelID: modelID, dimensions: dimensions}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e, nil
}

type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions"`
	Normalize  bool   `json:"normalize"`
}

type titanResponse struct {
	Embedding           []float64 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// Embed embeds each text with its own request. Failed items are logged and reported in the batch.
func (e *TitanEmbedder) Embed(ctx context.Context, texts []string) (*Batch, error) {
	if len(texts) == 0 {
		return nil, emptyInputError()
	}
	batch := &Batch{Vectors: make([]Vector, 0, len(texts))}
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, models.NewStageError(models.StageEmbed, models.ErrEmbedding, err)
		}
		vec, err := e.embedOne(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, models.NewStageError(models.StageEmbed, models.ErrEmbedding, ctx.Err())
			}
			e.logger.Warn("skipping chunk embedding",
				zap.Int("index", i), zap.String("model_id", e.modelID), zap.Error(err))
			batch.Failures = append(batch.Failures, Failure{Index: i, Err: err})
			continue
		}
		batch.Vectors = append(batch.Vectors, Vector{Index: i, Values: vec})
	}
	e.logger.Debug("embedded batch",
		zap.Int("inputs", len(texts)), zap.Int("vectors", len(batch.Vectors)), zap.Int("failures", len(batch.Failures)))
	return batch, nil
}

// EmbedQuery embeds a single query, reusing a cached vector when one exists.
func (e *TitanEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(e.modelID, e.dimensions, text)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			return cached, nil
		}
	}
	vec, err := e.embedOne(ctx, text)
	if err != nil {
		return nil, models.NewStageError(models.StageEmbed, models.ErrEmbedding, err)
	}
	if e.cache != nil {
		e.cache.Set(key, vec)
	}
	return vec, nil
}

func (e *TitanEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	body, err := json.Marshal(titanRequest{InputText: text, Dimensions: e.dimensions, Normalize: true})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out, err := e.invoker.InvokeModel(ctx, e.modelID, body)
	if err != nil {
		return nil, err
	}
	var resp titanResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("empty embedding in response")
	}
	if len(resp.Embedding) != e.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(resp.Embedding), e.dimensions)
	}
	vec := utils.Float64sToFloat32s(resp.Embedding)
	utils.NormalizeL2(vec)
	return vec, nil
}

// Dimensions returns the embedding dimension.
func (e *TitanEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelID returns the model identifier.
func (e *TitanEmbedder) ModelID() string {
	return e.modelID
}
