// Package embedding turns text into unit-length vectors with a hosted model and caches them.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/nuevorag/internal/models"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	// Embed embeds each text independently. Items that fail are reported in Batch.Failures
	// and do not fail the call; the error is only for invalid input or cancellation.
	Embed(ctx context.Context, texts []string) (*Batch, error)
	Dimensions() int
	ModelID() string
}

// QueryEmbedder is implemented by embedders with a dedicated path for single queries,
// such as one backed by a query cache.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Vector is the embedding of the input at Index.
type Vector struct {
	Index  int
	Values []float32
}

// Failure records why the input at Index has no embedding.
type Failure struct {
	Index int
	Err   error
}

// Batch is the result of an Embed call. Vectors and Failures are ordered by input index.
type Batch struct {
	Vectors  []Vector
	Failures []Failure
}

// Pair returns the texts that have a vector alongside their vectors, in input order.
func (b *Batch) Pair(texts []string) ([]string, [][]float32) {
	kept := make([]string, 0, len(b.Vectors))
	vecs := make([][]float32, 0, len(b.Vectors))
	for _, v := range b.Vectors {
		if v.Index < 0 || v.Index >= len(texts) {
			continue
		}
		kept = append(kept, texts[v.Index])
		vecs = append(vecs, v.Values)
	}
	return kept, vecs
}

// SupportedDimensions are the output sizes an Embedder may be configured with.
var SupportedDimensions = []int{1024, 512, 256}

// ValidateDimensions returns an embedding error when dims is not supported.
func ValidateDimensions(dims int) error {
	for _, d := range SupportedDimensions {
		if dims == d {
			return nil
		}
	}
	return models.NewStageError(models.StageEmbed, models.ErrEmbedding,
		fmt.Errorf("unsupported dimensions %d (supported: 1024, 512, 256)", dims))
}

// ModelDimensions returns the native output size of a known embedding model, or 0.
func ModelDimensions(modelID string) int {
	switch {
	case strings.HasPrefix(modelID, "amazon.titan-embed-text-v1"):
		return 1536
	case strings.HasPrefix(modelID, "amazon.titan-embed-text-v2"):
		return 1024
	case strings.HasPrefix(modelID, "amazon.titan-embed-image-v1"):
		return 1024
	default:
		return 0
	}
}

// EmbedQuery embeds a single text and fails with an embedding error if it has no vector.
func EmbedQuery(ctx context.Context, e Embedder, text string) ([]float32, error) {
	if q, ok := e.(QueryEmbedder); ok {
		return q.EmbedQuery(ctx, text)
	}
	batch, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(batch.Vectors) == 0 {
		cause := errors.New("no embedding returned")
		if len(batch.Failures) > 0 {
			cause = batch.Failures[0].Err
		}
		return nil, models.NewStageError(models.StageEmbed, models.ErrEmbedding, cause)
	}
	return batch.Vectors[0].Values, nil
}

func emptyInputError() error {
	return models.NewStageError(models.StageEmbed, models.ErrEmbedding, errors.New("no input texts"))
}
