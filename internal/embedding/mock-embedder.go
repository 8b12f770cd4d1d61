package embedding

import (
	"context"
	"fmt"
	"math"
)

// MockEmbedder is a deterministic embedder for tests and offline runs. It returns a
// fixed-dimension vector derived from the text hash so that the same text always gets the
// same embedding.
type MockEmbedder struct {
	dimensions int
	// FailOn, when set, makes the item at index i fail.
	FailOn func(i int, text string) bool
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 1024
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic, unit-length embedding for each text.
func (e *MockEmbedder) Embed(ctx context.Context, texts []string) (*Batch, error) {
	if len(texts) == 0 {
		return nil, emptyInputError()
	}
	batch := &Batch{}
	for i, text := range texts {
		if e.FailOn != nil && e.FailOn(i, text) {
			batch.Failures = append(batch.Failures, Failure{Index: i, Err: fmt.Errorf("mock failure for item %d", i)})
			continue
		}
		batch.Vectors = append(batch.Vectors, Vector{Index: i, Values: e.vector(text)})
	}
	return batch, nil
}

func (e *MockEmbedder) vector(text string) []float32 {
	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	var sum float64
	for _, v := range emb {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		norm := 1.0 / math.Sqrt(sum)
		for i := range emb {
			emb[i] = float32(float64(emb[i]) * norm)
		}
	}
	return emb
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelID returns "mock".
func (e *MockEmbedder) ModelID() string {
	return "mock"
}

// HashString returns a deterministic non-negative hash of s.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
