package models

import (
	"errors"
	"fmt"
)

// Error kinds. Components wrap them in a StageError so callers can use errors.Is.
var (
	ErrExtraction = errors.New("extraction error")
	ErrChunking   = errors.New("chunking error")
	ErrEmbedding  = errors.New("embedding error")
	ErrIndex      = errors.New("index error")
	ErrRetrieval  = errors.New("retrieval error")
	ErrGeneration = errors.New("generation error")

	// ErrInvalidKey is returned for object keys that do not match uploads/{tenant}/{type}/{file}.
	ErrInvalidKey = errors.New("invalid object key")
	// ErrInvalidInput is returned for malformed requests.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedFormat marks objects whose extension has no extraction strategy.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrObjectRead is returned when the object store cannot deliver the document bytes.
	ErrObjectRead = errors.New("object read error")
)

// Stage names a step of the ingest or query flow.
type Stage string

const (
	StageReceive  Stage = "receive"
	StageFetch    Stage = "fetch"
	StageExtract  Stage = "extract"
	StageChunk    Stage = "chunk"
	StageEmbed    Stage = "embed"
	StageIndex    Stage = "index"
	StageRetrieve Stage = "retrieve"
	StageGenerate Stage = "generate"
)

// StageError records which stage failed, the error kind and the underlying cause.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

// NewStageError wraps err as a failure of kind at stage.
func NewStageError(stage Stage, kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ReasonCode maps an error to the stable failure code used in result envelopes.
func ReasonCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidKey):
		return "invalid_key"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrObjectRead):
		return "object_read_error"
	case errors.Is(err, ErrExtraction):
		return "extraction_error"
	case errors.Is(err, ErrChunking):
		return "chunking_error"
	case errors.Is(err, ErrEmbedding):
		return "embedding_error"
	case errors.Is(err, ErrIndex):
		return "index_error"
	case errors.Is(err, ErrRetrieval):
		return "retrieval_error"
	case errors.Is(err, ErrGeneration):
		return "generation_error"
	default:
		return "internal_error"
	}
}

// StageOf returns the failed stage recorded in err, or "" when err is not a StageError.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
