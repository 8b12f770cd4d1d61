// Package extract turns uploaded documents into cleaned plain text.
package extract

import (
	"errors"
	"strings"

	"github.com/hyperjump/nuevorag/internal/models"
	"github.com/hyperjump/nuevorag/pkg/utils"
	"go.uber.org/zap"
)

// ErrNoText is wrapped into the extraction error when no page yields usable text.
var ErrNoText = errors.New("document has no extractable text")

// Extractor extracts plain text from document bytes.
type Extractor struct {
	logger *zap.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets a logger for skipped pages.
func WithLogger(l *zap.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e
}

// ExtractPDF returns the cleaned text of every readable page of a PDF.
// Pages that fail to extract are skipped. The error wraps models.ErrExtraction when the
// bytes are not a PDF or no page has text.
func (e *Extractor) ExtractPDF(content []byte) (string, error) {
	raw, err := e.extractPDF(content)
	if err != nil {
		return "", models.NewStageError(models.StageExtract, models.ErrExtraction, err)
	}
	text := Clean(raw)
	if text == "" {
		return "", models.NewStageError(models.StageExtract, models.ErrExtraction, ErrNoText)
	}
	return text, nil
}

// Clean strips null characters, normalizes line endings, collapses runs of spaces and tabs
// inside each line and reduces three or more consecutive newlines to a paragraph break.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}

	var b strings.Builder
	b.Grow(len(text))
	blank := 0
	for _, line := range lines {
		if line == "" {
			blank++
			continue
		}
		if b.Len() > 0 {
			if blank > 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteByte('\n')
			}
		}
		blank = 0
		b.WriteString(line)
	}
	return b.String()
}
