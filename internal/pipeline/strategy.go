package pipeline

import (
	"sort"
	"strings"

	"github.com/hyperjump/nuevorag/internal/extract"
)

// ExtractFunc turns raw document bytes into cleaned text.
type ExtractFunc func(content []byte) (string, error)

// Strategies maps lower-case file extensions (with dot) to their extraction function.
type Strategies map[string]ExtractFunc

// DefaultStrategies registers the PDF extractor for ".pdf".
func DefaultStrategies(e *extract.Extractor) Strategies {
	return Strategies{".pdf": e.ExtractPDF}
}

// Lookup returns the strategy for ext, matching case-insensitively.
func (s Strategies) Lookup(ext string) (ExtractFunc, bool) {
	fn, ok := s[strings.ToLower(ext)]
	return fn, ok
}

// Extensions returns the registered extensions in sorted order.
func (s Strategies) Extensions() []string {
	exts := make([]string, 0, len(s))
	for ext := range s {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
