// Package indexer splits document text into chunks and writes embedded chunks to a tenant collection.
package indexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/nuevorag/internal/models"
)

// CharsPerToken converts token budgets into character budgets.
const CharsPerToken = 4

// Default chunk size and overlap, in tokens.
const (
	DefaultChunkTokens   = 2000
	DefaultOverlapTokens = 200
)

// DefaultSeparators are tried in order: paragraph, line, sentence, word, then a hard cut.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits text into overlapping chunks of at most size characters, preferring
// to break on the highest-priority separator that keeps pieces under the budget.
type Chunker struct {
	size       int
	overlap    int
	separators []string
}

// NewChunker creates a chunker with the given size and overlap in tokens.
func NewChunker(chunkTokens, overlapTokens int) *Chunker {
	return &Chunker{
		size:       chunkTokens * CharsPerToken,
		overlap:    overlapTokens * CharsPerToken,
		separators: DefaultSeparators,
	}
}

// Size returns the chunk budget in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap in characters.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the ordered, non-empty chunks of text. Lengths are counted in runes.
// Adjacent chunks share up to Overlap characters, cut on word boundaries.
func (c *Chunker) Split(text string) ([]string, error) {
	if c.size <= 0 || c.overlap < 0 || c.overlap >= c.size {
		return nil, models.NewStageError(models.StageChunk, models.ErrChunking,
			fmt.Errorf("invalid chunk size %d / overlap %d", c.size, c.overlap))
	}
	chunks := c.merge(c.pieces(text, c.separators))
	for i, ch := range chunks {
		if n := utf8.RuneCountInString(ch); n > c.size {
			return nil, models.NewStageError(models.StageChunk, models.ErrChunking,
				fmt.Errorf("chunk %d has %d characters, budget is %d", i, n, c.size))
		}
	}
	return chunks, nil
}

// pieces breaks text into units of at most size characters. A unit that is too long is
// broken again on the next separator.
func (c *Chunker) pieces(text string, separators []string) []string {
	sep := ""
	var rest []string
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	var out []string
	for _, piece := range splitKeep(text, sep) {
		switch {
		case utf8.RuneCountInString(piece) <= c.size:
			out = append(out, piece)
		case len(rest) == 0:
			out = append(out, hardCut(piece, c.size)...)
		default:
			out = append(out, c.pieces(piece, rest)...)
		}
	}
	return out
}

// merge packs pieces into chunks, carrying trailing pieces of one chunk (at most overlap
// characters) into the next. When the carried pieces fall short of the overlap, the
// remainder is filled with the trailing words of the last piece left behind.
func (c *Chunker) merge(pieces []string) []string {
	var chunks, current []string
	total := 0
	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > c.size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				chunks = append(chunks, doc)
			}
			dropped := ""
			for total > c.overlap || (total+n > c.size && total > 0) {
				dropped = current[0]
				total -= utf8.RuneCountInString(dropped)
				current = current[1:]
			}
			budget := min(c.overlap-total, c.size-n-total)
			if tail := wordTail(dropped, budget); tail != "" {
				current = append([]string{tail}, current...)
				total += utf8.RuneCountInString(tail)
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		chunks = append(chunks, doc)
	}
	return chunks
}

// wordTail returns the longest suffix of text that starts a word and has at most
// budget characters.
func wordTail(text string, budget int) string {
	if text == "" || budget <= 0 {
		return ""
	}
	runes := []rune(text)
	start := len(runes) - budget
	if start <= 0 {
		return text
	}
	for i := start; i < len(runes); i++ {
		if unicode.IsSpace(runes[i-1]) && !unicode.IsSpace(runes[i]) {
			return string(runes[i:])
		}
	}
	return ""
}

// splitKeep splits text after each occurrence of sep so no characters are lost.
// An empty sep splits into runes.
func splitKeep(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hardCut(text string, size int) []string {
	var out []string
	runes := []rune(text)
	for len(runes) > 0 {
		n := size
		if n > len(runes) {
			n = len(runes)
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}
