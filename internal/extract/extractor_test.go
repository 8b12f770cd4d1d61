package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/nuevorag/internal/models"
	"github.com/hyperjump/nuevorag/test/e2e"
)

func TestExtractPDF(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractPDF(e2e.MinimalPDF("Hello world.", "Second page"))
	if err != nil {
		t.Fatalf("ExtractPDF: %v", err)
	}
	if !strings.Contains(got, "Hello world.") || !strings.Contains(got, "Second page") {
		t.Errorf("got %q", got)
	}
	if strings.Index(got, "Hello") > strings.Index(got, "Second") {
		t.Error("pages out of order")
	}
}

func TestExtractPDF_notPDF(t *testing.T) {
	e := NewExtractor()
	_, err := e.ExtractPDF([]byte("plain text, not a pdf"))
	if !errors.Is(err, models.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
	if models.StageOf(err) != models.StageExtract {
		t.Errorf("stage = %q", models.StageOf(err))
	}
}

func TestExtractPDF_empty(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractPDF(nil); !errors.Is(err, models.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestExtractPDF_truncated(t *testing.T) {
	e := NewExtractor()
	doc := e2e.MinimalPDF("Hello")
	if _, err := e.ExtractPDF(doc[:len(doc)/2]); !errors.Is(err, models.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestExtractPDF_blankPages(t *testing.T) {
	e := NewExtractor()
	_, err := e.ExtractPDF(e2e.MinimalPDF("   ", ""))
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"nulls", "a\x00b", "ab"},
		{"crlf", "a\r\nb", "a\nb"},
		{"spaces", "  a \t  b  ", "a b"},
		{"blank lines", "a\n\n\n\n\nb", "a\n\nb"},
		{"whitespace-only lines", "a\n   \n\t\nb", "a\n\nb"},
		{"leading and trailing", "\n\n a \n\n", "a"},
		{"single newline kept", "line one\nline two", "line one\nline two"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
