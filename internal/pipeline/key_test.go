package pipeline

import (
	"errors"
	"testing"

	"github.com/hyperjump/nuevorag/internal/extract"
	"github.com/hyperjump/nuevorag/internal/models"
)

func TestParseObjectKey(t *testing.T) {
	tests := []struct {
		raw      string
		key      string
		tenant   string
		docType  string
		filename string
		ext      string
	}{
		{"uploads/acme/contracts/a.pdf", "uploads/acme/contracts/a.pdf", "acme", "contracts", "a.pdf", ".pdf"},
		{"uploads/acme/contracts/Informe+Final.PDF", "uploads/acme/contracts/Informe Final.PDF", "acme", "contracts", "Informe Final.PDF", ".pdf"},
		{"uploads/acme/contracts/caf%C3%A9.pdf", "uploads/acme/contracts/café.pdf", "acme", "contracts", "café.pdf", ".pdf"},
		{"uploads/acme/contracts/2024/q1/a.pdf", "uploads/acme/contracts/2024/q1/a.pdf", "acme", "contracts", "a.pdf", ".pdf"},
		{"other/acme/contracts/a.pdf", "other/acme/contracts/a.pdf", UnknownTenant, "contracts", "a.pdf", ".pdf"},
		{"uploads/acme/notes", "uploads/acme/notes", "acme", "notes", "notes", ""},
		{"uploads/acme/x/archive.tar.gz", "uploads/acme/x/archive.tar.gz", "acme", "x", "archive.tar.gz", ".gz"},
	}
	for _, tt := range tests {
		got, err := ParseObjectKey(tt.raw)
		if err != nil {
			t.Errorf("ParseObjectKey(%q): %v", tt.raw, err)
			continue
		}
		if got.Key != tt.key || got.TenantID != tt.tenant || got.DocumentType != tt.docType ||
			got.Filename != tt.filename || got.Extension != tt.ext {
			t.Errorf("ParseObjectKey(%q) = %+v", tt.raw, got)
		}
	}
}

func TestParseObjectKey_Invalid(t *testing.T) {
	for _, raw := range []string{
		"weird-path.pdf",
		"uploads/a.pdf",
		"",
		"uploads/%zz/x/a.pdf",
		"uploads//x/a.pdf",
		"uploads/acme/x/",
	} {
		_, err := ParseObjectKey(raw)
		if !errors.Is(err, models.ErrInvalidKey) {
			t.Errorf("ParseObjectKey(%q): expected ErrInvalidKey, got %v", raw, err)
		}
	}
}

func TestObjectKey_Format(t *testing.T) {
	k, err := ParseObjectKey("uploads/acme/x/a.PDF")
	if err != nil {
		t.Fatal(err)
	}
	if k.Format() != "pdf" {
		t.Errorf("Format = %q", k.Format())
	}
}

func TestStrategies(t *testing.T) {
	s := DefaultStrategies(extract.NewExtractor())
	if _, ok := s.Lookup(".PDF"); !ok {
		t.Error("expected .pdf strategy")
	}
	if _, ok := s.Lookup(".txt"); ok {
		t.Error("unexpected .txt strategy")
	}
	s[".md"] = func(content []byte) (string, error) { return string(content), nil }
	exts := s.Extensions()
	if len(exts) != 2 || exts[0] != ".md" || exts[1] != ".pdf" {
		t.Errorf("Extensions = %v", exts)
	}
}
