package fileid

import (
	"testing"

	"github.com/google/uuid"
)

func TestRecordID(t *testing.T) {
	id1 := RecordID("tenantA", "uploads/tenantA/contracts/a.pdf", 0, "hello")
	id2 := RecordID("tenantA", "uploads/tenantA/contracts/a.pdf", 0, "hello")
	if id1 != id2 {
		t.Errorf("same input should give same ID: %q vs %q", id1, id2)
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("ID should be a UUID: %q", id1)
	}
}

func TestRecordID_differentInputs(t *testing.T) {
	base := RecordID("tenantA", "uploads/tenantA/x/a.pdf", 0, "hello")
	others := []string{
		RecordID("tenantB", "uploads/tenantA/x/a.pdf", 0, "hello"),
		RecordID("tenantA", "uploads/tenantA/x/b.pdf", 0, "hello"),
		RecordID("tenantA", "uploads/tenantA/x/a.pdf", 0, "hello!"),
		RecordID("tenantA", "uploads/tenantA/x/a.pdf", 1, "hello"),
	}
	for i, id := range others {
		if id == base {
			t.Errorf("input %d should give a different ID", i)
		}
	}
}

func TestRecordID_noFieldBleed(t *testing.T) {
	if RecordID("ab", "c", 0, "d") == RecordID("a", "bc", 0, "d") {
		t.Error("field boundaries must be part of the ID")
	}
}

func TestNormalizeSource(t *testing.T) {
	tests := []struct{ in, want string }{
		{"uploads/t/x/a.pdf", "uploads/t/x/a.pdf"},
		{"/uploads/t/x/a.pdf", "uploads/t/x/a.pdf"},
		{"uploads/t/./x//a.pdf", "uploads/t/x/a.pdf"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeSource(tt.in); got != tt.want {
			t.Errorf("NormalizeSource(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if RecordID("t", "/uploads/a.pdf", 0, "c") != RecordID("t", "uploads/a.pdf", 0, "c") {
		t.Error("equivalent sources should give the same ID")
	}
}
