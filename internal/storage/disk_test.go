package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMeasureDiskUsage(t *testing.T) {
	dir := t.TempDir()

	db := filepath.Join(dir, "runs.db")
	if err := os.WriteFile(db, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(db+"-wal", []byte("wal"), 0644); err != nil {
		t.Fatal(err)
	}

	vectors := filepath.Join(dir, "vectors")
	if err := os.Mkdir(vectors, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(vectors, "a"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(vectors, "b"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}

	usage, err := MeasureDiskUsage(map[string]string{
		"database": db,
		"vectors":  vectors,
		"missing":  filepath.Join(dir, "nope"),
		"unset":    "",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := usage.Paths["database"]; got != 8 {
		t.Errorf("database: got %d bytes, want 8", got)
	}
	if got := usage.Paths["vectors"]; got != 3 {
		t.Errorf("vectors: got %d bytes, want 3", got)
	}
	if usage.Paths["missing"] != 0 || usage.Paths["unset"] != 0 {
		t.Errorf("missing paths should report 0: %+v", usage.Paths)
	}
	if usage.Total != 11 {
		t.Errorf("total: got %d, want 11", usage.Total)
	}
}
