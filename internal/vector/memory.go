package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/nuevorag/internal/models"
)

// MemoryStore is an in-memory vector store using brute-force inner product search.
// Suitable for tests and local development. When a persist path is set the store is
// loaded on creation and saved on Close.
type MemoryStore struct {
	collections map[string]*memCollection
	path        string
	mu          sync.RWMutex
}

type memCollection struct {
	dimensions int
	records    []models.IndexedRecord
	byID       map[string]int
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithPersistPath sets the snapshot file used by Load on creation and Save on Close.
func WithPersistPath(path string) MemoryOption {
	return func(m *MemoryStore) { m.path = path }
}

// NewMemoryStore creates an empty store, loading the persist path when one is set.
func NewMemoryStore(opts ...MemoryOption) (*MemoryStore, error) {
	m := &MemoryStore{collections: make(map[string]*memCollection)}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.Load(m.path); err != nil {
		return nil, err
	}
	return m, nil
}

// EnsureCollection creates the collection if missing. An existing collection with other
// dimensions is an error.
func (m *MemoryStore) EnsureCollection(ctx context.Context, name string, dimensions int) (bool, error) {
	if dimensions <= 0 {
		return false, fmt.Errorf("dimensions must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[name]; ok {
		if c.dimensions != dimensions {
			return false, fmt.Errorf("collection %s has %d dimensions, expected %d", name, c.dimensions, dimensions)
		}
		return false, nil
	}
	m.collections[name] = &memCollection{dimensions: dimensions, byID: make(map[string]int)}
	return true, nil
}

// BulkIndex stores records, replacing any record with the same ID. Records whose
// embedding has the wrong dimension are rejected individually.
func (m *MemoryStore) BulkIndex(ctx context.Context, name string, records []models.IndexedRecord) (*BulkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	res := &BulkResult{}
	for i := range records {
		rec := records[i]
		if len(rec.Embedding) != c.dimensions {
			res.addError(fmt.Sprintf("record %d: vector dimension mismatch: got %d, expected %d",
				i, len(rec.Embedding), c.dimensions))
			continue
		}
		rec.Embedding = append([]float32(nil), rec.Embedding...)
		if rec.ID != "" {
			if pos, ok := c.byID[rec.ID]; ok {
				c.records[pos] = rec
				res.Indexed++
				continue
			}
			c.byID[rec.ID] = len(c.records)
		}
		c.records = append(c.records, rec)
		res.Indexed++
	}
	return res, nil
}

// Search returns the top-k records by inner product among those matching filter.
func (m *MemoryStore) Search(ctx context.Context, name string, query []float32, k int, filter Filter) ([]models.RetrievalMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if len(query) != c.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), c.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	type scored struct {
		idx   int
		score float64
	}
	var hits []scored
	for i := range c.records {
		if !matches(&c.records[i], filter) {
			continue
		}
		hits = append(hits, scored{idx: i, score: InnerProduct(query, c.records[i].Embedding)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if k > len(hits) {
		k = len(hits)
	}
	out := make([]models.RetrievalMatch, k)
	for i := 0; i < k; i++ {
		out[i] = toMatch(&c.records[hits[i].idx], hits[i].score)
	}
	return out, nil
}

// Count returns the number of records in a collection.
func (m *MemoryStore) Count(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.collections[name]; ok {
		return len(c.records)
	}
	return 0
}

// Collections returns the collection names in sorted order.
func (m *MemoryStore) Collections() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close saves the store when a persist path is set.
func (m *MemoryStore) Close() error {
	return m.Save(m.path)
}

// recordMeta is the persisted part of a record other than its vector.
type recordMeta struct {
	ID           string `json:"id"`
	Content      string `json:"content"`
	TenantID     string `json:"tenant_id"`
	DocumentType string `json:"document_type"`
	FileFormat   string `json:"file_format"`
	SourceFile   string `json:"source_file"`
	ChunkIndex   int    `json:"chunk_index"`
}

// Save persists the store to path. Directory is created if needed. Format: collection count (4),
// then per collection: name, dimension (4), record count (4), and per record: JSON metadata
// followed by the vector (dimension*4 bytes). Strings are length-prefixed (4).
func (m *MemoryStore) Save(path string) error {
	if path == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create store file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if err := binary.Write(w, binary.LittleEndian, uint32(len(m.collections))); err != nil {
		return fmt.Errorf("write collection count: %w", err)
	}
	for name, c := range m.collections {
		if err := writeString(w, name); err != nil {
			return fmt.Errorf("write collection name: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, [2]uint32{uint32(c.dimensions), uint32(len(c.records))}); err != nil {
			return fmt.Errorf("write collection header: %w", err)
		}
		for i := range c.records {
			rec := &c.records[i]
			meta, err := json.Marshal(recordMeta{
				ID: rec.ID, Content: rec.Content, TenantID: rec.TenantID, DocumentType: rec.DocumentType,
				FileFormat: rec.FileFormat, SourceFile: rec.SourceFile, ChunkIndex: rec.ChunkIndex,
			})
			if err != nil {
				return fmt.Errorf("encode record: %w", err)
			}
			if err := writeString(w, string(meta)); err != nil {
				return fmt.Errorf("write record: %w", err)
			}
			if _, err := w.Write(float32SliceToBytes(rec.Embedding)); err != nil {
				return fmt.Errorf("write vector: %w", err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush store file: %w", err)
	}
	return nil
}

// Load replaces the in-memory contents with the snapshot at path.
// If the file does not exist, no error is returned and the store is unchanged.
func (m *MemoryStore) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open store file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read collection count: %w", err)
	}
	collections := make(map[string]*memCollection, n)
	for i := uint32(0); i < n; i++ {
		name, err := readString(r)
		if err != nil {
			return fmt.Errorf("read collection name: %w", err)
		}
		var hdr [2]uint32
		if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
			return fmt.Errorf("read collection header: %w", err)
		}
		c := &memCollection{
			dimensions: int(hdr[0]),
			records:    make([]models.IndexedRecord, 0, hdr[1]),
			byID:       make(map[string]int, hdr[1]),
		}
		buf := make([]byte, c.dimensions*4)
		for j := uint32(0); j < hdr[1]; j++ {
			raw, err := readString(r)
			if err != nil {
				return fmt.Errorf("read record: %w", err)
			}
			var meta recordMeta
			if err := json.Unmarshal([]byte(raw), &meta); err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			if _, err := io.ReadFull(r, buf); err != nil {
				return fmt.Errorf("read vector: %w", err)
			}
			if meta.ID != "" {
				c.byID[meta.ID] = len(c.records)
			}
			c.records = append(c.records, models.IndexedRecord{
				ID: meta.ID, Content: meta.Content, Embedding: bytesToFloat32Slice(buf),
				TenantID: meta.TenantID, DocumentType: meta.DocumentType, FileFormat: meta.FileFormat,
				SourceFile: meta.SourceFile, ChunkIndex: meta.ChunkIndex,
			})
		}
		collections[name] = c
	}

	m.mu.Lock()
	m.collections = collections
	m.mu.Unlock()
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
