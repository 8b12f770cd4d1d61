package e2e

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/nuevorag/internal/bedrock"
	"github.com/hyperjump/nuevorag/internal/embedding"
	"github.com/hyperjump/nuevorag/internal/extract"
	"github.com/hyperjump/nuevorag/internal/generate"
	"github.com/hyperjump/nuevorag/internal/indexer"
	"github.com/hyperjump/nuevorag/internal/models"
	"github.com/hyperjump/nuevorag/internal/objectstore"
	"github.com/hyperjump/nuevorag/internal/pipeline"
	"github.com/hyperjump/nuevorag/internal/search"
	"github.com/hyperjump/nuevorag/internal/storage"
	"github.com/hyperjump/nuevorag/internal/vector"
)

const (
	e2eBucket     = "rag-uploads"
	e2eDimensions = 256
	e2ePrefix     = "rag-documents"
)

type e2eEnv struct {
	pipeline *pipeline.Pipeline
	objects  *objectstore.LocalStore
	vectors  *vector.MemoryStore
	ledger   *storage.SQLiteLedger
}

func newE2EEnv(t *testing.T) *e2eEnv {
	t.Helper()
	dir := t.TempDir()

	objects := objectstore.NewLocalStore(filepath.Join(dir, "objects"))
	vectors, err := vector.NewMemoryStore(vector.WithPersistPath(filepath.Join(dir, "vectors.bin")))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = vectors.Close() })
	ledger, err := storage.NewSQLiteLedger(filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ledger.Close() })

	embedder := embedding.NewMockEmbedder(e2eDimensions)
	invoker := bedrock.InvokerFunc(func(ctx context.Context, modelID string, body []byte) ([]byte, error) {
		var req struct {
			Messages []struct {
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, err
		}
		prompt := req.Messages[0].Content[0].Text
		answer := "Respuesta basada en " + strings.SplitN(prompt, "\n", 3)[1]
		return json.Marshal(map[string]any{
			"output": map[string]any{"message": map[string]any{"content": []any{map[string]any{"text": answer}}}},
		})
	})

	p := pipeline.New(pipeline.Components{
		Objects:    objects,
		Strategies: pipeline.DefaultStrategies(extract.NewExtractor()),
		Chunker:    indexer.NewChunker(indexer.DefaultChunkTokens, indexer.DefaultOverlapTokens),
		Embedder:   embedder,
		Writer:     indexer.NewWriter(vectors, e2ePrefix, e2eDimensions),
		Retriever:  search.NewRetriever(embedder, vectors, e2ePrefix),
		Generator:  generate.NewGenerator(invoker, "amazon.nova-pro-v1:0"),
		Ledger:     ledger,
	})
	return &e2eEnv{pipeline: p, objects: objects, vectors: vectors, ledger: ledger}
}

func (e *e2eEnv) upload(t *testing.T, corpus *Corpus) *models.ObjectEvent {
	t.Helper()
	event := &models.ObjectEvent{}
	for _, d := range corpus.Documents {
		body := MinimalPDF(d.Content)
		if err := e.objects.PutObject(e2eBucket, d.Key(), body); err != nil {
			t.Fatal(err)
		}
		event.Records = append(event.Records, models.NewEventRecord(e2eBucket, d.Key(), int64(len(body))))
	}
	return event
}

func TestE2E_IngestAndQueryPerTenant(t *testing.T) {
	env := newE2EEnv(t)
	ctx := context.Background()
	corpus := BuildCorpus()

	batch := env.pipeline.HandleEvent(ctx, env.upload(t, corpus))
	if !batch.Success {
		t.Fatalf("batch failed: %s", batch.Message)
	}
	if len(batch.Records) != len(corpus.Documents) {
		t.Fatalf("got %d record results, want %d", len(batch.Records), len(corpus.Documents))
	}
	for _, r := range batch.Records {
		if r.Status != models.StatusProcessed {
			t.Fatalf("%s: status %s (%s)", r.ObjectKey, r.Status, r.Message)
		}
	}
	for _, tenant := range corpus.Tenants {
		collection := vector.CollectionName(e2ePrefix, tenant)
		if got, want := env.vectors.Count(collection), len(corpus.DocumentsFor(tenant)); got != want {
			t.Errorf("collection %s has %d records, want %d", collection, got, want)
		}
	}

	for _, tc := range corpus.Cases {
		t.Run(tc.Description, func(t *testing.T) {
			res := env.pipeline.Query(ctx, models.QueryRequest{Question: tc.Question, TenantID: tc.TenantID})
			if !res.Success {
				t.Fatalf("query failed: %s", res.Message)
			}
			if len(res.Sources) == 0 {
				t.Fatal("expected sources")
			}
			for _, s := range res.Sources {
				if s.TenantID != tc.TenantID {
					t.Errorf("source from tenant %s leaked into %s", s.TenantID, tc.TenantID)
				}
			}
			if res.Sources[0].SourceFile != tc.ExpectedKey {
				t.Errorf("best match %s, want %s", res.Sources[0].SourceFile, tc.ExpectedKey)
			}
			if !strings.HasPrefix(res.Answer, "Respuesta basada en ") {
				t.Errorf("unexpected answer %q", res.Answer)
			}
		})
	}
}

func TestE2E_ReingestIsIdempotent(t *testing.T) {
	env := newE2EEnv(t)
	ctx := context.Background()
	corpus := BuildCorpus()
	event := env.upload(t, corpus)

	env.pipeline.HandleEvent(ctx, event)
	again := env.pipeline.HandleEvent(ctx, event)
	for _, r := range again.Records {
		if r.Status != models.StatusProcessed {
			t.Fatalf("%s: second ingest status %s (%s)", r.ObjectKey, r.Status, r.Message)
		}
		if r.Details.CollectionNew {
			t.Errorf("%s: collection should already exist", r.ObjectKey)
		}
	}
	for _, tenant := range corpus.Tenants {
		collection := vector.CollectionName(e2ePrefix, tenant)
		if got, want := env.vectors.Count(collection), len(corpus.DocumentsFor(tenant)); got != want {
			t.Errorf("collection %s has %d records after re-ingest, want %d", collection, got, want)
		}
	}

	counts, err := env.ledger.CountRuns(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if got := counts[models.StatusProcessed]; got != int64(2*len(corpus.Documents)) {
		t.Errorf("ledger has %d processed runs, want %d", got, 2*len(corpus.Documents))
	}
}

func TestE2E_MixedBatch(t *testing.T) {
	env := newE2EEnv(t)
	ctx := context.Background()

	good := UploadKey("acme", "policies", "good.pdf")
	if err := env.objects.PutObject(e2eBucket, good, MinimalPDF("Refunds take five days.")); err != nil {
		t.Fatal(err)
	}
	broken := UploadKey("acme", "policies", "broken.pdf")
	if err := env.objects.PutObject(e2eBucket, broken, []byte("not a pdf")); err != nil {
		t.Fatal(err)
	}

	batch := env.pipeline.HandleEvent(ctx, &models.ObjectEvent{Records: []models.EventRecord{
		models.NewEventRecord(e2eBucket, good, 0),
		models.NewEventRecord(e2eBucket, broken, 0),
		models.NewEventRecord(e2eBucket, UploadKey("acme", "notes", "readme.txt"), 0),
		models.NewEventRecord(e2eBucket, "weird-path.pdf", 0),
		models.NewEventRecord(e2eBucket, UploadKey("acme", "policies", "missing.pdf"), 0),
	}})
	if !batch.Success {
		t.Fatal("batch should always succeed")
	}
	want := []models.IngestStatus{
		models.StatusProcessed, models.StatusFailed, models.StatusSkipped, models.StatusRejected, models.StatusFailed,
	}
	for i, r := range batch.Records {
		if r.Status != want[i] {
			t.Errorf("record %d (%s): status %s, want %s", i, r.ObjectKey, r.Status, want[i])
		}
	}
	if batch.Records[1].Code != "extraction_error" {
		t.Errorf("broken pdf code = %q", batch.Records[1].Code)
	}
	if batch.Records[4].Code != "object_read_error" {
		t.Errorf("missing object code = %q", batch.Records[4].Code)
	}

	runs, err := env.ledger.ListRuns(ctx, models.RunFilter{TenantID: "acme"})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Errorf("expected 3 ledger runs for fetched objects, got %d", len(runs))
	}
}
