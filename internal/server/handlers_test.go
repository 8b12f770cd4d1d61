package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/nuevorag/internal/config"
	"github.com/hyperjump/nuevorag/internal/models"
	"github.com/hyperjump/nuevorag/internal/storage"
	"go.uber.org/zap"
)

type fakeService struct {
	ingest     *models.IngestResult
	query      *models.QueryResult
	gotBucket  string
	gotKey     string
	gotQuery   models.QueryRequest
	gotRecords int

	// deadline records whether a request context carried a deadline.
	deadline bool
}

func (f *fakeService) HandleEvent(ctx context.Context, event *models.ObjectEvent) *models.BatchResult {
	f.gotRecords = len(event.Records)
	return &models.BatchResult{Success: true, Message: "ok", Records: []models.IngestResult{}}
}

func (f *fakeService) Ingest(ctx context.Context, bucket, key string) *models.IngestResult {
	f.gotBucket, f.gotKey = bucket, key
	_, f.deadline = ctx.Deadline()
	return f.ingest
}

func (f *fakeService) Query(ctx context.Context, req models.QueryRequest) *models.QueryResult {
	f.gotQuery = req
	_, f.deadline = ctx.Deadline()
	return f.query
}

type fakeWatch struct{}

func (fakeWatch) Dir() string    { return "/data/documents/uploads" }
func (fakeWatch) Bucket() string { return "documents" }

func newTestServer(t *testing.T, svc Service) (*Server, *storage.SQLiteLedger, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	ledger, err := storage.NewSQLiteLedger(filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ledger.Close() })
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "runs.db")
	cfg.VectorStore.Type = "memory"
	cfg.VectorStore.PersistPath = filepath.Join(dir, "vectors.json")
	return NewServer(svc, ledger, cfg, zap.NewNop(), WithWatch(fakeWatch{})), ledger, cfg
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, bytes.NewBufferString(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandleEvents(t *testing.T) {
	svc := &fakeService{}
	srv, _, _ := newTestServer(t, svc)

	body := `{"Records":[{"s3":{"bucket":{"name":"documents"},"object":{"key":"uploads/acme/contracts/a.pdf"}}}]}`
	w := do(t, srv.Routes(), http.MethodPost, "/api/v1/events", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if svc.gotRecords != 1 {
		t.Errorf("records: got %d", svc.gotRecords)
	}

	w = do(t, srv.Routes(), http.MethodPost, "/api/v1/events", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad body status: got %d", w.Code)
	}
}

func TestHandleIngest_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		res  *models.IngestResult
		want int
	}{
		{"processed", &models.IngestResult{Success: true, Status: models.StatusProcessed}, http.StatusOK},
		{"skipped", &models.IngestResult{Status: models.StatusSkipped, Code: "unsupported_format"}, http.StatusOK},
		{"rejected", &models.IngestResult{Status: models.StatusRejected, Code: "invalid_key"}, http.StatusBadRequest},
		{"missing object", &models.IngestResult{Status: models.StatusFailed, Code: "object_read_error"}, http.StatusNotFound},
		{"extraction", &models.IngestResult{Status: models.StatusFailed, Code: "extraction_error"}, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{ingest: tc.res}
			srv, _, _ := newTestServer(t, svc)
			w := do(t, srv.Routes(), http.MethodPost, "/api/v1/documents/ingest", `{"bucket":"docs","key":"uploads/acme/x/a.pdf"}`)
			if w.Code != tc.want {
				t.Errorf("status: got %d want %d", w.Code, tc.want)
			}
			if svc.gotBucket != "docs" || svc.gotKey != "uploads/acme/x/a.pdf" {
				t.Errorf("forwarded: %q %q", svc.gotBucket, svc.gotKey)
			}
		})
	}
}

func TestHandleIngest_DefaultsBucketToWatch(t *testing.T) {
	svc := &fakeService{ingest: &models.IngestResult{Success: true, Status: models.StatusProcessed}}
	srv, _, _ := newTestServer(t, svc)
	w := do(t, srv.Routes(), http.MethodPost, "/api/v1/documents/ingest", `{"key":"uploads/acme/x/a.pdf"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if svc.gotBucket != "documents" {
		t.Errorf("bucket: got %q", svc.gotBucket)
	}

	w = do(t, srv.Routes(), http.MethodPost, "/api/v1/documents/ingest", `{"key":"  "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty key status: got %d", w.Code)
	}
}

func TestHandleQuery(t *testing.T) {
	svc := &fakeService{query: &models.QueryResult{
		Success: true,
		Answer:  "42",
		Sources: []models.RetrievalMatch{{Content: "the answer is 42", Score: 0.9}},
	}}
	srv, _, _ := newTestServer(t, svc)

	w := do(t, srv.Routes(), http.MethodPost, "/api/v1/query", `{"question":"what?","tenant_id":"acme","top_k":3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if svc.gotQuery.TenantID != "acme" || svc.gotQuery.TopK != 3 {
		t.Errorf("forwarded query: %+v", svc.gotQuery)
	}
	var out models.QueryResult
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Answer != "42" || len(out.Sources) != 1 {
		t.Errorf("body: %+v", out)
	}
}

func TestWorkRoutes_NoServerDeadline(t *testing.T) {
	svc := &fakeService{
		query:  &models.QueryResult{Success: true, Answer: "ok"},
		ingest: &models.IngestResult{Success: true, Status: models.StatusProcessed},
	}
	srv, _, _ := newTestServer(t, svc)
	h := srv.Routes()

	do(t, h, http.MethodPost, "/api/v1/query", `{"question":"what?","tenant_id":"acme"}`)
	if svc.deadline {
		t.Error("query context has a server deadline; generation must be bounded by its client timeout")
	}
	do(t, h, http.MethodPost, "/api/v1/documents/ingest", `{"bucket":"b","key":"uploads/acme/contracts/a.pdf"}`)
	if svc.deadline {
		t.Error("ingest context has a server deadline")
	}
}

func TestHandleQuery_Failures(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{"invalid_input", http.StatusBadRequest},
		{"generation_error", http.StatusBadGateway},
		{"retrieval_error", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			svc := &fakeService{query: &models.QueryResult{Code: tc.code, Sources: []models.RetrievalMatch{}}}
			srv, _, _ := newTestServer(t, svc)
			w := do(t, srv.Routes(), http.MethodPost, "/api/v1/query", `{"question":"q","tenant_id":"acme"}`)
			if w.Code != tc.want {
				t.Errorf("status: got %d want %d", w.Code, tc.want)
			}
		})
	}
}

func seedRuns(t *testing.T, ledger *storage.SQLiteLedger) {
	t.Helper()
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	runs := []struct {
		id, tenant string
		status     models.IngestStatus
	}{
		{"r1", "acme", models.StatusProcessed},
		{"r2", "acme", models.StatusFailed},
		{"r3", "globex", models.StatusProcessed},
	}
	for i, r := range runs {
		run := &models.IngestionRun{
			ID: r.id, TenantID: r.tenant, Bucket: "documents",
			ObjectKey: "uploads/" + r.tenant + "/x/" + r.id + ".pdf",
			Status:    models.StatusRunning, StartedAt: start.Add(time.Duration(i) * time.Minute),
		}
		if err := ledger.CreateRun(ctx, run); err != nil {
			t.Fatal(err)
		}
		run.Finish(&models.IngestResult{Status: r.status}, run.StartedAt.Add(time.Second))
		if err := ledger.FinishRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHandleListIngestions(t *testing.T) {
	srv, ledger, _ := newTestServer(t, &fakeService{})
	seedRuns(t, ledger)

	w := do(t, srv.Routes(), http.MethodGet, "/api/v1/ingestions?tenant_id=acme", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Ingestions []models.IngestionRun `json:"ingestions"`
		Count      int                   `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 2 || len(out.Ingestions) != 2 {
		t.Fatalf("count: got %d", out.Count)
	}
	if out.Ingestions[0].ID != "r2" {
		t.Errorf("newest first: got %q", out.Ingestions[0].ID)
	}

	w = do(t, srv.Routes(), http.MethodGet, "/api/v1/ingestions?status=processed&limit=1", "")
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 1 || out.Ingestions[0].ID != "r3" {
		t.Errorf("status filter: %+v", out.Ingestions)
	}

	w = do(t, srv.Routes(), http.MethodGet, "/api/v1/ingestions?limit=abc", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status: got %d", w.Code)
	}
}

func TestHandleGetIngestion(t *testing.T) {
	srv, ledger, _ := newTestServer(t, &fakeService{})
	seedRuns(t, ledger)

	w := do(t, srv.Routes(), http.MethodGet, "/api/v1/ingestions/r3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var run models.IngestionRun
	if err := json.NewDecoder(w.Body).Decode(&run); err != nil {
		t.Fatal(err)
	}
	if run.TenantID != "globex" || run.Status != models.StatusProcessed {
		t.Errorf("run: %+v", run)
	}

	w = do(t, srv.Routes(), http.MethodGet, "/api/v1/ingestions/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing status: got %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv, ledger, cfg := newTestServer(t, &fakeService{})
	seedRuns(t, ledger)
	if err := os.WriteFile(cfg.VectorStore.PersistPath, []byte(strings.Repeat("x", 64)), 0o644); err != nil {
		t.Fatal(err)
	}

	w := do(t, srv.Routes(), http.MethodGet, "/api/v1/status?tenant_id=acme", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Ingestions map[string]int64   `json:"ingestions"`
		DiskUsage  *storage.DiskUsage `json:"disk_usage"`
		Watch      map[string]string  `json:"watch"`
		Config     map[string]any     `json:"config"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Ingestions["processed"] != 1 || out.Ingestions["failed"] != 1 {
		t.Errorf("counts: %v", out.Ingestions)
	}
	if out.DiskUsage == nil || out.DiskUsage.Paths["vectors"] != 64 || out.DiskUsage.Paths["database"] == 0 {
		t.Errorf("disk usage: %+v", out.DiskUsage)
	}
	if out.Watch["bucket"] != "documents" {
		t.Errorf("watch: %v", out.Watch)
	}
	if out.Config["vector_store"] != "memory" {
		t.Errorf("config: %v", out.Config)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := NewServer(&fakeService{}, nil, nil, nil)
	w := do(t, srv.Routes(), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: %q", ct)
	}
}
