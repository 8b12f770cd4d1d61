package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/hyperjump/nuevorag/internal/models"
	"github.com/hyperjump/nuevorag/pkg/utils"
	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"
	requestsigner "github.com/opensearch-project/opensearch-go/v4/signer/awsv2"
	"go.uber.org/zap"
)

// OpenSearchStore stores collections as OpenSearch k-NN indices, one index per collection.
// Index names are the lower-cased collection names.
type OpenSearchStore struct {
	client      *opensearchapi.Client
	transport   http.RoundTripper
	timeout     time.Duration
	username    string
	password    string
	awsConfig   *aws.Config
	service     string
	documentIDs bool
	logger      *zap.Logger
}

// OpenSearchOption configures an OpenSearchStore.
type OpenSearchOption func(*OpenSearchStore)

// WithTransport replaces the default HTTP transport.
func WithTransport(rt http.RoundTripper) OpenSearchOption {
	return func(s *OpenSearchStore) { s.transport = rt }
}

// WithTimeout bounds each OpenSearch call.
func WithTimeout(d time.Duration) OpenSearchOption {
	return func(s *OpenSearchStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBasicAuth authenticates requests with a username and password.
func WithBasicAuth(username, password string) OpenSearchOption {
	return func(s *OpenSearchStore) { s.username, s.password = username, password }
}

// WithSigV4 signs requests for service ("es" or "aoss") in region.
func WithSigV4(creds aws.CredentialsProvider, region, service string) OpenSearchOption {
	return func(s *OpenSearchStore) {
		s.awsConfig = &aws.Config{Region: region, Credentials: aws.NewCredentialsCache(creds)}
		s.service = service
	}
}

// WithDocumentIDs controls whether record IDs are sent as document IDs. With IDs,
// re-indexing the same chunk overwrites it.
func WithDocumentIDs(enabled bool) OpenSearchOption {
	return func(s *OpenSearchStore) { s.documentIDs = enabled }
}

// WithOpenSearchLogger sets a logger for request diagnostics.
func WithOpenSearchLogger(l *zap.Logger) OpenSearchOption {
	return func(s *OpenSearchStore) { s.logger = l }
}

// NewOpenSearchStore creates a client for the OpenSearch endpoint (e.g. https://host:443).
func NewOpenSearchStore(endpoint string, opts ...OpenSearchOption) (*OpenSearchStore, error) {
	if endpoint == "" {
		return nil, errors.New("opensearch endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	s := &OpenSearchStore{
		transport:   http.DefaultTransport.(*http.Transport).Clone(),
		timeout:     30 * time.Second,
		documentIDs: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)

	cfg := opensearch.Config{
		Addresses: []string{strings.TrimRight(endpoint, "/")},
		Transport: s.transport,
	}
	switch {
	case s.username != "":
		cfg.Username, cfg.Password = s.username, s.password
	case s.awsConfig != nil:
		signer, err := requestsigner.NewSignerWithService(*s.awsConfig, s.service)
		if err != nil {
			return nil, fmt.Errorf("create opensearch signer: %w", err)
		}
		cfg.Signer = signer
	}
	client, err := opensearchapi.NewClient(opensearchapi.Config{Client: cfg})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}
	s.client = client
	return s, nil
}

func indexName(collection string) string {
	return strings.ToLower(collection)
}

// EnsureCollection creates a k-NN index with a vector field of the given dimensions if it does not exist.
func (s *OpenSearchStore) EnsureCollection(ctx context.Context, name string, dimensions int) (bool, error) {
	if dimensions <= 0 {
		return false, fmt.Errorf("dimensions must be positive")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	index := indexName(name)
	exists, err := s.indexExists(ctx, index)
	if err != nil || exists {
		return false, err
	}

	body, err := json.Marshal(indexMapping(dimensions))
	if err != nil {
		return false, fmt.Errorf("encode index mapping: %w", err)
	}
	if _, err := s.client.Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: index,
		Body:  bytes.NewReader(body),
	}); err != nil {
		// Another writer may have created it between the check and the create.
		if exists, _ := s.indexExists(ctx, index); exists {
			return false, nil
		}
		return false, fmt.Errorf("opensearch create index %s failed: %w", index, err)
	}
	s.logger.Info("created index", zap.String("index", index), zap.Int("dimensions", dimensions))
	return true, nil
}

func (s *OpenSearchStore) indexExists(ctx context.Context, index string) (bool, error) {
	resp, err := s.client.Indices.Exists(ctx, opensearchapi.IndicesExistsReq{Indices: []string{index}})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	switch {
	case resp != nil && resp.StatusCode == http.StatusNotFound:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("opensearch check index %s: %w", index, err)
	}
	return true, nil
}

func indexMapping(dimensions int) map[string]any {
	keyword := map[string]any{"type": "keyword"}
	return map[string]any{
		"settings": map[string]any{
			"index": map[string]any{"knn": true},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"embedding": map[string]any{
					"type":      "knn_vector",
					"dimension": dimensions,
					"method": map[string]any{
						"name":       "hnsw",
						"engine":     "faiss",
						"space_type": "innerproduct",
					},
				},
				"content":       map[string]any{"type": "text"},
				"tenant_id":     keyword,
				"document_type": keyword,
				"file_format":   keyword,
				"source_file":   keyword,
				"chunk_index":   map[string]any{"type": "integer"},
			},
		},
	}
}

// BulkIndex writes records with the _bulk API. Per-item rejections are counted in the result.
func (s *OpenSearchStore) BulkIndex(ctx context.Context, name string, records []models.IndexedRecord) (*BulkResult, error) {
	if len(records) == 0 {
		return &BulkResult{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	index := indexName(name)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range records {
		action := map[string]any{"_index": index}
		if s.documentIDs && records[i].ID != "" {
			action["_id"] = records[i].ID
		}
		if err := enc.Encode(map[string]any{"index": action}); err != nil {
			return nil, fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(&records[i]); err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
	}

	resp, err := s.client.Bulk(ctx, opensearchapi.BulkReq{Body: &buf})
	if err != nil {
		if resp != nil && indexMissing(resp.Inspect().Response, err) {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, index)
		}
		return nil, fmt.Errorf("opensearch bulk failed: %w", err)
	}

	res := &BulkResult{}
	for i, item := range resp.Items {
		for _, it := range item {
			if it.Error != nil || it.Status >= 300 {
				reason := fmt.Sprintf("item %d: status %d", i, it.Status)
				if it.Error != nil {
					reason = fmt.Sprintf("item %d: %s: %s", i, it.Error.Type, it.Error.Reason)
				}
				res.addError(reason)
				continue
			}
			res.Indexed++
		}
	}
	if missing := len(records) - res.Indexed - res.Failed; missing > 0 {
		for i := 0; i < missing; i++ {
			res.addError("no bulk response item")
		}
	}
	s.logger.Debug("bulk indexed",
		zap.String("index", index), zap.Int("indexed", res.Indexed), zap.Int("failed", res.Failed))
	return res, nil
}

// Search runs an approximate k-NN query filtered by tenant and, when set, document type.
func (s *OpenSearchStore) Search(ctx context.Context, name string, query []float32, k int, filter Filter) ([]models.RetrievalMatch, error) {
	if k <= 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	index := indexName(name)
	body, err := json.Marshal(searchBody(query, k, filter))
	if err != nil {
		return nil, fmt.Errorf("encode search: %w", err)
	}
	resp, err := s.client.Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{index},
		Body:    bytes.NewReader(body),
	})
	if err != nil {
		if resp != nil && indexMissing(resp.Inspect().Response, err) {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, index)
		}
		return nil, fmt.Errorf("opensearch search %s failed: %w", index, err)
	}

	out := make([]models.RetrievalMatch, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		var rec models.IndexedRecord
		if err := json.Unmarshal(hit.Source, &rec); err != nil {
			return nil, fmt.Errorf("decode hit %s: %w", hit.ID, err)
		}
		// The index filter is authoritative; this guards against misconfigured shared indices.
		if !matches(&rec, filter) {
			continue
		}
		out = append(out, toMatch(&rec, float64(hit.Score)))
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func searchBody(query []float32, k int, filter Filter) map[string]any {
	must := []any{
		map[string]any{"term": map[string]any{"tenant_id": filter.TenantID}},
	}
	if filter.DocumentType != "" {
		must = append(must, map[string]any{"term": map[string]any{"document_type": filter.DocumentType}})
	}
	return map[string]any{
		"size":    k,
		"_source": map[string]any{"excludes": []string{"embedding"}},
		"query": map[string]any{
			"knn": map[string]any{
				"embedding": map[string]any{
					"vector": query,
					"k":      k,
					"filter": map[string]any{"bool": map[string]any{"must": must}},
				},
			},
		},
	}
}

// Close releases idle connections.
func (s *OpenSearchStore) Close() error {
	if t, ok := s.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
	return nil
}

// indexMissing reports whether a failed call was answered with index_not_found.
func indexMissing(resp *opensearch.Response, err error) bool {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "index_not_found_exception")
}
