package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hyperjump/nuevorag/internal/models"
)

// apiClient talks to a running nuevorag server so CLI commands do not open the
// ledger or the vector snapshot a second time. It sets no overall timeout: the server
// bounds each request through its Bedrock and vector store clients.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{},
	}
}

// do sends a request and decodes the JSON body into out. Envelope responses are decoded
// for any status so failed ingests and queries still carry their code and message.
func (c *apiClient) do(ctx context.Context, method, path string, in, out interface{}) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return resp.StatusCode, nil
}

func (c *apiClient) Ingest(ctx context.Context, bucket, key string) (*models.IngestResult, error) {
	var res models.IngestResult
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/documents/ingest", map[string]string{"bucket": bucket, "key": key}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *apiClient) HandleEvent(ctx context.Context, event *models.ObjectEvent) (*models.BatchResult, error) {
	var res models.BatchResult
	status, err := c.do(ctx, http.MethodPost, "/api/v1/events", event, &res)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", status, res.Message)
	}
	return &res, nil
}

func (c *apiClient) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResult, error) {
	var res models.QueryResult
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/query", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *apiClient) ListRuns(ctx context.Context, filter models.RunFilter) ([]*models.IngestionRun, error) {
	q := url.Values{}
	if filter.TenantID != "" {
		q.Set("tenant_id", filter.TenantID)
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}
	path := "/api/v1/ingestions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Success    bool                   `json:"success"`
		Message    string                 `json:"message"`
		Ingestions []*models.IngestionRun `json:"ingestions"`
	}
	status, err := c.do(ctx, http.MethodGet, path, nil, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", status, out.Message)
	}
	return out.Ingestions, nil
}

func (c *apiClient) GetRun(ctx context.Context, id string) (*models.IngestionRun, error) {
	var raw json.RawMessage
	status, err := c.do(ctx, http.MethodGet, "/api/v1/ingestions/"+url.PathEscape(id), nil, &raw)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", status, strings.TrimSpace(string(raw)))
	}
	var run models.IngestionRun
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &run, nil
}

func (c *apiClient) Status(ctx context.Context) (map[string]interface{}, error) {
	var out map[string]interface{}
	status, err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("server returned %d", status)
	}
	return out, nil
}
