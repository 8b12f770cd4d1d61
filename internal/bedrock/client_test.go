package bedrock

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() aws.Config {
	return aws.Config{
		Region:           "us-east-1",
		RetryMaxAttempts: 1,
		Credentials: aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "AKID", SecretAccessKey: "SECRET", Source: "test"}, nil
		}),
	}
}

func TestClient_InvokeModel(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"embedding":[0.6,0.8]}`)
	}))
	defer srv.Close()

	c := NewClientFromConfig(testConfig(), WithEndpoint(srv.URL))
	out, err := c.InvokeModel(context.Background(), "amazon.titan-embed-text-v2:0", []byte(`{"inputText":"hi"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"embedding":[0.6,0.8]}`, string(out))
	assert.True(t, strings.HasPrefix(gotPath, "/model/"), "path %q", gotPath)
	assert.Contains(t, gotPath, "/invoke")
	assert.JSONEq(t, `{"inputText":"hi"}`, gotBody)
}

func TestClient_InvokeModelThrottled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Amzn-ErrorType", "ThrottlingException")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"message":"slow down"}`)
	}))
	defer srv.Close()

	c := NewClientFromConfig(testConfig(), WithEndpoint(srv.URL))
	_, err := c.InvokeModel(context.Background(), "m", []byte(`{}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrThrottled), "got %v", err)
}

func TestInvokerFunc(t *testing.T) {
	var inv Invoker = InvokerFunc(func(ctx context.Context, modelID string, body []byte) ([]byte, error) {
		return append([]byte(modelID+":"), body...), nil
	})
	out, err := inv.InvokeModel(context.Background(), "m", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "m:x", string(out))
}
