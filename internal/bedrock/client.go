// Package bedrock invokes hosted foundation models through the Bedrock runtime API.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/hyperjump/nuevorag/pkg/utils"
	"go.uber.org/zap"
)

// Invoker sends a JSON request body to a model and returns the JSON response body.
type Invoker interface {
	InvokeModel(ctx context.Context, modelID string, body []byte) ([]byte, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, modelID string, body []byte) ([]byte, error)

// InvokeModel calls f.
func (f InvokerFunc) InvokeModel(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	return f(ctx, modelID, body)
}

// Options configures a Client loaded from the default AWS credential chain.
type Options struct {
	Region  string
	Profile string
	// Timeout bounds a single HTTP request; zero keeps the SDK default.
	Timeout time.Duration
}

// Client is an Invoker backed by the Bedrock runtime.
type Client struct {
	rt       *bedrockruntime.Client
	endpoint string
	logger   *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets a logger for invocation diagnostics.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithEndpoint overrides the Bedrock runtime endpoint (for VPC endpoints and tests).
func WithEndpoint(url string) ClientOption {
	return func(c *Client) { c.endpoint = url }
}

// NewClient loads AWS configuration and returns a Bedrock runtime client.
func NewClient(ctx context.Context, o Options, opts ...ClientOption) (*Client, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(o.Profile))
	}
	if o.Timeout > 0 {
		loadOpts = append(loadOpts, config.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(o.Timeout)))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewClientFromConfig(cfg, opts...), nil
}

// NewClientFromConfig returns a client for an already loaded AWS configuration.
func NewClientFromConfig(cfg aws.Config, opts ...ClientOption) *Client {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = utils.OrNop(c.logger)
	c.rt = bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		if c.endpoint != "" {
			o.BaseEndpoint = aws.String(c.endpoint)
		}
	})
	return c
}

// InvokeModel sends body to modelID and returns the raw response body.
func (c *Client) InvokeModel(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	start := time.Now()
	out, err := c.rt.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", modelID, classify(err))
	}
	c.logger.Debug("model invoked",
		zap.String("model_id", modelID),
		zap.Int("response_bytes", len(out.Body)),
		zap.Duration("elapsed", time.Since(start)))
	return out.Body, nil
}

// ErrThrottled is wrapped into errors caused by service throttling.
var ErrThrottled = errors.New("bedrock throttled")

func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceQuotaExceededException", "TooManyRequestsException":
			return fmt.Errorf("%w: %v", ErrThrottled, err)
		}
	}
	return err
}
