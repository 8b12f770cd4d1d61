package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/hyperjump/nuevorag/pkg/utils"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// DefaultMaxObjectSize bounds the bytes read for one document.
const DefaultMaxObjectSize = 100 << 20

// S3Options configures the S3 client. Empty keys fall back to the environment,
// the shared credentials file and the instance role, in that order.
type S3Options struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	Insecure        bool
}

// S3Store reads objects through minio-go from AWS S3 or any compatible endpoint.
type S3Store struct {
	client  *minio.Client
	maxSize int64
	logger  *zap.Logger
}

// S3Option configures an S3Store.
type S3Option func(*S3Store)

// WithS3Logger sets the logger.
func WithS3Logger(l *zap.Logger) S3Option {
	return func(s *S3Store) { s.logger = utils.OrNop(l) }
}

// WithMaxObjectSize overrides DefaultMaxObjectSize.
func WithMaxObjectSize(n int64) S3Option {
	return func(s *S3Store) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// NewS3Store creates an S3Store for opts.Endpoint.
func NewS3Store(opts S3Options, options ...S3Option) (*S3Store, error) {
	endpoint, secure, err := parseEndpoint(opts.Endpoint, !opts.Insecure)
	if err != nil {
		return nil, err
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  chainCredentials(opts),
		Secure: secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	s := &S3Store{client: client, maxSize: DefaultMaxObjectSize, logger: zap.NewNop()}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// GetObject downloads bucket/key. Missing objects wrap ErrNotFound.
func (s *S3Store) GetObject(ctx context.Context, bucket, key string) (*Object, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, readError(bucket, key, classifyError(err))
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, readError(bucket, key, classifyError(err))
	}
	if info.Size > s.maxSize {
		return nil, readError(bucket, key, fmt.Errorf("object size %d exceeds limit %d", info.Size, s.maxSize))
	}

	content, err := io.ReadAll(io.LimitReader(obj, s.maxSize+1))
	if err != nil {
		return nil, readError(bucket, key, classifyError(err))
	}
	s.logger.Debug("Fetched object",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("bytes", len(content)))

	return &Object{
		Bucket:      bucket,
		Key:         key,
		Content:     content,
		Size:        info.Size,
		ContentType: info.ContentType,
	}, nil
}

func chainCredentials(opts S3Options) *credentials.Credentials {
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		return credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)
	}
	return credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.FileAWSCredentials{},
		&credentials.IAM{},
	})
}

// parseEndpoint accepts "host[:port]" or a full URL and returns the host and TLS flag.
func parseEndpoint(raw string, secure bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, errors.New("object store endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return strings.TrimSuffix(raw, "/"), secure, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("invalid object store endpoint %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid object store endpoint %q: missing host", raw)
	}
	return u.Host, u.Scheme == "https", nil
}

func classifyError(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s", ErrNotFound, resp.Message)
	case "AccessDenied":
		return fmt.Errorf("access denied: %s", resp.Message)
	default:
		return err
	}
}
