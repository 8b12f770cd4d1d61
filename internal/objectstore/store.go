// Package objectstore reads uploaded documents from S3-compatible storage or a local directory tree.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/nuevorag/internal/config"
	"github.com/hyperjump/nuevorag/internal/models"
	"go.uber.org/zap"
)

// ErrNotFound is returned when the bucket or key does not exist.
var ErrNotFound = errors.New("object not found")

// Object is a fetched document body with its stored size.
type Object struct {
	Bucket      string
	Key         string
	Content     []byte
	Size        int64
	ContentType string
}

// Store fetches objects by bucket and key.
type Store interface {
	GetObject(ctx context.Context, bucket, key string) (*Object, error)
}

// Type names an object store backend.
type Type string

const (
	TypeS3    Type = "s3"
	TypeLocal Type = "local"
)

// NewStore builds the backend selected by cfg.Type.
func NewStore(cfg *config.ObjectStoreConfig, logger *zap.Logger) (Store, error) {
	switch Type(cfg.Type) {
	case TypeLocal:
		return NewLocalStore(cfg.LocalRoot), nil
	case TypeS3, "":
		return NewS3Store(S3Options{
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			SessionToken:    cfg.SessionToken,
			Region:          cfg.Region,
			Insecure:        cfg.Insecure,
		}, WithS3Logger(logger))
	default:
		return nil, fmt.Errorf("unsupported object store type: %s", cfg.Type)
	}
}

func readError(bucket, key string, err error) error {
	return models.NewStageError(models.StageFetch, models.ErrObjectRead, fmt.Errorf("s3://%s/%s: %w", bucket, key, err))
}
