package vector

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/hyperjump/nuevorag/internal/config"
	"go.uber.org/zap"
)

// StoreType represents the kind of vector store to use.
type StoreType string

const (
	// StoreTypeOpenSearch uses an OpenSearch k-NN index per collection.
	StoreTypeOpenSearch StoreType = "opensearch"
	// StoreTypeMemory uses in-memory brute-force search. Good for tests and local development.
	StoreTypeMemory StoreType = "memory"
)

// NewStore creates the vector store described by cfg.
// OpenSearch requests use basic auth when a username is configured and SigV4 otherwise.
func NewStore(ctx context.Context, cfg *config.VectorStoreConfig, logger *zap.Logger) (Store, error) {
	switch StoreType(cfg.Type) {
	case StoreTypeMemory, "":
		return NewMemoryStore(WithPersistPath(cfg.PersistPath))
	case StoreTypeOpenSearch:
		opts := []OpenSearchOption{
			WithTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second),
			WithOpenSearchLogger(logger),
			// Serverless vector collections reject caller-supplied document IDs.
			WithDocumentIDs(cfg.Service != "aoss"),
		}
		if cfg.Username != "" {
			opts = append(opts, WithBasicAuth(cfg.Username, cfg.Password))
		} else {
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
			if err != nil {
				return nil, fmt.Errorf("load aws config: %w", err)
			}
			opts = append(opts, WithSigV4(awsCfg.Credentials, cfg.Region, cfg.Service))
		}
		return NewOpenSearchStore(cfg.Endpoint, opts...)
	default:
		return nil, fmt.Errorf("unknown vector store type: %s (supported: opensearch, memory)", cfg.Type)
	}
}
