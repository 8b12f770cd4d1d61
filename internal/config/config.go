// Package config provides configuration loading and structs for the nuevorag service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	AWS         AWSConfig         `yaml:"aws"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Generation  GenerationConfig  `yaml:"generation"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Watch       WatchConfig       `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the path of the ingestion run ledger. An empty path disables the ledger.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	Disabled     bool   `yaml:"disabled"`
}

// ObjectStoreConfig selects where uploaded documents are read from.
// Type is "s3" (any S3-compatible endpoint) or "local" (a directory per bucket under LocalRoot).
type ObjectStoreConfig struct {
	Type            string `yaml:"type"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	Region          string `yaml:"region"`
	Insecure        bool   `yaml:"insecure"`
	LocalRoot       string `yaml:"local_root"`
}

// AWSConfig holds settings shared by AWS clients.
type AWSConfig struct {
	Region  string `yaml:"region"`
	Profile string `yaml:"profile"`
}

// EmbeddingConfig holds embedding model settings. Provider is "bedrock" or "mock".
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"`
	ModelID           string  `yaml:"model_id"`
	Dimensions        int     `yaml:"dimensions"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	CacheSize         int     `yaml:"cache_size"`
}

// GenerationConfig holds completion model settings.
type GenerationConfig struct {
	ModelID        string   `yaml:"model_id"`
	MaxTokens      int      `yaml:"max_tokens"`
	Temperature    *float64 `yaml:"temperature"`
	TopP           float64  `yaml:"top_p"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// TemperatureOrDefault returns the configured temperature; defaults to 0.1 when unset.
func (g *GenerationConfig) TemperatureOrDefault() float64 {
	if g.Temperature != nil {
		return *g.Temperature
	}
	return DefaultTemperature
}

// Timeout returns the generation client timeout.
func (g *GenerationConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// VectorStoreConfig selects the vector store. Type is "opensearch" or "memory".
// For OpenSearch, requests are SigV4 signed for Service unless Username is set (basic auth).
type VectorStoreConfig struct {
	Type           string `yaml:"type"`
	Endpoint       string `yaml:"endpoint"`
	Region         string `yaml:"region"`
	Service        string `yaml:"service"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	IndexPrefix    string `yaml:"index_prefix"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	PersistPath    string `yaml:"persist_path"`
}

// Timeout returns the vector store request timeout.
func (v *VectorStoreConfig) Timeout() time.Duration {
	return time.Duration(v.TimeoutSeconds) * time.Second
}

// ChunkingConfig holds chunk size and overlap in approximate tokens.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// RetrievalConfig holds query-time settings.
type RetrievalConfig struct {
	TopK           int `yaml:"top_k"`
	ContextMatches int `yaml:"context_matches"`
}

// WatchConfig enables the local uploads watcher (only with the local object store).
type WatchConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
}

// Load reads and parses the config file at path, applies defaults and environment
// overrides, and expands paths. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnv(&cfg, os.LookupEnv)
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.ObjectStore.LocalRoot = expandPath(cfg.ObjectStore.LocalRoot, configDir)
	if cfg.VectorStore.PersistPath != "" {
		cfg.VectorStore.PersistPath = expandPath(cfg.VectorStore.PersistPath, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Embedding.Dimensions {
	case 256, 512, 1024:
	default:
		return fmt.Errorf("invalid config: embedding.dimensions must be 256, 512 or 1024, got %d", c.Embedding.Dimensions)
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("invalid config: chunking.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}
	switch c.VectorStore.Type {
	case "opensearch":
		if c.VectorStore.Endpoint == "" {
			return fmt.Errorf("invalid config: vector_store.endpoint is required for opensearch")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid config: unknown vector_store.type %q", c.VectorStore.Type)
	}
	switch c.ObjectStore.Type {
	case "s3", "local":
	default:
		return fmt.Errorf("invalid config: unknown object_store.type %q", c.ObjectStore.Type)
	}
	switch c.Embedding.Provider {
	case "bedrock", "mock":
	default:
		return fmt.Errorf("invalid config: unknown embedding.provider %q", c.Embedding.Provider)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
