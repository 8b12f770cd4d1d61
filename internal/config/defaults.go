package config

// Defaults mirrored by the pipeline components.
const (
	DefaultEmbeddingModel  = "amazon.titan-embed-text-v2:0"
	DefaultGenerationModel = "amazon.nova-pro-v1:0"
	DefaultTemperature     = 0.1
	DefaultIndexPrefix     = "rag-documents"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/nuevorag/data/db/runs.db"
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
	if cfg.ObjectStore.Type == "" {
		cfg.ObjectStore.Type = "s3"
	}
	if cfg.ObjectStore.Endpoint == "" {
		cfg.ObjectStore.Endpoint = "s3.amazonaws.com"
	}
	if cfg.ObjectStore.Region == "" {
		cfg.ObjectStore.Region = cfg.AWS.Region
	}
	if cfg.ObjectStore.LocalRoot == "" {
		cfg.ObjectStore.LocalRoot = "/usr/local/var/nuevorag/data/objects"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "bedrock"
	}
	if cfg.Embedding.ModelID == "" {
		cfg.Embedding.ModelID = DefaultEmbeddingModel
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1024
	}
	if cfg.Embedding.RequestsPerSecond == 0 {
		cfg.Embedding.RequestsPerSecond = 10
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Generation.ModelID == "" {
		cfg.Generation.ModelID = DefaultGenerationModel
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 1000
	}
	if cfg.Generation.Temperature == nil {
		t := DefaultTemperature
		cfg.Generation.Temperature = &t
	}
	if cfg.Generation.TopP == 0 {
		cfg.Generation.TopP = 0.9
	}
	// Model responses can be slow; the client allows up to an hour.
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = 3600
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "opensearch"
	}
	if cfg.VectorStore.Region == "" {
		cfg.VectorStore.Region = cfg.AWS.Region
	}
	if cfg.VectorStore.Service == "" {
		cfg.VectorStore.Service = "aoss"
	}
	if cfg.VectorStore.IndexPrefix == "" {
		cfg.VectorStore.IndexPrefix = DefaultIndexPrefix
	}
	if cfg.VectorStore.TimeoutSeconds == 0 {
		cfg.VectorStore.TimeoutSeconds = 30
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 2000
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 200
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.ContextMatches == 0 {
		cfg.Retrieval.ContextMatches = 5
	}
	if cfg.Watch.Bucket == "" {
		cfg.Watch.Bucket = "local-uploads"
	}
}
