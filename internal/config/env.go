package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process environment.
// Missing files are ignored; variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides secrets and endpoints from environment variables.
// lookup is usually os.LookupEnv.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	str(&cfg.AWS.Region, "NUEVORAG_AWS_REGION", "AWS_REGION")
	str(&cfg.AWS.Profile, "NUEVORAG_AWS_PROFILE", "AWS_PROFILE")
	str(&cfg.ObjectStore.Endpoint, "NUEVORAG_OBJECT_STORE_ENDPOINT")
	str(&cfg.ObjectStore.AccessKeyID, "NUEVORAG_OBJECT_STORE_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID")
	str(&cfg.ObjectStore.SecretAccessKey, "NUEVORAG_OBJECT_STORE_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY")
	str(&cfg.ObjectStore.SessionToken, "NUEVORAG_OBJECT_STORE_SESSION_TOKEN", "AWS_SESSION_TOKEN")
	str(&cfg.VectorStore.Endpoint, "NUEVORAG_OPENSEARCH_ENDPOINT")
	str(&cfg.VectorStore.Username, "NUEVORAG_OPENSEARCH_USERNAME")
	str(&cfg.VectorStore.Password, "NUEVORAG_OPENSEARCH_PASSWORD")
	str(&cfg.Embedding.ModelID, "NUEVORAG_EMBEDDING_MODEL_ID")
	str(&cfg.Generation.ModelID, "NUEVORAG_GENERATION_MODEL_ID")
	if v, ok := lookup("NUEVORAG_DEBUG"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}
