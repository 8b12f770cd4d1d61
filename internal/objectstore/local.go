package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore serves objects from <root>/<bucket>/<key> on the local filesystem.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at root.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Root returns the base directory.
func (s *LocalStore) Root() string {
	return s.root
}

// Path returns the file path of bucket/key, rejecting keys that escape the bucket directory.
func (s *LocalStore) Path(bucket, key string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("invalid bucket name %q", bucket)
	}
	base := filepath.Join(s.root, bucket)
	p := filepath.Join(base, filepath.FromSlash(key))
	rel, err := filepath.Rel(base, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return p, nil
}

// Key converts a file path under the bucket directory back to an object key.
func (s *LocalStore) Key(bucket, path string) (string, error) {
	rel, err := filepath.Rel(filepath.Join(s.root, bucket), path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside bucket %q", path, bucket)
	}
	return filepath.ToSlash(rel), nil
}

// GetObject reads the file for bucket/key.
func (s *LocalStore) GetObject(ctx context.Context, bucket, key string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, readError(bucket, key, err)
	}
	p, err := s.Path(bucket, key)
	if err != nil {
		return nil, readError(bucket, key, err)
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, readError(bucket, key, ErrNotFound)
		}
		return nil, readError(bucket, key, err)
	}
	if info.IsDir() {
		return nil, readError(bucket, key, fmt.Errorf("%w: key is a directory", ErrNotFound))
	}
	content, err := os.ReadFile(p)
	if err != nil {
		return nil, readError(bucket, key, err)
	}
	return &Object{
		Bucket:      bucket,
		Key:         key,
		Content:     content,
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(p)),
	}, nil
}

// PutObject writes content to bucket/key, creating directories as needed.
func (s *LocalStore) PutObject(bucket, key string, content []byte) error {
	p, err := s.Path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, content, 0o644)
}
