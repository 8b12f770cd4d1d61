package pipeline

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/hyperjump/nuevorag/internal/models"
)

const (
	// UploadsPrefix is the first segment of well-formed object keys.
	UploadsPrefix = "uploads"
	// UnknownTenant is used when a key does not start with UploadsPrefix.
	UnknownTenant = "unknown"
)

// ObjectKey is a parsed uploads/{tenant_id}/{document_type}/{filename} key.
type ObjectKey struct {
	Key          string
	TenantID     string
	DocumentType string
	Filename     string
	Extension    string
}

// ParseObjectKey decodes an event key (URL-encoded, '+' for spaces) and splits it into its parts.
// Keys with fewer than three segments are rejected with models.ErrInvalidKey.
// A key whose first segment is not "uploads" is attributed to UnknownTenant.
func ParseObjectKey(raw string) (*ObjectKey, error) {
	key, err := url.QueryUnescape(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", models.ErrInvalidKey, raw, err)
	}
	parts := strings.Split(key, "/")
	if len(parts) < 3 {
		return nil, fmt.Errorf("%w: %q has %d segments, want uploads/{tenant_id}/{document_type}/{filename}",
			models.ErrInvalidKey, key, len(parts))
	}

	tenant := UnknownTenant
	if parts[0] == UploadsPrefix {
		tenant = parts[1]
	}
	filename := parts[len(parts)-1]
	if strings.TrimSpace(tenant) == "" || filename == "" {
		return nil, fmt.Errorf("%w: %q has an empty tenant or filename", models.ErrInvalidKey, key)
	}
	return &ObjectKey{
		Key:          key,
		TenantID:     tenant,
		DocumentType: parts[2],
		Filename:     filename,
		Extension:    strings.ToLower(path.Ext(filename)),
	}, nil
}

// Format returns the extension without its dot, as stored in the file_format field.
func (k *ObjectKey) Format() string {
	return strings.TrimPrefix(k.Extension, ".")
}
