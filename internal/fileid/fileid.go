// Package fileid derives deterministic record IDs so that re-indexing a document overwrites its records.
package fileid

import (
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// namespace scopes the name-based UUIDs generated by this package.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/hyperjump/nuevorag/records"))

// RecordID returns a stable ID for the chunk at position index of source within a tenant.
// The same tenant, source, position and content always yield the same ID, so repeated
// passages in one document stay distinct records.
func RecordID(tenantID, source string, index int, content string) string {
	name := strings.Join([]string{tenantID, NormalizeSource(source), strconv.Itoa(index), content}, "\x00")
	return uuid.NewSHA1(namespace, []byte(name)).String()
}

// NormalizeSource cleans an object key so equivalent spellings map to one source.
func NormalizeSource(source string) string {
	if source == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean("/"+source), "/")
}
