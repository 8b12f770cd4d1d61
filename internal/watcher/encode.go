package watcher

import (
	"net/url"
	"strings"
)

// encodeKey escapes each path segment the way S3 event notifications do, with '+' for spaces.
func encodeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.QueryEscape(p)
	}
	return strings.Join(parts, "/")
}
