package search

import (
	"errors"
	"strings"
)

// process validates the request and applies the default K.
func (r *Retriever) process(req *RetrieveRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	req.TenantID = strings.TrimSpace(req.TenantID)
	req.DocumentType = strings.TrimSpace(req.DocumentType)
	if req.Query == "" {
		return errors.New("query cannot be empty")
	}
	if req.TenantID == "" {
		return errors.New("tenant id cannot be empty")
	}
	if req.K <= 0 {
		req.K = r.defaultK
	}
	return nil
}
