package models

import (
	"fmt"
	"strings"
)

// QueryRequest is an inbound question scoped to one tenant and optionally one document type.
type QueryRequest struct {
	Question     string `json:"question"`
	TenantID     string `json:"tenant_id"`
	DocumentType string `json:"document_type,omitempty"`
	TopK         int    `json:"top_k,omitempty"`
}

// Validate trims fields and checks that question and tenant are present.
// TopK is clamped to [0, 50]; zero means the configured default.
func (q *QueryRequest) Validate() error {
	q.Question = strings.TrimSpace(q.Question)
	q.TenantID = strings.TrimSpace(q.TenantID)
	q.DocumentType = strings.TrimSpace(q.DocumentType)
	if q.Question == "" {
		return fmt.Errorf("%w: question cannot be empty", ErrInvalidInput)
	}
	if q.TenantID == "" {
		return fmt.Errorf("%w: tenant_id cannot be empty", ErrInvalidInput)
	}
	if q.TopK < 0 {
		q.TopK = 0
	}
	if q.TopK > 50 {
		q.TopK = 50
	}
	return nil
}
