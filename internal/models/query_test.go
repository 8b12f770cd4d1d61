package models

import (
	"errors"
	"testing"
)

func TestQueryRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *QueryRequest
		wantErr bool
	}{
		{"empty question", &QueryRequest{Question: "", TenantID: "t"}, true},
		{"blank question", &QueryRequest{Question: "   ", TenantID: "t"}, true},
		{"missing tenant", &QueryRequest{Question: "hi"}, true},
		{"valid", &QueryRequest{Question: "hi", TenantID: "t"}, false},
		{"negative top k", &QueryRequest{Question: "hi", TenantID: "t", TopK: -3}, false},
		{"caps top k", &QueryRequest{Question: "hi", TenantID: "t", TopK: 500}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if tt.query.TopK < 0 || tt.query.TopK > 50 {
				t.Errorf("TopK not clamped: %d", tt.query.TopK)
			}
		})
	}
}
