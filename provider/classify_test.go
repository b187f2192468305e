package provider

import (
	"errors"
	"fmt"
	"testing"

	"loom/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want model.ErrorCode
	}{
		{"429 status", errors.New("request failed: 429 Too Many Requests"), model.ErrorCodeRateLimit},
		{"rate limit text", errors.New("provider rate limit reached"), model.ErrorCodeRateLimit},
		{"401", errors.New("401 Unauthorized"), model.ErrorCodeAuth},
		{"invalid api key", errors.New("invalid API key provided"), model.ErrorCodeAuth},
		{"404", errors.New("404 model not found"), model.ErrorCodeNotFound},
		{"500", errors.New("500 Internal Server Error"), model.ErrorCodeServer},
		{"overloaded", errors.New("upstream overloaded, retry later"), model.ErrorCodeServer},
		{"timeout", errors.New("request timed out"), model.ErrorCodeNetwork},
		{"refused", errors.New("dial tcp: connection refused"), model.ErrorCodeNetwork},
		{"dns", errors.New("lookup api.example.com: no such host"), model.ErrorCodeNetwork},
		{"unknown", errors.New("something odd"), model.ErrorCodeCompletion},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTruncatedStream(t *testing.T) {
	if !IsTruncatedStream(ErrTruncatedStream) {
		t.Fatal("bare sentinel not recognized")
	}
	if !IsTruncatedStream(fmt.Errorf("reading: %w", ErrTruncatedStream)) {
		t.Fatal("wrapped sentinel not recognized")
	}
	if IsTruncatedStream(errors.New("stream ended without finish signal")) {
		t.Fatal("string lookalike treated as the sentinel")
	}
	if IsTruncatedStream(nil) {
		t.Fatal("nil treated as truncated")
	}
}
