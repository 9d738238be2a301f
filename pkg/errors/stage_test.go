package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify_Nil(t *testing.T) {
	if result := Classify(nil, "transcription"); result != nil {
		t.Errorf("expected nil for nil error, got %v", result)
	}
}

func TestClassify_DeadlineExceeded(t *testing.T) {
	result := Classify(context.DeadlineExceeded, "transcription")

	if result == nil {
		t.Fatal("expected non-nil StageError")
	}
	if result.Code != ErrTimeout {
		t.Errorf("expected ErrTimeout, got %s", result.Code)
	}
	if result.Stage != "transcription" {
		t.Errorf("expected stage 'transcription', got %s", result.Stage)
	}
	if result.Cause != context.DeadlineExceeded {
		t.Errorf("expected cause to be the original error")
	}
}

func TestClassify_MessagePatterns(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"rate limit", errors.New("HTTP 429: too many requests"), ErrRateLimited},
		{"quota", errors.New("quota exceeded for project"), ErrRateLimited},
		{"timeout", errors.New("request timed out after 300s"), ErrTimeout},
		{"connection refused", errors.New("dial tcp: connection refused"), ErrConnection},
		{"no such host", errors.New("lookup api.example.com: no such host"), ErrConnection},
		{"too large", errors.New("HTTP 413: payload too large"), ErrPayloadTooLarge},
		{"unknown", errors.New("something else entirely"), ErrProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(tt.err, "transcription")
			if result.Code != tt.want {
				t.Errorf("Classify(%q) code = %s, want %s", tt.err, result.Code, tt.want)
			}
		})
	}
}

func TestClassify_PreservesExistingStageError(t *testing.T) {
	orig := NewStageError(ErrMalformedResponse, "", "no transcript in response")
	wrapped := fmt.Errorf("provider call: %w", orig)

	result := Classify(wrapped, "transcription")
	if result.Code != ErrMalformedResponse {
		t.Errorf("expected ErrMalformedResponse preserved, got %s", result.Code)
	}
	if result.Stage != "transcription" {
		t.Errorf("expected stage filled in, got %q", result.Stage)
	}
}

func TestClassify_NotConfigured(t *testing.T) {
	err := fmt.Errorf("transcription provider: %w", ErrNotConfigured)
	result := Classify(err, "transcription")
	if result.Code != ErrConfiguration {
		t.Errorf("expected ErrConfiguration, got %s", result.Code)
	}
}

func TestStageError_ErrorString(t *testing.T) {
	se := NewStageError(ErrRateLimited, "transcription", "provider returned 429")
	want := "rate_limited: transcription: provider returned 429"
	if se.Error() != want {
		t.Errorf("Error() = %q, want %q", se.Error(), want)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{ErrRateLimited, true},
		{ErrTimeout, true},
		{ErrConnection, true},
		{ErrMalformedResponse, false},
		{ErrInput, false},
		{ErrConfiguration, false},
		{ErrPersistence, false},
	}
	for _, tt := range tests {
		err := NewStageError(tt.code, "s", "m")
		if got := IsRetryableError(err); got != tt.want {
			t.Errorf("IsRetryableError(%s) = %v, want %v", tt.code, got, tt.want)
		}
	}

	if IsRetryableError(errors.New("plain")) {
		t.Error("plain errors must not be retryable")
	}
}

func TestNeedsBackoff(t *testing.T) {
	if !NeedsBackoff(ErrRateLimited) {
		t.Error("rate limited retries must back off")
	}
	if NeedsBackoff(ErrTimeout) {
		t.Error("timeout retries must not back off")
	}
	if NeedsBackoff(ErrConnection) {
		t.Error("connection retries must not back off")
	}
}

func TestSentinels(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", ErrConflict)
	if !IsConflict(wrapped) {
		t.Error("IsConflict failed to match wrapped sentinel")
	}
	if IsNotFound(wrapped) {
		t.Error("IsNotFound matched the wrong sentinel")
	}
}
