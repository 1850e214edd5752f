package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestRetentionError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *RetentionError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(CategoryConfig, SeverityFatal, "configuration invalid"),
			expected: "config (fatal): configuration invalid",
		},
		{
			name:     "error with cause",
			err:      Wrap(fmt.Errorf("connection refused"), CategoryStore, SeverityFatal, "failed to reach store"),
			expected: "store (fatal): failed to reach store: connection refused",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := test.err.Error()
			if result != test.expected {
				t.Errorf("Error() = %q, want %q", result, test.expected)
			}
		})
	}
}

func TestRetentionError_WithContext(t *testing.T) {
	err := New(CategoryStore, SeverityWarning, "delete failed").
		WithContext("key", "HOST-web01").
		WithContext("backend", "redis")

	if err.Context == nil {
		t.Fatal("Context should not be nil")
	}

	if err.Context["key"] != "HOST-web01" {
		t.Errorf("Context[key] = %v, want HOST-web01", err.Context["key"])
	}

	if err.Context["backend"] != "redis" {
		t.Errorf("Context[backend] = %v, want redis", err.Context["backend"])
	}
}

func TestIsCategory(t *testing.T) {
	storeErr := StoreUnavailable(fmt.Errorf("dial tcp: refused"), "set failed")
	codecErr := DecodeError(fmt.Errorf("unexpected end of JSON input"), "truncated payload")
	standardErr := fmt.Errorf("standard error")

	tests := []struct {
		name     string
		err      error
		category ErrorCategory
		expected bool
	}{
		{"store error matches store", storeErr, CategoryStore, true},
		{"store error does not match codec", storeErr, CategoryCodec, false},
		{"codec error matches codec", codecErr, CategoryCodec, true},
		{"standard error never matches", standardErr, CategoryStore, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsCategory(test.err, test.category); got != test.expected {
				t.Errorf("IsCategory() = %v, want %v", got, test.expected)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(StoreUnavailable(nil, "store down")) {
		t.Error("StoreUnavailable should be retryable")
	}
	if IsRetryable(DecodeError(nil, "bad payload")) {
		t.Error("DecodeError should not be retryable")
	}
	if IsRetryable(fmt.Errorf("plain")) {
		t.Error("plain errors should not be retryable")
	}
	wrapped := fmt.Errorf("connect: %w", StoreUnavailable(nil, "store down"))
	if !IsRetryable(wrapped) {
		t.Error("retryability must survive fmt.Errorf wrapping")
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(cause, CategoryStore, SeverityError, "wrapped")

	if !stdErrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestGetCategory(t *testing.T) {
	if got := GetCategory(New(CategoryDaemon, SeverityError, "x")); got != CategoryDaemon {
		t.Errorf("GetCategory() = %v, want %v", got, CategoryDaemon)
	}
	if got := GetCategory(fmt.Errorf("plain")); got != CategoryInternal {
		t.Errorf("GetCategory() = %v, want %v", got, CategoryInternal)
	}
}
