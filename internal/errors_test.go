package internal

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "with field",
			err:  &ValidationError{Field: "account", Msg: "is required"},
			want: "account: is required",
		},
		{
			name: "message only",
			err:  &ValidationError{Msg: "Please select at least one table"},
			want: "Please select at least one table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransportError(t *testing.T) {
	originalErr := errors.New("connection refused")
	err := &TransportError{Op: "list-tables", Err: originalErr}

	if !strings.Contains(err.Error(), "list-tables") {
		t.Errorf("TransportError.Error() should contain op, got: %q", err.Error())
	}
	if !errors.Is(err, originalErr) {
		t.Error("TransportError.Unwrap() should return original error")
	}
	if strings.Contains(err.UserMessage(), "connection refused") {
		t.Error("UserMessage() must not leak internal detail")
	}

	withStatus := &TransportError{Op: "clean-report", Status: 404, Err: errors.New("not found")}
	if !strings.Contains(withStatus.Error(), "404") {
		t.Errorf("TransportError.Error() should contain status, got: %q", withStatus.Error())
	}
	if !withStatus.IsNotFound() {
		t.Error("IsNotFound() should be true for 404")
	}

	wrapped := fmt.Errorf("fetch: %w", withStatus)
	var te *TransportError
	if !errors.As(wrapped, &te) || te.Status != 404 {
		t.Error("errors.As should find the wrapped TransportError")
	}
}

func TestTransportError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *TransportError
		want string
	}{
		{"status without cause", &TransportError{Op: "clean-report-runs", Status: 500}, "transport error [clean-report-runs] status 500"},
		{"status and cause", &TransportError{Op: "chat", Status: 502, Err: errors.New("bad gateway")}, "transport error [chat] status 502: bad gateway"},
		{"cause only", &TransportError{Op: "ping", Err: errors.New("refused")}, "transport error [ping]: refused"},
		{"bare", &TransportError{Op: "ping"}, "transport error [ping]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStorageError(t *testing.T) {
	originalErr := errors.New("permission denied")
	err := &StorageError{
		Path: "/test/path",
		Op:   "open",
		Err:  originalErr,
	}

	errorMsg := err.Error()
	if !strings.Contains(errorMsg, "storage error") {
		t.Errorf("StorageError.Error() should contain 'storage error', got: %q", errorMsg)
	}
	if !strings.Contains(errorMsg, "/test/path") {
		t.Errorf("StorageError.Error() should contain path, got: %q", errorMsg)
	}
	if !errors.Is(err, originalErr) {
		t.Error("StorageError.Unwrap() should return original error")
	}
}

func TestExportError(t *testing.T) {
	originalErr := errors.New("write failed")
	err := &ExportError{
		Format: "jsonl",
		Path:   "/output/file.jsonl",
		Err:    originalErr,
	}

	errorMsg := err.Error()
	if !strings.Contains(errorMsg, "export error") {
		t.Errorf("ExportError.Error() should contain 'export error', got: %q", errorMsg)
	}
	if !strings.Contains(errorMsg, "jsonl") {
		t.Errorf("ExportError.Error() should contain format, got: %q", errorMsg)
	}
	if !errors.Is(err, originalErr) {
		t.Error("ExportError.Unwrap() should return original error")
	}
}
