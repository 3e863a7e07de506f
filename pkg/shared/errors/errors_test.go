package errors

import (
	"fmt"
	"testing"
)

func TestOperationError(t *testing.T) {
	tests := []struct {
		name     string
		err      *OperationError
		expected string
	}{
		{
			name: "full error",
			err: &OperationError{
				Operation: "connect to database",
				Component: "postgres",
				Resource:  "user_table",
				Cause:     fmt.Errorf("connection timeout"),
			},
			expected: "failed to connect to database, component: postgres, resource: user_table, cause: connection timeout",
		},
		{
			name: "minimal error",
			err: &OperationError{
				Operation: "parse config",
				Cause:     fmt.Errorf("invalid yaml"),
			},
			expected: "failed to parse config, cause: invalid yaml",
		},
		{
			name: "no cause",
			err: &OperationError{
				Operation: "validate input",
				Component: "validator",
			},
			expected: "failed to validate input, component: validator",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("OperationError.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestOperationError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := &OperationError{
		Operation: "test",
		Cause:     cause,
	}

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("OperationError.Unwrap() = %v, want %v", unwrapped, cause)
	}

	errNoCause := &OperationError{Operation: "test"}
	if unwrapped := errNoCause.Unwrap(); unwrapped != nil {
		t.Errorf("OperationError.Unwrap() with no cause = %v, want nil", unwrapped)
	}
}

func TestFailedTo(t *testing.T) {
	tests := []struct {
		name     string
		action   string
		cause    error
		expected string
	}{
		{
			name:     "with cause",
			action:   "connect to database",
			cause:    fmt.Errorf("connection refused"),
			expected: "failed to connect to database: connection refused",
		},
		{
			name:     "without cause",
			action:   "start server",
			cause:    nil,
			expected: "failed to start server",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FailedTo(tt.action, tt.cause)
			if err.Error() != tt.expected {
				t.Errorf("FailedTo() = %q, want %q", err.Error(), tt.expected)
			}
		})
	}
}

func TestFailedToWithDetails(t *testing.T) {
	cause := fmt.Errorf("timeout")
	err := FailedToWithDetails("query users", "database", "users_table", cause)

	opErr, ok := err.(*OperationError)
	if !ok {
		t.Fatalf("FailedToWithDetails() should return *OperationError, got %T", err)
	}

	if opErr.Operation != "query users" {
		t.Errorf("Operation = %q, want %q", opErr.Operation, "query users")
	}
	if opErr.Component != "database" {
		t.Errorf("Component = %q, want %q", opErr.Component, "database")
	}
	if opErr.Resource != "users_table" {
		t.Errorf("Resource = %q, want %q", opErr.Resource, "users_table")
	}
	if opErr.Cause != cause {
		t.Errorf("Cause = %v, want %v", opErr.Cause, cause)
	}
}

func TestWrapf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		format   string
		args     []interface{}
		expected string
	}{
		{
			name:     "wrap with message",
			err:      fmt.Errorf("original error"),
			format:   "additional context: %s",
			args:     []interface{}{"test"},
			expected: "additional context: test: original error",
		},
		{
			name:     "nil error",
			err:      nil,
			format:   "should not wrap",
			args:     nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Wrapf(tt.err, tt.format, tt.args...)
			if tt.err == nil {
				if result != nil {
					t.Errorf("Wrapf(nil) = %v, want nil", result)
				}
				return
			}
			if result.Error() != tt.expected {
				t.Errorf("Wrapf() = %q, want %q", result.Error(), tt.expected)
			}
		})
	}
}

func TestWithKind(t *testing.T) {
	err := FailedTo("connect", fmt.Errorf("refused"))
	err = WithKind(err, KindStreamBackend)

	opErr, ok := err.(*OperationError)
	if !ok {
		t.Fatalf("expected *OperationError, got %T", err)
	}
	if opErr.Kind != KindStreamBackend {
		t.Errorf("Kind = %v, want %v", opErr.Kind, KindStreamBackend)
	}
}

func TestNotFoundAndInvalidState(t *testing.T) {
	nf := NotFound("registry", "service-123")
	opErr, ok := nf.(*OperationError)
	if !ok || opErr.Kind != KindNotFound {
		t.Fatalf("NotFound() kind = %v, want KindNotFound", opErr)
	}

	is := InvalidState("task", "already terminal")
	opErr, ok = is.(*OperationError)
	if !ok || opErr.Kind != KindInvalidState {
		t.Fatalf("InvalidState() kind = %v, want KindInvalidState", opErr)
	}
}
