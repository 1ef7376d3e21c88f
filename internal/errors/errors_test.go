package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodePathNotFound, "test error message")

	if err.Code != ErrCodePathNotFound {
		t.Errorf("expected code %s, got %s", ErrCodePathNotFound, err.Code)
	}

	if err.Message != "test error message" {
		t.Errorf("expected message 'test error message', got '%s'", err.Message)
	}

	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(ErrCodeFileReadFailed, "failed to read file", cause)

	if err.Code != ErrCodeFileReadFailed {
		t.Errorf("expected code %s, got %s", ErrCodeFileReadFailed, err.Code)
	}

	if !errors.Is(err, cause) {
		t.Errorf("Wrap should support errors.Is")
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *PlaygroundError
		contains []string
	}{
		{
			name:     "simple error",
			err:      New(ErrCodeProtocol, "unexpected message"),
			contains: []string{"[WORKER-003]", "unexpected message"},
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeFileReadFailed, "read failed", fmt.Errorf("permission denied")),
			contains: []string{"[IO-002]", "read failed: permission denied"},
		},
		{
			name:     "error with suggestions and docs",
			err:      New(ErrCodeConfigInvalid, "bad").WithSuggestion("fix it").WithDocs("https://example.com"),
			contains: []string{"Suggestions:", "• fix it", "Documentation: https://example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("Error() = %q, want it to contain %q", msg, want)
				}
			}
		})
	}
}

func TestWithSuggestions(t *testing.T) {
	err := New(ErrCodeConfigInvalid, "bad").WithSuggestions("one", "two")
	if len(err.Suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(err.Suggestions))
	}
}

func TestHasCode(t *testing.T) {
	inner := NewPathNotFoundError([]string{"build", "out.v"}, "no such entry")
	outer := Wrap(ErrCodeToolExecution, "spade failed", inner)
	wrapped := fmt.Errorf("pipeline: %w", outer)

	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"direct", inner, ErrCodePathNotFound, true},
		{"nested cause", outer, ErrCodePathNotFound, true},
		{"fmt wrapped", wrapped, ErrCodeToolExecution, true},
		{"absent code", outer, ErrCodeTransport, false},
		{"plain error", fmt.Errorf("boom"), ErrCodeTransport, false},
		{"nil", nil, ErrCodeTransport, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("HasCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessageOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", fmt.Errorf("manifest invalid"), "manifest invalid"},
		{"coded", NewUnknownToolError("nonexistent"), "nonexistent is not a command"},
		{"coded with cause", NewToolExecutionError("swim", fmt.Errorf("exit 2")), "swim failed: exit 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MessageOf(tt.err); got != tt.want {
				t.Errorf("MessageOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConstructorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *PlaygroundError
		code ErrorCode
	}{
		{"path not found", NewPathNotFoundError([]string{"a"}, "missing"), ErrCodePathNotFound},
		{"path invalid", NewPathInvalidError("empty path"), ErrCodePathInvalid},
		{"unknown tool", NewUnknownToolError("x"), ErrCodeUnknownTool},
		{"tool execution", NewToolExecutionError("x", nil), ErrCodeToolExecution},
		{"command failed", NewCommandFailedError("x"), ErrCodeCommandFailed},
		{"already running", NewAlreadyRunningError(), ErrCodeAlreadyRunning},
		{"transport", NewTransportError("x", nil), ErrCodeTransport},
		{"unknown action", NewUnknownActionError("x", []string{"run"}), ErrCodeUnknownAction},
		{"config invalid", NewConfigInvalidError("x"), ErrCodeConfigInvalid},
		{"file not found", NewFileNotFoundError("x"), ErrCodeFileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.code)
			}
		})
	}
}
