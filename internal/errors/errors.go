package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Tree errors (TREE-001 to TREE-099)
	ErrCodePathNotFound ErrorCode = "TREE-001"
	ErrCodePathInvalid  ErrorCode = "TREE-002"
	ErrCodeTreeIO       ErrorCode = "TREE-003"

	// Tool errors (TOOL-001 to TOOL-099)
	ErrCodeUnknownTool       ErrorCode = "TOOL-001"
	ErrCodeToolExecution     ErrorCode = "TOOL-002"
	ErrCodeToolDuplicate     ErrorCode = "TOOL-003"
	ErrCodeToolNotConfigured ErrorCode = "TOOL-004"

	// Worker channel errors (WORKER-001 to WORKER-099)
	ErrCodeTransport     ErrorCode = "WORKER-001"
	ErrCodeChannelClosed ErrorCode = "WORKER-002"
	ErrCodeProtocol      ErrorCode = "WORKER-003"
	ErrCodeExecutorPanic ErrorCode = "WORKER-004"

	// Pipeline errors (PIPE-001 to PIPE-099)
	ErrCodeAlreadyRunning ErrorCode = "PIPE-001"
	ErrCodeCommandFailed  ErrorCode = "PIPE-002"
	ErrCodeProduct        ErrorCode = "PIPE-003"
	ErrCodeUnknownAction  ErrorCode = "PIPE-004"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigNotFound ErrorCode = "CONFIG-001"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
)

// PlaygroundError is an error with a code, suggestions and documentation
type PlaygroundError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *PlaygroundError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *PlaygroundError) Unwrap() error {
	return e.Cause
}

// New creates a new PlaygroundError
func New(code ErrorCode, message string) *PlaygroundError {
	return &PlaygroundError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new PlaygroundError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *PlaygroundError {
	return &PlaygroundError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *PlaygroundError) WithSuggestion(suggestion string) *PlaygroundError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *PlaygroundError) WithSuggestions(suggestions ...string) *PlaygroundError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *PlaygroundError) WithDocs(url string) *PlaygroundError {
	e.DocsURL = url
	return e
}

// HasCode reports whether any error in err's chain is a PlaygroundError
// carrying code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var pe *PlaygroundError
		if !stderrors.As(err, &pe) {
			return false
		}
		if pe.Code == code {
			return true
		}
		err = pe.Cause
	}
	return false
}

// MessageOf returns the text shown to a user for err: the bare message of
// a PlaygroundError (plus its cause) without code, suggestions or docs, or
// err.Error() for any other error.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var pe *PlaygroundError
	if stderrors.As(err, &pe) {
		if pe.Cause != nil {
			return fmt.Sprintf("%s: %s", pe.Message, MessageOf(pe.Cause))
		}
		return pe.Message
	}
	return err.Error()
}

// Common error constructors

// NewPathNotFoundError reports a tree path that does not resolve to a file
func NewPathNotFoundError(path []string, reason string) *PlaygroundError {
	return New(ErrCodePathNotFound, fmt.Sprintf("failed to get file %s: %s", strings.Join(path, "/"), reason))
}

// NewPathInvalidError reports a malformed tree path
func NewPathInvalidError(reason string) *PlaygroundError {
	return New(ErrCodePathInvalid, reason)
}

// NewUnknownToolError reports a run request for an unregistered tool
func NewUnknownToolError(name string) *PlaygroundError {
	return New(ErrCodeUnknownTool, fmt.Sprintf("%s is not a command", name)).
		WithSuggestion("Run 'hdlplay tools' to list the registered tools")
}

// NewToolExecutionError wraps a tool failure
func NewToolExecutionError(name string, cause error) *PlaygroundError {
	return Wrap(ErrCodeToolExecution, fmt.Sprintf("%s failed", name), cause)
}

// NewCommandFailedError reports a failure message relayed by the executor
func NewCommandFailedError(message string) *PlaygroundError {
	return New(ErrCodeCommandFailed, message)
}

// NewAlreadyRunningError reports a pipeline request while one is in flight
func NewAlreadyRunningError() *PlaygroundError {
	return New(ErrCodeAlreadyRunning, "a pipeline is already running").
		WithSuggestion("Wait for the current run to finish before starting another")
}

// NewTransportError wraps an executor channel failure
func NewTransportError(message string, cause error) *PlaygroundError {
	return Wrap(ErrCodeTransport, message, cause).
		WithSuggestion("Check that the executor is running ('hdlplay serve') and reachable")
}

// NewUnknownActionError reports an unsupported playground action
func NewUnknownActionError(action string, known []string) *PlaygroundError {
	return New(ErrCodeUnknownAction, fmt.Sprintf("unknown action: %s", action)).
		WithSuggestion(fmt.Sprintf("Use one of: %s", strings.Join(known, ", ")))
}

// NewConfigInvalidError reports a configuration validation failure
func NewConfigInvalidError(details string) *PlaygroundError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Run 'hdlplay config view' to inspect the effective configuration")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *PlaygroundError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}
