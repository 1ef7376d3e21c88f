package exitcode

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// CommandFailed indicates a pipeline stopped at a failing tool
	CommandFailed = 3

	// ConfigError indicates an invalid or missing configuration
	ConfigError = 4

	// ToolError indicates a tool is unknown or not runnable
	ToolError = 5

	// NetworkError indicates the executor channel failed
	NetworkError = 6

	// Interrupted indicates the user cancelled the operation
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps an error to an exit code. Coded errors are
// classified by code, anything else by message.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}
	if stderrors.Is(err, context.Canceled) {
		return Interrupted
	}

	switch {
	case errors.HasCode(err, errors.ErrCodeCommandFailed), errors.HasCode(err, errors.ErrCodeToolExecution):
		return CommandFailed
	case errors.HasCode(err, errors.ErrCodeConfigInvalid), errors.HasCode(err, errors.ErrCodeConfigNotFound):
		return ConfigError
	case errors.HasCode(err, errors.ErrCodeUnknownTool), errors.HasCode(err, errors.ErrCodeToolNotConfigured):
		return ToolError
	case errors.HasCode(err, errors.ErrCodeTransport), errors.HasCode(err, errors.ErrCodeChannelClosed), errors.HasCode(err, errors.ErrCodeProtocol):
		return NetworkError
	case errors.HasCode(err, errors.ErrCodeUnknownAction):
		return UsageError
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") ||
		strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "required flag") ||
		strings.Contains(errMsg, "accepts") && strings.Contains(errMsg, "arg(s)") {
		return UsageError
	}
	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "timeout") {
		return NetworkError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case CommandFailed:
		return "Pipeline command failed"
	case ConfigError:
		return "Configuration error"
	case ToolError:
		return "Tool not available"
	case NetworkError:
		return "Executor channel error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
