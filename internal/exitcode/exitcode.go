package exitcode

import (
	"os"
	"strings"

	"github.com/planforge/planforge/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// ValidationError indicates a plan failed document validation
	ValidationError = 3

	// CodecError indicates compression or decompression failed
	CodecError = 4

	// ServiceError indicates an external service failure after retries
	ServiceError = 5

	// StoreError indicates a session store failure
	StoreError = 6

	// Interrupted indicates the operation was cancelled by the user
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	Exit(DetermineExitCode(err))
}

// DetermineExitCode analyzes an error and returns the appropriate exit code
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch code := errors.CodeOf(err); {
	case strings.HasPrefix(string(code), "PLAN-"):
		return ValidationError
	case strings.HasPrefix(string(code), "CODEC-"):
		return CodecError
	case strings.HasPrefix(string(code), "SERVICE-"):
		return ServiceError
	case strings.HasPrefix(string(code), "STORE-"):
		return StoreError
	case strings.HasPrefix(string(code), "CONFIG-"):
		return UsageError
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "missing argument") {
		return UsageError
	}

	return GeneralError
}

// Description returns a human-readable description of an exit code
func Description(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case ValidationError:
		return "Plan validation failed"
	case CodecError:
		return "Artifact compression or decompression failed"
	case ServiceError:
		return "External service failure"
	case StoreError:
		return "Session store failure"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
