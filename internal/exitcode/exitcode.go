package exitcode

import (
	"errors"
	"os"
	"strings"

	aerrors "github.com/felixgeelhaar/afterpkg/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// ResolutionError indicates the dependency graph could not be built
	ResolutionError = 3

	// BuildAborted indicates at least one package failed and the run was aborted
	BuildAborted = 4

	// NetworkError indicates a network connectivity issue
	NetworkError = 6

	// Interrupted indicates the run was cancelled by SIGINT or SIGTERM
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

// DetermineExitCode analyzes an error and returns the appropriate exit code.
// Coded errors are mapped first; plain errors fall back to message heuristics.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	var coded *aerrors.AfterpkgError
	if errors.As(err, &coded) {
		switch {
		case strings.HasPrefix(string(coded.Code), "RESOLVE-"):
			return ResolutionError
		case strings.HasPrefix(string(coded.Code), "BUILD-"):
			return BuildAborted
		case coded.Code == aerrors.ErrCodeExecUnavailable, coded.Code == aerrors.ErrCodeExecDownloadFailed:
			return NetworkError
		case coded.Code == aerrors.ErrCodeConfigInvalid:
			return UsageError
		}
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "cyclic dependency") || strings.Contains(errMsg, "package not found") {
		return ResolutionError
	}

	if strings.Contains(errMsg, "build aborted") {
		return BuildAborted
	}

	if strings.Contains(errMsg, "network") || strings.Contains(errMsg, "connection") {
		return NetworkError
	}
	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "unreachable") {
		return NetworkError
	}

	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "missing argument") {
		return UsageError
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
	case ResolutionError:
		return "Dependency resolution error"
	case BuildAborted:
		return "Build aborted after a package failure"
	case NetworkError:
		return "Network error"
	case Interrupted:
		return "Interrupted by signal"
	default:
		return "Unknown error"
	}
}
