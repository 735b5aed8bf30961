package errors

import (
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Resolution errors (RESOLVE-001 to RESOLVE-099)
	ErrCodeResolveNotFound  ErrorCode = "RESOLVE-001"
	ErrCodeResolveCycle     ErrorCode = "RESOLVE-002"
	ErrCodeResolveMetadata  ErrorCode = "RESOLVE-003"
	ErrCodeResolveNoPackage ErrorCode = "RESOLVE-004"

	// Build errors (BUILD-001 to BUILD-099)
	ErrCodeBuildFailure ErrorCode = "BUILD-001"
	ErrCodeBuildAborted ErrorCode = "BUILD-002"

	// Execution errors (EXEC-001 to EXEC-099)
	ErrCodeExecUnavailable    ErrorCode = "EXEC-001"
	ErrCodeExecDownloadFailed ErrorCode = "EXEC-002"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
)

// AfterpkgError represents an enhanced error with code, suggestions, and documentation
type AfterpkgError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *AfterpkgError) Error() string {
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
func (e *AfterpkgError) Unwrap() error {
	return e.Cause
}

// New creates a new AfterpkgError
func New(code ErrorCode, message string) *AfterpkgError {
	return &AfterpkgError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new AfterpkgError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *AfterpkgError {
	return &AfterpkgError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *AfterpkgError) WithSuggestion(suggestion string) *AfterpkgError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *AfterpkgError) WithSuggestions(suggestions ...string) *AfterpkgError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *AfterpkgError) WithDocs(url string) *AfterpkgError {
	e.DocsURL = url
	return e
}

// Common error constructors for frequently used errors

// NewPackageNotFoundError creates a metadata lookup miss error
func NewPackageNotFoundError(name string, cause error) *AfterpkgError {
	return Wrap(ErrCodeResolveNotFound, fmt.Sprintf("package not found in repository: %s", name), cause).
		WithSuggestion("Check the spelling of the package name").
		WithSuggestion("Make sure the SlackBuilds tree is cloned and up to date (see 'afterpkg config view')")
}

// NewCyclicDependencyError creates a dependency cycle error naming the members
func NewCyclicDependencyError(members []string, cause error) *AfterpkgError {
	return Wrap(ErrCodeResolveCycle, fmt.Sprintf("cyclic dependency between: %s", strings.Join(members, ", ")), cause).
		WithSuggestion("Inspect the REQUIRES lines of the listed packages' .info files")
}

// NewMetadataError creates a metadata parse error
func NewMetadataError(name string, cause error) *AfterpkgError {
	return Wrap(ErrCodeResolveMetadata, fmt.Sprintf("unreadable metadata for package: %s", name), cause).
		WithSuggestion("Check the package's .info file syntax")
}

// NewBuildAbortedError creates an aborted-run error
func NewBuildAbortedError(failed []string) *AfterpkgError {
	return New(ErrCodeBuildAborted, fmt.Sprintf("build aborted, failed packages: %s", strings.Join(failed, ", "))).
		WithSuggestion("Inspect the build output above for the failing package").
		WithSuggestion("Re-run with --jobs 1 to get unmixed output")
}

// NewExecutorUnavailableError creates an executor transport error
func NewExecutorUnavailableError(target string, cause error) *AfterpkgError {
	return Wrap(ErrCodeExecUnavailable, fmt.Sprintf("executor unavailable: %s", target), cause).
		WithSuggestion("Check connectivity to the remote build host").
		WithSuggestion("Verify remote.user and remote.key_file in the configuration")
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(details string) *AfterpkgError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Run 'afterpkg config view' to inspect the effective configuration")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *AfterpkgError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileWriteError creates a file write error
func NewFileWriteError(path string, cause error) *AfterpkgError {
	return Wrap(ErrCodeFileWriteFailed, fmt.Sprintf("failed to write file: %s", path), cause).
		WithSuggestion("Check that the directory exists and is writable")
}
