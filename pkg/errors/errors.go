// Package errors provides a structured error system for ShrinkFS with error codes, categories, and context.
package errors

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for ShrinkFS operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Filesystem Errors
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeIOError          ErrorCode = "IO_ERROR"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// Compression Errors
	ErrCodeUnsupportedMethod ErrorCode = "UNSUPPORTED_METHOD"
	ErrCodeIntegrityMismatch ErrorCode = "INTEGRITY_MISMATCH"

	// Metadata Errors
	ErrCodeMetadataError ErrorCode = "METADATA_ERROR"

	// State Management Errors
	ErrCodeAlreadyRunning ErrorCode = "ALREADY_RUNNING"
	ErrCodeNotRunning     ErrorCode = "NOT_RUNNING"

	// Configuration Errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigSave       ErrorCode = "CONFIG_SAVE"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Internal System Errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryFilesystem    ErrorCategory = "filesystem"
	CategoryCompression   ErrorCategory = "compression"
	CategoryMetadata      ErrorCategory = "metadata"
	CategoryState         ErrorCategory = "state"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryInternal      ErrorCategory = "internal"
)

// ShrinkFSError represents a structured error with context and metadata.
type ShrinkFSError struct {
	// Core error information
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	// Contextual information
	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"` // Not serialized to avoid circular refs
	Timestamp time.Time         `json:"timestamp"`

	// Operational metadata
	Component string `json:"component"`
	Operation string `json:"operation,omitempty"`
	Path      string `json:"path,omitempty"`

	// Error handling hints
	Retryable bool `json:"retryable"`

	// Debug information
	Stack string `json:"stack,omitempty"`
}

// Error implements the error interface.
func (e *ShrinkFSError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *ShrinkFSError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *ShrinkFSError) Is(target error) bool {
	if shrinkErr, ok := target.(*ShrinkFSError); ok {
		return e.Code == shrinkErr.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *ShrinkFSError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}

	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}

	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("Path=%s", e.Path))
	}

	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}

	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("ShrinkFSError{%s}", strings.Join(parts, ", "))
}

// JSON returns the error as a JSON string.
func (e *ShrinkFSError) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal error: %s"}`, err.Error())
	}
	return string(data)
}

// NewError creates a new ShrinkFS error with default values.
func NewError(code ErrorCode, message string) *ShrinkFSError {
	return &ShrinkFSError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
		Context:   make(map[string]string),
		Retryable: IsRetryableByDefault(code),
	}
}

// NewNotFound creates a NOT_FOUND error for the given path.
func NewNotFound(message, path string) *ShrinkFSError {
	return NewError(ErrCodeNotFound, message).WithPath(path)
}

// NewIOError creates an IO_ERROR wrapping the underlying cause.
func NewIOError(message string, cause error) *ShrinkFSError {
	return NewError(ErrCodeIOError, message).WithCause(cause)
}

// NewUnsupportedMethod creates an UNSUPPORTED_METHOD error naming the method.
func NewUnsupportedMethod(method string) *ShrinkFSError {
	return NewError(ErrCodeUnsupportedMethod, fmt.Sprintf("unsupported compression method: %s", method))
}

// NewIntegrityMismatch creates an INTEGRITY_MISMATCH error for the given path.
func NewIntegrityMismatch(path string) *ShrinkFSError {
	return NewError(ErrCodeIntegrityMismatch, "decompressed content does not match recorded hash").WithPath(path)
}

// NewMetadataError creates a METADATA_ERROR wrapping the underlying cause.
func NewMetadataError(message string, cause error) *ShrinkFSError {
	return NewError(ErrCodeMetadataError, message).WithCause(cause)
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeNotFound, ErrCodeIOError, ErrCodePermissionDenied:
		return CategoryFilesystem
	case ErrCodeUnsupportedMethod, ErrCodeIntegrityMismatch:
		return CategoryCompression
	case ErrCodeMetadataError:
		return CategoryMetadata
	case ErrCodeAlreadyRunning, ErrCodeNotRunning:
		return CategoryState
	case ErrCodeInvalidConfig, ErrCodeConfigLoad, ErrCodeConfigSave, ErrCodeConfigValidation:
		return CategoryConfiguration
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault determines if an error is retryable by default.
// Only ledger document writes are retried; per-file compression failures
// are counted by the batch, never retried.
func IsRetryableByDefault(code ErrorCode) bool {
	retryableCodes := map[ErrorCode]bool{
		ErrCodeMetadataError: true,
	}
	return retryableCodes[code]
}

// CaptureStack captures the current stack trace for debugging.
func CaptureStack(skip int) string {
	const depth = 10
	var pcs [depth]uintptr
	n := runtime.Callers(skip+2, pcs[:]) // +2 to skip this function and the caller
	frames := runtime.CallersFrames(pcs[:n])

	var stack []string
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "errors.go") { // Skip frames from this file
			stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return strings.Join(stack, "\n")
}

// WithContext adds contextual information to an error
func (e *ShrinkFSError) WithContext(key, value string) *ShrinkFSError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail adds detailed information to an error
func (e *ShrinkFSError) WithDetail(key string, value interface{}) *ShrinkFSError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *ShrinkFSError) WithComponent(component string) *ShrinkFSError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *ShrinkFSError) WithOperation(operation string) *ShrinkFSError {
	e.Operation = operation
	return e
}

// WithPath sets the file path the error relates to
func (e *ShrinkFSError) WithPath(path string) *ShrinkFSError {
	e.Path = path
	return e
}

// WithCause sets the underlying cause
func (e *ShrinkFSError) WithCause(cause error) *ShrinkFSError {
	e.Cause = cause
	return e
}

// WithRetryable overrides the retryable hint
func (e *ShrinkFSError) WithRetryable(retryable bool) *ShrinkFSError {
	e.Retryable = retryable
	return e
}

// WithStack captures the current stack trace
func (e *ShrinkFSError) WithStack() *ShrinkFSError {
	e.Stack = CaptureStack(2)
	return e
}

// HasCode reports whether err is a ShrinkFSError carrying the given code,
// walking the wrap chain.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if shrinkErr, ok := err.(*ShrinkFSError); ok && shrinkErr.Code == code {
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
