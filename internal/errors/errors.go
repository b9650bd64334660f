// Package errors provides centralized error definitions and error handling utilities
// for mproc. It defines the supervisor's error taxonomy, error constructors with
// context wrapping, and error classification helpers.
//
// # Error Types
//
// Lifecycle errors describe misuse of the process state machine or failures of
// the supervised program:
//   - StateError: an operation was called in the wrong lifecycle state
//   - SpawnError: the OS refused to create the process
//   - NonZeroExitError: the process exited with a code that is not a success code
//   - DestroyFailedError: the process survived termination escalation
//   - PatternNeverMatchedError: a console wait ended without its pattern
//   - CaptureError: reading one of the output pipes failed
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or configuration
//   - TimeoutError: a bounded wait expired
//
// # Usage
//
// Checking errors:
//
//	// Check for specific sentinel errors
//	if errors.Is(err, errors.ErrNotRunning) { ... }
//
//	// Check for error types
//	var exitErr *errors.NonZeroExitError
//	if errors.As(err, &exitErr) {
//	    fmt.Println(exitErr.Code)
//	}
//
//	// Use classification helpers
//	if errors.IsRetryable(err) { ... }
//	if errors.IsStateError(err) { ... }
//
// Every typed error matches its own sentinel through errors.Is, so callers can
// choose whichever style reads better at the call site.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Lifecycle sentinel errors
var (
	// ErrAlreadyStarted indicates Start was called on a process that was started before.
	ErrAlreadyStarted = New("process already started")
	// ErrNotStarted indicates an operation that needs a started process was called before Start.
	ErrNotStarted = New("process not started")
	// ErrNotRunning indicates an operation that needs a running process found it not running.
	ErrNotRunning = New("process not running")
	// ErrNotTerminated indicates an exit value was requested before the process terminated.
	ErrNotTerminated = New("process not terminated")
)

// Process sentinel errors
var (
	// ErrSpawnFailed indicates the OS rejected process creation.
	ErrSpawnFailed = New("process spawn failed")
	// ErrNonZeroExit indicates the process exited with a non-success code.
	ErrNonZeroExit = New("process exited with failure code")
	// ErrDestroyFailed indicates the process could not be terminated.
	ErrDestroyFailed = New("process destroy failed")
	// ErrPatternNeverMatched indicates a console wait ended without a match.
	ErrPatternNeverMatched = New("console pattern never matched")
	// ErrCaptureFailed indicates reading process output failed.
	ErrCaptureFailed = New("console capture failed")
	// ErrLockHeld indicates the launch lock file is held by another owner.
	ErrLockHeld = New("lock file held by another process")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// SupervisorError is the base interface for all mproc errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type SupervisorError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// prefixed formats "<kind> [k=v, ...]: message[: cause]".
func (e *baseError) prefixed(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Lifecycle Errors
// -----------------------------------------------------------------------------

// StateError reports an operation invoked in a lifecycle state that does not
// permit it. The sentinel identifies which rule was broken.
//
// Example:
//
//	err := errors.NewStateError("destroy", "not_started", errors.ErrNotRunning)
//	fmt.Println(err) // "state error [op=destroy, state=not_started]: process not running"
type StateError struct {
	baseError
	Op    string
	State string
	// Process is a human readable name of the program, if known.
	Process string
}

// NewStateError creates a new StateError. The sentinel must be one of the
// lifecycle sentinels (ErrAlreadyStarted, ErrNotStarted, ErrNotRunning,
// ErrNotTerminated).
func NewStateError(op, state string, sentinel error) *StateError {
	return &StateError{
		baseError: baseError{
			message:    sentinel.Error(),
			cause:      sentinel,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Op:    op,
		State: state,
	}
}

// WithProcess adds the program name to the error context.
func (e *StateError) WithProcess(name string) *StateError {
	e.Process = name
	return e
}

// Error returns the formatted error message.
func (e *StateError) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.State != "" {
		parts = append(parts, fmt.Sprintf("state=%s", e.State))
	}
	if e.Process != "" {
		parts = append(parts, fmt.Sprintf("process=%s", e.Process))
	}

	prefix := "state error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("state error [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *StateError) Is(target error) bool {
	if _, ok := target.(*StateError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SpawnError represents a failure of the OS to create the process, such as a
// missing executable or denied permission.
//
// Example:
//
//	err := errors.NewSpawnError("/usr/bin/mysqld", cause).WithDir("/var/db")
type SpawnError struct {
	baseError
	Executable string
	Dir        string
}

// NewSpawnError creates a new SpawnError.
func NewSpawnError(executable string, cause error) *SpawnError {
	return &SpawnError{
		baseError: baseError{
			message:    "failed to start process",
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Executable: executable,
	}
}

// WithDir adds the working directory to the error context.
func (e *SpawnError) WithDir(dir string) *SpawnError {
	e.Dir = dir
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *SpawnError) WithRetryable(r bool) *SpawnError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *SpawnError) Error() string {
	var parts []string
	if e.Executable != "" {
		parts = append(parts, fmt.Sprintf("exe=%s", e.Executable))
	}
	if e.Dir != "" {
		parts = append(parts, fmt.Sprintf("dir=%s", e.Dir))
	}
	return e.prefixed("spawn error", parts)
}

// Is checks if this error matches the target.
func (e *SpawnError) Is(target error) bool {
	if _, ok := target.(*SpawnError); ok {
		return true
	}
	if target == ErrSpawnFailed {
		return true
	}
	return e.baseError.Is(target)
}

// NonZeroExitError reports an exit code that is not one of the configured
// success codes.
//
// Example:
//
//	err := errors.NewNonZeroExitError("program /bin/false", 1)
//	fmt.Println(err) // "exit error [process=program /bin/false, code=1]: process exited with failure code"
type NonZeroExitError struct {
	baseError
	Process string
	Code    int
	// RecentOutput holds the last console lines at the time of exit.
	RecentOutput []string
}

// NewNonZeroExitError creates a new NonZeroExitError.
func NewNonZeroExitError(process string, code int) *NonZeroExitError {
	return &NonZeroExitError{
		baseError: baseError{
			message:    ErrNonZeroExit.Error(),
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Process: process,
		Code:    code,
	}
}

// WithRecentOutput attaches the console tail to the error.
func (e *NonZeroExitError) WithRecentOutput(lines []string) *NonZeroExitError {
	e.RecentOutput = lines
	return e
}

// Error returns the formatted error message.
func (e *NonZeroExitError) Error() string {
	var parts []string
	if e.Process != "" {
		parts = append(parts, fmt.Sprintf("process=%s", e.Process))
	}
	parts = append(parts, fmt.Sprintf("code=%d", e.Code))
	return e.prefixed("exit error", parts)
}

// Is checks if this error matches the target.
func (e *NonZeroExitError) Is(target error) bool {
	if _, ok := target.(*NonZeroExitError); ok {
		return true
	}
	if target == ErrNonZeroExit {
		return true
	}
	return e.baseError.Is(target)
}

// DestroyFailedError reports that a process survived the full termination
// escalation. The supervisor still considers the process terminated.
type DestroyFailedError struct {
	baseError
	Process string
	PID     int
}

// NewDestroyFailedError creates a new DestroyFailedError.
func NewDestroyFailedError(process string, pid int, cause error) *DestroyFailedError {
	return &DestroyFailedError{
		baseError: baseError{
			message:    "process did not terminate after kill",
			cause:      cause,
			severity:   SeverityCritical,
			retryable:  false,
			userFacing: true,
		},
		Process: process,
		PID:     pid,
	}
}

// Error returns the formatted error message.
func (e *DestroyFailedError) Error() string {
	var parts []string
	if e.Process != "" {
		parts = append(parts, fmt.Sprintf("process=%s", e.Process))
	}
	if e.PID > 0 {
		parts = append(parts, fmt.Sprintf("pid=%d", e.PID))
	}
	return e.prefixed("destroy error", parts)
}

// Is checks if this error matches the target.
func (e *DestroyFailedError) Is(target error) bool {
	if _, ok := target.(*DestroyFailedError); ok {
		return true
	}
	if target == ErrDestroyFailed {
		return true
	}
	return e.baseError.Is(target)
}

// PatternNeverMatchedError reports that a console wait finished without the
// pattern having appeared, either because the process terminated or because
// the wait timed out. A timeout is carried as the cause.
//
// Example:
//
//	err := errors.NewPatternNeverMatchedError(`"ready for connections"`)
//	err = err.WithCause(errors.NewTimeoutError("waiting for console message", 5*time.Second))
type PatternNeverMatchedError struct {
	baseError
	Pattern      string
	Process      string
	RecentOutput []string
}

// NewPatternNeverMatchedError creates a new PatternNeverMatchedError.
func NewPatternNeverMatchedError(pattern string) *PatternNeverMatchedError {
	return &PatternNeverMatchedError{
		baseError: baseError{
			message:    ErrPatternNeverMatched.Error(),
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Pattern: pattern,
	}
}

// WithCause adds a cause to the error.
func (e *PatternNeverMatchedError) WithCause(cause error) *PatternNeverMatchedError {
	e.cause = cause
	return e
}

// WithProcess adds the program name to the error context.
func (e *PatternNeverMatchedError) WithProcess(name string) *PatternNeverMatchedError {
	e.Process = name
	return e
}

// WithRecentOutput attaches the console tail to the error.
func (e *PatternNeverMatchedError) WithRecentOutput(lines []string) *PatternNeverMatchedError {
	e.RecentOutput = lines
	return e
}

// Error returns the formatted error message.
func (e *PatternNeverMatchedError) Error() string {
	var parts []string
	if e.Pattern != "" {
		parts = append(parts, fmt.Sprintf("pattern=%s", e.Pattern))
	}
	if e.Process != "" {
		parts = append(parts, fmt.Sprintf("process=%s", e.Process))
	}
	return e.prefixed("console error", parts)
}

// Is checks if this error matches the target.
func (e *PatternNeverMatchedError) Is(target error) bool {
	if _, ok := target.(*PatternNeverMatchedError); ok {
		return true
	}
	if target == ErrPatternNeverMatched {
		return true
	}
	return e.baseError.Is(target)
}

// CaptureError reports a read failure on one of the output streams.
type CaptureError struct {
	baseError
	Stream string
}

// NewCaptureError creates a new CaptureError.
func NewCaptureError(stream string, cause error) *CaptureError {
	return &CaptureError{
		baseError: baseError{
			message:    "failed to read process output",
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: false,
		},
		Stream: stream,
	}
}

// Error returns the formatted error message.
func (e *CaptureError) Error() string {
	var parts []string
	if e.Stream != "" {
		parts = append(parts, fmt.Sprintf("stream=%s", e.Stream))
	}
	return e.prefixed("capture error", parts)
}

// Is checks if this error matches the target.
func (e *CaptureError) Is(target error) bool {
	if _, ok := target.(*CaptureError); ok {
		return true
	}
	if target == ErrCaptureFailed {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("must be positive").WithField("console_buffer_max_lines").WithValue(0)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds the field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.prefixed("validation error", parts)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for process exit", 30*time.Second)
//	fmt.Println(err) // "timeout error: waiting for process exit (timeout: 30s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true, // Timeouts are generally retryable
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// WithRetryable sets whether the error is retryable (default true for timeouts).
func (e *TimeoutError) WithRetryable(r bool) *TimeoutError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s", e.Operation)
	if e.Duration > 0 {
		base = fmt.Sprintf("%s (timeout: %s)", base, e.Duration)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if target == ErrTimeout {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing SupervisorError with IsRetryable() returning true
//   - Errors wrapping ErrTimeout
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var supErr SupervisorError
	if As(err, &supErr) {
		return supErr.IsRetryable()
	}

	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var supErr SupervisorError
	if As(err, &supErr) {
		return supErr.IsUserFacing()
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement SupervisorError.
//
// Example:
//
//	switch errors.GetSeverity(err) {
//	case errors.SeverityCritical:
//	    log.Error("process leaked", "err", err)
//	case errors.SeverityWarning:
//	    log.Warn("warning", "err", err)
//	}
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var supErr SupervisorError
	if As(err, &supErr) {
		return supErr.Severity()
	}

	return SeverityError
}

// IsStateError returns true if err reports lifecycle misuse.
func IsStateError(err error) bool {
	if err == nil {
		return false
	}
	var stateErr *StateError
	return As(err, &stateErr)
}

// IsTimeout returns true if err is or wraps a timeout.
func IsTimeout(err error) bool {
	return err != nil && Is(err, ErrTimeout)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this preserves the SupervisorError interface.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to run init scripts")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to read script %s", path)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
