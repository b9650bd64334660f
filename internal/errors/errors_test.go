package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// StateError Tests
// -----------------------------------------------------------------------------

func TestStateError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *StateError
		want string
	}{
		{
			name: "op and state",
			err:  NewStateError("destroy", "not_started", ErrNotRunning),
			want: "state error [op=destroy, state=not_started]: process not running",
		},
		{
			name: "with process",
			err:  NewStateError("start", "running", ErrAlreadyStarted).WithProcess("program sleep"),
			want: "state error [op=start, state=running, process=program sleep]: process already started",
		},
		{
			name: "bare",
			err:  NewStateError("", "", ErrNotTerminated),
			want: "state error: process not terminated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStateError_Is(t *testing.T) {
	err := NewStateError("exitValue", "running", ErrNotTerminated)

	if !Is(err, &StateError{}) {
		t.Error("Is(StateError{}) = false, want true")
	}
	if !Is(err, ErrNotTerminated) {
		t.Error("Is(ErrNotTerminated) = false, want true")
	}
	if Is(err, ErrNotRunning) {
		t.Error("Is(ErrNotRunning) = true, want false")
	}
	if !IsStateError(fmt.Errorf("wrapped: %w", err)) {
		t.Error("IsStateError(wrapped) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// Process Error Tests
// -----------------------------------------------------------------------------

func TestSpawnError(t *testing.T) {
	cause := errors.New("exec: \"nope\": executable file not found in $PATH")
	err := NewSpawnError("nope", cause).WithDir("/tmp")

	want := "spawn error [exe=nope, dir=/tmp]: failed to start process: " + cause.Error()
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !Is(err, ErrSpawnFailed) {
		t.Error("Is(ErrSpawnFailed) = false, want true")
	}
	if !Is(err, cause) {
		t.Error("Is(cause) = false, want true")
	}
	if IsRetryable(err) {
		t.Error("IsRetryable() = true, want false")
	}
}

func TestNonZeroExitError(t *testing.T) {
	err := NewNonZeroExitError("program false", 3).WithRecentOutput([]string{"boom"})

	if got, want := err.Error(), "exit error [process=program false, code=3]: process exited with failure code"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	var exitErr *NonZeroExitError
	if !As(fmt.Errorf("wait: %w", err), &exitErr) {
		t.Fatal("As(NonZeroExitError) = false, want true")
	}
	if exitErr.Code != 3 {
		t.Errorf("Code = %d, want 3", exitErr.Code)
	}
	if len(exitErr.RecentOutput) != 1 {
		t.Errorf("RecentOutput = %v, want 1 line", exitErr.RecentOutput)
	}
	if !Is(err, ErrNonZeroExit) {
		t.Error("Is(ErrNonZeroExit) = false, want true")
	}
}

func TestDestroyFailedError(t *testing.T) {
	err := NewDestroyFailedError("program vi", 4242, ErrTimeout)

	if GetSeverity(err) != SeverityCritical {
		t.Errorf("GetSeverity() = %v, want critical", GetSeverity(err))
	}
	if !Is(err, ErrDestroyFailed) {
		t.Error("Is(ErrDestroyFailed) = false, want true")
	}
	if !Is(err, ErrTimeout) {
		t.Error("Is(ErrTimeout) = false, want true via cause")
	}
	want := "destroy error [process=program vi, pid=4242]: process did not terminate after kill: operation timed out"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestPatternNeverMatchedError(t *testing.T) {
	t.Run("terminated", func(t *testing.T) {
		err := NewPatternNeverMatchedError(`"ready"`).WithProcess("program true")
		if !Is(err, ErrPatternNeverMatched) {
			t.Error("Is(ErrPatternNeverMatched) = false, want true")
		}
		if IsTimeout(err) {
			t.Error("IsTimeout() = true, want false")
		}
	})

	t.Run("timed out", func(t *testing.T) {
		timeout := NewTimeoutError("waiting for console message", 50*time.Millisecond)
		err := NewPatternNeverMatchedError(`"ready"`).WithCause(timeout)
		if !IsTimeout(err) {
			t.Error("IsTimeout() = false, want true")
		}
		var te *TimeoutError
		if !As(err, &te) {
			t.Fatal("As(TimeoutError) = false, want true")
		}
		if te.Duration != 50*time.Millisecond {
			t.Errorf("Duration = %v, want 50ms", te.Duration)
		}
	})
}

func TestCaptureError(t *testing.T) {
	err := NewCaptureError("stderr", errors.New("read |0: bad file descriptor"))
	if !Is(err, ErrCaptureFailed) {
		t.Error("Is(ErrCaptureFailed) = false, want true")
	}
	if IsUserFacing(err) {
		t.Error("IsUserFacing() = true, want false")
	}
	if GetSeverity(err) != SeverityWarning {
		t.Errorf("GetSeverity() = %v, want warning", GetSeverity(err))
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "message only",
			err:  NewValidationError("executable is required"),
			want: "validation error: executable is required",
		},
		{
			name: "field and value",
			err:  NewValidationError("must be positive").WithField("max_lines").WithValue(0),
			want: "validation error [field=max_lines, value=0]: must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !Is(tt.err, ErrInvalidInput) {
				t.Error("Is(ErrInvalidInput) = false, want true")
			}
		})
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("waiting for process exit", 30*time.Second)

	if got, want := err.Error(), "timeout error: waiting for process exit (timeout: 30s)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable() = false, want true")
	}
	if !IsRetryable(err.WithRetryable(true)) {
		t.Error("IsRetryable() after WithRetryable(true) = false")
	}
	if IsRetryable(NewTimeoutError("x", 0).WithRetryable(false)) {
		t.Error("IsRetryable() = true after WithRetryable(false)")
	}
}

// -----------------------------------------------------------------------------
// Helper Tests
// -----------------------------------------------------------------------------

func TestClassificationHelpers_Nil(t *testing.T) {
	if IsRetryable(nil) || IsUserFacing(nil) || IsStateError(nil) || IsTimeout(nil) {
		t.Error("helpers should return false for nil")
	}
	if GetSeverity(nil) != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v, want debug", GetSeverity(nil))
	}
	if GetSeverity(errors.New("plain")) != SeverityError {
		t.Error("GetSeverity(plain) should default to error")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}

	err := Wrapf(ErrNotRunning, "destroy %s", "mysqld")
	if got, want := err.Error(), "destroy mysqld: process not running"; got != want {
		t.Errorf("Wrapf() = %q, want %q", got, want)
	}
	if !Is(err, ErrNotRunning) {
		t.Error("wrapped error lost its sentinel")
	}
}
