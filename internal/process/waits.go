package process

import (
	"context"
	"fmt"
	"time"

	"github.com/Iron-Ham/mproc/internal/errors"
	"github.com/Iron-Ham/mproc/internal/process/capture"
)

// WaitForConsoleMessage blocks until a console line containing text appears
// on stdout or stderr. See WaitForConsoleMatch.
func (p *ManagedProcess) WaitForConsoleMessage(ctx context.Context, text string) error {
	return p.WaitForConsoleMatch(ctx, capture.Contains(text))
}

// WaitForConsoleMessageMax is WaitForConsoleMessage bounded by d.
func (p *ManagedProcess) WaitForConsoleMessageMax(text string, d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return p.WaitForConsoleMatch(ctx, capture.Contains(text))
}

// WaitForConsoleMatch blocks until a console line satisfies m.
//
// Lines still in the console buffer count, so waiting for a line that was
// already printed returns immediately, even after the process exited. Lines
// already evicted from the buffer do not count.
//
// It fails with PatternNeverMatchedError if the process terminates without
// such a line, wrapping a TimeoutError if ctx expires first. Before Start it
// fails with a NotStarted state error.
func (p *ManagedProcess) WaitForConsoleMatch(ctx context.Context, m capture.Matcher) error {
	const op = "waitForConsoleMessage"
	if err := p.requireStarted(op); err != nil {
		return err
	}
	if err := p.takeCaptureErr(); err != nil {
		return err
	}

	start := time.Now()
	name := p.spec.ShortName()
	w := p.console.Watch(m)

	select {
	case <-w.Done():
	case <-ctx.Done():
		p.console.Unwatch(w)
		if !w.Matched() {
			p.metrics.PatternWait(name, "timeout", time.Since(start))
			return p.neverMatched(m).WithCause(contextError(ctx, "waiting for console message "+m.String(), start))
		}
	}

	if !w.Matched() {
		p.metrics.PatternWait(name, "never_matched", time.Since(start))
		if err := p.takeCaptureErr(); err != nil {
			return p.neverMatched(m).WithCause(err)
		}
		return p.neverMatched(m)
	}

	p.metrics.PatternWait(name, "matched", time.Since(start))
	p.logger.Debug("console pattern matched", "pattern", m.String(), "line", w.Line())
	return nil
}

func (p *ManagedProcess) neverMatched(m capture.Matcher) *errors.PatternNeverMatchedError {
	return errors.NewPatternNeverMatchedError(m.String()).
		WithProcess(p.LongName()).
		WithRecentOutput(p.recentOutput())
}

// WaitForExit blocks until the process is Terminated and returns its outcome.
// If ctx expires first it returns a TimeoutError and the process is left
// untouched. With FailOnNonZeroExit, a natural exit with a non-success code
// is returned as NonZeroExitError along with the outcome.
func (p *ManagedProcess) WaitForExit(ctx context.Context) (ExitOutcome, error) {
	const op = "waitForExit"
	if err := p.requireStarted(op); err != nil {
		return ExitOutcome{}, err
	}

	start := time.Now()
	select {
	case <-p.done:
	case <-ctx.Done():
		return ExitOutcome{}, contextError(ctx, "waiting for process exit", start)
	}

	outcome, _ := p.Outcome()
	if err := p.takeCaptureErr(); err != nil {
		return outcome, err
	}
	if p.spec.FailOnNonZeroExit && outcome.Kind == ExitNatural && !p.spec.IsSuccess(outcome.Code) {
		return outcome, p.nonZeroExit(outcome)
	}
	return outcome, nil
}

// WaitForExitMax is WaitForExit bounded by d.
func (p *ManagedProcess) WaitForExitMax(d time.Duration) (ExitOutcome, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return p.WaitForExit(ctx)
}

// WaitForSuccessExit is WaitForExit that additionally fails with
// NonZeroExitError when the exit code is not a success code.
func (p *ManagedProcess) WaitForSuccessExit(ctx context.Context) (ExitOutcome, error) {
	outcome, err := p.WaitForExit(ctx)
	if err != nil {
		return outcome, err
	}
	if !p.spec.IsSuccess(outcome.Code) {
		return outcome, p.nonZeroExit(outcome)
	}
	return outcome, nil
}

// WaitForExitMaxOrDestroy waits up to d for the process to exit on its own
// and destroys it otherwise. The process is Terminated when this returns;
// an unkillable process yields DestroyFailedError.
func (p *ManagedProcess) WaitForExitMaxOrDestroy(d time.Duration) (ExitOutcome, error) {
	outcome, err := p.WaitForExitMax(d)
	if err == nil || !errors.IsTimeout(err) {
		return outcome, err
	}

	p.logger.Info("process still running after deadline, destroying", "deadline", d.String())
	destroyErr := p.Destroy()
	if destroyErr != nil && errors.Is(destroyErr, errors.ErrNotRunning) {
		// It exited between the deadline and the destroy.
		destroyErr = nil
	}

	<-p.done
	outcome, _ = p.Outcome()
	if destroyErr != nil {
		return outcome, destroyErr
	}
	return outcome, p.takeCaptureErr()
}

func (p *ManagedProcess) nonZeroExit(outcome ExitOutcome) error {
	return errors.NewNonZeroExitError(p.LongName(), outcome.Code).WithRecentOutput(p.recentOutput())
}

// contextError converts an expired context into a TimeoutError, or a
// cancellation into an ErrCanceled-wrapped error.
func contextError(ctx context.Context, op string, start time.Time) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		d := time.Since(start)
		if deadline, ok := ctx.Deadline(); ok {
			d = deadline.Sub(start)
		}
		return errors.NewTimeoutError(op, d.Round(time.Millisecond)).WithCause(ctx.Err())
	}
	return fmt.Errorf("%s: %w: %w", op, errors.ErrCanceled, ctx.Err())
}
