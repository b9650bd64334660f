package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/Iron-Ham/mproc/internal/errors"
	"github.com/Iron-Ham/mproc/internal/logging"
	"github.com/Iron-Ham/mproc/internal/metrics"
	"github.com/Iron-Ham/mproc/internal/platform"
	"github.com/Iron-Ham/mproc/internal/process/capture"
)

// recentOutputLines is how many console lines are attached to errors.
const recentOutputLines = 20

// Listener is notified once when a started process terminates.
// Callbacks run on the supervisor's waiter goroutine after the process is
// Terminated; they may call any ManagedProcess method.
type Listener interface {
	OnProcessComplete(p *ManagedProcess, outcome ExitOutcome)
	OnProcessFailed(p *ManagedProcess, outcome ExitOutcome, err error)
}

type managedOptions struct {
	listeners []Listener
	sinks     []capture.LineSink
	logger    *logging.Logger
	metrics   metrics.Collector
}

// ManagedProcess supervises one external process: it launches it, captures
// its stdout and stderr into a bounded console, and provides waits for
// console patterns and for exit.
//
// State moves forward only: NotStarted, Running, Terminated. All methods are
// safe for concurrent use.
type ManagedProcess struct {
	id        string
	spec      LaunchSpec
	listeners []Listener
	sinks     []capture.LineSink
	logger    *logging.Logger
	metrics   metrics.Collector
	console   *capture.Console

	// done is closed on the transition to Terminated.
	done chan struct{}
	// exited is closed when the OS wait for the child returns.
	exited chan struct{}

	mu         sync.Mutex
	state      State
	cmd        *exec.Cmd
	capture    *capture.Capture
	lock       *flock.Flock
	started    time.Time
	outcome    ExitOutcome
	destroying chan struct{}
	destroyed  bool
	destroyErr error
	captureErr error
	errTaken   bool
}

func newManagedProcess(spec LaunchSpec, opts managedOptions) *ManagedProcess {
	spec = spec.withDefaults()
	id := uuid.NewString()

	logger := opts.logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	collector := opts.metrics
	if collector == nil {
		collector = metrics.Noop()
	}

	return &ManagedProcess{
		id:        id,
		spec:      spec,
		listeners: opts.listeners,
		sinks:     opts.sinks,
		logger:    logger.WithProcess(id, spec.LongName()),
		metrics:   collector,
		console:   capture.NewConsole(spec.ConsoleBufferMaxLines),
		done:      make(chan struct{}),
		exited:    make(chan struct{}),
	}
}

// ID returns the unique supervisor ID.
func (p *ManagedProcess) ID() string {
	return p.id
}

// Spec returns a copy of the launch specification.
func (p *ManagedProcess) Spec() LaunchSpec {
	return p.spec.clone()
}

// LongName describes the program, arguments and working directory.
func (p *ManagedProcess) LongName() string {
	return p.spec.LongName()
}

// State returns the current lifecycle state.
func (p *ManagedProcess) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// PID returns the OS process ID, or -1 before Start.
func (p *ManagedProcess) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return -1
	}
	return p.cmd.Process.Pid
}

// Done returns a channel closed when the process is Terminated.
func (p *ManagedProcess) Done() <-chan struct{} {
	return p.done
}

// Start launches the process and begins capturing its output.
// ctx bounds only the launch itself; the process outlives it.
func (p *ManagedProcess) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateNotStarted {
		return errors.NewStateError("start", p.state.String(), errors.ErrAlreadyStarted).WithProcess(p.LongName())
	}
	if err := ctx.Err(); err != nil {
		return errors.NewSpawnError(p.spec.Executable, err).WithDir(p.spec.Dir)
	}

	var lock *flock.Flock
	if p.spec.LockFile != "" {
		lock = flock.New(p.spec.LockFile)
		ok, err := lock.TryLock()
		if err != nil {
			return errors.NewSpawnError(p.spec.Executable, fmt.Errorf("lock %s: %w", p.spec.LockFile, err)).WithDir(p.spec.Dir)
		}
		if !ok {
			return errors.NewSpawnError(p.spec.Executable, fmt.Errorf("%s: %w", p.spec.LockFile, errors.ErrLockHeld)).
				WithDir(p.spec.Dir).WithRetryable(true)
		}
	}

	cmd, stdout, stderr, err := p.spawn()
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		spawnErr := errors.NewSpawnError(p.spec.Executable, err).WithDir(p.spec.Dir)
		p.metrics.ProcessError(p.spec.ShortName(), "spawn_failed")
		p.logger.ReportError("process failed to start", spawnErr)
		return spawnErr
	}

	sinks := append([]capture.LineSink{p.lineObserver()}, p.sinks...)
	capturer := capture.New(p.console, sinks...)
	capturer.Start(stdout, stderr)

	p.cmd = cmd
	p.capture = capturer
	p.lock = lock
	p.started = time.Now()
	p.state = StateRunning

	p.metrics.StateTransition(p.spec.ShortName(), StateNotStarted.String(), StateRunning.String())
	p.logger.Info("process started", "pid", cmd.Process.Pid)

	go p.waitLoop(cmd, capturer)
	return nil
}

// StartWhenAvailable calls Start, retrying every interval while it fails with
// a retryable error such as a held lock file. It gives up when ctx ends and
// returns the last Start error.
func (p *ManagedProcess) StartWhenAvailable(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := p.Start(ctx)
		if err == nil || !errors.IsRetryable(err) {
			return err
		}
		p.logger.Info("start not possible yet, retrying", "error", err.Error(), "interval", interval.String())
		select {
		case <-ctx.Done():
			return err
		case <-ticker.C:
		}
	}
}

// spawn starts the OS process with its stdout and stderr on fresh pipes.
// The returned read ends belong to the caller.
func (p *ManagedProcess) spawn() (*exec.Cmd, *os.File, *os.File, error) {
	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		_ = outR.Close()
		_ = outW.Close()
		return nil, nil, nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	cmd := exec.Command(p.spec.Executable, p.spec.Args...)
	cmd.Dir = p.spec.Dir
	cmd.Env = p.spec.Environ()
	cmd.Stdin = p.spec.Input
	cmd.Stdout = outW
	cmd.Stderr = errW
	cmd.WaitDelay = p.spec.KillTimeout
	setProcAttr(cmd)

	startErr := cmd.Start()

	// The child holds its own copies of the write ends.
	_ = outW.Close()
	_ = errW.Close()

	if startErr != nil {
		_ = outR.Close()
		_ = errR.Close()
		return nil, nil, nil, startErr
	}
	return cmd, outR, errR, nil
}

// lineObserver logs and counts every captured line.
func (p *ManagedProcess) lineObserver() capture.LineSink {
	name := p.spec.ShortName()
	stdoutLog := p.logger.WithStream(string(capture.Stdout))
	stderrLog := p.logger.WithStream(string(capture.Stderr))
	debug := p.logger.Enabled(logging.LevelDebug)

	return capture.LineSinkFunc(func(stream capture.Stream, line string) {
		p.metrics.ConsoleLine(name, string(stream))
		if !debug {
			return
		}
		if stream == capture.Stderr {
			stderrLog.Debug("console", "line", line)
		} else {
			stdoutLog.Debug("console", "line", line)
		}
	})
}

// waitLoop observes the OS exit, drains capture and performs the transition
// to Terminated unless Destroy has already forced it.
func (p *ManagedProcess) waitLoop(cmd *exec.Cmd, capturer *capture.Capture) {
	waitErr := cmd.Wait()
	close(p.exited)

	p.mu.Lock()
	elapsed := time.Since(p.started)
	p.mu.Unlock()

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		p.logger.Warn("wait returned an error", "error", waitErr.Error())
	}

	// Output still in flight is read before the console freezes. A
	// descendant that inherited the pipes can keep them open, so draining
	// is bounded.
	select {
	case <-capturer.Done():
	case <-time.After(p.spec.KillTimeout):
		p.logger.Warn("output pipes still open after exit, closing them")
		capturer.Stop()
		<-capturer.Done()
	}
	capturer.Stop()

	outcome := classifyExit(cmd.ProcessState, elapsed)

	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return
	}
	if p.destroyed {
		outcome.Kind = ExitDestroyed
	}
	p.terminateLocked(outcome)
	p.mu.Unlock()

	p.afterTerminate(outcome)
}

// terminateLocked records the outcome and moves to Terminated.
// The caller must hold p.mu and p.state must be Running.
func (p *ManagedProcess) terminateLocked(outcome ExitOutcome) {
	p.outcome = outcome
	p.state = StateTerminated
	if p.capture != nil {
		p.captureErr = p.capture.Err()
	}
	if p.lock != nil {
		_ = p.lock.Unlock()
	}
	close(p.done)
}

// afterTerminate runs outside the lock once the process is Terminated.
func (p *ManagedProcess) afterTerminate(outcome ExitOutcome) {
	p.console.Close()

	name := p.spec.ShortName()
	p.metrics.StateTransition(name, StateRunning.String(), StateTerminated.String())
	p.metrics.ProcessExited(name, outcome.Kind.String(), outcome.Code, outcome.Runtime)

	success := outcome.Kind == ExitNatural && p.spec.IsSuccess(outcome.Code)
	if success {
		p.logger.Info("process exited", "code", outcome.Code, "runtime", outcome.Runtime.String())
		for _, l := range p.listeners {
			l.OnProcessComplete(p, outcome)
		}
		return
	}

	p.logger.Warn("process exited",
		"code", outcome.Code,
		"kind", outcome.Kind.String(),
		"signal", outcome.Signal,
		"forced", outcome.Forced,
		"runtime", outcome.Runtime.String(),
	)
	err := errors.NewNonZeroExitError(p.LongName(), outcome.Code).WithRecentOutput(p.recentOutput())
	for _, l := range p.listeners {
		l.OnProcessFailed(p, outcome, err)
	}
}

func classifyExit(ps *os.ProcessState, elapsed time.Duration) ExitOutcome {
	outcome := ExitOutcome{Kind: ExitNatural, Runtime: elapsed}

	if ps == nil {
		outcome.Code = -1
		return outcome
	}

	outcome.Code = ps.ExitCode()
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		outcome.Kind = ExitSignaled
		outcome.Signal = ws.Signal().String()
		outcome.Code = 128 + int(ws.Signal())
	}
	return outcome
}

// IsAlive reports whether the OS process is still running. It turns false as
// soon as the OS reports the exit, which can precede the Terminated transition
// while remaining output is drained. It never blocks on the process.
func (p *ManagedProcess) IsAlive() bool {
	if p.State() != StateRunning {
		return false
	}
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// ExitValue returns the exit code of a Terminated process.
func (p *ManagedProcess) ExitValue() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateTerminated {
		return 0, errors.NewStateError("exitValue", p.state.String(), errors.ErrNotTerminated).WithProcess(p.LongName())
	}
	return p.outcome.Code, nil
}

// Outcome returns the exit outcome, and false if the process is not Terminated.
func (p *ManagedProcess) Outcome() (ExitOutcome, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome, p.state == StateTerminated
}

// Console returns the buffered console lines, each followed by a newline.
func (p *ManagedProcess) Console() string {
	return p.console.Buffer().String()
}

// ConsoleLines returns a copy of the buffered console lines, oldest first.
func (p *ManagedProcess) ConsoleLines() []string {
	return p.console.Buffer().Lines()
}

// ConsoleBufferMaxLines returns the console buffer capacity.
func (p *ManagedProcess) ConsoleBufferMaxLines() int {
	return p.console.Buffer().Cap()
}

// SetConsoleBufferMaxLines changes the console buffer capacity, evicting the
// oldest lines immediately when shrinking. n must be positive.
func (p *ManagedProcess) SetConsoleBufferMaxLines(n int) error {
	if !p.console.Buffer().Resize(n) {
		return errors.NewValidationError("must be positive").WithField("console_buffer_max_lines").WithValue(n)
	}
	return nil
}

func (p *ManagedProcess) recentOutput() []string {
	lines := p.console.Buffer().Lines()
	if len(lines) > recentOutputLines {
		lines = lines[len(lines)-recentOutputLines:]
	}
	return lines
}

// takeCaptureErr returns a pending capture error once.
func (p *ManagedProcess) takeCaptureErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.errTaken {
		return nil
	}
	err := p.captureErr
	if err == nil && p.capture != nil {
		err = p.capture.Err()
	}
	if err != nil {
		p.errTaken = true
	}
	return err
}

// requireStarted fails with a NotStarted state error before Start.
func (p *ManagedProcess) requireStarted(op string) error {
	if state := p.State(); state == StateNotStarted {
		return errors.NewStateError(op, state.String(), errors.ErrNotStarted).WithProcess(p.LongName())
	}
	return nil
}

// Destroy stops a Running process. On Unix it sends SIGTERM to the process
// group, then SIGKILL once the grace period passes. Concurrent calls wait for
// the destroy already in progress and share its result.
//
// A process whose OS exit was already observed is not signalled; Destroy only
// waits for its Terminated transition and the natural outcome is kept.
//
// If the process survives the force-kill for KillTimeout, it is marked
// Terminated anyway with a forced outcome and DestroyFailedError is returned.
func (p *ManagedProcess) Destroy() error {
	p.mu.Lock()
	if inFlight := p.destroying; inFlight != nil {
		select {
		case <-inFlight:
		default:
			p.mu.Unlock()
			<-inFlight
			p.mu.Lock()
			defer p.mu.Unlock()
			return p.destroyErr
		}
	}
	if p.state != StateRunning {
		state := p.state
		p.mu.Unlock()
		return errors.NewStateError("destroy", state.String(), errors.ErrNotRunning).WithProcess(p.LongName())
	}
	select {
	case <-p.exited:
		p.mu.Unlock()
		<-p.done
		return nil
	default:
	}

	finished := make(chan struct{})
	p.destroying = finished
	p.destroyed = true
	cmd := p.cmd
	p.mu.Unlock()

	start := time.Now()
	forced, err := p.escalate(cmd)
	p.metrics.DestroyDuration(p.spec.ShortName(), time.Since(start), forced != nil)
	if err != nil {
		p.metrics.ProcessError(p.spec.ShortName(), "destroy_failed")
		p.logger.ReportError("destroy failed", err)
	}

	p.mu.Lock()
	p.destroyErr = err
	close(finished)
	p.mu.Unlock()

	// Listeners of a forced termination run only after the destroy is
	// settled, so they may call Destroy themselves.
	if forced != nil {
		p.afterTerminate(*forced)
	}
	return err
}

// escalate terminates cmd and waits for the Terminated transition.
// When the supervisor had to force the transition it returns the forced
// outcome; the caller must then run afterTerminate with it.
func (p *ManagedProcess) escalate(cmd *exec.Cmd) (*ExitOutcome, error) {
	pid := cmd.Process.Pid

	if platform.Detect().Escalation() == platform.SignalThenKill && p.spec.GracePeriod > 0 {
		p.logger.Info("destroying process", "pid", pid, "signal", "SIGTERM")
		if err := terminate(cmd); err != nil {
			p.logger.Warn("graceful termination failed", "error", err.Error())
		}
		if p.awaitExit(p.spec.GracePeriod) {
			return nil, nil
		}
		p.logger.Warn("process ignored graceful termination, killing", "pid", pid, "grace_period", p.spec.GracePeriod.String())
	}

	killErr := kill(cmd)
	if killErr != nil {
		p.logger.Warn("kill failed", "pid", pid, "error", killErr.Error())
	}
	if p.awaitExit(p.spec.KillTimeout) {
		return nil, nil
	}

	// The process is still there; stop waiting for it.
	p.capture.Stop()

	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return nil, nil
	}
	outcome := ExitOutcome{
		Code:    -1,
		Kind:    ExitDestroyed,
		Forced:  true,
		Runtime: time.Since(p.started),
	}
	p.terminateLocked(outcome)
	p.mu.Unlock()

	cause := killErr
	if cause == nil {
		cause = errors.NewTimeoutError("waiting for killed process to exit", p.spec.KillTimeout)
	}
	return &outcome, errors.NewDestroyFailedError(p.LongName(), pid, cause)
}

// awaitExit waits up to d for the OS exit, then for the Terminated
// transition that follows it.
func (p *ManagedProcess) awaitExit(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-p.exited:
		<-p.done
		return true
	case <-p.done:
		return true
	case <-timer.C:
		return false
	}
}
