package process

import (
	"io"
	"path/filepath"
	"slices"
	"time"

	"github.com/Iron-Ham/mproc/internal/errors"
	"github.com/Iron-Ham/mproc/internal/logging"
	"github.com/Iron-Ham/mproc/internal/metrics"
	"github.com/Iron-Ham/mproc/internal/process/capture"
)

// Builder accumulates a LaunchSpec plus observers and builds ManagedProcesses.
// A Builder may be reused; every Build gets its own copy of the configuration.
// A reader given to SetInput is the exception: it is shared by every build,
// so use SetInputFunc when more than one process needs stdin.
// Builders are not safe for concurrent use.
type Builder struct {
	spec      LaunchSpec
	inputFn   func() io.Reader
	listeners []Listener
	sinks     []capture.LineSink
	logger    *logging.Logger
	metrics   metrics.Collector
}

// NewBuilder starts a Builder for executable.
func NewBuilder(executable string) *Builder {
	return &Builder{
		spec: LaunchSpec{
			Executable:            executable,
			ConsoleBufferMaxLines: capture.DefaultMaxLines,
			GracePeriod:           DefaultGracePeriod,
			KillTimeout:           DefaultKillTimeout,
		},
	}
}

// AddArgument appends a single argument.
func (b *Builder) AddArgument(arg string) *Builder {
	b.spec.Args = append(b.spec.Args, arg)
	return b
}

// AddArguments appends arguments in order.
func (b *Builder) AddArguments(args ...string) *Builder {
	b.spec.Args = append(b.spec.Args, args...)
	return b
}

// AddArgumentPair appends name+sep+value as one argument, e.g. "--port" "=" "3306".
func (b *Builder) AddArgumentPair(name, sep, value string) *Builder {
	return b.AddArgument(name + sep + value)
}

// AddFileArgument appends name=<absolute path>.
func (b *Builder) AddFileArgument(name, path string) *Builder {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return b.AddArgumentPair(name, "=", path)
}

// SetWorkingDirectory sets the working directory of the process.
func (b *Builder) SetWorkingDirectory(dir string) *Builder {
	b.spec.Dir = dir
	return b
}

// SetEnv sets one environment override.
func (b *Builder) SetEnv(key, value string) *Builder {
	if b.spec.Env == nil {
		b.spec.Env = make(map[string]string)
	}
	b.spec.Env[key] = value
	return b
}

// SetEnvironment merges env into the overrides.
func (b *Builder) SetEnvironment(env map[string]string) *Builder {
	for k, v := range env {
		b.SetEnv(k, v)
	}
	return b
}

// SetConsoleBufferMaxLines sets the console buffer capacity.
func (b *Builder) SetConsoleBufferMaxLines(n int) *Builder {
	b.spec.ConsoleBufferMaxLines = n
	return b
}

// SetFailOnNonZeroExit controls whether WaitForExit reports failure codes as errors.
func (b *Builder) SetFailOnNonZeroExit(fail bool) *Builder {
	b.spec.FailOnNonZeroExit = fail
	return b
}

// SetSuccessExitCodes replaces the set of exit codes treated as success.
func (b *Builder) SetSuccessExitCodes(codes ...int) *Builder {
	b.spec.SuccessExitCodes = slices.Clone(codes)
	return b
}

// SetInput sets the reader copied to the process's stdin. The same reader is
// handed to every process built afterwards; once one has drained it, later
// ones see an empty stdin.
func (b *Builder) SetInput(r io.Reader) *Builder {
	b.spec.Input = r
	b.inputFn = nil
	return b
}

// SetInputFunc makes every Build call fn for a fresh stdin reader.
func (b *Builder) SetInputFunc(fn func() io.Reader) *Builder {
	b.spec.Input = nil
	b.inputFn = fn
	return b
}

// SetGracePeriod sets the delay between SIGTERM and SIGKILL.
func (b *Builder) SetGracePeriod(d time.Duration) *Builder {
	b.spec.GracePeriod = d
	return b
}

// SetKillTimeout sets how long to wait after the force-kill.
func (b *Builder) SetKillTimeout(d time.Duration) *Builder {
	b.spec.KillTimeout = d
	return b
}

// SetLockFile sets a lock file held exclusively while the process runs.
func (b *Builder) SetLockFile(path string) *Builder {
	b.spec.LockFile = path
	return b
}

// SetName sets the short display name.
func (b *Builder) SetName(name string) *Builder {
	b.spec.Name = name
	return b
}

// AddListener registers a completion listener.
func (b *Builder) AddListener(l Listener) *Builder {
	b.listeners = append(b.listeners, l)
	return b
}

// AddLineSink registers a sink that receives every console line.
func (b *Builder) AddLineSink(s capture.LineSink) *Builder {
	b.sinks = append(b.sinks, s)
	return b
}

// WithLogger sets the logger used by built processes.
func (b *Builder) WithLogger(l *logging.Logger) *Builder {
	b.logger = l
	return b
}

// WithMetrics sets the metrics collector used by built processes.
func (b *Builder) WithMetrics(c metrics.Collector) *Builder {
	b.metrics = c
	return b
}

// Spec returns a copy of the accumulated LaunchSpec.
func (b *Builder) Spec() LaunchSpec {
	return b.spec.clone()
}

// Build validates the configuration and returns a new NotStarted process.
func (b *Builder) Build() (*ManagedProcess, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	spec := b.spec.clone()
	if b.inputFn != nil {
		spec.Input = b.inputFn()
	}
	return newManagedProcess(spec, managedOptions{
		listeners: slices.Clone(b.listeners),
		sinks:     slices.Clone(b.sinks),
		logger:    b.logger,
		metrics:   b.metrics,
	}), nil
}

func (b *Builder) validate() error {
	switch {
	case b.spec.Executable == "":
		return errors.NewValidationError("executable is required").WithField("executable")
	case b.spec.ConsoleBufferMaxLines < 0:
		return errors.NewValidationError("must not be negative").
			WithField("console_buffer_max_lines").WithValue(b.spec.ConsoleBufferMaxLines)
	case b.spec.GracePeriod < 0:
		return errors.NewValidationError("must not be negative").
			WithField("grace_period").WithValue(b.spec.GracePeriod)
	case b.spec.KillTimeout < 0:
		return errors.NewValidationError("must not be negative").
			WithField("kill_timeout").WithValue(b.spec.KillTimeout)
	}
	return nil
}
