package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/mproc/internal/config"
	"github.com/Iron-Ham/mproc/internal/errors"
	"github.com/Iron-Ham/mproc/internal/logging"
	"github.com/Iron-Ham/mproc/internal/metrics"
	"github.com/Iron-Ham/mproc/internal/process"
	"github.com/Iron-Ham/mproc/internal/process/capture"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <executable> [args...]",
	Short: "Run a program under supervision",
	Long: `Run a program under supervision and exit with its exit code.

Arguments after -- are passed to the program verbatim, without a shell.

Examples:
  # Start a database, wait until it is ready, stop it after ten minutes
  mproc run --wait-for "ready for connections" --max-runtime 10m -- \
    /usr/sbin/mysqld --no-defaults --datadir=/tmp/db

  # Mirror output to the terminal and treat exit code 3 as success
  mproc run --echo --success-exit 0 --success-exit 3 -- ./job.sh`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var (
	runDir         string
	runEnv         []string
	runBufferLines int
	runWaitFor     string
	runMatch       string
	runWaitTimeout time.Duration
	runMaxRuntime  time.Duration
	runSuccessExit []int
	runEcho        bool
	runLockFile    string
	runLockWait    time.Duration
	runMetricsAddr string
	runTail        int
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().SetInterspersed(false)
	runCmd.Flags().StringVar(&runDir, "dir", "", "Working directory for the program")
	runCmd.Flags().StringArrayVar(&runEnv, "env", nil, "Environment override KEY=VALUE (repeatable)")
	runCmd.Flags().IntVar(&runBufferLines, "buffer-lines", 0, "Console lines to retain (default from config)")
	runCmd.Flags().StringVar(&runWaitFor, "wait-for", "", "Wait until a console line matches this pattern")
	runCmd.Flags().StringVar(&runMatch, "match", "contains", "Pattern kind for --wait-for: contains, regexp, glob")
	runCmd.Flags().DurationVar(&runWaitTimeout, "wait-timeout", 30*time.Second, "How long --wait-for may take")
	runCmd.Flags().DurationVar(&runMaxRuntime, "max-runtime", 0, "Destroy the program after this long (0 waits forever)")
	runCmd.Flags().IntSliceVar(&runSuccessExit, "success-exit", nil, "Exit codes treated as success (default 0)")
	runCmd.Flags().BoolVar(&runEcho, "echo", false, "Mirror the program's output to the terminal")
	runCmd.Flags().StringVar(&runLockFile, "lock-file", "", "Hold this lock file while the program runs")
	runCmd.Flags().DurationVar(&runLockWait, "lock-wait", 0, "How long to wait for a held --lock-file (0 fails at once)")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	runCmd.Flags().IntVar(&runTail, "tail", 20, "Console lines to print when the program fails")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	collector, stopMetrics, err := startMetrics(cfg, runMetricsAddr, logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	b, err := newRunBuilder(cfg, args, logger, collector)
	if err != nil {
		return err
	}
	if runEcho {
		b.AddLineSink(newEchoSink(cmd.OutOrStdout(), cmd.ErrOrStderr(), isTerminal(os.Stdout)))
	}

	p, err := b.Build()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := startProcess(ctx, p, runLockWait); err != nil {
		return err
	}

	// An interrupt stops the child; the exit is then reported as usual.
	go func() {
		select {
		case <-ctx.Done():
			logger.Info("interrupted, destroying process")
			stopProcess(p, logger)
		case <-p.Done():
		}
	}()

	if runWaitFor != "" {
		if err := waitReady(ctx, p, runWaitFor, runMatch, runWaitTimeout); err != nil {
			stopProcess(p, logger)
			printTail(cmd.ErrOrStderr(), p, runTail)
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "mproc: %s is ready (pid %d)\n", p.Spec().ShortName(), p.PID())
	}

	var outcome process.ExitOutcome
	if runMaxRuntime > 0 {
		outcome, err = p.WaitForExitMaxOrDestroy(runMaxRuntime)
	} else {
		outcome, err = p.WaitForExit(context.Background())
	}
	if err != nil && !errors.Is(err, errors.ErrNonZeroExit) {
		printTail(cmd.ErrOrStderr(), p, runTail)
		return err
	}

	spec := p.Spec()
	if outcome.Kind == process.ExitNatural && spec.IsSuccess(outcome.Code) {
		return nil
	}
	printTail(cmd.ErrOrStderr(), p, runTail)
	code := outcome.Code
	if code <= 0 {
		code = 1
	}
	return &ExitError{Code: code, Err: fmt.Errorf("%s: %s", spec.ShortName(), outcome)}
}

// lockRetryInterval is how often a held lock file is retried.
const lockRetryInterval = 250 * time.Millisecond

// startProcess starts p, waiting up to lockWait for a held lock file.
func startProcess(ctx context.Context, p *process.ManagedProcess, lockWait time.Duration) error {
	if lockWait <= 0 {
		return p.Start(ctx)
	}
	startCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()
	return p.StartWhenAvailable(startCtx, lockRetryInterval)
}

// stopProcess destroys p. A process that already terminated is not an error.
func stopProcess(p *process.ManagedProcess, logger *logging.Logger) {
	if err := p.Destroy(); err != nil && !errors.IsStateError(err) {
		logger.ReportError("failed to stop process", err)
	}
}

// newRunBuilder translates config and flags into a process Builder.
func newRunBuilder(cfg *config.Config, args []string, logger *logging.Logger, collector metrics.Collector) (*process.Builder, error) {
	bufferLines := cfg.Process.ConsoleBufferMaxLines
	if runBufferLines > 0 {
		bufferLines = runBufferLines
	}

	b := process.NewBuilder(args[0]).
		AddArguments(args[1:]...).
		SetWorkingDirectory(runDir).
		SetConsoleBufferMaxLines(bufferLines).
		SetGracePeriod(cfg.Process.GracePeriod()).
		SetKillTimeout(cfg.Process.KillTimeout()).
		SetFailOnNonZeroExit(cfg.Process.FailOnNonZeroExit).
		SetLockFile(runLockFile).
		WithLogger(logger).
		WithMetrics(collector)

	for _, kv := range runEnv {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, errors.NewValidationError("expected KEY=VALUE").WithField("env").WithValue(kv)
		}
		b.SetEnv(key, value)
	}
	if len(runSuccessExit) > 0 {
		b.SetSuccessExitCodes(runSuccessExit...)
	}
	return b, nil
}

func waitReady(ctx context.Context, p *process.ManagedProcess, pattern, kind string, timeout time.Duration) error {
	m, err := capture.ParseMatcher(kind, pattern)
	if err != nil {
		return errors.NewValidationError(err.Error()).WithField("wait-for").WithValue(pattern)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.WaitForConsoleMatch(ctx, m)
}

func printTail(w io.Writer, p *process.ManagedProcess, n int) {
	lines := p.ConsoleLines()
	if n <= 0 || len(lines) == 0 {
		return
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	fmt.Fprintf(w, "--- last %d console lines of %s ---\n", len(lines), p.LongName())
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

// echoSink mirrors console lines to the terminal.
type echoSink struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
	prefix bool
}

func newEchoSink(stdout, stderr io.Writer, prefix bool) *echoSink {
	return &echoSink{stdout: stdout, stderr: stderr, prefix: prefix}
}

func (s *echoSink) WriteLine(stream capture.Stream, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.stdout
	if stream == capture.Stderr {
		w = s.stderr
	}
	if s.prefix {
		fmt.Fprintf(w, "[%s] %s\n", stream, line)
		return
	}
	fmt.Fprintln(w, line)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
