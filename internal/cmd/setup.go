package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Iron-Ham/mproc/internal/config"
	"github.com/Iron-Ham/mproc/internal/errors"
	"github.com/Iron-Ham/mproc/internal/logging"
	"github.com/Iron-Ham/mproc/internal/metrics"
)

// ExitError carries the exit code the mproc binary should exit with.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// FormatError renders err for the terminal. Supervisor errors that are not
// meant for users are replaced by a pointer to the log, and retryable ones
// carry a hint that trying again may succeed.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	var supErr errors.SupervisorError
	if errors.As(err, &supErr) && !errors.IsUserFacing(err) {
		return fmt.Sprintf("internal %s in the supervisor, see the mproc log for details", errors.GetSeverity(err))
	}
	msg := err.Error()
	if errors.IsRetryable(err) {
		msg += " (temporary, retrying may succeed)"
	}
	return msg
}

// newLogger builds the supervisor logger from the logging section.
func newLogger(cfg *config.Config, stderr io.Writer) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	opts := logging.Options{
		File:  cfg.Logging.File,
		Level: cfg.Logging.Level,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		},
	}
	if opts.File == "" {
		opts.Writer = stderr
	}
	return logging.NewLogger(opts)
}

// startMetrics returns the collector to use and, when addr is set, serves
// its /metrics endpoint until the returned stop function is called.
func startMetrics(cfg *config.Config, addr string, logger *logging.Logger) (metrics.Collector, func(), error) {
	if addr == "" {
		addr = cfg.Metrics.Address
	}
	if !cfg.Metrics.Enabled && addr == "" {
		return metrics.Noop(), func() {}, nil
	}

	collector := metrics.NewPrometheusCollector(cfg.Metrics.Namespace)
	if addr == "" {
		return collector, func() {}, nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ReportError("metrics server stopped", err)
		}
	}()
	logger.Info("serving metrics", "address", ln.Addr().String())

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return collector, stop, nil
}
