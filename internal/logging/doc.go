// Package logging provides structured logging for mproc.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// persistent context attributes so that the lifecycle of every supervised
// process (start, console lines, escalation, exit) can be filtered and
// analyzed after the fact.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context attributes (process ID, program, stream)
//   - Size-based log rotation with optional gzip compression
//   - Reading, filtering and exporting logs (JSON, text, CSV)
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(logging.Options{
//		File:  "/var/log/mproc.log",
//		Level: logging.LevelInfo,
//	})
//	if err != nil {
//		return err
//	}
//	defer logger.Close()
//
//	procLogger := logger.WithProcess(id, "program /bin/sleep [30]")
//	procLogger.Info("process started", "pid", pid)
//
// # Log Levels
//
//   - DEBUG: every captured console line
//   - INFO: lifecycle events
//   - WARN: signal escalation, failed exits
//   - ERROR: destroy failures, capture errors
//
// # Reading Logs
//
//	entries, err := logging.ReadLogs("/var/log/mproc.log")
//	filtered := logging.FilterLogs(entries, logging.LogFilter{
//		ProcessID: id,
//		Level:     logging.LevelWarn,
//	})
//	err = logging.WriteEntries(os.Stdout, filtered, "text")
package logging
