package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/mproc/internal/config"
	"github.com/Iron-Ham/mproc/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View supervisor logs",
	Long: `View and filter the supervisor's JSON log file, including rotated backups.

Examples:
  # Show the last 50 entries
  mproc logs

  # Only warnings and errors from the last hour
  mproc logs --level warn --since 1h

  # Console lines a program wrote to stderr, as CSV
  mproc logs --program mysqld --stream stderr --format csv -n 0`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsFile     string
	logsTail     int
	logsLevel    string
	logsSince    string
	logsProcess  string
	logsProgram  string
	logsStream   string
	logsContains string
	logsFormat   string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsFile, "file", "", "Log file (default: logging.file from config)")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show entries since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsProcess, "process", "", "Filter by supervisor process ID")
	logsCmd.Flags().StringVar(&logsProgram, "program", "", "Filter by program (substring)")
	logsCmd.Flags().StringVar(&logsStream, "stream", "", "Filter by console stream (stdout/stderr)")
	logsCmd.Flags().StringVar(&logsContains, "grep", "", "Filter by message substring")
	logsCmd.Flags().StringVar(&logsFormat, "format", "text", "Output format: text, json, csv")
}

func runLogs(cmd *cobra.Command, args []string) error {
	path := logsFile
	if path == "" {
		path = config.Get().Logging.File
	}
	if path == "" {
		return fmt.Errorf("no log file configured\nSet logging.file or pass --file")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("log file not found: %s", path)
	}

	entries, err := logging.ReadLogs(path)
	if err != nil {
		return fmt.Errorf("failed to read logs: %w", err)
	}

	filter := logging.LogFilter{
		Level:           logsLevel,
		ProcessID:       logsProcess,
		Program:         logsProgram,
		Stream:          logsStream,
		MessageContains: logsContains,
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid --since duration: %w", err)
		}
		filter.StartTime = time.Now().Add(-d)
	}
	entries = logging.FilterLogs(entries, filter)

	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}
	return logging.WriteEntries(cmd.OutOrStdout(), entries, logsFormat)
}
