package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/mproc/internal/config"
	"github.com/Iron-Ham/mproc/internal/dbinit"
	"github.com/Iron-Ham/mproc/internal/process"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb [flags] [-- <server> [args...]]",
	Short: "Initialize a database, optionally launching its server first",
	Long: `Initialize a database by running SQL scripts.

If a server command is given after --, it is launched first and mproc waits
for --ready-pattern before connecting. The pre-condition query decides
whether the scripts run: they run when it returns no rows, or a single
false or zero value, and are skipped otherwise. With --skip-on-any-row any
returned row skips them.

Examples:
  # Seed a local SQLite file once
  mproc initdb --driver sqlite --dsn ./app.db \
    --precondition-sql "SELECT COUNT(*) FROM sqlite_master WHERE name = 'users'" \
    --script schema.sql --script data.sql

  # Launch MariaDB, initialize it, and leave it running
  mproc initdb --driver mysql --dsn "root@tcp(127.0.0.1:3306)/test" \
    --ready-pattern "ready for connections" --script schema.sql -- \
    /usr/sbin/mariadbd --no-defaults --datadir=/tmp/db`,
	RunE: runInitDB,
}

var (
	initdbDriver         string
	initdbDSN            string
	initdbPrecondition   string
	initdbSkipOnAnyRow   bool
	initdbScripts        []string
	initdbReadyPattern   string
	initdbReadyTimeout   time.Duration
	initdbConnectTimeout time.Duration
	initdbStopAfter      bool
)

func init() {
	rootCmd.AddCommand(initdbCmd)

	initdbCmd.Flags().SetInterspersed(false)
	initdbCmd.Flags().StringVar(&initdbDriver, "driver", "", "Database driver: mysql, pgx, sqlite (default from config)")
	initdbCmd.Flags().StringVar(&initdbDSN, "dsn", "", "Data source name (default from config)")
	initdbCmd.Flags().StringVar(&initdbPrecondition, "precondition-sql", "", "Query deciding whether scripts run")
	initdbCmd.Flags().BoolVar(&initdbSkipOnAnyRow, "skip-on-any-row", false, "Skip the scripts whenever the pre-condition query returns a row")
	initdbCmd.Flags().StringArrayVar(&initdbScripts, "script", nil, "SQL script to run (repeatable, in order)")
	initdbCmd.Flags().StringVar(&initdbReadyPattern, "ready-pattern", "", "Console message the launched server prints when ready")
	initdbCmd.Flags().DurationVar(&initdbReadyTimeout, "ready-timeout", time.Minute, "How long to wait for --ready-pattern")
	initdbCmd.Flags().DurationVar(&initdbConnectTimeout, "connect-timeout", 30*time.Second, "How long to retry connecting")
	initdbCmd.Flags().BoolVar(&initdbStopAfter, "stop-after", false, "Destroy the launched server once initialization is done")
}

func runInitDB(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyDatabaseFlags(cmd, &cfg.Database)

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	ctx := cmd.Context()

	if len(args) > 0 {
		server, err := process.NewBuilder(args[0]).
			AddArguments(args[1:]...).
			SetConsoleBufferMaxLines(cfg.Process.ConsoleBufferMaxLines).
			SetGracePeriod(cfg.Process.GracePeriod()).
			SetKillTimeout(cfg.Process.KillTimeout()).
			WithLogger(logger).
			Build()
		if err != nil {
			return err
		}
		if err := server.Start(ctx); err != nil {
			return err
		}
		if initdbStopAfter {
			defer stopProcess(server, logger)
		}
		if initdbReadyPattern != "" {
			if err := waitReady(ctx, server, initdbReadyPattern, "contains", initdbReadyTimeout); err != nil {
				printTail(cmd.ErrOrStderr(), server, 20)
				if !initdbStopAfter {
					stopProcess(server, logger)
				}
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Server %s running (pid %d)\n", server.Spec().ShortName(), server.PID())
	}

	connectCtx, cancel := context.WithTimeout(ctx, initdbConnectTimeout)
	defer cancel()
	db, err := dbinit.Open(connectCtx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	res, err := dbinit.New(db, logger).
		SetSkipOnAnyRow(cfg.Database.SkipOnAnyRow).
		Run(ctx, cfg.Database.PreconditionSQL, cfg.Database.Scripts)
	if err != nil {
		return err
	}

	if res.Skipped {
		fmt.Fprintln(cmd.OutOrStdout(), "Database already initialized, scripts skipped")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Ran %d statements from %d scripts\n", res.Statements, res.Scripts)
	return nil
}

// applyDatabaseFlags overrides configured database settings with flags that were set.
func applyDatabaseFlags(cmd *cobra.Command, db *config.DatabaseConfig) {
	flags := cmd.Flags()
	if flags.Changed("driver") {
		db.Driver = initdbDriver
	}
	if flags.Changed("dsn") {
		db.DSN = initdbDSN
	}
	if flags.Changed("precondition-sql") {
		db.PreconditionSQL = initdbPrecondition
	}
	if flags.Changed("skip-on-any-row") {
		db.SkipOnAnyRow = initdbSkipOnAnyRow
	}
	if flags.Changed("script") {
		db.Scripts = initdbScripts
	}
}
