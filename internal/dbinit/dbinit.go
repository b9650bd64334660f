// Package dbinit prepares a freshly launched database: it evaluates an
// optional pre-condition query and, when that allows it, runs SQL
// initialization scripts in order.
package dbinit

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL and MariaDB
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL via database/sql
	_ "modernc.org/sqlite"             // Pure Go SQLite

	"github.com/Iron-Ham/mproc/internal/errors"
	"github.com/Iron-Ham/mproc/internal/logging"
)

// driverNames maps configured driver names to registered database/sql names.
var driverNames = map[string]string{
	"mysql":    "mysql",
	"mariadb":  "mysql",
	"pgx":      "pgx",
	"postgres": "pgx",
	"sqlite":   "sqlite",
}

// Open opens dsn with driver and pings it. The ping is retried until ctx
// expires, since a just-launched server may accept connections late.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	name, ok := driverNames[strings.ToLower(driver)]
	if !ok {
		return nil, errors.NewValidationError("unsupported database driver").WithField("driver").WithValue(driver)
	}
	if dsn == "" {
		return nil, errors.NewValidationError("dsn is required").WithField("dsn")
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", driver)
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		pingErr := db.PingContext(ctx)
		if pingErr == nil {
			return db, nil
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, errors.Wrapf(pingErr, "connect to %s database", driver)
		case <-ticker.C:
		}
	}
}

// Result summarizes an initialization run.
type Result struct {
	// Skipped is set when the pre-condition query vetoed the scripts.
	Skipped    bool
	Scripts    int
	Statements int
}

// Initializer runs the pre-condition gate and the init scripts against db.
type Initializer struct {
	db           *sql.DB
	logger       *logging.Logger
	skipOnAnyRow bool
}

// New creates an Initializer. A nil logger discards log output.
func New(db *sql.DB, logger *logging.Logger) *Initializer {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Initializer{db: db, logger: logger}
}

// SetSkipOnAnyRow makes any row returned by the pre-condition query skip the
// scripts, whatever its value.
func (in *Initializer) SetSkipOnAnyRow(skip bool) *Initializer {
	in.skipOnAnyRow = skip
	return in
}

// Run evaluates precondition and, if it permits, executes scripts in order.
// An empty precondition always permits.
func (in *Initializer) Run(ctx context.Context, precondition string, scripts []string) (Result, error) {
	var res Result

	ok, err := in.ShouldInitialize(ctx, precondition)
	if err != nil {
		return res, err
	}
	if !ok {
		in.logger.Warn("pre-condition query returned a result, skipping init scripts", "query", precondition)
		res.Skipped = true
		return res, nil
	}

	for _, path := range scripts {
		n, err := in.RunScript(ctx, path)
		res.Statements += n
		if err != nil {
			return res, err
		}
		res.Scripts++
	}
	return res, nil
}

// ShouldInitialize evaluates the pre-condition query. Initialization goes
// ahead when the query returns no rows, or a single column whose first value
// is false or zero. Any other result means the database is already set up.
// With SetSkipOnAnyRow, every returned row means it is set up.
func (in *Initializer) ShouldInitialize(ctx context.Context, query string) (bool, error) {
	if strings.TrimSpace(query) == "" {
		return true, nil
	}

	rows, err := in.db.QueryContext(ctx, query)
	if err != nil {
		return false, errors.Wrap(err, "pre-condition query")
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return false, errors.Wrap(err, "pre-condition columns")
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return false, errors.Wrap(err, "pre-condition query")
		}
		return true, nil
	}
	if in.skipOnAnyRow || len(cols) != 1 {
		return false, nil
	}

	var v any
	if err := rows.Scan(&v); err != nil {
		return false, errors.Wrap(err, "pre-condition scan")
	}
	return isFalsy(v), nil
}

func isFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return !x
	case int64:
		return x == 0
	case float64:
		return x == 0
	case []byte:
		return isFalsyString(string(x))
	case string:
		return isFalsyString(x)
	default:
		return false
	}
}

func isFalsyString(s string) bool {
	s = strings.TrimSpace(s)
	if b, err := strconv.ParseBool(s); err == nil {
		return !b
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f == 0
	}
	return false
}

// RunScript executes each statement of the script at path in order and
// returns how many statements ran.
func (in *Initializer) RunScript(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "read script %s", path)
	}

	stmts := SplitStatements(string(data))
	log := in.logger.With("script", path)
	log.Info("running init script", "statements", len(stmts))

	for i, stmt := range stmts {
		if _, err := in.db.ExecContext(ctx, stmt); err != nil {
			return i, fmt.Errorf("script %s, statement %d: %w", path, i+1, err)
		}
	}
	return len(stmts), nil
}

// SplitStatements splits a SQL script into statements on ';'. Lines
// starting with "--" are comments. Semicolons inside single
// or double quoted strings do not split.
func SplitStatements(script string) []string {
	var (
		stmts []string
		cur   strings.Builder
		quote rune
	)

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	sc := bufio.NewScanner(strings.NewReader(script))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if quote == 0 && strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		for _, r := range line {
			switch {
			case quote != 0:
				if r == quote {
					quote = 0
				}
				cur.WriteRune(r)
			case r == '\'' || r == '"':
				quote = r
				cur.WriteRune(r)
			case r == ';':
				flush()
			default:
				cur.WriteRune(r)
			}
		}
		cur.WriteByte('\n')
	}
	flush()
	return stmts
}
