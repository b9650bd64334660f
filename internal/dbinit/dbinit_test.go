package dbinit

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/mproc/internal/errors"
	"github.com/Iron-Ham/mproc/internal/logging"
	"github.com/Iron-Ham/mproc/internal/testutil"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_Validation(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		dsn    string
		field  string
	}{
		{"unknown driver", "oracle", "x", "driver"},
		{"empty dsn", "sqlite", "", "dsn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(context.Background(), tt.driver, tt.dsn)
			var verr *errors.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Open() = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestOpen_DriverAliases(t *testing.T) {
	for alias, want := range map[string]string{"mariadb": "mysql", "postgres": "pgx", "SQLite": "sqlite"} {
		if got := driverNames[strings.ToLower(alias)]; got != want {
			t.Errorf("driverNames[%q] = %q, want %q", alias, got, want)
		}
	}
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "empty",
			script: "",
			want:   nil,
		},
		{
			name:   "single without semicolon",
			script: "SELECT 1",
			want:   []string{"SELECT 1"},
		},
		{
			name:   "multiple on one line",
			script: "CREATE TABLE a (x INT); INSERT INTO a VALUES (1);",
			want:   []string{"CREATE TABLE a (x INT)", "INSERT INTO a VALUES (1)"},
		},
		{
			name:   "comments and blank statements",
			script: "-- schema\nCREATE TABLE a (x INT);\n\n;\n  -- indented comment\nINSERT INTO a VALUES (2);\n",
			want:   []string{"CREATE TABLE a (x INT)", "INSERT INTO a VALUES (2)"},
		},
		{
			name:   "multi-line statement",
			script: "CREATE TABLE a (\n  x INT,\n  y TEXT\n);",
			want:   []string{"CREATE TABLE a (\n  x INT,\n  y TEXT\n)"},
		},
		{
			name:   "semicolon inside string",
			script: "INSERT INTO a VALUES ('x;y'); INSERT INTO a VALUES ('it''s');",
			want:   []string{"INSERT INTO a VALUES ('x;y')", "INSERT INTO a VALUES ('it''s')"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitStatements(tt.script)
			if !slices.Equal(got, tt.want) {
				t.Errorf("SplitStatements() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsFalsy(t *testing.T) {
	tests := []struct {
		v    any
		want bool
	}{
		{nil, false},
		{false, true},
		{true, false},
		{int64(0), true},
		{int64(3), false},
		{float64(0), true},
		{[]byte("0"), true},
		{[]byte("false"), true},
		{"FALSE", true},
		{"yes", false},
		{"1", false},
	}
	for _, tt := range tests {
		if got := isFalsy(tt.v); got != tt.want {
			t.Errorf("isFalsy(%#v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestShouldInitialize(t *testing.T) {
	db := openSQLite(t)
	if _, err := db.Exec("CREATE TABLE marker (id INTEGER, name TEXT)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := db.Exec("INSERT INTO marker VALUES (1, 'done')"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"empty query", "", true},
		{"no rows", "SELECT id FROM marker WHERE id = 42", true},
		{"single zero column", "SELECT COUNT(*) FROM marker WHERE id = 42", true},
		{"single non-zero column", "SELECT COUNT(*) FROM marker", false},
		{"row with several columns", "SELECT id, name FROM marker", false},
		{"single string column", "SELECT name FROM marker", false},
	}

	in := New(db, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := in.ShouldInitialize(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("ShouldInitialize: %v", err)
			}
			if got != tt.want {
				t.Errorf("ShouldInitialize(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestShouldInitialize_SkipOnAnyRow(t *testing.T) {
	db := openSQLite(t)
	if _, err := db.Exec("CREATE TABLE marker (id INTEGER)"); err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"no rows", "SELECT id FROM marker", true},
		{"single zero column", "SELECT 0", false},
		{"single false column", "SELECT COUNT(*) FROM marker", false},
		{"single non-zero column", "SELECT 1", false},
	}

	in := New(db, nil).SetSkipOnAnyRow(true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := in.ShouldInitialize(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("ShouldInitialize: %v", err)
			}
			if got != tt.want {
				t.Errorf("ShouldInitialize(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestShouldInitialize_BadQuery(t *testing.T) {
	in := New(openSQLite(t), nil)
	if _, err := in.ShouldInitialize(context.Background(), "SELECT * FROM missing_table"); err == nil {
		t.Error("ShouldInitialize with invalid query succeeded")
	}
}

func TestRun(t *testing.T) {
	db := openSQLite(t)
	dir := t.TempDir()
	schema := testutil.WriteFile(t, dir, "01-schema.sql", "-- schema\nCREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);\n")
	data := testutil.WriteFile(t, dir, "02-data.sql", "INSERT INTO users (name) VALUES ('ada');\nINSERT INTO users (name) VALUES ('grace');\n")

	var buf bytes.Buffer
	logger, err := logging.NewLogger(logging.Options{Writer: &buf, Level: "debug"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	in := New(db, logger)
	precondition := "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'users'"

	res, err := in.Run(context.Background(), precondition, []string{schema, data})
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if res.Skipped || res.Scripts != 2 || res.Statements != 3 {
		t.Errorf("first Run = %+v, want 2 scripts, 3 statements", res)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("users = %d, want 2", count)
	}

	res, err = in.Run(context.Background(), precondition, []string{schema, data})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !res.Skipped || res.Scripts != 0 {
		t.Errorf("second Run = %+v, want skipped", res)
	}
	if !strings.Contains(buf.String(), "skipping init scripts") {
		t.Errorf("skip was not logged: %s", buf.String())
	}
}

func TestRunScript_StatementError(t *testing.T) {
	db := openSQLite(t)
	path := testutil.WriteFile(t, t.TempDir(), "bad.sql", "CREATE TABLE a (x INT);\nINSERT INTO nope VALUES (1);\nCREATE TABLE b (x INT);\n")

	n, err := New(db, nil).RunScript(context.Background(), path)
	if err == nil {
		t.Fatal("RunScript with failing statement succeeded")
	}
	if n != 1 {
		t.Errorf("statements run = %d, want 1", n)
	}
	if !strings.Contains(err.Error(), "statement 2") {
		t.Errorf("error = %v, want statement number", err)
	}
}

func TestRunScript_MissingFile(t *testing.T) {
	_, err := New(openSQLite(t), nil).RunScript(context.Background(), filepath.Join(t.TempDir(), "nope.sql"))
	if err == nil {
		t.Error("RunScript with missing file succeeded")
	}
}
