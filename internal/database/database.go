package database

import (
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Dialect identifies the SQL flavor behind a DB.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB is a *sql.DB that knows which placeholder style its driver expects.
// Queries in the store package are written with '?' and passed through Rebind.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open opens a database for the given driver ("sqlite" or "postgres") and runs migrations.
func Open(driver, dsn string) (*DB, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(driver))) {
	case DialectSQLite, "":
		return OpenSQLite(dsn)
	case DialectPostgres, "pgx", "postgresql":
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("open db: unknown driver %q", driver)
	}
}

// OpenSQLite opens a SQLite database at the given path and runs migrations.
func OpenSQLite(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite serializes writers anyway, and ":memory:" databases are per-connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	wrapped := Wrap(db, DialectSQLite)
	if err := wrapped.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return wrapped, nil
}

// OpenPostgres opens a Postgres (Supabase) database through pgx and runs migrations.
func OpenPostgres(dsn string) (*DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	wrapped := Wrap(db, DialectPostgres)
	if err := wrapped.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return wrapped, nil
}

// Wrap adapts an already-open *sql.DB without running migrations.
func Wrap(db *sql.DB, dialect Dialect) *DB {
	return &DB{DB: db, Dialect: dialect}
}

// goose keeps its base FS and dialect in package globals.
var migrateMu sync.Mutex

func (db *DB) migrate() error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)

	gooseDialect := "sqlite3"
	dir := "migrations/sqlite"
	if db.Dialect == DialectPostgres {
		gooseDialect = "postgres"
		dir = "migrations/postgres"
	}

	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db.DB, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// Rebind rewrites '?' placeholders into the dialect's native form.
// Question marks inside single-quoted literals are left alone.
func (db *DB) Rebind(query string) string {
	if db.Dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
