package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeStatic  Outcome = "static"
	OutcomeRuntime Outcome = "runtime"
)

const tableName = "lox_journal"

// Entry is one recorded run: a script file or a single REPL line.
type Entry struct {
	ID        int64
	Origin    string
	Source    string
	Outcome   Outcome
	Message   string
	CreatedAt time.Time
}

var schemas = map[string]string{
	"sqlite3": `CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		origin TEXT NOT NULL,
		source TEXT NOT NULL,
		outcome TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL)`,
	"mysql": `CREATE TABLE IF NOT EXISTS %s (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		origin VARCHAR(255) NOT NULL,
		source TEXT NOT NULL,
		outcome VARCHAR(16) NOT NULL,
		message TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL)`,
	"postgres": `CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		origin TEXT NOT NULL,
		source TEXT NOT NULL,
		outcome TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL)`,
}

// Store writes run records through database/sql. A Store opened with an
// empty driver is disabled: Record and Recent do nothing.
type Store struct {
	DB     *sql.DB
	driver string
	logger *slog.Logger
}

// Open connects with driver ("sqlite3", "mysql" or "postgres") and creates
// the journal table when missing.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	logger := slog.Default().With(slog.String("component", "journal"), slog.String("driver", driver))
	if driver == "" {
		return &Store{logger: logger}, nil
	}

	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("journal: unsupported driver %q", driver)
	}

	if driver == "mysql" {
		var err error
		if dsn, err = mysqlDSN(dsn); err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		// an in-memory database lives only as long as its connection
		db.SetMaxOpenConns(1)
	}

	s := &Store{DB: db, driver: driver, logger: logger}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(schema, s.table())); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create table: %w", err)
	}

	logger.Debug("journal opened")
	return s, nil
}

// mysqlDSN forces parseTime so DATETIME columns scan into time.Time.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (s *Store) Enabled() bool {
	return s != nil && s.DB != nil
}

func (s *Store) table() string {
	if s.driver == "postgres" {
		return pq.QuoteIdentifier(tableName)
	}
	return tableName
}

// rebind rewrites ? placeholders as $1, $2, ... for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Record inserts e inside a transaction and returns it with ID and
// CreatedAt filled in.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if !s.Enabled() {
		return e, nil
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return e, fmt.Errorf("journal: begin: %w", err)
	}

	query := s.rebind(fmt.Sprintf(
		"INSERT INTO %s (origin, source, outcome, message, created_at) VALUES (?, ?, ?, ?, ?)", s.table()))
	args := []any{e.Origin, e.Source, string(e.Outcome), e.Message, e.CreatedAt}

	if s.driver == "postgres" {
		err = tx.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&e.ID)
	} else {
		var result sql.Result
		if result, err = tx.ExecContext(ctx, query, args...); err == nil {
			e.ID, err = result.LastInsertId()
		}
	}
	if err != nil {
		tx.Rollback()
		return e, fmt.Errorf("journal: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return e, fmt.Errorf("journal: commit: %w", err)
	}

	s.logger.Debug("journal entry recorded",
		slog.Int64("id", e.ID),
		slog.String("origin", e.Origin),
		slog.String("outcome", string(e.Outcome)))
	return e, nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if !s.Enabled() || n <= 0 {
		return nil, nil
	}

	query := s.rebind(fmt.Sprintf(
		"SELECT id, origin, source, outcome, message, created_at FROM %s ORDER BY id DESC LIMIT ?", s.table()))
	rows, err := s.DB.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var outcome string
		if err := rows.Scan(&e.ID, &e.Origin, &e.Source, &outcome, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Outcome = Outcome(outcome)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.DB.Close()
}
