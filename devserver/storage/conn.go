// Package storage persists the dev backend's users, tasks and memos in SQL.
// The same queries run on SQLite (modernc) and PostgreSQL (pgx stdlib);
// placeholders are written as ? and rebound for PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder style and column types.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// OpenSQLite opens (or creates) a SQLite database at path with WAL enabled.
func OpenSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One writer avoids SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenPostgres returns a *sql.DB using the pgx stdlib driver.
func OpenPostgres(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func rebind(d Dialect, query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	email           TEXT NOT NULL,
	role            TEXT NOT NULL,
	profile_picture TEXT NOT NULL DEFAULT '',
	active          BOOLEAN NOT NULL DEFAULT TRUE,
	token           TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	priority     TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	assigned_to  TEXT NOT NULL DEFAULT '[]',
	due_date     TEXT,
	recurrence   TEXT,
	linked_memos TEXT NOT NULL DEFAULT '[]',
	delegated_to TEXT NOT NULL DEFAULT '',
	created_by   TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS comments (
	id         TEXT PRIMARY KEY,
	task_id    TEXT NOT NULL,
	author     TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS attachments (
	id           TEXT PRIMARY KEY,
	task_id      TEXT NOT NULL,
	file_name    TEXT NOT NULL,
	content_type TEXT NOT NULL,
	size         BIGINT NOT NULL,
	uploaded_by  TEXT NOT NULL,
	uploaded_at  TEXT NOT NULL,
	data         %s
);
CREATE TABLE IF NOT EXISTS audit (
	id        TEXT PRIMARY KEY,
	task_id   TEXT NOT NULL,
	actor     TEXT NOT NULL,
	action    TEXT NOT NULL,
	field     TEXT NOT NULL DEFAULT '',
	old_value TEXT NOT NULL DEFAULT '',
	new_value TEXT NOT NULL DEFAULT '',
	at        TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS memos (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	created_by TEXT NOT NULL,
	recipients TEXT NOT NULL,
	status     TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS memo_acks (
	memo_id       TEXT NOT NULL,
	user_id       TEXT NOT NULL,
	status        TEXT NOT NULL,
	snoozed_until TEXT,
	comment       TEXT NOT NULL DEFAULT '',
	at            TEXT NOT NULL,
	PRIMARY KEY (memo_id, user_id)
);
CREATE TABLE IF NOT EXISTS memo_hidden (
	memo_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	PRIMARY KEY (memo_id, user_id)
);
`

// Migrate creates the schema if missing.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	blob := "BLOB"
	if d == Postgres {
		blob = "BYTEA"
	}
	for _, stmt := range strings.Split(fmt.Sprintf(schema, blob), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
