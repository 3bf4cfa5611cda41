// Package sqlite implements repository.Store on an embedded SQLite file.
//
// WHEN IS THIS USED?
// STORE_DRIVER=sqlite selects it for local development without a MongoDB
// server, and every repository test runs against it in memory. Production
// runs on repository/mongo; both satisfy the same interfaces and the same
// error contract.
//
// DOCUMENT SHAPE:
// Profiles are stored as a JSON document plus the two indexed lookup keys
// (uid, email) pulled out into columns. Posts are stored column-per-field
// so counter updates are single UPDATE statements with a WHERE guard.
//
// CONNECTIONS:
// The pool is capped at one open connection. An in-memory database exists
// per connection, so a second connection would see an empty schema; it
// also serializes writers, which SQLite does internally anyway.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/collabgrow/collabgrow/internal/repository"
)

// DB wraps a sql.DB connection pool and implements repository.Store.
type DB struct {
	conn *sql.DB
}

var _ repository.Store = (*DB)(nil)

// New opens (creating if needed) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/collabgrow.db" → file-based database (persistent)
//   - ":memory:"           → in-memory database (tests)
func New(ctx context.Context, dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (db *DB) Close(_ context.Context) error {
	return db.conn.Close()
}

// migrate creates every table and index. Each statement is idempotent.
func (db *DB) migrate(ctx context.Context) error {
	steps := []struct {
		name string
		sql  string
	}{
		{"profile", `
			CREATE TABLE IF NOT EXISTS profile (
				id         TEXT PRIMARY KEY,
				uid        TEXT NOT NULL DEFAULT '',
				email      TEXT NOT NULL DEFAULT '',
				doc        TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_profile_uid ON profile(uid) WHERE uid <> '';
			CREATE INDEX IF NOT EXISTS idx_profile_email ON profile(email);
		`},
		{"posts", `
			CREATE TABLE IF NOT EXISTS posts (
				id                TEXT PRIMARY KEY,
				title             TEXT NOT NULL,
				description       TEXT NOT NULL DEFAULT '',
				category          TEXT NOT NULL DEFAULT '',
				skills            TEXT NOT NULL DEFAULT '[]',
				deadline          TEXT NOT NULL DEFAULT '',
				budget            TEXT NOT NULL DEFAULT '',
				timeline          TEXT NOT NULL DEFAULT '',
				status            TEXT NOT NULL DEFAULT '',
				image             TEXT NOT NULL DEFAULT '',
				max_collaborators INTEGER NOT NULL,
				collaborators     INTEGER NOT NULL DEFAULT 0,
				likes             INTEGER NOT NULL DEFAULT 0,
				comments          INTEGER NOT NULL DEFAULT 0,
				author_uid        TEXT NOT NULL DEFAULT '',
				author_name       TEXT NOT NULL DEFAULT '',
				author_email      TEXT NOT NULL DEFAULT '',
				created_at        DATETIME NOT NULL,
				updated_at        DATETIME NOT NULL,
				CHECK (collaborators <= max_collaborators)
			);
			CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
		`},
		{"reactions", `
			CREATE TABLE IF NOT EXISTS reactions (
				post_id    TEXT NOT NULL REFERENCES posts(id),
				uid        TEXT NOT NULL,
				kind       TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (post_id, uid, kind)
			);
		`},
		{"comments", `
			CREATE TABLE IF NOT EXISTS comments (
				id          TEXT PRIMARY KEY,
				post_id     TEXT NOT NULL REFERENCES posts(id),
				author_uid  TEXT NOT NULL,
				author_name TEXT NOT NULL DEFAULT '',
				text        TEXT NOT NULL,
				created_at  DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id, created_at);
		`},
		{"activity", `
			CREATE TABLE IF NOT EXISTS activity (
				id         TEXT PRIMARY KEY,
				type       TEXT NOT NULL,
				message    TEXT NOT NULL,
				actor_uid  TEXT NOT NULL DEFAULT '',
				actor_name TEXT NOT NULL DEFAULT '',
				post_id    TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_activity_created_at ON activity(created_at);
		`},
	}

	for _, step := range steps {
		if _, err := db.conn.ExecContext(ctx, step.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", step.name, err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlitelib.SQLITE_CONSTRAINT_UNIQUE || code == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
}

// withTx runs fn inside a transaction, committing on success.
//
// With a single pooled connection, fn must use tx for every statement;
// touching db.conn inside fn would block forever waiting for the connection.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}
