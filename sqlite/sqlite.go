// Package sqlite stores the search index in a single SQLite database: the
// document rows, an FTS5 table for lexical search and the embedding of each
// document, all keyed by the same document ID.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/fwojciec/minisearch"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// FileName is the database file inside an index directory.
const FileName = "index.db"

// DB represents the index database. Writes go through a single connection;
// reads use a separate pool so snapshots never wait on the writer.
type DB struct {
	db   *sql.DB // writer
	rdb  *sql.DB // readers
	dir  string
	path string
}

// NewDB creates a new DB instance for the index directory dir.
func NewDB(dir string) *DB {
	return &DB{dir: dir, path: filepath.Join(dir, FileName)}
}

// Dir returns the index directory.
func (db *DB) Dir() string {
	return db.dir
}

// Open opens the database, creating the directory and schema if needed.
func (db *DB) Open() error {
	if err := os.MkdirAll(db.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", db.dsn("_txlock=immediate", "_pragma=foreign_keys(1)"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit to one connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// WAL lets snapshot readers proceed while a commit is being written.
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db.db = conn

	if err := db.createSchema(); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	readers, err := sql.Open("sqlite3", db.dsn())
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open read pool: %w", err)
	}
	db.rdb = readers

	return nil
}

// OpenExisting opens an index that a previous crawl created.
// Returns ENOTFOUND if the directory holds no index.
func (db *DB) OpenExisting() error {
	if _, err := os.Stat(db.path); errors.Is(err, fs.ErrNotExist) {
		return minisearch.Errorf(minisearch.ENOTFOUND, "no index at %s; run crawl first", db.dir)
	} else if err != nil {
		return fmt.Errorf("failed to stat index: %w", err)
	}
	return db.Open()
}

// dsn builds a file URI with a busy timeout and extra query parameters.
// The timeout waits 5 seconds on lock contention instead of failing.
func (db *DB) dsn(params ...string) string {
	query := "_pragma=busy_timeout(5000)"
	for _, p := range params {
		query += "&" + p
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(db.path), RawQuery: query}
	return u.String()
}

// Close closes both connection pools.
func (db *DB) Close() error {
	var errs []error
	if db.rdb != nil {
		errs = append(errs, db.rdb.Close())
	}
	if db.db != nil {
		errs = append(errs, db.db.Close())
	}
	return errors.Join(errs...)
}

// QueryRowContext executes a read query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.rdb.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a read query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.rdb.QueryContext(ctx, query, args...)
}

// ExecContext executes a statement on the writer connection.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// Stats returns writer connection statistics.
func (db *DB) Stats() sql.DBStats {
	return db.db.Stats()
}

// createSchema creates the database tables if they don't exist.
// The postings table holds analyzed term streams with rowid = documents.id.
func (db *DB) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY,
			url TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL DEFAULT '',
			embedding BLOB,
			fetched_at TEXT NOT NULL
		);

		CREATE VIRTUAL TABLE IF NOT EXISTS postings USING fts5(
			title_terms,
			body_terms,
			tokenize = 'unicode61'
		);

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);

		INSERT OR IGNORE INTO meta (key, value) VALUES ('generation', 0);
		INSERT OR IGNORE INTO meta (key, value) VALUES ('dimensions', 0);

		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			seed_url TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			fetched INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			indexed INTEGER NOT NULL DEFAULT 0,
			embedded INTEGER NOT NULL DEFAULT 0,
			embed_failed INTEGER NOT NULL DEFAULT 0,
			duplicates INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`

	_, err := db.db.Exec(schema)
	return err
}
