package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"docvault/internal/database/migrations"
	"docvault/internal/dv"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteCatalog implements dv.Catalog on SQLite.
//
// It holds a single connection. Transactions therefore run one at a time,
// and a goroutine holding a transaction must do all catalog access through
// it.
type SQLiteCatalog struct {
	*queries
	db   *sql.DB
	path string
}

// NewSQLiteCatalog opens the catalog at path and applies pending
// migrations. path can be a file path or ":memory:".
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewSQLiteCatalogFromDB(db, path), nil
}

// NewSQLiteCatalogFromDB wraps an existing connection. The caller is
// responsible for its configuration and schema.
func NewSQLiteCatalogFromDB(db *sql.DB, path string) *SQLiteCatalog {
	return &SQLiteCatalog{
		queries: &queries{db: db},
		db:      db,
		path:    path,
	}
}

// OpenConnection opens a SQLite database with foreign keys enforced and a
// single connection. path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A :memory: database lives and dies with its connection, and one
	// connection also serializes writers without SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

func dsn(path string) string {
	params := "_foreign_keys=on&_busy_timeout=5000"
	if path != ":memory:" && !strings.HasPrefix(path, "file::memory:") {
		params += "&_journal_mode=WAL"
	}
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

// DB returns the underlying connection pool.
func (s *SQLiteCatalog) DB() *sql.DB {
	return s.db
}

// Path returns the path the catalog was opened with.
func (s *SQLiteCatalog) Path() string {
	return s.path
}

// Begin starts a transaction.
func (s *SQLiteCatalog) Begin(ctx context.Context) (dv.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return &sqliteTx{queries: &queries{db: tx}, tx: tx}, nil
}

// MigrationStatus reports the schema version of the catalog.
func (s *SQLiteCatalog) MigrationStatus() (migrations.Status, error) {
	return migrations.GetStatus(s.db)
}

// BackupTo writes a consistent copy of the catalog to destPath using
// VACUUM INTO. destPath must not exist.
func (s *SQLiteCatalog) BackupTo(ctx context.Context, destPath string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up catalog: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteCatalog) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type sqliteTx struct {
	*queries
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// Compile-time checks.
var (
	_ dv.Catalog = (*SQLiteCatalog)(nil)
	_ dv.Tx      = (*sqliteTx)(nil)
)
