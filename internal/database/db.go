// Package database provides the SQLite store behind the website: shows,
// performances and admin users, with goose-managed migrations embedded in
// the binary.
package database

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Config holds database configuration.
type Config struct {
	DatabasePath string
}

// DB wraps the SQLite connection and exposes the repositories.
type DB struct {
	conn *sql.DB

	Shows        *ShowRepository
	Performances *PerformanceRepository
	Users        *UserRepository
}

// NewDB opens (creating if needed) the SQLite database at the configured
// path and runs pending migrations.
func NewDB(cfg Config) (*DB, error) {
	if dir := filepath.Dir(cfg.DatabasePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", cfg.DatabasePath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite writes are serialized anyway; a single connection avoids
	// SQLITE_BUSY under concurrent handlers.
	conn.SetMaxOpenConns(1)

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{
		conn:         conn,
		Shows:        NewShowRepository(conn),
		Performances: NewPerformanceRepository(conn),
		Users:        NewUserRepository(conn),
	}, nil
}

func migrate(conn *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(conn, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Connection returns the underlying *sql.DB.
func (db *DB) Connection() *sql.DB {
	return db.conn
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
