package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// ConnectToSQLite initializes and returns a SQLite connection
func ConnectToSQLite(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for SQLite: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_timeout=10000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	slog.Info("sqlite_connected", "path", dbPath)
	return db, nil
}

// InitializeSchema creates all the necessary tables if they don't exist
func InitializeSchema(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL UNIQUE,
		city TEXT NOT NULL DEFAULT '',
		region TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create locations table: %w", err)
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS memes (
		id TEXT PRIMARY KEY,
		thought TEXT NOT NULL,
		location TEXT NOT NULL,
		city TEXT NOT NULL DEFAULT '',
		region TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		meme_url TEXT NOT NULL,
		template_id TEXT NOT NULL DEFAULT '',
		explanation TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		timestamp TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create memes table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_memes_timestamp ON memes (timestamp DESC)`)
	if err != nil {
		return fmt.Errorf("failed to create memes timestamp index: %w", err)
	}

	slog.Info("sqlite_schema_initialized")
	return nil
}
