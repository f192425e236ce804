package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const memoryPath = ":memory:"

// Initialize opens the SQLite database at dbPath and creates the schema.
// A non-empty encryptionKey is applied with PRAGMA key, which requires a
// SQLCipher-enabled build.
func Initialize(dbPath, encryptionKey string) (*sql.DB, error) {
	if dbPath != memoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
	}

	// Connection options go in the DSN so every pooled connection gets them.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// Every pooled connection to :memory: would get its own empty database.
	if dbPath == memoryPath {
		db.SetMaxOpenConns(1)
	}

	if encryptionKey != "" {
		// PRAGMA key only applies to the connection it runs on.
		db.SetMaxOpenConns(1)
		esc := strings.ReplaceAll(encryptionKey, "'", "''")
		if _, err := db.Exec(fmt.Sprintf("PRAGMA key = '%s';", esc)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set database encryption key: %w", err)
		}
		_, _ = db.Exec("PRAGMA cipher_compatibility = 4;")
		var count int
		if err := db.QueryRow("SELECT count(*) FROM sqlite_master;").Scan(&count); err != nil {
			db.Close()
			return nil, fmt.Errorf("database inaccessible with provided encryption key: %w", err)
		}
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'User',
		email TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		reminder_sent BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		color TEXT NOT NULL DEFAULT '#007bff'
	);

	CREATE TABLE IF NOT EXISTS event_categories (
		event_id INTEGER NOT NULL,
		category_id INTEGER NOT NULL,
		PRIMARY KEY (event_id, category_id),
		FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE,
		FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS announcements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Server-side store for rotating refresh tokens
	CREATE TABLE IF NOT EXISTS refresh_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token_hash TEXT NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		ttl_days INTEGER NOT NULL DEFAULT 7,
		revoked BOOLEAN DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_events_user_id ON events(user_id);
	CREATE INDEX IF NOT EXISTS idx_events_date_time ON events(date, time);
	CREATE INDEX IF NOT EXISTS idx_event_categories_category ON event_categories(category_id);
	CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id);
	`

	_, err := db.Exec(schema)
	return err
}
