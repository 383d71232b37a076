package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Register driver
)

// MemoryPath keeps the database in process memory.
const MemoryPath = ":memory:"

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
}

// Init opens the database and runs migrations. MemoryPath opens a private
// in-memory database that is gone when the process exits.
func Init(path string) (*DB, error) {
	memory := path == "" || path == MemoryPath
	if memory {
		path = MemoryPath
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	// Every connection to :memory: is a separate database, and a single
	// writer avoids SQLITE_BUSY on files.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if !memory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &DB{db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

// PruneMedia removes media older than the given age and reports how many
// rows went.
func (d *DB) PruneMedia(olderThan time.Duration) (int64, error) {
	// Same layout as SQLite CURRENT_TIMESTAMP
	deadline := time.Now().Add(-olderThan).UTC().Format("2006-01-02 15:04:05")
	res, err := d.Exec("DELETE FROM media WHERE created_at < ?", deadline)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS media (
			id TEXT PRIMARY KEY,
			mime_type TEXT NOT NULL,
			data BLOB NOT NULL,
			size INTEGER NOT NULL,
			compressed BOOLEAN DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_media_created ON media(created_at);`,
	}

	for _, q := range queries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("exec error: %w query: %s", err, q)
		}
	}
	return nil
}
