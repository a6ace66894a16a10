package data

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// OpenJournal opens (creating if needed) the SQLite file that records runs
// and applies its schema. A relative path is resolved against the working
// directory.
func OpenJournal(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func runMigrations(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		backend TEXT NOT NULL,
		server TEXT,
		database_name TEXT,
		status TEXT NOT NULL,
		step TEXT,
		sql_state TEXT,
		error_message TEXT,
		rows_seeded INTEGER DEFAULT 0,
		duration_ms INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at);
	`
	_, err := db.Exec(schema)
	return err
}
