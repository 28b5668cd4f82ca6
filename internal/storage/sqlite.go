package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database that backs the connection and history records.
type DB struct {
	conn *sql.DB
	path string
}

// New creates a new DB, opening (or creating) the SQLite file at dbPath.
func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time, otherwise concurrent batches hit SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, path: dbPath}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the SQLite file path.
func (db *DB) Path() string {
	return db.path
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) migrate() error {
	migrations := []string{
		// Column names follow the external record shape, not the Go field names.
		`CREATE TABLE IF NOT EXISTS connections (
			"Id" INTEGER PRIMARY KEY AUTOINCREMENT,
			"Name" TEXT NOT NULL,
			"Tags" TEXT NOT NULL DEFAULT '',
			"Owner" TEXT NOT NULL DEFAULT '',
			"type" TEXT NOT NULL,
			"host" TEXT NOT NULL DEFAULT '',
			"port" INTEGER,
			"database" TEXT NOT NULL DEFAULT '',
			"username" TEXT NOT NULL DEFAULT '',
			"password" TEXT NOT NULL DEFAULT '',
			"is_active" INTEGER NOT NULL DEFAULT 0,
			"last_used" TEXT
		)`,
		// At most one active connection, enforced by the store as well as the registry.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_connections_single_active
			ON connections("is_active") WHERE "is_active" = 1`,
		// No foreign key to connections: history outlives the connection it names.
		`CREATE TABLE IF NOT EXISTS query_history (
			"Id" INTEGER PRIMARY KEY AUTOINCREMENT,
			"Name" TEXT NOT NULL DEFAULT '',
			"Tags" TEXT NOT NULL DEFAULT '',
			"Owner" TEXT NOT NULL DEFAULT '',
			"connection_name" TEXT NOT NULL DEFAULT '',
			"sql" TEXT NOT NULL,
			"executed_at" TEXT NOT NULL,
			"execution_time" INTEGER,
			"row_count" INTEGER NOT NULL DEFAULT 0,
			"error" TEXT,
			"connection_id" INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_query_history_connection ON query_history("connection_id")`,
		`CREATE INDEX IF NOT EXISTS idx_query_history_executed_at ON query_history("executed_at")`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %s: %w", m[:40], err)
		}
	}

	return nil
}
