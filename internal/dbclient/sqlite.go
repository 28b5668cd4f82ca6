package dbclient

import (
	"workbench/internal/domain"

	_ "modernc.org/sqlite"
)

// newSQLiteConnector creates a connector for an external SQLite file.
// The file must already exist; mode=rw keeps a typo from creating an empty database.
func newSQLiteConnector(conn domain.ConnectionDescriptor) (*sqlConnector, error) {
	dsn := "file:" + conn.Database + "?mode=rw&_pragma=busy_timeout(5000)"
	return newSQLConnector("sqlite", dsn)
}
