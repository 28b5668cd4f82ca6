package dbclient

import (
	"context"
	"fmt"

	"workbench/internal/domain"
)

// RowSet is the rows of one read statement, capped at the caller's row limit.
type RowSet struct {
	Columns   []string
	Rows      []domain.Row
	Truncated bool // more rows were available than the limit allowed
}

// Connector abstracts interaction with an external database.
type Connector interface {
	// Ping verifies connectivity and credentials.
	Ping(ctx context.Context) error

	// Version returns the server version string.
	Version(ctx context.Context) (string, error)

	// Query runs a read statement and returns at most maxRows rows (0 means no cap).
	Query(ctx context.Context, query string, maxRows int) (*RowSet, error)

	// QueryReadOnly is Query for one read statement, run where the database
	// rejects writes.
	QueryReadOnly(ctx context.Context, query string, maxRows int) (*RowSet, error)

	// Exec runs a write or DDL statement and returns the affected row count.
	Exec(ctx context.Context, query string) (int64, error)

	// Introspect returns tables, views and procedures.
	Introspect(ctx context.Context) (*domain.SchemaSnapshot, error)

	// Indexes returns the indexes and constraints of one table.
	Indexes(ctx context.Context, table string) ([]domain.IndexInfo, []domain.ConstraintInfo, error)

	// Close closes the connection pool.
	Close() error
}

// NewConnector creates a Connector for the given connection descriptor.
// The descriptor's password must already be resolved from the secret store.
func NewConnector(conn domain.ConnectionDescriptor) (Connector, error) {
	switch conn.Engine {
	case domain.EngineSQLite:
		return newSQLiteConnector(conn)
	case domain.EngineMySQL:
		return newSQLConnector("mysql", buildMySQLDSN(conn))
	case domain.EnginePostgreSQL:
		return newSQLConnector("postgres", buildPostgresDSN(conn))
	default:
		return nil, fmt.Errorf("unsupported engine: %s", conn.Engine)
	}
}
