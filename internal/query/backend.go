package query

import (
	"context"

	"workbench/internal/domain"
)

// Backend is where statements actually run. SimulatedBackend answers from fixtures;
// LiveBackend goes through a real driver.
type Backend interface {
	// Query runs a row-returning statement.
	Query(ctx context.Context, conn domain.ConnectionDescriptor, sql string) ([]string, []domain.Row, error)

	// QueryReadOnly runs a single row-returning statement that must not write.
	QueryReadOnly(ctx context.Context, conn domain.ConnectionDescriptor, sql string) ([]string, []domain.Row, error)

	// Exec runs a statement that returns no rows and reports the affected row count.
	Exec(ctx context.Context, conn domain.ConnectionDescriptor, sql string) (int64, error)

	// Tables lists the table names visible on the connection.
	Tables(ctx context.Context, conn domain.ConnectionDescriptor) ([]string, error)
}
