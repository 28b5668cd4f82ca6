package dbclient

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"workbench/internal/domain"
)

// sqlConnector is the shared implementation for MySQL, Postgres, and SQLite.
type sqlConnector struct {
	driverName string
	db         *sql.DB
}

// newSQLConnector creates a generic SQL connector.
func newSQLConnector(driverName, dsn string) (*sqlConnector, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &sqlConnector{driverName: driverName, db: db}, nil
}

func (c *sqlConnector) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.db.PingContext(ctx)
}

func (c *sqlConnector) Version(ctx context.Context) (string, error) {
	var q string
	switch c.driverName {
	case "sqlite":
		q = "SELECT 'SQLite ' || sqlite_version()"
	case "mysql":
		q = "SELECT CONCAT('MySQL ', VERSION())"
	default:
		q = "SELECT version()"
	}
	var v string
	if err := c.db.QueryRowContext(ctx, q).Scan(&v); err != nil {
		return "", fmt.Errorf("version: %w", err)
	}
	return v, nil
}

// IsReadQuery reports whether a statement returns rows (SELECT, WITH, SHOW, DESCRIBE, EXPLAIN, PRAGMA, VALUES).
func IsReadQuery(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "DESC ", "EXPLAIN", "PRAGMA", "VALUES"} {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	return false
}

// SingleStatement reports whether query holds at most one statement. A ';' only
// ends the statement when nothing but whitespace and comments follows it.
// Semicolons inside quoted text, quoted identifiers and comments are ignored.
func SingleStatement(query string) bool {
	ended := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'' || ch == '"' || ch == '`':
			if ended {
				return false
			}
			i = skipQuoted(query, i)
		case ch == '-' && i+1 < len(query) && query[i+1] == '-':
			if j := strings.IndexByte(query[i:], '\n'); j >= 0 {
				i += j
			} else {
				i = len(query)
			}
		case ch == '/' && i+1 < len(query) && query[i+1] == '*':
			if j := strings.Index(query[i+2:], "*/"); j >= 0 {
				i += j + 3
			} else {
				i = len(query)
			}
		case ch == ';':
			ended = true
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
		default:
			if ended {
				return false
			}
		}
	}
	return true
}

// skipQuoted returns the index of the quote closing the one at start. A doubled
// quote is an escaped quote. Unterminated text runs to the end of query.
func skipQuoted(query string, start int) int {
	q := query[start]
	for i := start + 1; i < len(query); i++ {
		if query[i] != q {
			continue
		}
		if i+1 < len(query) && query[i+1] == q {
			i++
			continue
		}
		return i
	}
	return len(query)
}

func (c *sqlConnector) Query(ctx context.Context, query string, maxRows int) (*RowSet, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return collectRows(rows, maxRows)
}

// QueryReadOnly runs a single read statement where the database itself refuses
// writes: a READ ONLY transaction on Postgres and MySQL, query_only on SQLite.
func (c *sqlConnector) QueryReadOnly(ctx context.Context, query string, maxRows int) (*RowSet, error) {
	if !IsReadQuery(query) {
		return nil, fmt.Errorf("read-only query: not a read statement")
	}
	if !SingleStatement(query) {
		return nil, fmt.Errorf("read-only query: multiple statements are not allowed")
	}
	if c.driverName == "sqlite" {
		return c.queryOnlySQLite(ctx, query, maxRows)
	}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read-only: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return collectRows(rows, maxRows)
}

// queryOnlySQLite pins one pooled connection, switches it to query_only for the
// statement and switches it back before returning it to the pool.
func (c *sqlConnector) queryOnlySQLite(ctx context.Context, query string, maxRows int) (*RowSet, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return nil, fmt.Errorf("enable query_only: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA query_only = OFF"); err != nil {
			// Drop the connection rather than pool it read-only.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}()

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return collectRows(rows, maxRows)
}

// collectRows scans rows into a RowSet of at most maxRows rows and closes rows.
func collectRows(rows *sql.Rows, maxRows int) (*RowSet, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	set := &RowSet{Columns: cols, Rows: []domain.Row{}}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if maxRows > 0 && len(set.Rows) >= maxRows {
			set.Truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(domain.Row, len(cols))
		for i, col := range cols {
			row[col] = formatValue(values[i])
		}
		set.Rows = append(set.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return set, nil
}

func (c *sqlConnector) Exec(ctx context.Context, query string) (int64, error) {
	result, err := c.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

// formatValue converts a driver value to a JSON-friendly scalar.
func formatValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return val
	}
}

// placeholder returns the n-th (1-based) bind parameter marker for the driver.
func (c *sqlConnector) placeholder(n int) string {
	if c.driverName == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// schemaExpr is the SQL expression naming the connection's current schema.
func (c *sqlConnector) schemaExpr() string {
	if c.driverName == "mysql" {
		return "DATABASE()"
	}
	return "current_schema()"
}

func (c *sqlConnector) Close() error {
	return c.db.Close()
}
