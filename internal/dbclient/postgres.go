package dbclient

import (
	"fmt"
	"strings"

	"workbench/internal/domain"

	_ "github.com/lib/pq"
)

// pgQuote quotes a value for a key=value connection string.
func pgQuote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// buildPostgresDSN constructs a Postgres connection string from a descriptor.
func buildPostgresDSN(conn domain.ConnectionDescriptor) string {
	port := 5432
	if conn.Port != nil {
		port = *conn.Port
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable connect_timeout=10",
		pgQuote(conn.Host), port, pgQuote(conn.Username), pgQuote(conn.Password), pgQuote(conn.Database),
	)
}
