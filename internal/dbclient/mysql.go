package dbclient

import (
	"net"
	"strconv"
	"time"

	"workbench/internal/domain"

	"github.com/go-sql-driver/mysql"
)

// buildMySQLDSN constructs a MySQL DSN from a descriptor.
func buildMySQLDSN(conn domain.ConnectionDescriptor) string {
	port := 3306
	if conn.Port != nil {
		port = *conn.Port
	}
	cfg := mysql.NewConfig()
	cfg.User = conn.Username
	cfg.Passwd = conn.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(conn.Host, strconv.Itoa(port))
	cfg.DBName = conn.Database
	cfg.ParseTime = true
	cfg.Timeout = 10 * time.Second
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}
