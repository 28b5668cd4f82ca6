package dbclient

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"workbench/internal/domain"
)

// Server error codes that identify a specific connection failure.
const (
	pqInvalidPassword        = "28P01"
	pqInvalidAuthorization   = "28000"
	pqInvalidCatalogName     = "3D000"
	mysqlAccessDenied        = 1045
	mysqlBadDatabase         = 1049
	sqliteCannotOpenFragment = "unable to open database file"
)

// ClassifyError maps a driver error from Ping or Open to a connection failure cause.
func ClassifyError(err error) domain.ConnectionFailure {
	if err == nil {
		return ""
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqInvalidPassword, pqInvalidAuthorization:
			return domain.FailureBadCredentials
		case pqInvalidCatalogName:
			return domain.FailureDatabaseMissing
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlAccessDenied:
			return domain.FailureBadCredentials
		case mysqlBadDatabase:
			return domain.FailureDatabaseMissing
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return domain.FailureHostRefused
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.FailureHostRefused
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return domain.FailureHostRefused
	}

	if strings.Contains(err.Error(), sqliteCannotOpenFragment) {
		return domain.FailureDatabaseMissing
	}
	return domain.FailureUnreachable
}
