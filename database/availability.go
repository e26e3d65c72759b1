package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"
	"github.com/siherrmann/wikigraph/model"
)

// unavailable wraps connection level failures as CapabilityUnavailable,
// all other errors are returned unchanged.
func unavailable(capability string, err error) error {
	if err == nil {
		return nil
	}
	if isConnectionError(err) {
		return model.NewCapabilityUnavailable(capability, err)
	}
	return err
}

func isConnectionError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	// database/sql does not export its closed pool error
	if strings.Contains(err.Error(), "sql: database is closed") {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 08 connection exception, 57P operator intervention (shutdown)
		code := string(pqErr.Code)
		return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "57P")
	}

	return false
}
