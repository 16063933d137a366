// Package dbx provides the small DB abstractions shared by repositories:
// the DBTX interface satisfied by *sql.DB and *sql.Tx, and helpers that
// bound a call in time and classify driver failures.
package dbx

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTimeout derives a context bounded by d. A non-positive d leaves the
// parent deadline untouched.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Classify wraps err with common.ErrStoreUnavailable when it means the store
// could not be reached or did not answer in time. database/sql blocks on an
// exhausted pool until the context expires, so a deadline here also covers
// pool exhaustion. ctx is the context the failed call ran under: once its
// deadline has passed, whatever error the driver surfaced counts as
// unavailable. Other errors are wrapped as plain db errors.
func Classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if IsUnavailable(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("db error: %w", err)
}

// IsUnavailable reports whether err is a connectivity or deadline failure.
func IsUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
