package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrStorageUnavailable means the database could not be reached or the
	// connection was lost mid-operation.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrConflict means a write transaction could not be completed
	ErrConflict = errors.New("storage conflict")

	// ErrNotFound means the requested row does not exist
	ErrNotFound = errors.New("not found")
)

// classify tags driver errors with the storage sentinels so callers can
// branch on errors.Is without knowing about pgx.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrConflict) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"), // connection exception
			pgErr.Code == "57P01", // admin_shutdown
			pgErr.Code == "57P03", // cannot_connect_now
			pgErr.Code == "53300": // too_many_connections
			return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		case pgErr.Code == "40001", pgErr.Code == "40P01":
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connectErr),
		errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded),
		pgconn.Timeout(err):
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	return err
}

// commitError classifies a failed commit; anything that is not a lost
// connection is reported as a conflict.
func commitError(err error) error {
	err = classify(err)
	if errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrConflict) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConflict, err)
}
