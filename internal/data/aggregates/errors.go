package aggregates

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/readiness-backend/internal/domain/aggregates"
)

var (
	// ErrValidation indicates caller input validation failure.
	ErrValidation = errors.New("store validation")
	// ErrConflict indicates an optimistic concurrency collision.
	ErrConflict = errors.New("store version conflict")
	// ErrUnavailable indicates a transient backend failure.
	ErrUnavailable = errors.New("store unavailable")
)

// ValidationError tags an error as validation failure.
func ValidationError(msg string) error {
	return errors.Join(ErrValidation, errors.New(strings.TrimSpace(msg)))
}

// ConflictError tags an error as a version conflict.
func ConflictError(msg string) error {
	return errors.Join(ErrConflict, errors.New(strings.TrimSpace(msg)))
}

// UnavailableError tags an error as transient backend failure.
func UnavailableError(msg string) error {
	return errors.Join(ErrUnavailable, errors.New(strings.TrimSpace(msg)))
}

// MapError maps infrastructure failures into coded errors. Coded errors pass
// through unchanged.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var coded *domainagg.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, ErrValidation):
		return domainagg.Wrap(domainagg.CodeValidation, op, err)
	case errors.Is(err, ErrConflict):
		return domainagg.Wrap(domainagg.CodeVersionConflict, op, err)
	case errors.Is(err, ErrUnavailable):
		return domainagg.Wrap(domainagg.CodeStoreUnavailable, op, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domainagg.Wrap(domainagg.CodeNotFound, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domainagg.Wrap(domainagg.CodeStoreUnavailable, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := strings.TrimSpace(pgErr.Code)
		switch {
		case code == "40001", code == "40P01", code == "55P03", code == "57P01", code == "57014":
			return domainagg.Wrap(domainagg.CodeStoreUnavailable, op, err) // serialization/deadlock/lock/admin shutdown/cancel
		case strings.HasPrefix(code, "08"):
			return domainagg.Wrap(domainagg.CodeStoreUnavailable, op, err) // connection exception class
		default:
			return domainagg.Wrap(domainagg.CodeInternal, op, err)
		}
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return domainagg.Wrap(domainagg.CodeStoreUnavailable, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domainagg.Wrap(domainagg.CodeStoreUnavailable, op, err)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "serialization"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "temporar"):
		return domainagg.Wrap(domainagg.CodeStoreUnavailable, op, err)
	default:
		return domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
}
