package aggregates

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/certification-backend/internal/domain/aggregates"
)

var (
	// ErrValidation indicates caller input validation failure.
	ErrValidation = errors.New("aggregate validation")
	// ErrInvariant indicates a workflow rule violation.
	ErrInvariant = errors.New("aggregate invariant violation")
	// ErrConflict indicates a lost optimistic race.
	ErrConflict = errors.New("aggregate conflict")
	// ErrRetryable indicates a transient failure.
	ErrRetryable = errors.New("aggregate retryable")
)

func ValidationError(msg string) error {
	return errors.Join(ErrValidation, errors.New(strings.TrimSpace(msg)))
}

func InvariantError(msg string) error {
	return errors.Join(ErrInvariant, errors.New(strings.TrimSpace(msg)))
}

func ConflictError(msg string) error {
	return errors.Join(ErrConflict, errors.New(strings.TrimSpace(msg)))
}

func RetryableError(msg string) error {
	return errors.Join(ErrRetryable, errors.New(strings.TrimSpace(msg)))
}

// MapError maps infrastructure and tagged failures into aggregate error codes.
// Already-typed aggregate errors pass through untouched.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *domainagg.Error
	if errors.As(err, &typed) {
		return typed
	}
	switch {
	case errors.Is(err, ErrValidation):
		return wrapTagged(domainagg.CodeInvalidInput, op, err)
	case errors.Is(err, ErrInvariant):
		return wrapTagged(domainagg.CodeInvalidTransition, op, err)
	case errors.Is(err, ErrConflict):
		return wrapTagged(domainagg.CodeConcurrentModification, op, err)
	case errors.Is(err, ErrRetryable):
		return wrapTagged(domainagg.CodeTransient, op, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domainagg.NewError(domainagg.CodeNotFound, op, "record not found", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domainagg.NewError(domainagg.CodeTransient, op, "operation timed out, nothing was committed", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return concurrent(op, err) // unique_violation
		case "40001", "40P01", "55P03", "57014", "08000", "08003", "08006":
			return transient(op, err) // serialization/deadlock/lock/cancel/connection
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "duplicate key"),
		strings.Contains(msg, "unique constraint failed"),
		strings.Contains(msg, "already exists"):
		return concurrent(op, err)
	case strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "serialization"),
		strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "temporar"):
		return transient(op, err)
	default:
		return domainagg.NewError(domainagg.CodeInternal, op, "internal error", err)
	}
}

// wrapTagged strips the sentinel from the message so callers see only the
// detail text.
func wrapTagged(code domainagg.ErrorCode, op string, err error) error {
	msg := err.Error()
	if i := strings.LastIndex(msg, "\n"); i >= 0 {
		msg = msg[i+1:]
	}
	return domainagg.NewError(code, op, msg, err)
}

func transient(op string, err error) error {
	return domainagg.NewError(domainagg.CodeTransient, op, "database temporarily unavailable, nothing was committed", err)
}

func concurrent(op string, err error) error {
	return domainagg.NewError(domainagg.CodeConcurrentModification, op,
		"the request was modified concurrently, reload and retry", err)
}
