package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"net"

	"github.com/lib/pq"

	"github.com/telecare/telemed-api/pkg/errors"
)

// pq error classes
const (
	pqUniqueViolation    = "23505"
	pqExclusionViolation = "23P01"
)

// classify maps driver errors onto the application taxonomy in one
// place so conflicts are never conflated with storage failures.
func classify(err error, resource string) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(resource)
	}

	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation, pqExclusionViolation:
			return &errors.AppError{Kind: errors.KindConflict, Message: resource + " conflicts with existing record", Err: err}
		}
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.StorageUnavailable(err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return errors.StorageUnavailable(err)
	}
	if stderrors.Is(err, sql.ErrConnDone) || stderrors.Is(err, sql.ErrTxDone) {
		return errors.StorageUnavailable(err)
	}

	return errors.Internal(err)
}
