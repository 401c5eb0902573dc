package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicateRow is returned when an insert hits a unique constraint.
// Callers that need idempotent behaviour re-query on this error instead of
// trusting their pre-insert existence check.
var ErrDuplicateRow = errors.New("duplicate row")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
