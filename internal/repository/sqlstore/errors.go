package sqlstore

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	apperrors "github.com/jwalitptl/patient-records/pkg/errors"
)

// classify maps a driver error onto the store's error kinds
func classify(err error) error {
	if err == nil {
		return nil
	}
	if isConstraintViolation(err) {
		return apperrors.ConstraintViolation(err)
	}
	return apperrors.StoreFailure(err)
}

func isConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		// extended codes keep the primary code in the low byte
		return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// class 23: integrity constraint violation
		return pqErr.Code.Class() == "23"
	}
	return false
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
