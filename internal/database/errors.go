package database

import (
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Error kinds. Every error returned by this package matches one of these with errors.Is.
var (
	ErrNotConnected = errors.New("database connection is not available")
	ErrNotFound     = errors.New("record not found")
	ErrConstraint   = errors.New("the change conflicts with existing data")
	ErrQuery        = errors.New("database operation failed")
)

// MySQL server error numbers that indicate an integrity violation.
const (
	mysqlDuplicateEntry  = 1062
	mysqlColumnNotNull   = 1048
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

// QueryError is a classified driver failure. Error returns only the kind's
// message so it can be shown to a user; the driver error stays reachable
// through errors.As / errors.Unwrap for logging.
type QueryError struct {
	Op   string
	Kind error
	Err  error
}

func (e *QueryError) Error() string {
	return e.Kind.Error()
}

func (e *QueryError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// IsConstraint reports whether err is a uniqueness or foreign key violation.
func IsConstraint(err error) bool {
	return errors.Is(err, ErrConstraint)
}

func failed(op, query string, err error) error {
	kind := classify(err)
	log.Error().
		Err(err).
		Str("op", op).
		Str("statement", statementKind(query)).
		Str("kind", kind.Error()).
		Msg("Database query failed")
	return &QueryError{Op: op, Kind: kind, Err: err}
}

func classify(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry, mysqlColumnNotNull, mysqlRowIsReferenced, mysqlNoReferencedRow:
			return ErrConstraint
		}
		return ErrQuery
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		// extended result codes keep the primary code in the low byte
		if liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			return ErrConstraint
		}
		return ErrQuery
	}

	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, mysql.ErrInvalidConn):
		return ErrNotConnected
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	}
	return ErrQuery
}
