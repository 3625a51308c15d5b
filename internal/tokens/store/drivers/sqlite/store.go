// Package sqlite is the single-node store driver, backed by the pure Go
// modernc.org/sqlite engine.
package sqlite

import (
	"errors"

	"github.com/aussiebroadwan/tokens/internal/tokens/store/drivers/sqldb"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect is the SQLite flavour of the shared SQL repositories. SQLite
// serialises writers, so quota reads need no row lock.
var Dialect = sqldb.Dialect{
	Name:              "sqlite",
	IsUniqueViolation: isUniqueViolation,
}

// NewStore opens dsn with the "sqlite" driver. A bare path gets foreign keys,
// WAL and a busy timeout; ":memory:" is accepted for tests.
func NewStore(dsn string) (*sqldb.Store, error) {
	db, err := open(dsn)
	if err != nil {
		return nil, err
	}
	return sqldb.New(db, Dialect, func() error { return migrateUp(db) }), nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
