// Package postgres is the multi-node store driver. It talks to PostgreSQL
// through pgx's database/sql adapter so the shared repositories run unchanged.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/store/drivers/sqldb"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Dialect numbers placeholders and takes a row lock on the issuing
// principal so concurrent quota checks on separate nodes serialise.
var Dialect = sqldb.Dialect{
	Name:              "postgres",
	Numbered:          true,
	ForUpdate:         "FOR UPDATE",
	IsUniqueViolation: isUniqueViolation,
}

// Pool tuning for the shared database/sql pool.
type Pool struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewStore opens dsn (a postgres:// URL or key=value string) and verifies
// the connection.
func NewStore(ctx context.Context, dsn string, pool Pool) (*sqldb.Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sqldb.New(db, Dialect, func() error { return migrateUp(dsn) }), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
