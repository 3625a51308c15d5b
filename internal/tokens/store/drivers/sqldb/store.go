package sqldb

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/tokens/internal/tokens/store"
)

var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*txStore)(nil)
)

// Store implements store.Store on top of database/sql. Drivers construct it
// with their dialect and migration routine.
type Store struct {
	db      *sql.DB
	dialect Dialect
	migrate func() error
}

func New(db *sql.DB, d Dialect, migrate func() error) *Store {
	return &Store{db: db, dialect: d, migrate: migrate}
}

// DB exposes the pool for driver-specific plumbing (migrations).
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ApplyMigrations() error { return s.migrate() }

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txStore{tx: tx, c: conn{db: tx, d: s.dialect}}, nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) conn() conn { return conn{db: s.db, d: s.dialect} }

func (s *Store) Principals() store.Principals       { return &principalsRepo{c: s.conn()} }
func (s *Store) Invites() store.Invites             { return &invitesRepo{c: s.conn()} }
func (s *Store) APITokens() store.APITokens         { return &apiTokensRepo{c: s.conn()} }
func (s *Store) IPRules() store.IPRules             { return &ipRulesRepo{c: s.conn()} }
func (s *Store) UsageLogs() store.UsageLogs         { return &usageLogsRepo{c: s.conn()} }
func (s *Store) WebhookEvents() store.WebhookEvents { return &webhookEventsRepo{c: s.conn()} }
func (s *Store) RateCounters() store.RateCounters   { return &rateCountersRepo{c: s.conn()} }
func (s *Store) TOTPDevices() store.TOTPDevices     { return &totpDevicesRepo{c: s.conn()} }
func (s *Store) AuthCodes() store.AuthCodes         { return &authCodesRepo{c: s.conn()} }
