package sqldb

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/tokens/internal/tokens/store"
)

type txStore struct {
	tx *sql.Tx
	c  conn
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Close is a no-op; the caller commits or rolls back and the pool stays open.
func (t *txStore) Close() error { return nil }

func (t *txStore) Ping(ctx context.Context) error { return nil }

// Nested transactions are not supported.
func (t *txStore) Tx(ctx context.Context) (store.Tx, error) { return nil, sql.ErrTxDone }

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

// ApplyMigrations is a no-op inside a transaction.
func (t *txStore) ApplyMigrations() error { return nil }

func (t *txStore) Principals() store.Principals       { return &principalsRepo{c: t.c} }
func (t *txStore) Invites() store.Invites             { return &invitesRepo{c: t.c} }
func (t *txStore) APITokens() store.APITokens         { return &apiTokensRepo{c: t.c} }
func (t *txStore) IPRules() store.IPRules             { return &ipRulesRepo{c: t.c} }
func (t *txStore) UsageLogs() store.UsageLogs         { return &usageLogsRepo{c: t.c} }
func (t *txStore) WebhookEvents() store.WebhookEvents { return &webhookEventsRepo{c: t.c} }
func (t *txStore) RateCounters() store.RateCounters   { return &rateCountersRepo{c: t.c} }
func (t *txStore) TOTPDevices() store.TOTPDevices     { return &totpDevicesRepo{c: t.c} }
func (t *txStore) AuthCodes() store.AuthCodes         { return &authCodesRepo{c: t.c} }
