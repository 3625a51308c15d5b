package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
)

type usageLogsRepo struct{ c conn }

func (r *usageLogsRepo) AppendUsage(ctx context.Context, e domain.UsageEntry) error {
	_, err := r.c.exec(ctx, `
		INSERT INTO usage_logs (id, token_kind, token_id, principal_id, action, ip, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), nullString(e.TokenID), nullString(e.PrincipalID),
		string(e.Action), e.IP, e.UserAgent, millis(e.CreatedAt))
	return err
}

// Usage ids are ULIDs, so id breaks timestamp ties in insertion order.
func (r *usageLogsRepo) ListUsage(ctx context.Context, kind domain.TokenKind, tokenID string) ([]domain.UsageEntry, error) {
	const cols = `SELECT id, token_kind, token_id, principal_id, action, ip, user_agent, created_at FROM usage_logs`

	var (
		rows *sql.Rows
		err  error
	)
	if tokenID == "" {
		rows, err = r.c.query(ctx, cols+`
			WHERE token_kind = ? AND token_id IS NULL
			ORDER BY created_at, id`, string(kind))
	} else {
		rows, err = r.c.query(ctx, cols+`
			WHERE token_kind = ? AND token_id = ?
			ORDER BY created_at, id`, string(kind), tokenID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UsageEntry
	for rows.Next() {
		var (
			e                domain.UsageEntry
			token, principal sql.NullString
			created          int64
		)
		if err := rows.Scan(&e.ID, &e.Kind, &token, &principal, &e.Action, &e.IP, &e.UserAgent, &created); err != nil {
			return nil, err
		}
		e.TokenID = stringOf(token)
		e.PrincipalID = stringOf(principal)
		e.CreatedAt = fromMillis(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *usageLogsRepo) DeleteUsageBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.c.execCount(ctx, `DELETE FROM usage_logs WHERE created_at < ?`, millis(cutoff))
}
