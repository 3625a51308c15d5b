package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
)

const apiTokenColumns = `id, owner_id, token_hash, hash_scheme, client_name, scope,
	expires_at, revoked_at, revoked_by, device_fingerprint, predecessor_id,
	last_used_at, created_at, deleted_at`

type apiTokensRepo struct{ c conn }

func scanAPIToken(s scanner) (domain.APIToken, error) {
	var (
		t                                 domain.APIToken
		created                           int64
		expiresAt, revokedAt, lastUsed    sql.NullInt64
		deletedAt                         sql.NullInt64
		ownerID, revokedBy, predecessorID sql.NullString
	)
	err := s.Scan(&t.ID, &ownerID, &t.TokenHash, &t.HashScheme, &t.ClientName, &t.Scope,
		&expiresAt, &revokedAt, &revokedBy, &t.DeviceFingerprint, &predecessorID,
		&lastUsed, &created, &deletedAt)
	if err != nil {
		return domain.APIToken{}, err
	}
	t.OwnerID = stringOf(ownerID)
	t.RevokedBy = stringOf(revokedBy)
	t.PredecessorID = stringOf(predecessorID)
	t.ExpiresAt = timePtr(expiresAt)
	t.RevokedAt = timePtr(revokedAt)
	t.LastUsedAt = timePtr(lastUsed)
	t.DeletedAt = timePtr(deletedAt)
	t.CreatedAt = fromMillis(created)
	return t, nil
}

func (r *apiTokensRepo) CreateAPIToken(ctx context.Context, t domain.APIToken) error {
	_, err := r.c.exec(ctx, `INSERT INTO api_tokens (`+apiTokenColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, nullString(t.OwnerID), t.TokenHash, t.HashScheme, t.ClientName, string(t.Scope),
		nullMillis(t.ExpiresAt), nullMillis(t.RevokedAt), nullString(t.RevokedBy),
		t.DeviceFingerprint, nullString(t.PredecessorID), nullMillis(t.LastUsedAt),
		millis(t.CreatedAt), nullMillis(t.DeletedAt))
	return err
}

func (r *apiTokensRepo) GetAPITokenByID(ctx context.Context, id string) (domain.APIToken, error) {
	t, err := scanAPIToken(r.c.queryRow(ctx,
		`SELECT `+apiTokenColumns+` FROM api_tokens WHERE id = ? AND deleted_at IS NULL`, id))
	return t, mapNotFound(err)
}

func (r *apiTokensRepo) GetAPITokenByIDIncludingDeleted(ctx context.Context, id string) (domain.APIToken, error) {
	t, err := scanAPIToken(r.c.queryRow(ctx,
		`SELECT `+apiTokenColumns+` FROM api_tokens WHERE id = ?`, id))
	return t, mapNotFound(err)
}

func (r *apiTokensRepo) GetActiveAPITokenByHash(ctx context.Context, hash string) (domain.APIToken, error) {
	t, err := scanAPIToken(r.c.queryRow(ctx, `SELECT `+apiTokenColumns+` FROM api_tokens
		WHERE token_hash = ? AND revoked_at IS NULL AND deleted_at IS NULL`, hash))
	return t, mapNotFound(err)
}

func (r *apiTokensRepo) ListAPITokensByOwner(ctx context.Context, ownerID string) ([]domain.APIToken, error) {
	rows, err := r.c.query(ctx, `SELECT `+apiTokenColumns+` FROM api_tokens
		WHERE owner_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.APIToken
	for rows.Next() {
		t, err := scanAPIToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Soft-deleted tokens still count: the quota is on issuance, not on what
// is currently live.
func (r *apiTokensRepo) CountAPITokensIssuedSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	var n int
	err := r.c.queryRow(ctx,
		`SELECT COUNT(*) FROM api_tokens WHERE owner_id = ? AND created_at >= ?`,
		ownerID, millis(since)).Scan(&n)
	return n, err
}

func (r *apiTokensRepo) RevokeAPIToken(ctx context.Context, id, revokedBy string, now time.Time) (bool, error) {
	at := millis(now)
	return r.c.execAffected(ctx, `
		UPDATE api_tokens SET revoked_at = ?, revoked_by = ?, deleted_at = ?
		WHERE id = ? AND revoked_at IS NULL`,
		at, revokedBy, at, id)
}

func (r *apiTokensRepo) TouchAPIToken(ctx context.Context, id string, now time.Time) error {
	_, err := r.c.exec(ctx, `UPDATE api_tokens SET last_used_at = ? WHERE id = ?`, millis(now), id)
	return err
}

func (r *apiTokensRepo) DeleteStaleAPITokens(ctx context.Context, cutoff time.Time) (int64, error) {
	c := millis(cutoff)
	return r.c.execCount(ctx, `
		DELETE FROM api_tokens
		WHERE (revoked_at IS NOT NULL AND revoked_at < ?)
		   OR (expires_at IS NOT NULL AND expires_at < ?)`, c, c)
}
