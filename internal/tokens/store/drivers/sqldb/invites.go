package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
)

const inviteColumns = `id, code_lookup, code_hash, code_salt, hash_scheme, target_role, state,
	expires_at, issuer_id, used_by, organization_id, issued_ip, used_ip,
	revoked_at, revoked_by, created_at`

type invitesRepo struct{ c conn }

func scanInvite(s scanner) (domain.Invite, error) {
	var (
		inv                domain.Invite
		expiresAt, created int64
		revokedAt          sql.NullInt64
		usedBy, revokedBy  sql.NullString
	)
	err := s.Scan(&inv.ID, &inv.CodeLookup, &inv.CodeHash, &inv.CodeSalt, &inv.HashScheme,
		&inv.TargetRole, &inv.State, &expiresAt, &inv.IssuerID, &usedBy, &inv.OrganizationID,
		&inv.IssuedIP, &inv.UsedIP, &revokedAt, &revokedBy, &created)
	if err != nil {
		return domain.Invite{}, err
	}
	inv.ExpiresAt = fromMillis(expiresAt)
	inv.CreatedAt = fromMillis(created)
	inv.RevokedAt = timePtr(revokedAt)
	inv.UsedBy = stringOf(usedBy)
	inv.RevokedBy = stringOf(revokedBy)
	return inv, nil
}

func (r *invitesRepo) CreateInvite(ctx context.Context, inv domain.Invite) error {
	_, err := r.c.exec(ctx, `INSERT INTO invite_tokens (`+inviteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.CodeLookup, inv.CodeHash, inv.CodeSalt, inv.HashScheme,
		string(inv.TargetRole), string(inv.State), millis(inv.ExpiresAt), inv.IssuerID,
		nullString(inv.UsedBy), inv.OrganizationID, inv.IssuedIP, inv.UsedIP,
		nullMillis(inv.RevokedAt), nullString(inv.RevokedBy), millis(inv.CreatedAt))
	return err
}

func (r *invitesRepo) GetInviteByID(ctx context.Context, id string) (domain.Invite, error) {
	inv, err := scanInvite(r.c.queryRow(ctx, `SELECT `+inviteColumns+` FROM invite_tokens WHERE id = ?`, id))
	return inv, mapNotFound(err)
}

func (r *invitesRepo) GetInviteByLookup(ctx context.Context, lookup string) (domain.Invite, error) {
	inv, err := scanInvite(r.c.queryRow(ctx, `SELECT `+inviteColumns+` FROM invite_tokens WHERE code_lookup = ?`, lookup))
	return inv, mapNotFound(err)
}

func (r *invitesRepo) CountInvitesIssuedSince(ctx context.Context, issuerID string, since time.Time) (int, error) {
	var n int
	err := r.c.queryRow(ctx,
		`SELECT COUNT(*) FROM invite_tokens WHERE issuer_id = ? AND created_at >= ?`,
		issuerID, millis(since)).Scan(&n)
	return n, err
}

func (r *invitesRepo) ExpireInvite(ctx context.Context, id string) (bool, error) {
	return r.c.execAffected(ctx,
		`UPDATE invite_tokens SET state = 'expired' WHERE id = ? AND state = 'new'`, id)
}

func (r *invitesRepo) MarkInviteUsed(ctx context.Context, id, usedBy, usedIP string, now time.Time) (bool, error) {
	return r.c.execAffected(ctx, `
		UPDATE invite_tokens SET state = 'used', used_by = ?, used_ip = ?
		WHERE id = ? AND state = 'new' AND expires_at > ?`,
		usedBy, usedIP, id, millis(now))
}

func (r *invitesRepo) RevokeInvite(ctx context.Context, id, revokedBy string, now time.Time) (bool, error) {
	return r.c.execAffected(ctx, `
		UPDATE invite_tokens SET state = 'revoked', revoked_at = ?, revoked_by = ?
		WHERE id = ? AND state = 'new'`,
		millis(now), revokedBy, id)
}

// Anything past its expiry is terminal (lazily expired or not), so expiry
// alone selects the rows.
func (r *invitesRepo) DeleteTerminalInvites(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.c.execCount(ctx, `DELETE FROM invite_tokens WHERE expires_at < ?`, millis(cutoff))
}
