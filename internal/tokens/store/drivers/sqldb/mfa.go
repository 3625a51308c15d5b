package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
)

type totpDevicesRepo struct{ c conn }

func (r *totpDevicesRepo) GetTOTPDevice(ctx context.Context, principalID string) (domain.TOTPDevice, error) {
	var (
		dev       domain.TOTPDevice
		confirmed sql.NullInt64
		created   int64
	)
	err := r.c.queryRow(ctx, `
		SELECT id, principal_id, secret_sealed, confirmed_at, created_at
		FROM totp_devices WHERE principal_id = ?`, principalID,
	).Scan(&dev.ID, &dev.PrincipalID, &dev.SecretSealed, &confirmed, &created)
	if err != nil {
		return domain.TOTPDevice{}, mapNotFound(err)
	}
	dev.ConfirmedAt = timePtr(confirmed)
	dev.CreatedAt = fromMillis(created)
	return dev, nil
}

// ReplaceTOTPDevice must run inside a transaction; the delete and insert
// are two statements.
func (r *totpDevicesRepo) ReplaceTOTPDevice(ctx context.Context, dev domain.TOTPDevice) error {
	if _, err := r.c.exec(ctx,
		`DELETE FROM totp_devices WHERE principal_id = ? AND confirmed_at IS NULL`, dev.PrincipalID); err != nil {
		return err
	}
	// A surviving confirmed row trips the unique principal_id constraint,
	// which exec maps to store.ErrAlreadyExists.
	_, err := r.c.exec(ctx, `
		INSERT INTO totp_devices (id, principal_id, secret_sealed, confirmed_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		dev.ID, dev.PrincipalID, dev.SecretSealed, nullMillis(dev.ConfirmedAt), millis(dev.CreatedAt))
	return err
}

func (r *totpDevicesRepo) ConfirmTOTPDevice(ctx context.Context, principalID string, now time.Time) (bool, error) {
	return r.c.execAffected(ctx,
		`UPDATE totp_devices SET confirmed_at = ? WHERE principal_id = ? AND confirmed_at IS NULL`,
		millis(now), principalID)
}

func (r *totpDevicesRepo) DeleteTOTPDevice(ctx context.Context, principalID string) (bool, error) {
	return r.c.execAffected(ctx, `DELETE FROM totp_devices WHERE principal_id = ?`, principalID)
}

type authCodesRepo struct{ c conn }

func (r *authCodesRepo) CreateAuthCode(ctx context.Context, ac domain.AuthCode) error {
	_, err := r.c.exec(ctx, `
		INSERT INTO auth_codes (id, principal_id, code_hash, code_salt, hash_scheme, attempts, expires_at, verified_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ac.ID, ac.PrincipalID, ac.CodeHash, ac.CodeSalt, ac.HashScheme, ac.Attempts,
		millis(ac.ExpiresAt), nullMillis(ac.VerifiedAt), millis(ac.CreatedAt))
	return err
}

func (r *authCodesRepo) GetLatestAuthCode(ctx context.Context, principalID string) (domain.AuthCode, error) {
	var (
		ac               domain.AuthCode
		expires, created int64
		verified         sql.NullInt64
	)
	err := r.c.queryRow(ctx, `
		SELECT id, principal_id, code_hash, code_salt, hash_scheme, attempts, expires_at, verified_at, created_at
		FROM auth_codes
		WHERE principal_id = ? AND verified_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, principalID,
	).Scan(&ac.ID, &ac.PrincipalID, &ac.CodeHash, &ac.CodeSalt, &ac.HashScheme, &ac.Attempts,
		&expires, &verified, &created)
	if err != nil {
		return domain.AuthCode{}, mapNotFound(err)
	}
	ac.ExpiresAt = fromMillis(expires)
	ac.VerifiedAt = timePtr(verified)
	ac.CreatedAt = fromMillis(created)
	return ac, nil
}

func (r *authCodesRepo) IncrementAuthCodeAttempts(ctx context.Context, id string) (int, error) {
	var n int
	err := r.c.queryRow(ctx,
		`UPDATE auth_codes SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`, id).Scan(&n)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return n, nil
}

func (r *authCodesRepo) MarkAuthCodeVerified(ctx context.Context, id string, now time.Time) (bool, error) {
	return r.c.execAffected(ctx,
		`UPDATE auth_codes SET verified_at = ? WHERE id = ? AND verified_at IS NULL`, millis(now), id)
}

func (r *authCodesRepo) DeleteExpiredAuthCodes(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.c.execCount(ctx, `DELETE FROM auth_codes WHERE expires_at < ?`, millis(cutoff))
}
