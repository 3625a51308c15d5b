package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/aussiebroadwan/tokens/internal/tokens/store"
	"github.com/aussiebroadwan/tokens/pkg/cryptox"
	"github.com/aussiebroadwan/tokens/pkg/idx"
	"github.com/aussiebroadwan/tokens/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var (
	ErrInvalidCode        = fmt.Errorf("%w: invalid code", ErrUnauthorized)
	ErrTOTPNotEnrolled    = fmt.Errorf("%w: totp not enrolled", ErrNotFound)
	ErrTOTPAlreadyEnabled = fmt.Errorf("%w: totp already enabled", ErrConflict)
)

var totpOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

type TOTPService struct {
	Store  store.Store
	Sealer *cryptox.Sealer
	Issuer string // shown in the authenticator app, e.g. "Tokens"
	Clock  Clock
}

// Enroll generates a fresh TOTP secret for p. The device stays unconfirmed,
// and unused for verification, until Confirm sees a valid code. Enrolling
// again before confirming replaces the pending secret.
func (s *TOTPService) Enroll(ctx context.Context, p domain.Principal, account string) (domain.TOTPEnrollment, error) {
	log := slogx.FromContext(ctx)
	now := s.Clock.now()

	if strings.TrimSpace(account) == "" {
		account = p.ID
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: account,
		Period:      totpOpts.Period,
		Digits:      totpOpts.Digits,
		Algorithm:   totpOpts.Algorithm,
	})
	if err != nil {
		return domain.TOTPEnrollment{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	sealed, err := s.Sealer.Seal([]byte(key.Secret()))
	if err != nil {
		return domain.TOTPEnrollment{}, fmt.Errorf("failed to seal TOTP secret: %w", err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.TOTPDevices().ReplaceTOTPDevice(ctx, domain.TOTPDevice{
			ID:           idx.NewAt(now).String(),
			PrincipalID:  p.ID,
			SecretSealed: sealed,
			CreatedAt:    now,
		})
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return domain.TOTPEnrollment{}, ErrTOTPAlreadyEnabled
	}
	if err != nil {
		return domain.TOTPEnrollment{}, fmt.Errorf("failed to store TOTP device: %w", err)
	}

	log.Info("totp enrollment started", slog.String("principal_id", p.ID))
	return domain.TOTPEnrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

// Confirm activates a pending device once the user proves they can
// produce codes for it.
func (s *TOTPService) Confirm(ctx context.Context, principalID, code string) error {
	dev, err := s.device(ctx, principalID)
	if err != nil {
		return err
	}
	if dev.ConfirmedAt != nil {
		return ErrTOTPAlreadyEnabled
	}
	if err := s.check(dev, code); err != nil {
		return err
	}

	ok, err := s.Store.TOTPDevices().ConfirmTOTPDevice(ctx, principalID, s.Clock.now())
	if err != nil {
		return fmt.Errorf("failed to confirm TOTP device: %w", err)
	}
	if !ok {
		return ErrTOTPAlreadyEnabled
	}

	slogx.FromContext(ctx).Info("totp enabled", slog.String("principal_id", principalID))
	return nil
}

// Verify checks code against the principal's confirmed device.
func (s *TOTPService) Verify(ctx context.Context, principalID, code string) error {
	dev, err := s.device(ctx, principalID)
	if err != nil {
		return err
	}
	if dev.ConfirmedAt == nil {
		return ErrTOTPNotEnrolled
	}
	return s.check(dev, code)
}

// Remove deletes the device after verifying a current code.
func (s *TOTPService) Remove(ctx context.Context, principalID, code string) error {
	if err := s.Verify(ctx, principalID, code); err != nil {
		return err
	}
	if _, err := s.Store.TOTPDevices().DeleteTOTPDevice(ctx, principalID); err != nil {
		return fmt.Errorf("failed to delete TOTP device: %w", err)
	}

	slogx.FromContext(ctx).Info("totp removed", slog.String("principal_id", principalID))
	return nil
}

func (s *TOTPService) device(ctx context.Context, principalID string) (domain.TOTPDevice, error) {
	dev, err := s.Store.TOTPDevices().GetTOTPDevice(ctx, principalID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.TOTPDevice{}, ErrTOTPNotEnrolled
	}
	if err != nil {
		return domain.TOTPDevice{}, fmt.Errorf("failed to get TOTP device: %w", err)
	}
	return dev, nil
}

func (s *TOTPService) check(dev domain.TOTPDevice, code string) error {
	secret, err := s.Sealer.Open(dev.SecretSealed)
	if err != nil {
		return fmt.Errorf("failed to open TOTP secret: %w", err)
	}
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), string(secret), s.Clock.now(), totpOpts)
	if err != nil || !ok {
		return ErrInvalidCode
	}
	return nil
}
