package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/aussiebroadwan/tokens/internal/tokens/store"
	"github.com/aussiebroadwan/tokens/pkg/cryptox"
	"github.com/aussiebroadwan/tokens/pkg/idx"
	"github.com/aussiebroadwan/tokens/pkg/slogx"
)

const authCodeDigits = 6

// CodeSender delivers an authentication code out of band (email, SMS).
type CodeSender interface {
	SendCode(ctx context.Context, p domain.Principal, code string) error
}

// NoopSender drops codes. Useful where delivery is wired up elsewhere.
type NoopSender struct{}

func (NoopSender) SendCode(context.Context, domain.Principal, string) error { return nil }

type AuthCodeService struct {
	Store       store.Store
	Sender      CodeSender
	TTL         time.Duration
	MaxAttempts int
	Clock       Clock
}

// Issue creates a numeric code for p and hands it to the sender. Any older
// unverified code is superseded, since verification only looks at the
// newest one.
func (s *AuthCodeService) Issue(ctx context.Context, p domain.Principal) (domain.AuthCode, error) {
	log := slogx.FromContext(ctx)
	now := s.Clock.now()

	raw, err := cryptox.GenerateNumericCode(authCodeDigits)
	if err != nil {
		return domain.AuthCode{}, err
	}
	h, err := cryptox.HashCode(raw)
	if err != nil {
		return domain.AuthCode{}, err
	}

	ac := domain.AuthCode{
		ID:          idx.NewAt(now).String(),
		PrincipalID: p.ID,
		CodeHash:    h.Hash,
		CodeSalt:    h.Salt,
		HashScheme:  string(h.Scheme),
		ExpiresAt:   now.Add(s.TTL),
		CreatedAt:   now,
	}
	if err := s.Store.AuthCodes().CreateAuthCode(ctx, ac); err != nil {
		log.Error("failed to store auth code", slog.Any("error", err))
		return domain.AuthCode{}, fmt.Errorf("create auth code: %w", err)
	}

	if err := s.Sender.SendCode(ctx, p, raw); err != nil {
		log.Error("failed to send auth code", slog.String("principal_id", p.ID), slog.Any("error", err))
		return domain.AuthCode{}, fmt.Errorf("send auth code: %w", err)
	}

	log.Info("auth code issued", slog.String("principal_id", p.ID), slog.String("code_id", ac.ID))
	return ac, nil
}

// Verify checks code against the principal's newest unverified code. Every
// wrong guess counts; after MaxAttempts the code is dead even if the right
// value turns up.
func (s *AuthCodeService) Verify(ctx context.Context, principalID, code string) error {
	log := slogx.FromContext(ctx)
	now := s.Clock.now()

	code = strings.TrimSpace(code)
	if code == "" {
		return invalid("code", "required")
	}

	var outcome error
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		ac, err := tx.AuthCodes().GetLatestAuthCode(ctx, principalID)
		if err != nil {
			return err
		}
		switch {
		case !now.Before(ac.ExpiresAt):
			outcome = &ConflictError{State: "expired"}
			return nil
		case s.MaxAttempts > 0 && ac.Attempts >= s.MaxAttempts:
			outcome = &ConflictError{State: "locked"}
			return nil
		}

		if !cryptox.VerifyCode(code, cryptox.CodeHash{
			Scheme: cryptox.Scheme(ac.HashScheme),
			Hash:   ac.CodeHash,
			Salt:   ac.CodeSalt,
		}) {
			// The increment commits even though the call fails.
			if _, err := tx.AuthCodes().IncrementAuthCodeAttempts(ctx, ac.ID); err != nil {
				return err
			}
			outcome = ErrInvalidCode
			return nil
		}

		won, err := tx.AuthCodes().MarkAuthCodeVerified(ctx, ac.ID, now)
		if err != nil {
			return err
		}
		if !won {
			outcome = &ConflictError{State: "verified"}
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		log.Error("failed to verify auth code", slog.Any("error", err))
		return fmt.Errorf("verify auth code: %w", err)
	}
	if outcome != nil {
		log.Warn("auth code rejected", slog.String("principal_id", principalID), slog.Any("error", outcome))
		return outcome
	}

	log.Info("auth code verified", slog.String("principal_id", principalID))
	return nil
}
