package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/audit"
	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/aussiebroadwan/tokens/internal/tokens/metrics"
	"github.com/aussiebroadwan/tokens/internal/tokens/ratelimit"
	"github.com/aussiebroadwan/tokens/internal/tokens/store"
	"github.com/aussiebroadwan/tokens/internal/tokens/webhook"
	"github.com/aussiebroadwan/tokens/pkg/cryptox"
	"github.com/aussiebroadwan/tokens/pkg/slogx"
	"github.com/google/uuid"
)

type InviteService struct {
	Store    store.Store
	Pepper   cryptox.Pepper
	Limiter  *ratelimit.Limiter
	Audit    audit.Sink
	Notifier webhook.Notifier
	Metrics  *metrics.Metrics
	Policy   Policy

	// DailyQuota caps invites per issuer per local day; 0 disables it.
	DailyQuota int
	DefaultTTL time.Duration
	MaxTTL     time.Duration
	Location   *time.Location
	Clock      Clock
}

type IssueInviteRequest struct {
	TargetRole     domain.Role
	OrganizationID string // defaults to the issuer's organization
	TTL            time.Duration
}

// IssueInvite mints a single-use invite and returns it with the raw code.
// The raw code is not stored; after this call it only exists in the
// invite.created webhook and the caller's response.
func (s *InviteService) IssueInvite(ctx context.Context, issuer domain.Principal, req IssueInviteRequest, info RequestInfo) (domain.Invite, string, error) {
	log := slogx.FromContext(ctx)
	now := s.Clock.now()

	// 1. Validate input
	if !req.TargetRole.Valid() {
		return domain.Invite{}, "", invalid("target_role", "unknown role")
	}
	ttl := req.TTL
	if ttl == 0 {
		ttl = s.DefaultTTL
	}
	if ttl <= 0 || (s.MaxTTL > 0 && ttl > s.MaxTTL) {
		return domain.Invite{}, "", invalid("ttl", "out of range")
	}
	org := req.OrganizationID
	if org == "" {
		org = issuer.OrganizationID
	}

	// 2. Role policy. Cross-organization issuance is reserved to superusers.
	if !s.Policy.Allows(issuer, req.TargetRole) || (org != issuer.OrganizationID && !issuer.Superuser) {
		log.Warn("invite issuance denied",
			slog.String("issuer_id", issuer.ID),
			slog.String("issuer_role", string(issuer.Role)),
			slog.String("target_role", string(req.TargetRole)),
		)
		s.Audit.Record(ctx, audit.Event{
			PrincipalID: issuer.ID,
			Action:      "invite.issue",
			ObjectType:  "invite",
			IPHash:      s.Pepper.HashIP(info.IP),
			Status:      audit.StatusFailure,
			Metadata:    map[string]any{"target_role": string(req.TargetRole), "organization": org},
		})
		return domain.Invite{}, "", ErrAuthorization
	}

	// 3. Generate the code
	raw, h, err := cryptox.IssueInviteCode()
	if err != nil {
		log.Error("failed to generate invite code", slog.Any("error", err))
		return domain.Invite{}, "", err
	}

	inv := domain.Invite{
		ID:             uuid.NewString(),
		CodeLookup:     s.Pepper.Lookup(raw),
		CodeHash:       h.Hash,
		CodeSalt:       h.Salt,
		HashScheme:     string(h.Scheme),
		TargetRole:     req.TargetRole,
		State:          domain.InviteNew,
		ExpiresAt:      now.Add(ttl),
		IssuerID:       issuer.ID,
		OrganizationID: org,
		IssuedIP:       info.IP,
		CreatedAt:      now,
	}

	// 4. Quota check and insert, serialised per issuer
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Principals().LockPrincipal(ctx, issuer.ID); err != nil {
			return err
		}
		if s.DailyQuota > 0 {
			n, err := tx.Invites().CountInvitesIssuedSince(ctx, issuer.ID, dayStart(now, s.Location))
			if err != nil {
				return err
			}
			if n >= s.DailyQuota {
				return ErrQuotaExceeded
			}
		}
		if err := tx.Invites().CreateInvite(ctx, inv); err != nil {
			return err
		}
		return tx.UsageLogs().AppendUsage(ctx, usage(domain.KindInvite, inv.ID, issuer.ID, domain.ActionIssue, info, now))
	})
	if errors.Is(err, ErrQuotaExceeded) {
		log.Warn("invite quota exceeded",
			slog.String("issuer_id", issuer.ID),
			slog.Int("daily_quota", s.DailyQuota),
		)
		return domain.Invite{}, "", ErrQuotaExceeded
	}
	if err != nil {
		log.Error("failed to create invite", slog.Any("error", err))
		return domain.Invite{}, "", fmt.Errorf("issue invite: %w", err)
	}

	// 5. Side effects, after commit
	s.Metrics.InvitesCreated.Inc()
	s.Audit.Record(ctx, audit.Event{
		PrincipalID: issuer.ID,
		Action:      "invite.issue",
		ObjectType:  "invite",
		ObjectID:    inv.ID,
		IPHash:      s.Pepper.HashIP(info.IP),
		Status:      audit.StatusSuccess,
		Metadata:    map[string]any{"target_role": string(inv.TargetRole)},
	})
	s.Notifier.Dispatch(ctx, "invite.created", map[string]any{
		"id":           inv.ID,
		"code":         raw,
		"target_role":  string(inv.TargetRole),
		"organization": inv.OrganizationID,
		"expires_at":   formatTime(inv.ExpiresAt),
	})

	log.Info("invite issued",
		slog.String("invite_id", inv.ID),
		slog.String("issuer_id", issuer.ID),
		slog.String("target_role", string(inv.TargetRole)),
		slog.Time("expires_at", inv.ExpiresAt),
	)
	return inv, raw, nil
}

// ValidateByCode reports the state of the invite a code belongs to without
// consuming it. An invite found past its expiry is moved to EXPIRED here.
// callerID is empty for anonymous callers.
func (s *InviteService) ValidateByCode(ctx context.Context, callerID, code string, info RequestInfo) (domain.Invite, error) {
	defer s.observe(time.Now())
	now := s.Clock.now()

	if strings.TrimSpace(code) == "" {
		return domain.Invite{}, invalid("code", "required")
	}

	found, err := s.resolve(ctx, callerID, code, domain.ActionValidate, info)
	if err != nil {
		return domain.Invite{}, err
	}

	var (
		inv     domain.Invite
		outcome error
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		inv, err = s.current(ctx, tx, found.ID, now)
		if err != nil {
			return err
		}
		if inv.State != domain.InviteNew {
			outcome = &ConflictError{State: string(inv.State)}
		}
		return tx.UsageLogs().AppendUsage(ctx, usage(domain.KindInvite, inv.ID, callerID, domain.ActionValidate, info, now))
	})
	if err != nil {
		return domain.Invite{}, s.storeErr(ctx, "validate invite", err)
	}
	if outcome != nil {
		s.Metrics.ValidationFail.WithLabelValues("invite", "conflict").Inc()
		return inv, outcome
	}
	return inv, nil
}

// Redeem consumes the invite id for caller. The raw code must accompany the
// id. Of two concurrent redemptions exactly one wins; the other sees the
// USED state and gets a ConflictError.
func (s *InviteService) Redeem(ctx context.Context, caller domain.Principal, id, code string, info RequestInfo) (domain.Invite, error) {
	defer s.observe(time.Now())
	log := slogx.FromContext(ctx)
	now := s.Clock.now()

	// 1. Validate input
	if caller.ID == "" {
		return domain.Invite{}, ErrUnauthorized
	}
	if strings.TrimSpace(code) == "" {
		return domain.Invite{}, invalid("code", "required")
	}

	// 2. Rate limit, look up and verify the code
	found, err := s.resolve(ctx, caller.ID, code, domain.ActionUse, info)
	if err != nil {
		return domain.Invite{}, err
	}
	if found.ID != id {
		log.Warn("invite code presented against a different invite id", slog.String("invite_id", id))
		s.miss(ctx, caller.ID, domain.ActionUse, info)
		return domain.Invite{}, ErrNotFound
	}

	// 3. Transition NEW -> USED
	var (
		inv     domain.Invite
		outcome error
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		inv, err = s.current(ctx, tx, id, now)
		if err != nil {
			return err
		}

		won := false
		if inv.State == domain.InviteNew {
			won, err = tx.Invites().MarkInviteUsed(ctx, id, caller.ID, info.IP, now)
			if err != nil {
				return err
			}
			if inv, err = tx.Invites().GetInviteByID(ctx, id); err != nil {
				return err
			}
		}
		if !won {
			outcome = &ConflictError{State: string(inv.State)}
		}
		return tx.UsageLogs().AppendUsage(ctx, usage(domain.KindInvite, id, caller.ID, domain.ActionUse, info, now))
	})
	if err != nil {
		return domain.Invite{}, s.storeErr(ctx, "redeem invite", err)
	}
	if outcome != nil {
		s.Metrics.ValidationFail.WithLabelValues("invite", "conflict").Inc()
		log.Warn("invite redemption rejected",
			slog.String("invite_id", id),
			slog.String("state", string(inv.State)),
		)
		return inv, outcome
	}

	// 4. Side effects, after commit
	s.Metrics.InvitesUsed.Inc()
	s.Audit.Record(ctx, audit.Event{
		PrincipalID: caller.ID,
		Action:      "invite.redeem",
		ObjectType:  "invite",
		ObjectID:    inv.ID,
		IPHash:      s.Pepper.HashIP(info.IP),
		Status:      audit.StatusSuccess,
	})
	s.Notifier.Dispatch(ctx, "invite.used", map[string]any{
		"id":           inv.ID,
		"used_by":      caller.ID,
		"target_role":  string(inv.TargetRole),
		"organization": inv.OrganizationID,
	})

	log.Info("invite redeemed",
		slog.String("invite_id", inv.ID),
		slog.String("used_by", caller.ID),
	)
	return inv, nil
}

// RevokeInvite moves a NEW invite to REVOKED. Revoking an already revoked
// invite returns false and records nothing; USED or EXPIRED invites give a
// ConflictError.
func (s *InviteService) RevokeInvite(ctx context.Context, actor domain.Principal, id string, info RequestInfo) (bool, error) {
	log := slogx.FromContext(ctx)
	now := s.Clock.now()

	if !actor.IsAdmin() {
		return false, ErrForbidden
	}

	var (
		inv     domain.Invite
		revoked bool
		outcome error
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		inv, err = s.current(ctx, tx, id, now)
		if err != nil {
			return err
		}
		if !actor.Superuser && inv.OrganizationID != actor.OrganizationID {
			return store.ErrNotFound
		}
		if inv.State == domain.InviteRevoked {
			return nil
		}

		if inv.State == domain.InviteNew {
			revoked, err = tx.Invites().RevokeInvite(ctx, id, actor.ID, now)
			if err != nil {
				return err
			}
			if !revoked {
				if inv, err = tx.Invites().GetInviteByID(ctx, id); err != nil {
					return err
				}
				if inv.State == domain.InviteRevoked {
					return nil
				}
			}
		}
		if !revoked {
			outcome = &ConflictError{State: string(inv.State)}
		}
		return tx.UsageLogs().AppendUsage(ctx, usage(domain.KindInvite, id, actor.ID, domain.ActionRevoke, info, now))
	})
	if err != nil {
		return false, s.storeErr(ctx, "revoke invite", err)
	}
	if outcome != nil {
		return false, outcome
	}
	if !revoked {
		log.Debug("invite already revoked", slog.String("invite_id", id))
		return false, nil
	}

	s.Metrics.InvitesRevoked.Inc()
	s.Audit.Record(ctx, audit.Event{
		PrincipalID: actor.ID,
		Action:      "invite.revoke",
		ObjectType:  "invite",
		ObjectID:    id,
		IPHash:      s.Pepper.HashIP(info.IP),
		Status:      audit.StatusSuccess,
	})
	s.Notifier.Dispatch(ctx, "invite.revoked", map[string]any{
		"id":         id,
		"revoked_by": actor.ID,
	})

	log.Info("invite revoked", slog.String("invite_id", id), slog.String("revoked_by", actor.ID))
	return true, nil
}

// InviteLogs returns the usage trail of one invite, oldest first.
func (s *InviteService) InviteLogs(ctx context.Context, actor domain.Principal, id string) ([]domain.UsageEntry, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	inv, err := s.Store.Invites().GetInviteByID(ctx, id)
	if err != nil {
		return nil, s.storeErr(ctx, "get invite", err)
	}
	if !actor.Superuser && inv.OrganizationID != actor.OrganizationID {
		return nil, ErrNotFound
	}

	entries, err := s.Store.UsageLogs().ListUsage(ctx, domain.KindInvite, id)
	if err != nil {
		return nil, s.storeErr(ctx, "list invite usage", err)
	}
	return entries, nil
}

// resolve applies the invite rate limits, then finds and verifies the
// invite a raw code belongs to. Throttled calls leave no usage row.
func (s *InviteService) resolve(ctx context.Context, callerID, code string, action domain.UsageAction, info RequestInfo) (domain.Invite, error) {
	lookup := s.Pepper.Lookup(code)

	if s.Limiter != nil {
		who := callerID
		if who == "" {
			who = "anon"
		}
		for _, key := range []string{
			"invite:code:" + lookup + ":" + info.IP,
			"invite:caller:" + who + ":" + info.IP,
		} {
			if ok, retry := s.Limiter.Allow(ctx, key); !ok {
				s.Metrics.RateLimited.WithLabelValues("invite").Inc()
				return domain.Invite{}, &RateLimitedError{RetryAfter: retry}
			}
		}
	}

	inv, err := s.Store.Invites().GetInviteByLookup(ctx, lookup)
	if err == nil && !cryptox.VerifyCode(code, cryptox.CodeHash{
		Scheme: cryptox.Scheme(inv.HashScheme),
		Hash:   inv.CodeHash,
		Salt:   inv.CodeSalt,
	}) {
		err = store.ErrNotFound
	}
	if errors.Is(err, store.ErrNotFound) {
		s.miss(ctx, callerID, action, info)
		return domain.Invite{}, ErrNotFound
	}
	if err != nil {
		return domain.Invite{}, s.storeErr(ctx, "look up invite", err)
	}
	return inv, nil
}

// miss records a presented code that matched nothing.
func (s *InviteService) miss(ctx context.Context, callerID string, action domain.UsageAction, info RequestInfo) {
	s.Metrics.ValidationFail.WithLabelValues("invite", "not_found").Inc()
	if err := s.Store.UsageLogs().AppendUsage(ctx, usage(domain.KindInvite, "", callerID, action, info, s.Clock.now())); err != nil {
		slogx.FromContext(ctx).Error("failed to record invite lookup miss", slog.Any("error", err))
	}
}

// current re-reads the invite inside tx and expires it if its time is up.
func (s *InviteService) current(ctx context.Context, tx store.Tx, id string, now time.Time) (domain.Invite, error) {
	inv, err := tx.Invites().GetInviteByID(ctx, id)
	if err != nil {
		return domain.Invite{}, err
	}
	if inv.State == domain.InviteNew && inv.Expired(now) {
		if _, err := tx.Invites().ExpireInvite(ctx, id); err != nil {
			return domain.Invite{}, err
		}
		inv.State = domain.InviteExpired
	}
	return inv, nil
}

func (s *InviteService) storeErr(ctx context.Context, op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	slogx.FromContext(ctx).Error("invite store failure", slog.String("op", op), slog.Any("error", err))
	return fmt.Errorf("%s: %w", op, err)
}

func (s *InviteService) observe(start time.Time) {
	s.Metrics.ValidationLatency.WithLabelValues("invite").Observe(time.Since(start).Seconds())
}
