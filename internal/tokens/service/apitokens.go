package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokens/internal/tokens/audit"
	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/aussiebroadwan/tokens/internal/tokens/metrics"
	"github.com/aussiebroadwan/tokens/internal/tokens/ratelimit"
	"github.com/aussiebroadwan/tokens/internal/tokens/store"
	"github.com/aussiebroadwan/tokens/internal/tokens/webhook"
	"github.com/aussiebroadwan/tokens/pkg/cryptox"
	"github.com/aussiebroadwan/tokens/pkg/idx"
	"github.com/aussiebroadwan/tokens/pkg/slogx"
	"github.com/google/uuid"
)

const maxClientNameLength = 100

type APITokenService struct {
	Store    store.Store
	Pepper   cryptox.Pepper
	Limiter  *ratelimit.Limiter
	Audit    audit.Sink
	Notifier webhook.Notifier
	Metrics  *metrics.Metrics

	// DailyQuota caps tokens per owner per local day; 0 disables it.
	DailyQuota int
	Location   *time.Location
	Clock      Clock
}

type IssueAPITokenRequest struct {
	ClientName  string
	Scope       domain.Scope
	TTL         time.Duration // 0 never expires
	Fingerprint string
}

// IssueAPIToken mints a bearer token for owner. The raw token is returned
// here and in the created webhook, and nowhere else.
func (s *APITokenService) IssueAPIToken(ctx context.Context, owner domain.Principal, req IssueAPITokenRequest, info RequestInfo) (domain.APIToken, string, error) {
	log := slogx.FromContext(ctx)
	now := s.Clock.now()

	// 1. Validate input
	name := strings.TrimSpace(req.ClientName)
	if name == "" {
		return domain.APIToken{}, "", invalid("client_name", "required")
	}
	if len(name) > maxClientNameLength {
		return domain.APIToken{}, "", invalid("client_name", "too long")
	}
	scope := req.Scope
	if scope == "" {
		scope = domain.ScopeRead
	}
	if !scope.Valid() {
		return domain.APIToken{}, "", invalid("scope", "unknown scope")
	}
	if req.TTL < 0 {
		return domain.APIToken{}, "", invalid("ttl", "must not be negative")
	}

	// 2. Authorization
	if !owner.Active || (scope == domain.ScopeAdmin && !owner.Superuser) {
		log.Warn("api token issuance denied",
			slog.String("owner_id", owner.ID),
			slog.String("scope", string(scope)),
		)
		s.Audit.Record(ctx, audit.Event{
			PrincipalID: owner.ID,
			Action:      "api_token.issue",
			ObjectType:  "api_token",
			IPHash:      s.Pepper.HashIP(info.IP),
			Status:      audit.StatusFailure,
			Metadata:    map[string]any{"scope": string(scope)},
		})
		return domain.APIToken{}, "", ErrAuthorization
	}

	// 3. Generate the token
	raw, digest, err := cryptox.IssueBearerToken()
	if err != nil {
		log.Error("failed to generate api token", slog.Any("error", err))
		return domain.APIToken{}, "", err
	}

	tok := domain.APIToken{
		ID:                uuid.NewString(),
		OwnerID:           owner.ID,
		TokenHash:         digest,
		HashScheme:        string(cryptox.SchemeBearerSHA256),
		ClientName:        name,
		Scope:             scope,
		DeviceFingerprint: strings.TrimSpace(req.Fingerprint),
		CreatedAt:         now,
	}
	if req.TTL > 0 {
		exp := now.Add(req.TTL)
		tok.ExpiresAt = &exp
	}

	// 4. Quota check and insert
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if s.DailyQuota > 0 {
			if err := tx.Principals().LockPrincipal(ctx, owner.ID); err != nil {
				return err
			}
			n, err := tx.APITokens().CountAPITokensIssuedSince(ctx, owner.ID, dayStart(now, s.Location))
			if err != nil {
				return err
			}
			if n >= s.DailyQuota {
				return ErrQuotaExceeded
			}
		}
		if err := tx.APITokens().CreateAPIToken(ctx, tok); err != nil {
			return err
		}
		return tx.UsageLogs().AppendUsage(ctx, usage(domain.KindAPIToken, tok.ID, owner.ID, domain.ActionIssue, info, now))
	})
	if errors.Is(err, ErrQuotaExceeded) {
		log.Warn("api token quota exceeded", slog.String("owner_id", owner.ID))
		return domain.APIToken{}, "", ErrQuotaExceeded
	}
	if err != nil {
		log.Error("failed to create api token", slog.Any("error", err))
		return domain.APIToken{}, "", fmt.Errorf("issue api token: %w", err)
	}

	// 5. Side effects, after commit
	s.Audit.Record(ctx, audit.Event{
		PrincipalID: owner.ID,
		Action:      "api_token.issue",
		ObjectType:  "api_token",
		ObjectID:    tok.ID,
		IPHash:      s.Pepper.HashIP(info.IP),
		Status:      audit.StatusSuccess,
		Metadata:    map[string]any{"scope": string(scope), "client_name": name},
	})
	s.Notifier.Dispatch(ctx, "created", map[string]any{
		"id":    tok.ID,
		"token": raw,
	})

	log.Info("api token issued",
		slog.String("token_id", tok.ID),
		slog.String("owner_id", owner.ID),
		slog.String("scope", string(scope)),
	)
	return tok, raw, nil
}

// Authenticate resolves a presented bearer token to its owner. It runs on
// every authenticated request: one digest lookup, one owner read, one rule
// read and the limiter windows.
func (s *APITokenService) Authenticate(ctx context.Context, raw string, info RequestInfo) (domain.Principal, domain.APIToken, error) {
	defer s.observe(time.Now())
	log := slogx.FromContext(ctx)
	now := s.Clock.now()

	// 1. Resolve the token
	if !cryptox.LooksLikeAPIToken(raw) {
		return s.reject("malformed")
	}
	tok, err := s.Store.APITokens().GetActiveAPITokenByHash(ctx, cryptox.HashBearerToken(raw))
	if errors.Is(err, store.ErrNotFound) {
		return s.reject("not_found")
	}
	if err != nil {
		log.Error("failed to look up api token", slog.Any("error", err))
		return domain.Principal{}, domain.APIToken{}, fmt.Errorf("look up api token: %w", err)
	}

	// 2. Expiry, owner and device binding
	if tok.Expired(now) {
		return s.reject("expired")
	}
	if tok.OwnerID == "" {
		return s.reject("disabled")
	}
	owner, err := s.Store.Principals().GetPrincipal(ctx, tok.OwnerID)
	if errors.Is(err, store.ErrNotFound) {
		return s.reject("owner_missing")
	}
	if err != nil {
		log.Error("failed to load api token owner", slog.Any("error", err))
		return domain.Principal{}, domain.APIToken{}, fmt.Errorf("load owner: %w", err)
	}
	if !owner.Active {
		return s.reject("owner_inactive")
	}
	if tok.DeviceFingerprint != "" &&
		subtle.ConstantTimeCompare([]byte(tok.DeviceFingerprint), []byte(info.Fingerprint)) != 1 {
		return s.reject("fingerprint")
	}

	// 3. IP rules
	rules, err := s.Store.IPRules().ListIPRulesByToken(ctx, tok.ID)
	if err != nil {
		log.Error("failed to load ip rules", slog.Any("error", err))
		return domain.Principal{}, domain.APIToken{}, fmt.Errorf("load ip rules: %w", err)
	}
	if !ipPermitted(rules, info.IP) {
		s.Metrics.ValidationFail.WithLabelValues("api_token", "ip").Inc()
		log.Warn("api token presented from a blocked address", slog.String("token_id", tok.ID))
		return domain.Principal{}, domain.APIToken{}, ErrForbidden
	}

	// 4. Rate limit by token and by owner
	if s.Limiter != nil {
		for _, key := range []string{"auth:token:" + tok.ID, "auth:owner:" + owner.ID} {
			if ok, retry := s.Limiter.Allow(ctx, key); !ok {
				s.Metrics.RateLimited.WithLabelValues("auth").Inc()
				s.Audit.Record(ctx, audit.Event{
					PrincipalID: owner.ID,
					Action:      "api_token.authenticate",
					ObjectType:  "api_token",
					ObjectID:    tok.ID,
					IPHash:      s.Pepper.HashIP(info.IP),
					Status:      audit.StatusFailure,
					Metadata:    map[string]any{"reason": "rate_limited"},
				})
				return domain.Principal{}, domain.APIToken{}, &RateLimitedError{RetryAfter: retry}
			}
		}
	}

	// 5. Record use
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.APITokens().TouchAPIToken(ctx, tok.ID, now); err != nil {
			return err
		}
		return tx.UsageLogs().AppendUsage(ctx, usage(domain.KindAPIToken, tok.ID, owner.ID, domain.ActionUse, info, now))
	})
	if err != nil {
		log.Error("failed to record api token use", slog.Any("error", err))
		return domain.Principal{}, domain.APIToken{}, fmt.Errorf("record api token use: %w", err)
	}
	tok.LastUsedAt = &now

	s.Metrics.APITokensUsed.Inc()
	return owner, tok, nil
}

// RevokeAPIToken revokes and soft-deletes a token. A second call returns
// false and leaves no trace.
func (s *APITokenService) RevokeAPIToken(ctx context.Context, actor domain.Principal, id string, info RequestInfo) (bool, error) {
	log := slogx.FromContext(ctx)
	now := s.Clock.now()

	var revoked bool
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		tok, err := tx.APITokens().GetAPITokenByIDIncludingDeleted(ctx, id)
		if err != nil {
			return err
		}
		if !canManage(actor, tok) {
			return store.ErrNotFound
		}
		if tok.RevokedAt != nil {
			return nil
		}

		revoked, err = tx.APITokens().RevokeAPIToken(ctx, id, actor.ID, now)
		if err != nil || !revoked {
			return err
		}
		return tx.UsageLogs().AppendUsage(ctx, usage(domain.KindAPIToken, id, actor.ID, domain.ActionRevoke, info, now))
	})
	if err != nil {
		return false, s.storeErr(ctx, "revoke api token", err)
	}
	if !revoked {
		log.Debug("api token already revoked", slog.String("token_id", id))
		return false, nil
	}

	s.Audit.Record(ctx, audit.Event{
		PrincipalID: actor.ID,
		Action:      "api_token.revoke",
		ObjectType:  "api_token",
		ObjectID:    id,
		IPHash:      s.Pepper.HashIP(info.IP),
		Status:      audit.StatusSuccess,
	})
	s.Notifier.Dispatch(ctx, "revoked", map[string]any{"id": id})

	log.Info("api token revoked", slog.String("token_id", id), slog.String("revoked_by", actor.ID))
	return true, nil
}

// RotateAPIToken issues a successor for id and revokes id in the same
// transaction. The successor keeps owner, scope, client name, fingerprint,
// IP rules and the remaining lifetime. Rotation is not counted against the
// daily quota.
func (s *APITokenService) RotateAPIToken(ctx context.Context, actor domain.Principal, id string, info RequestInfo) (domain.APIToken, string, error) {
	log := slogx.FromContext(ctx)
	now := s.Clock.now()

	raw, digest, err := cryptox.IssueBearerToken()
	if err != nil {
		log.Error("failed to generate api token", slog.Any("error", err))
		return domain.APIToken{}, "", err
	}

	var (
		next    domain.APIToken
		outcome error
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		// 1. The original must be live; a revoked one is a conflict, not a miss
		prev, err := tx.APITokens().GetAPITokenByIDIncludingDeleted(ctx, id)
		if err != nil {
			return err
		}
		if !canManage(actor, prev) {
			return store.ErrNotFound
		}
		if !prev.Live(now) {
			outcome = &ConflictError{State: tokenState(prev, now)}
			return nil
		}

		// 2. Successor
		next = domain.APIToken{
			ID:                uuid.NewString(),
			OwnerID:           prev.OwnerID,
			TokenHash:         digest,
			HashScheme:        string(cryptox.SchemeBearerSHA256),
			ClientName:        prev.ClientName,
			Scope:             prev.Scope,
			ExpiresAt:         prev.ExpiresAt,
			DeviceFingerprint: prev.DeviceFingerprint,
			PredecessorID:     prev.ID,
			CreatedAt:         now,
		}
		if err := tx.APITokens().CreateAPIToken(ctx, next); err != nil {
			return err
		}
		rules, err := tx.IPRules().ListIPRulesByToken(ctx, prev.ID)
		if err != nil {
			return err
		}
		for _, r := range rules {
			if err := tx.IPRules().CreateIPRule(ctx, domain.IPRule{
				ID:        idx.NewAt(now).String(),
				TokenID:   next.ID,
				IP:        r.IP,
				Kind:      r.Kind,
				CreatedAt: now,
			}); err != nil {
				return err
			}
		}

		// 3. Revoke the original; losing here means a concurrent revoke
		won, err := tx.APITokens().RevokeAPIToken(ctx, prev.ID, actor.ID, now)
		if err != nil {
			return err
		}
		if !won {
			return &ConflictError{State: "revoked"}
		}

		if err := tx.UsageLogs().AppendUsage(ctx, usage(domain.KindAPIToken, prev.ID, actor.ID, domain.ActionRotate, info, now)); err != nil {
			return err
		}
		return tx.UsageLogs().AppendUsage(ctx, usage(domain.KindAPIToken, next.ID, actor.ID, domain.ActionIssue, info, now))
	})
	if err == nil {
		err = outcome
	}
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			return domain.APIToken{}, "", conflict
		}
		return domain.APIToken{}, "", s.storeErr(ctx, "rotate api token", err)
	}

	s.Audit.Record(ctx, audit.Event{
		PrincipalID: actor.ID,
		Action:      "api_token.rotate",
		ObjectType:  "api_token",
		ObjectID:    next.ID,
		IPHash:      s.Pepper.HashIP(info.IP),
		Status:      audit.StatusSuccess,
		Metadata:    map[string]any{"predecessor": id},
	})
	s.Notifier.Dispatch(ctx, "rotated", map[string]any{
		"id":          next.ID,
		"predecessor": id,
		"token":       raw,
	})

	log.Info("api token rotated",
		slog.String("token_id", next.ID),
		slog.String("predecessor_id", id),
	)
	return next, raw, nil
}

// ListAPITokens returns the owner's undeleted tokens, newest first.
func (s *APITokenService) ListAPITokens(ctx context.Context, owner domain.Principal) ([]domain.APIToken, error) {
	toks, err := s.Store.APITokens().ListAPITokensByOwner(ctx, owner.ID)
	if err != nil {
		return nil, s.storeErr(ctx, "list api tokens", err)
	}
	return toks, nil
}

func (s *APITokenService) ListIPRules(ctx context.Context, actor domain.Principal, tokenID string) ([]domain.IPRule, error) {
	if _, err := s.managed(ctx, actor, tokenID); err != nil {
		return nil, err
	}
	rules, err := s.Store.IPRules().ListIPRulesByToken(ctx, tokenID)
	if err != nil {
		return nil, s.storeErr(ctx, "list ip rules", err)
	}
	return rules, nil
}

// AddIPRule attaches an ALLOW or DENY rule for a single address or a CIDR
// block. Addresses are stored in canonical form.
func (s *APITokenService) AddIPRule(ctx context.Context, actor domain.Principal, tokenID, ip string, kind domain.IPRuleKind) (domain.IPRule, error) {
	if !kind.Valid() {
		return domain.IPRule{}, invalid("kind", "must be allow or deny")
	}
	canonical, ok := canonicalIP(ip)
	if !ok {
		return domain.IPRule{}, invalid("ip", "not an address or CIDR block")
	}
	if _, err := s.managed(ctx, actor, tokenID); err != nil {
		return domain.IPRule{}, err
	}

	now := s.Clock.now()
	rule := domain.IPRule{
		ID:        idx.NewAt(now).String(),
		TokenID:   tokenID,
		IP:        canonical,
		Kind:      kind,
		CreatedAt: now,
	}
	if err := s.Store.IPRules().CreateIPRule(ctx, rule); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.IPRule{}, &ConflictError{State: "already restricted"}
		}
		return domain.IPRule{}, s.storeErr(ctx, "create ip rule", err)
	}

	slogx.FromContext(ctx).Info("api token ip rule added",
		slog.String("token_id", tokenID),
		slog.String("kind", string(kind)),
	)
	return rule, nil
}

func (s *APITokenService) DeleteIPRule(ctx context.Context, actor domain.Principal, tokenID, ruleID string) error {
	if _, err := s.managed(ctx, actor, tokenID); err != nil {
		return err
	}
	deleted, err := s.Store.IPRules().DeleteIPRule(ctx, tokenID, ruleID)
	if err != nil {
		return s.storeErr(ctx, "delete ip rule", err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// managed loads a live token the actor may administer.
func (s *APITokenService) managed(ctx context.Context, actor domain.Principal, id string) (domain.APIToken, error) {
	tok, err := s.Store.APITokens().GetAPITokenByID(ctx, id)
	if err != nil {
		return domain.APIToken{}, s.storeErr(ctx, "get api token", err)
	}
	if !canManage(actor, tok) {
		return domain.APIToken{}, ErrNotFound
	}
	return tok, nil
}

func (s *APITokenService) reject(reason string) (domain.Principal, domain.APIToken, error) {
	s.Metrics.ValidationFail.WithLabelValues("api_token", reason).Inc()
	return domain.Principal{}, domain.APIToken{}, ErrUnauthorized
}

func (s *APITokenService) storeErr(ctx context.Context, op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	slogx.FromContext(ctx).Error("api token store failure", slog.String("op", op), slog.Any("error", err))
	return fmt.Errorf("%s: %w", op, err)
}

func (s *APITokenService) observe(start time.Time) {
	s.Metrics.ValidationLatency.WithLabelValues("api_token").Observe(time.Since(start).Seconds())
}

// canManage: owners manage their own tokens, superusers manage any.
func canManage(actor domain.Principal, tok domain.APIToken) bool {
	return actor.Superuser || (actor.ID != "" && actor.ID == tok.OwnerID)
}

func tokenState(t domain.APIToken, now time.Time) string {
	switch {
	case t.RevokedAt != nil || t.DeletedAt != nil:
		return "revoked"
	case t.Expired(now):
		return "expired"
	}
	return "active"
}

// ipPermitted applies the token's rules to ip. A matching DENY always wins;
// otherwise any ALLOW rule turns the list into an allowlist.
func ipPermitted(rules []domain.IPRule, ip string) bool {
	if len(rules) == 0 {
		return true
	}
	addr, err := netip.ParseAddr(ip)
	valid := err == nil
	addr = addr.Unmap()

	hasAllow, allowed := false, false
	for _, r := range rules {
		match := valid && ipMatches(r.IP, addr)
		switch r.Kind {
		case domain.IPDeny:
			if match {
				return false
			}
		case domain.IPAllow:
			hasAllow = true
			allowed = allowed || match
		}
	}
	return !hasAllow || allowed
}

func ipMatches(rule string, addr netip.Addr) bool {
	if strings.Contains(rule, "/") {
		p, err := netip.ParsePrefix(rule)
		return err == nil && p.Contains(addr)
	}
	r, err := netip.ParseAddr(rule)
	return err == nil && r.Unmap() == addr
}

func canonicalIP(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return "", false
		}
		return p.Masked().String(), true
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}
