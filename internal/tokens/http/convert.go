package http

import (
	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/aussiebroadwan/tokens/pkg/tokensdk"
)

func inviteResponse(inv domain.Invite, rawCode string) tokensdk.InviteResponse {
	return tokensdk.InviteResponse{
		ID:             inv.ID,
		Code:           rawCode,
		TargetRole:     string(inv.TargetRole),
		State:          string(inv.State),
		ExpiresAt:      inv.ExpiresAt,
		IssuerID:       inv.IssuerID,
		UsedBy:         inv.UsedBy,
		OrganizationID: inv.OrganizationID,
		RevokedAt:      inv.RevokedAt,
		RevokedBy:      inv.RevokedBy,
		CreatedAt:      inv.CreatedAt,
	}
}

func apiTokenResponse(t domain.APIToken, rawToken string) tokensdk.APITokenResponse {
	return tokensdk.APITokenResponse{
		ID:                t.ID,
		Token:             rawToken,
		OwnerID:           t.OwnerID,
		ClientName:        t.ClientName,
		Scope:             string(t.Scope),
		DeviceFingerprint: t.DeviceFingerprint,
		PredecessorID:     t.PredecessorID,
		ExpiresAt:         t.ExpiresAt,
		RevokedAt:         t.RevokedAt,
		LastUsedAt:        t.LastUsedAt,
		CreatedAt:         t.CreatedAt,
	}
}

func ipRuleResponse(r domain.IPRule) tokensdk.IPRuleResponse {
	return tokensdk.IPRuleResponse{
		ID:        r.ID,
		TokenID:   r.TokenID,
		IP:        r.IP,
		Kind:      string(r.Kind),
		CreatedAt: r.CreatedAt,
	}
}

func usageLogEntry(e domain.UsageEntry) tokensdk.UsageLogEntry {
	return tokensdk.UsageLogEntry{
		ID:          e.ID,
		TokenID:     e.TokenID,
		PrincipalID: e.PrincipalID,
		Action:      string(e.Action),
		IP:          e.IP,
		UserAgent:   e.UserAgent,
		CreatedAt:   e.CreatedAt,
	}
}
