package service

import (
	"slices"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
)

// Policy maps an invite's target role to the issuer roles allowed to mint
// it. It is authoritative: a role missing from the table cannot be issued,
// whatever the role enum allows.
type Policy map[domain.Role][]domain.Role

// DefaultPolicy only permits GUEST invites, minted by ROOT, ADMIN or
// COORDINATOR.
func DefaultPolicy() Policy {
	return Policy{
		domain.RoleGuest: {domain.RoleRoot, domain.RoleAdmin, domain.RoleCoordinator},
	}
}

// Allows reports whether issuer may mint an invite for target. Nobody can
// mint a peer or a superior role, even if the table says otherwise.
func (p Policy) Allows(issuer domain.Principal, target domain.Role) bool {
	allowed, ok := p[target]
	if !ok || !issuer.Active {
		return false
	}
	if !issuer.Role.Outranks(target) {
		return false
	}
	return slices.Contains(allowed, issuer.Role)
}
