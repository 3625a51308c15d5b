package domain_test

import (
	"testing"

	"github.com/aussiebroadwan/tokens/internal/tokens/domain"
	"github.com/stretchr/testify/require"
)

func TestRoleOutranks(t *testing.T) {
	t.Parallel()

	require.True(t, domain.RoleRoot.Outranks(domain.RoleAdmin))
	require.True(t, domain.RoleCoordinator.Outranks(domain.RoleGuest))
	require.False(t, domain.RoleAdmin.Outranks(domain.RoleAdmin), "peers do not outrank each other")
	require.False(t, domain.RoleGuest.Outranks(domain.RoleRoot))
	require.False(t, domain.Role("ghost").Outranks(domain.RoleGuest))
	require.False(t, domain.Role("ghost").Valid())
}
