package domain

// Principal is the authenticated actor, as published by the accounts
// subsystem. Only the fields this service needs are mirrored.
type Principal struct {
	ID             string
	Role           Role
	OrganizationID string
	Active         bool
	Superuser      bool
}

// IsAdmin reports whether p may perform administrative credential actions.
func (p Principal) IsAdmin() bool {
	return p.Superuser || p.Role == RoleRoot || p.Role == RoleAdmin
}
