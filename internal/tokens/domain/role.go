package domain

// Role is a member role in the accounts subsystem.
type Role string

const (
	RoleRoot        Role = "root"
	RoleAdmin       Role = "admin"
	RoleCoordinator Role = "coordinator"
	RoleNucleated   Role = "nucleated"
	RoleAssociate   Role = "associate"
	RoleGuest       Role = "guest"
)

// rank orders roles from most to least privileged.
var rank = map[Role]int{
	RoleRoot:        0,
	RoleAdmin:       1,
	RoleCoordinator: 2,
	RoleNucleated:   3,
	RoleAssociate:   4,
	RoleGuest:       5,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := rank[r]
	return ok
}

// Outranks reports whether r is strictly more privileged than other.
func (r Role) Outranks(other Role) bool {
	a, ok := rank[r]
	if !ok {
		return false
	}
	b, ok := rank[other]
	if !ok {
		return false
	}
	return a < b
}
