package domain

// Role controls which endpoints a user may reach.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAgent || r == RoleUser
}

// IsStaff reports whether the role works tickets.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleAgent
}
