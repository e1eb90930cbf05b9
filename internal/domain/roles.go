package domain

// Role identifies the kind of actor behind a session.
type Role string

const (
	RoleCitizen     Role = "citizen"
	RoleMP          Role = "mp"
	RoleLocalDeputy Role = "local_deputy"
	RoleAdmin       Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleMP, RoleLocalDeputy, RoleAdmin:
		return true
	}
	return false
}

// IsOfficial reports whether r is an MP or a local deputy.
func (r Role) IsOfficial() bool { return r == RoleMP || r == RoleLocalDeputy }
