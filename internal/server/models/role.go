package models

// Role is the closed set of principals the access guard distinguishes.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
)

// ParseRole maps a stored or claimed role name to a Role. Unknown names
// degrade to RoleAnonymous so they never grant privileges.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleUser:
		return RoleUser
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleAnonymous
	}
}

func (r Role) IsAdmin() bool { return r == RoleAdmin }
