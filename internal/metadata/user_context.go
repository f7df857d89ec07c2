package metadata

// AdminRole is the built-in role that bypasses action and module permission
// checks. It is seeded at bootstrap and cannot be deleted.
const AdminRole = "admin"

// UserContext represents the authenticated principal, set by auth middleware.
// Roles holds role names as resolved from _user_roles at login time; the
// permission resolver matches them against grants loaded into the registry.
type UserContext struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

// HasRole checks whether the user has a specific role.
func (u *UserContext) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin checks whether the user has the admin role.
func (u *UserContext) IsAdmin() bool {
	return u.HasRole(AdminRole)
}
