package metadata

// Role is a named bundle of grants. A user's effective permissions are the
// union over all assigned roles.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// ActionPermission grants a flat action string ("object:read",
// "object:update:own", ...) to a role.
type ActionPermission struct {
	RoleID string `json:"role_id"`
	Action string `json:"action"`
}

// ModulePermission is a scoped grant. A nil ModuleID or ObjectTypeID means
// "any module" / "any object type". Grants for the same scope across roles
// merge by logical OR per capability; grants at different scopes never blend
// (the most specific recorded scope wins outright).
type ModulePermission struct {
	RoleID       string  `json:"role_id"`
	ModuleID     *string `json:"module_id"`
	ObjectTypeID *string `json:"object_type_id"`
	CanRead      bool    `json:"can_read"`
	CanWrite     bool    `json:"can_write"`
	CanDelete    bool    `json:"can_delete"`
}
