// Package permission computes effective access for a principal: flat action
// permissions (set union across roles) and scoped module permissions with
// wildcard fallback.
package permission

import (
	"fmt"

	"flexbase-backend/internal/apperr"
	"flexbase-backend/internal/metadata"
)

// Access names one capability of a scoped grant.
type Access string

const (
	AccessRead   Access = "read"
	AccessWrite  Access = "write"
	AccessDelete Access = "delete"
)

// Capability is the resolved read/write/delete access for one
// (module, object type) scope.
type Capability struct {
	CanRead   bool `json:"can_read"`
	CanWrite  bool `json:"can_write"`
	CanDelete bool `json:"can_delete"`
}

// Allows reports whether the capability grants the given access.
func (c Capability) Allows(access Access) bool {
	switch access {
	case AccessRead:
		return c.CanRead
	case AccessWrite:
		return c.CanWrite
	case AccessDelete:
		return c.CanDelete
	default:
		return false
	}
}

// Source supplies a principal's grants. The metadata registry implements it.
type Source interface {
	ActionsForRoles(roles []string) map[string]bool
	ModuleGrantsForRoles(roles []string) []metadata.ModulePermission
}

type Resolver struct {
	src Source
}

func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// HasAction reports whether the principal holds the flat action permission.
// Admins hold every action.
func (r *Resolver) HasAction(user *metadata.UserContext, action string) bool {
	if user == nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	return r.src.ActionsForRoles(user.Roles)[action]
}

// RequireAction fails with UNAUTHORIZED when there is no principal and
// FORBIDDEN when the action is not granted.
func (r *Resolver) RequireAction(user *metadata.UserContext, action string) error {
	if user == nil {
		return apperr.Unauthorized("Authentication required")
	}
	if !r.HasAction(user, action) {
		return apperr.Forbidden(fmt.Sprintf("Missing permission: %s", action))
	}
	return nil
}

// ModulePermission resolves the principal's capability for the given module
// and object type. Admins get full access; an unauthenticated principal gets
// none. Otherwise the principal's grants are resolved through the scope
// cascade (see ResolveGrant).
func (r *Resolver) ModulePermission(user *metadata.UserContext, moduleID, objectTypeID string) Capability {
	if user == nil {
		return Capability{}
	}
	if user.IsAdmin() {
		return Capability{CanRead: true, CanWrite: true, CanDelete: true}
	}
	return ResolveGrant(r.src.ModuleGrantsForRoles(user.Roles), moduleID, objectTypeID)
}

// RequireModuleAccess fails with UNAUTHORIZED/FORBIDDEN when the resolved
// capability does not include the requested access.
func (r *Resolver) RequireModuleAccess(user *metadata.UserContext, moduleID, objectTypeID string, access Access) error {
	if user == nil {
		return apperr.Unauthorized("Authentication required")
	}
	if !r.ModulePermission(user, moduleID, objectTypeID).Allows(access) {
		return apperr.Forbidden(fmt.Sprintf("No %s access to this module", access))
	}
	return nil
}

// scopeKey identifies one scope level; empty string stands for the wildcard.
type scopeKey struct {
	moduleID     string
	objectTypeID string
}

// ResolveGrant resolves a capability from raw grants through the scope
// cascade: (module, type), (module, *), (*, type), (*, *). The first scope
// with ANY grant recorded wins outright; weaker wildcard scopes are never
// blended in once a more specific entry exists, so a narrow explicit deny is
// not diluted by a broad allow. Grants at the same scope across roles merge
// by logical OR per capability. No matching scope means no access.
//
// This is a pure function so the precedence rule is testable in isolation
// from any storage.
func ResolveGrant(grants []metadata.ModulePermission, moduleID, objectTypeID string) Capability {
	merged := make(map[scopeKey]*Capability)
	for _, g := range grants {
		key := scopeKey{}
		if g.ModuleID != nil {
			key.moduleID = *g.ModuleID
		}
		if g.ObjectTypeID != nil {
			key.objectTypeID = *g.ObjectTypeID
		}
		c := merged[key]
		if c == nil {
			c = &Capability{}
			merged[key] = c
		}
		c.CanRead = c.CanRead || g.CanRead
		c.CanWrite = c.CanWrite || g.CanWrite
		c.CanDelete = c.CanDelete || g.CanDelete
	}

	candidates := []scopeKey{
		{moduleID, objectTypeID},
		{moduleID, ""},
		{"", objectTypeID},
		{"", ""},
	}
	for _, key := range candidates {
		if c, ok := merged[key]; ok {
			return *c
		}
	}
	return Capability{}
}
