package metadata

import "testing"

func TestUserContextRoles(t *testing.T) {
	member := &UserContext{ID: "u1", Roles: []string{"member"}}
	if !member.HasRole("member") {
		t.Fatal("HasRole(member) = false")
	}
	if member.HasRole("analyst") {
		t.Fatal("HasRole(analyst) = true for member-only user")
	}
	if member.IsAdmin() {
		t.Fatal("member must not be admin")
	}

	admin := &UserContext{ID: "u2", Roles: []string{"member", AdminRole}}
	if !admin.IsAdmin() {
		t.Fatal("user carrying the admin role must be admin")
	}
}
