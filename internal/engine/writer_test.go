package engine

import (
	"context"
	"testing"

	"flexbase-backend/internal/apperr"
	"flexbase-backend/internal/metadata"
	"flexbase-backend/internal/permission"
)

// memberService wires an ObjectService whose member role holds a wildcard
// read+write grant but no delete.
func memberService(s *stubStore) (*ObjectService, *metadata.Registry) {
	reg := testRegistry()
	reg.LoadGrants(
		[]metadata.ActionPermission{},
		[]metadata.ModulePermission{
			{RoleID: "member", CanRead: true, CanWrite: true},
		},
	)
	return NewObjectService(reg, s, permission.NewResolver(reg)), reg
}

func TestObjectCreate_OK(t *testing.T) {
	s := &stubStore{}
	svc, _ := memberService(s)

	obj, err := svc.Create(context.Background(), member("u1"), "type-deal", map[string]map[string]any{
		"core":     {"title": "Acme renewal", "status": "new"},
		"monetary": {"amount": 1200.0},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.ID == "" || obj.OwnerID != "u1" || obj.CreatedBy != "u1" {
		t.Fatalf("object identity = %+v", obj.Object)
	}
}

func TestObjectCreate_MissingRequiredModule(t *testing.T) {
	svc, _ := memberService(&stubStore{})

	_, err := svc.Create(context.Background(), member("u1"), "type-deal", map[string]map[string]any{
		"monetary": {"amount": 1200.0}, // core is required
	})
	var appErr *apperr.AppError
	if !asAppError(err, &appErr) || appErr.Code != "VALIDATION" {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
	if len(appErr.Details) != 1 || appErr.Details[0].Module != "core" || appErr.Details[0].Rule != "required" {
		t.Fatalf("details = %+v", appErr.Details)
	}
}

func TestObjectCreate_ModuleOutsideComposition(t *testing.T) {
	svc, _ := memberService(&stubStore{})

	_, err := svc.Create(context.Background(), member("u1"), "type-deal", map[string]map[string]any{
		"core":    {"title": "x"},
		"billing": {"iban": "DE00"},
	})
	var appErr *apperr.AppError
	if !asAppError(err, &appErr) || appErr.Code != "VALIDATION" {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
}

func TestObjectCreate_InvalidFieldValue(t *testing.T) {
	svc, _ := memberService(&stubStore{})

	_, err := svc.Create(context.Background(), member("u1"), "type-deal", map[string]map[string]any{
		"core": {"title": "x", "status": "archived"}, // undeclared option
	})
	var appErr *apperr.AppError
	if !asAppError(err, &appErr) || appErr.Code != "VALIDATION" {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
	if len(appErr.Details) != 1 || appErr.Details[0].Field != "status" {
		t.Fatalf("details = %+v", appErr.Details)
	}
}

func TestObjectCreate_WriteGrantRequired(t *testing.T) {
	reg := testRegistry()
	reg.LoadGrants(nil, []metadata.ModulePermission{
		{RoleID: "member", CanRead: true}, // read only
	})
	svc := NewObjectService(reg, &stubStore{}, permission.NewResolver(reg))

	_, err := svc.Create(context.Background(), member("u1"), "type-deal", map[string]map[string]any{
		"core": {"title": "x"},
	})
	var appErr *apperr.AppError
	if !asAppError(err, &appErr) || appErr.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestObjectDelete_NeedsDeleteGrant(t *testing.T) {
	s := &stubStore{}
	s.addObject(0, map[string]map[string]any{"core": {"title": "x"}})
	svc, _ := memberService(s)

	err := svc.Delete(context.Background(), member("u1"), "obj-00")
	var appErr *apperr.AppError
	if !asAppError(err, &appErr) || appErr.Code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN without delete grant, got %v", err)
	}

	admin := &metadata.UserContext{ID: "root", Roles: []string{"admin"}}
	if err := svc.Delete(context.Background(), admin, "obj-00"); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
}

func TestClearModule_RefusesRequiredModule(t *testing.T) {
	s := &stubStore{}
	s.addObject(0, map[string]map[string]any{
		"core":     {"title": "x"},
		"monetary": {"amount": 5.0},
	})
	svc, _ := memberService(s)
	admin := &metadata.UserContext{ID: "root", Roles: []string{"admin"}}

	err := svc.ClearModule(context.Background(), admin, "obj-00", "core")
	var appErr *apperr.AppError
	if !asAppError(err, &appErr) || appErr.Code != "VALIDATION" {
		t.Fatalf("expected VALIDATION for required module, got %v", err)
	}

	if err := svc.ClearModule(context.Background(), admin, "obj-00", "monetary"); err != nil {
		t.Fatalf("clearing an optional module failed: %v", err)
	}
}

func TestRelate_RejectsSelfAndUnknownObjects(t *testing.T) {
	s := &stubStore{}
	s.addObject(0, map[string]map[string]any{"core": {"title": "a"}})
	s.addObject(1, map[string]map[string]any{"core": {"title": "b"}})
	svc, _ := memberService(s)

	if _, err := svc.Relate(context.Background(), "obj-00", "obj-00", "", nil); err == nil {
		t.Fatal("expected error for self relation")
	}

	var appErr *apperr.AppError
	_, err := svc.Relate(context.Background(), "obj-00", "obj-99", "", nil)
	if !asAppError(err, &appErr) || appErr.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}

	rel, err := svc.Relate(context.Background(), "obj-00", "obj-01", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rel.RelationType != "related" {
		t.Fatalf("relation type defaulted to %q, want related", rel.RelationType)
	}
}

func TestRedact_StripsUnreadableModules(t *testing.T) {
	moduleID := "mod-monetary"
	reg := testRegistry()
	reg.LoadGrants(nil, []metadata.ModulePermission{
		{RoleID: "member", CanRead: true, CanWrite: true},       // wildcard
		{RoleID: "member", ModuleID: &moduleID, CanRead: false}, // specific deny
	})
	svc := NewObjectService(reg, &stubStore{}, permission.NewResolver(reg))

	obj := makeObject(0, map[string]map[string]any{
		"core":     {"title": "x"},
		"monetary": {"amount": 9.0},
	})
	svc.Redact(member("u1"), "type-deal", []*ObjectWithModules{obj})

	if _, ok := obj.Modules["monetary"]; ok {
		t.Fatal("specifically denied module must be stripped")
	}
	if _, ok := obj.Modules["core"]; !ok {
		t.Fatal("wildcard-readable module must stay")
	}
}
