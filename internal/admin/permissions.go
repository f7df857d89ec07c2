package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"flexbase-backend/internal/apperr"
	"flexbase-backend/internal/metadata"
	"flexbase-backend/internal/store"
)

// --- Roles ---

func (h *Handler) ListRoles(c *fiber.Ctx) error {
	rows, err := h.store.DB.QueryContext(c.Context(),
		"SELECT id, name, display_name FROM _roles ORDER BY name")
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	roles := []metadata.Role{}
	for rows.Next() {
		var r metadata.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.DisplayName); err != nil {
			return fmt.Errorf("scan role row: %w", err)
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": roles})
}

func (h *Handler) CreateRole(c *fiber.Ctx) error {
	var role metadata.Role
	if err := c.BodyParser(&role); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	if role.Name == "" {
		return apperr.Validation("role name is required")
	}
	if role.DisplayName == "" {
		role.DisplayName = role.Name
	}

	role.ID = uuid.New().String()
	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO _roles (id, name, display_name, created_at) VALUES (%s, %s, %s, %s)",
		pb.Add(role.ID), pb.Add(role.Name), pb.Add(role.DisplayName), pb.Add(store.FormatTime(time.Now())))
	if _, err := h.store.DB.ExecContext(c.Context(), sqlStr, pb.Params()...); err != nil {
		if errors.Is(h.store.Dialect.MapError(err), store.ErrUniqueViolation) {
			return apperr.New("CONFLICT", 409, "Role already exists: "+role.Name)
		}
		return fmt.Errorf("insert role: %w", err)
	}

	if err := h.reload(c); err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"data": role})
}

// DeleteRole removes a role and, via cascade, its grants and assignments.
// The built-in admin role is not deletable.
func (h *Handler) DeleteRole(c *fiber.Ctx) error {
	name := c.Params("name")
	if name == metadata.AdminRole {
		return apperr.Validation("the admin role cannot be deleted")
	}

	role, err := h.roleByName(c.Context(), name)
	if err != nil {
		return err
	}

	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM _roles WHERE id = %s", pb.Add(role.ID))
	if _, err := store.Exec(c.Context(), h.store.DB, sqlStr, pb.Params()...); err != nil {
		return err
	}

	if err := h.reload(c); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": role.ID}})
}

// --- Action permissions ---

func (h *Handler) GrantAction(c *fiber.Ctx) error {
	role, err := h.roleByName(c.Context(), c.Params("name"))
	if err != nil {
		return err
	}

	var body struct {
		Action string `json:"action"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	if body.Action == "" {
		return apperr.Validation("action is required")
	}

	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO _permissions (id, role_id, action, created_at) VALUES (%s, %s, %s, %s) ON CONFLICT (role_id, action) DO NOTHING",
		pb.Add(uuid.New().String()), pb.Add(role.ID), pb.Add(body.Action), pb.Add(store.FormatTime(time.Now())))
	if _, err := h.store.DB.ExecContext(c.Context(), sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("grant action: %w", err)
	}

	if err := h.reload(c); err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"data": fiber.Map{"role": role.Name, "action": body.Action}})
}

func (h *Handler) RevokeAction(c *fiber.Ctx) error {
	role, err := h.roleByName(c.Context(), c.Params("name"))
	if err != nil {
		return err
	}

	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM _permissions WHERE role_id = %s AND action = %s",
		pb.Add(role.ID), pb.Add(c.Params("action")))
	n, err := store.Exec(c.Context(), h.store.DB, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("action permission", c.Params("action"))
	}

	if err := h.reload(c); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"role": role.Name, "action": c.Params("action")}})
}

// --- Module permission grants ---

func (h *Handler) ListModuleGrants(c *fiber.Ctx) error {
	role, err := h.roleByName(c.Context(), c.Params("name"))
	if err != nil {
		return err
	}

	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"SELECT id, module_id, object_type_id, can_read, can_write, can_delete FROM _module_permissions WHERE role_id = %s ORDER BY created_at",
		pb.Add(role.ID))
	rows, err := h.store.DB.QueryContext(c.Context(), sqlStr, pb.Params()...)
	if err != nil {
		return fmt.Errorf("list module grants: %w", err)
	}
	defer rows.Close()

	grants := []fiber.Map{}
	for rows.Next() {
		var id string
		var moduleID, objectTypeID sql.NullString
		var canRead, canWrite, canDelete bool
		if err := rows.Scan(&id, &moduleID, &objectTypeID, &canRead, &canWrite, &canDelete); err != nil {
			return fmt.Errorf("scan module grant row: %w", err)
		}
		grants = append(grants, fiber.Map{
			"id":             id,
			"role":           role.Name,
			"module_id":      nullString(moduleID),
			"object_type_id": nullString(objectTypeID),
			"can_read":       canRead,
			"can_write":      canWrite,
			"can_delete":     canDelete,
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": grants})
}

// CreateModuleGrant records a scoped capability grant. A null module_id or
// object_type_id in the body means the wildcard scope.
func (h *Handler) CreateModuleGrant(c *fiber.Ctx) error {
	role, err := h.roleByName(c.Context(), c.Params("name"))
	if err != nil {
		return err
	}

	var body struct {
		ModuleID     *string `json:"module_id"`
		ObjectTypeID *string `json:"object_type_id"`
		CanRead      bool    `json:"can_read"`
		CanWrite     bool    `json:"can_write"`
		CanDelete    bool    `json:"can_delete"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	if body.ModuleID != nil && h.registry.GetModule(*body.ModuleID) == nil {
		return apperr.NotFound("module", *body.ModuleID)
	}
	if body.ObjectTypeID != nil && h.registry.GetObjectType(*body.ObjectTypeID) == nil {
		return apperr.NotFound("object type", *body.ObjectTypeID)
	}

	id := uuid.New().String()
	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO _module_permissions (id, role_id, module_id, object_type_id, can_read, can_write, can_delete, created_at) VALUES (%s, %s, %s, %s, %s, %s, %s, %s)",
		pb.Add(id), pb.Add(role.ID), pb.Add(nullablePtr(body.ModuleID)), pb.Add(nullablePtr(body.ObjectTypeID)),
		pb.Add(body.CanRead), pb.Add(body.CanWrite), pb.Add(body.CanDelete), pb.Add(store.FormatTime(time.Now())))
	if _, err := h.store.DB.ExecContext(c.Context(), sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("insert module grant: %w", err)
	}

	if err := h.reload(c); err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"data": fiber.Map{"id": id}})
}

func (h *Handler) DeleteModuleGrant(c *fiber.Ctx) error {
	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM _module_permissions WHERE id = %s", pb.Add(c.Params("id")))
	n, err := store.Exec(c.Context(), h.store.DB, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("module grant", c.Params("id"))
	}

	if err := h.reload(c); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id")}})
}

func (h *Handler) roleByName(ctx context.Context, name string) (*metadata.Role, error) {
	pb := h.store.Dialect.NewParamBuilder()
	var role metadata.Role
	err := h.store.DB.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id, name, display_name FROM _roles WHERE name = %s", pb.Add(name)),
		pb.Params()...,
	).Scan(&role.ID, &role.Name, &role.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("role", name)
	}
	if err != nil {
		return nil, fmt.Errorf("look up role: %w", err)
	}
	return &role, nil
}

func nullString(s sql.NullString) any {
	if !s.Valid {
		return nil
	}
	return s.String
}

func nullablePtr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
