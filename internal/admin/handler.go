package admin

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"flexbase-backend/internal/apperr"
	"flexbase-backend/internal/metadata"
	"flexbase-backend/internal/store"
)

// Handler exposes the schema-administration endpoints: modules, object types
// and their composition, roles and permission grants. Every mutation reloads
// the registry so running evaluations pick up the new schema atomically.
type Handler struct {
	store    *store.Store
	registry *metadata.Registry
	objects  *store.Objects
}

func NewHandler(s *store.Store, reg *metadata.Registry, objects *store.Objects) *Handler {
	return &Handler{store: s, registry: reg, objects: objects}
}

func RegisterRoutes(app *fiber.App, h *Handler, authRequired, adminOnly fiber.Handler) {
	grp := app.Group("/api/_admin", authRequired, adminOnly)

	grp.Get("/modules", h.ListModules)
	grp.Get("/modules/:name", h.GetModule)
	grp.Post("/modules", h.CreateModule)
	grp.Put("/modules/:name", h.UpdateModule)
	grp.Delete("/modules/:name", h.DeleteModule)

	grp.Get("/types", h.ListTypes)
	grp.Get("/types/:name", h.GetType)
	grp.Post("/types", h.CreateType)
	grp.Put("/types/:name", h.UpdateType)
	grp.Delete("/types/:name", h.DeleteType)

	grp.Post("/types/:name/modules", h.AttachModule)
	grp.Put("/types/:name/modules/:module", h.UpdateAttachment)
	grp.Delete("/types/:name/modules/:module", h.DetachModule)

	grp.Get("/roles", h.ListRoles)
	grp.Post("/roles", h.CreateRole)
	grp.Delete("/roles/:name", h.DeleteRole)
	grp.Post("/roles/:name/actions", h.GrantAction)
	grp.Delete("/roles/:name/actions/:action", h.RevokeAction)
	grp.Get("/roles/:name/module-permissions", h.ListModuleGrants)
	grp.Post("/roles/:name/module-permissions", h.CreateModuleGrant)
	grp.Delete("/module-permissions/:id", h.DeleteModuleGrant)
}

// --- Modules ---

func (h *Handler) ListModules(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.registry.AllModules()})
}

func (h *Handler) GetModule(c *fiber.Ctx) error {
	module := h.registry.GetModuleByName(c.Params("name"))
	if module == nil {
		return apperr.NotFound("module", c.Params("name"))
	}
	return c.JSON(fiber.Map{"data": module})
}

func (h *Handler) CreateModule(c *fiber.Ctx) error {
	var module metadata.Module
	if err := c.BodyParser(&module); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	if err := module.Validate(); err != nil {
		return apperr.Validation(err.Error())
	}
	if h.registry.GetModuleByName(module.Name) != nil {
		return apperr.New("CONFLICT", 409, "Module already exists: "+module.Name)
	}

	module.ID = uuid.New().String()
	module.IsActive = true
	schemaJSON, err := json.Marshal(module.Schema)
	if err != nil {
		return fmt.Errorf("encode module schema: %w", err)
	}

	now := store.FormatTime(time.Now())
	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO _modules (id, name, display_name, schema, is_active, created_at, updated_at) VALUES (%s, %s, %s, %s, %s, %s, %s)",
		pb.Add(module.ID), pb.Add(module.Name), pb.Add(module.DisplayName),
		pb.Add(string(schemaJSON)), pb.Add(true), pb.Add(now), pb.Add(now))
	if _, err := h.store.DB.ExecContext(c.Context(), sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("insert module: %w", err)
	}

	if err := h.reload(c); err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"data": module})
}

func (h *Handler) UpdateModule(c *fiber.Ctx) error {
	existing := h.registry.GetModuleByName(c.Params("name"))
	if existing == nil {
		return apperr.NotFound("module", c.Params("name"))
	}

	var module metadata.Module
	if err := c.BodyParser(&module); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	module.ID = existing.ID
	module.Name = existing.Name
	if err := module.Validate(); err != nil {
		return apperr.Validation(err.Error())
	}

	schemaJSON, err := json.Marshal(module.Schema)
	if err != nil {
		return fmt.Errorf("encode module schema: %w", err)
	}

	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"UPDATE _modules SET display_name = %s, schema = %s, is_active = %s, updated_at = %s WHERE id = %s",
		pb.Add(module.DisplayName), pb.Add(string(schemaJSON)), pb.Add(module.IsActive),
		pb.Add(store.FormatTime(time.Now())), pb.Add(existing.ID))
	if _, err := store.Exec(c.Context(), h.store.DB, sqlStr, pb.Params()...); err != nil {
		return err
	}

	if err := h.reload(c); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": module})
}

// DeleteModule refuses while any object still carries data for the module;
// schema and data never go out of sync by a delete.
func (h *Handler) DeleteModule(c *fiber.Ctx) error {
	module := h.registry.GetModuleByName(c.Params("name"))
	if module == nil {
		return apperr.NotFound("module", c.Params("name"))
	}

	count, err := h.objects.CountModuleData(c.Context(), "", module.ID)
	if err != nil {
		return fmt.Errorf("count module data: %w", err)
	}
	if count > 0 {
		return apperr.New("MODULE_IN_USE", 409,
			fmt.Sprintf("module %s has data on %d objects", module.Name, count))
	}

	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM _modules WHERE id = %s", pb.Add(module.ID))
	if _, err := store.Exec(c.Context(), h.store.DB, sqlStr, pb.Params()...); err != nil {
		return err
	}

	if err := h.reload(c); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": module.ID}})
}

// --- Object types ---

func (h *Handler) ListTypes(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.registry.AllObjectTypes()})
}

func (h *Handler) GetType(c *fiber.Ctx) error {
	objectType := h.registry.GetObjectTypeByName(c.Params("name"))
	if objectType == nil {
		return apperr.NotFound("object type", c.Params("name"))
	}
	return c.JSON(fiber.Map{
		"data":    objectType,
		"modules": h.registry.Composition(objectType.ID),
	})
}

func (h *Handler) CreateType(c *fiber.Ctx) error {
	var objectType metadata.ObjectType
	if err := c.BodyParser(&objectType); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	if objectType.Name == "" {
		return apperr.Validation("object type name is required")
	}
	if h.registry.GetObjectTypeByName(objectType.Name) != nil {
		return apperr.New("CONFLICT", 409, "Object type already exists: "+objectType.Name)
	}

	objectType.ID = uuid.New().String()
	objectType.IsActive = true
	now := store.FormatTime(time.Now())
	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO _object_types (id, name, display_name, icon, color, is_active, created_at, updated_at) VALUES (%s, %s, %s, %s, %s, %s, %s, %s)",
		pb.Add(objectType.ID), pb.Add(objectType.Name), pb.Add(objectType.DisplayName),
		pb.Add(objectType.Icon), pb.Add(objectType.Color), pb.Add(true), pb.Add(now), pb.Add(now))
	if _, err := h.store.DB.ExecContext(c.Context(), sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("insert object type: %w", err)
	}

	if err := h.reload(c); err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"data": objectType})
}

func (h *Handler) UpdateType(c *fiber.Ctx) error {
	existing := h.registry.GetObjectTypeByName(c.Params("name"))
	if existing == nil {
		return apperr.NotFound("object type", c.Params("name"))
	}

	var objectType metadata.ObjectType
	if err := c.BodyParser(&objectType); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	objectType.ID = existing.ID
	objectType.Name = existing.Name

	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"UPDATE _object_types SET display_name = %s, icon = %s, color = %s, is_active = %s, updated_at = %s WHERE id = %s",
		pb.Add(objectType.DisplayName), pb.Add(objectType.Icon), pb.Add(objectType.Color),
		pb.Add(objectType.IsActive), pb.Add(store.FormatTime(time.Now())), pb.Add(existing.ID))
	if _, err := store.Exec(c.Context(), h.store.DB, sqlStr, pb.Params()...); err != nil {
		return err
	}

	if err := h.reload(c); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": objectType})
}

// DeleteType refuses while objects of the type exist.
func (h *Handler) DeleteType(c *fiber.Ctx) error {
	objectType := h.registry.GetObjectTypeByName(c.Params("name"))
	if objectType == nil {
		return apperr.NotFound("object type", c.Params("name"))
	}

	count, err := h.objects.CountObjectsOfType(c.Context(), objectType.ID)
	if err != nil {
		return fmt.Errorf("count objects: %w", err)
	}
	if count > 0 {
		return apperr.New("OBJECT_TYPE_IN_USE", 409,
			fmt.Sprintf("object type %s has %d objects", objectType.Name, count))
	}

	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM _object_types WHERE id = %s", pb.Add(objectType.ID))
	if _, err := store.Exec(c.Context(), h.store.DB, sqlStr, pb.Params()...); err != nil {
		return err
	}

	if err := h.reload(c); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": objectType.ID}})
}

// --- Composition ---

func (h *Handler) AttachModule(c *fiber.Ctx) error {
	objectType := h.registry.GetObjectTypeByName(c.Params("name"))
	if objectType == nil {
		return apperr.NotFound("object type", c.Params("name"))
	}

	var body struct {
		Module   string `json:"module"`
		Required bool   `json:"required"`
		Position int    `json:"position"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	module := h.registry.GetModuleByName(body.Module)
	if module == nil {
		return apperr.NotFound("module", body.Module)
	}
	for _, cm := range h.registry.Composition(objectType.ID) {
		if cm.Module.ID == module.ID {
			return apperr.New("CONFLICT", 409, "Module already attached: "+body.Module)
		}
	}

	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO _object_type_modules (object_type_id, module_id, required, position) VALUES (%s, %s, %s, %s)",
		pb.Add(objectType.ID), pb.Add(module.ID), pb.Add(body.Required), pb.Add(body.Position))
	if _, err := h.store.DB.ExecContext(c.Context(), sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("attach module: %w", err)
	}

	if err := h.reload(c); err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"data": fiber.Map{
		"object_type": objectType.Name,
		"module":      module.Name,
		"required":    body.Required,
		"position":    body.Position,
	}})
}

func (h *Handler) UpdateAttachment(c *fiber.Ctx) error {
	objectType, module, err := h.resolveAttachment(c)
	if err != nil {
		return err
	}

	var body struct {
		Required bool `json:"required"`
		Position int  `json:"position"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}

	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"UPDATE _object_type_modules SET required = %s, position = %s WHERE object_type_id = %s AND module_id = %s",
		pb.Add(body.Required), pb.Add(body.Position), pb.Add(objectType.ID), pb.Add(module.ID))
	n, err := store.Exec(c.Context(), h.store.DB, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("attachment", c.Params("module"))
	}

	if err := h.reload(c); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"object_type": objectType.Name,
		"module":      module.Name,
		"required":    body.Required,
		"position":    body.Position,
	}})
}

// DetachModule removes a module from a type's composition. A required module
// stays attached while objects of the type carry its data; optional modules
// detach freely, their orphaned blobs are ignored by evaluation and survive a
// later re-attach.
func (h *Handler) DetachModule(c *fiber.Ctx) error {
	objectType, module, err := h.resolveAttachment(c)
	if err != nil {
		return err
	}

	required := false
	for _, cm := range h.registry.Composition(objectType.ID) {
		if cm.Module.ID == module.ID {
			required = cm.Required
		}
	}
	if required {
		count, err := h.objects.CountModuleData(c.Context(), objectType.ID, module.ID)
		if err != nil {
			return fmt.Errorf("count module data: %w", err)
		}
		if count > 0 {
			return apperr.New("MODULE_IN_USE", 409,
				fmt.Sprintf("module %s is required and has data on %d objects", module.Name, count))
		}
	}

	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"DELETE FROM _object_type_modules WHERE object_type_id = %s AND module_id = %s",
		pb.Add(objectType.ID), pb.Add(module.ID))
	n, err := store.Exec(c.Context(), h.store.DB, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("attachment", c.Params("module"))
	}

	if err := h.reload(c); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"object_type": objectType.Name,
		"module":      module.Name,
	}})
}

func (h *Handler) resolveAttachment(c *fiber.Ctx) (*metadata.ObjectType, *metadata.Module, error) {
	objectType := h.registry.GetObjectTypeByName(c.Params("name"))
	if objectType == nil {
		return nil, nil, apperr.NotFound("object type", c.Params("name"))
	}
	module := h.registry.GetModuleByName(c.Params("module"))
	if module == nil {
		return nil, nil, apperr.NotFound("module", c.Params("module"))
	}
	return objectType, module, nil
}

func (h *Handler) reload(c *fiber.Ctx) error {
	if err := metadata.Reload(c.Context(), h.store.DB, h.registry); err != nil {
		return fmt.Errorf("reload registry: %w", err)
	}
	return nil
}
