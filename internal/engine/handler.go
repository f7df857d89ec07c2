package engine

import (
	"github.com/gofiber/fiber/v2"

	"flexbase-backend/internal/apperr"
	"flexbase-backend/internal/metadata"
	"flexbase-backend/internal/permission"
)

type Handler struct {
	registry  *metadata.Registry
	evaluator *Evaluator
	views     *ViewService
	objects   *ObjectService
	perms     *permission.Resolver
}

func NewHandler(reg *metadata.Registry, evaluator *Evaluator, views *ViewService, objects *ObjectService, perms *permission.Resolver) *Handler {
	return &Handler{registry: reg, evaluator: evaluator, views: views, objects: objects, perms: perms}
}

// ListTypes handles GET /api/types
func (h *Handler) ListTypes(c *fiber.Ctx) error {
	if err := h.perms.RequireAction(getUser(c), "object:read"); err != nil {
		return err
	}
	types := h.registry.AllObjectTypes()
	out := make([]fiber.Map, 0, len(types))
	for _, t := range types {
		out = append(out, fiber.Map{
			"id":           t.ID,
			"name":         t.Name,
			"display_name": t.DisplayName,
			"icon":         t.Icon,
			"color":        t.Color,
			"modules":      h.registry.Composition(t.ID),
		})
	}
	return c.JSON(fiber.Map{"data": out})
}

// ListViews handles GET /api/types/:type/views
func (h *Handler) ListViews(c *fiber.Ctx) error {
	objectType, err := h.resolveType(c)
	if err != nil {
		return err
	}
	user := getUser(c)
	if err := h.perms.RequireAction(user, "view:read"); err != nil {
		return err
	}
	views, err := h.views.List(c.Context(), user, objectType.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": views})
}

// CreateView handles POST /api/types/:type/views
func (h *Handler) CreateView(c *fiber.Ctx) error {
	objectType, err := h.resolveType(c)
	if err != nil {
		return err
	}
	user := getUser(c)
	if err := h.perms.RequireAction(user, "view:create"); err != nil {
		return err
	}

	var view metadata.View
	if err := c.BodyParser(&view); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	view.ObjectTypeID = objectType.ID

	created, err := h.views.Create(c.Context(), user, view)
	if err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"data": created})
}

// GetView handles GET /api/views/:id
func (h *Handler) GetView(c *fiber.Ctx) error {
	if err := h.perms.RequireAction(getUser(c), "view:read"); err != nil {
		return err
	}
	view, err := h.views.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// UpdateView handles PUT /api/views/:id
func (h *Handler) UpdateView(c *fiber.Ctx) error {
	if err := h.perms.RequireAction(getUser(c), "view:update"); err != nil {
		return err
	}
	var view metadata.View
	if err := c.BodyParser(&view); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	updated, err := h.views.Update(c.Context(), c.Params("id"), view)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": updated})
}

// DeleteView handles DELETE /api/views/:id
func (h *Handler) DeleteView(c *fiber.Ctx) error {
	if err := h.perms.RequireAction(getUser(c), "view:delete"); err != nil {
		return err
	}
	if err := h.views.Delete(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id")}})
}

// EvaluateView handles GET /api/views/:id/results. Table views return one
// page of rows; kanban views return the page distributed into buckets.
func (h *Handler) EvaluateView(c *fiber.Ctx) error {
	user := getUser(c)
	if err := h.perms.RequireAction(user, "object:read"); err != nil {
		return err
	}
	view, err := h.views.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", 0)

	if view.LayoutType == metadata.LayoutKanban {
		result, err := h.evaluator.EvaluateKanban(c.Context(), view, page, pageSize)
		if err != nil {
			return err
		}
		for i := range result.Buckets {
			h.objects.Redact(user, view.ObjectTypeID, result.Buckets[i].Objects)
		}
		return c.JSON(fiber.Map{
			"data": result,
			"meta": fiber.Map{"page": page, "total": result.Total},
		})
	}

	result, err := h.evaluator.Evaluate(c.Context(), view, page, pageSize)
	if err != nil {
		return err
	}
	h.objects.Redact(user, view.ObjectTypeID, result.Objects)
	return c.JSON(fiber.Map{
		"data": result.Objects,
		"meta": fiber.Map{"page": page, "total": result.Total},
	})
}

// CreateObject handles POST /api/types/:type/objects
func (h *Handler) CreateObject(c *fiber.Ctx) error {
	objectType, err := h.resolveType(c)
	if err != nil {
		return err
	}
	user := getUser(c)
	if err := h.perms.RequireAction(user, "object:create"); err != nil {
		return err
	}

	var body struct {
		Modules map[string]map[string]any `json:"modules"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}

	obj, err := h.objects.Create(c.Context(), user, objectType.ID, body.Modules)
	if err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"data": obj})
}

// GetObject handles GET /api/objects/:id
func (h *Handler) GetObject(c *fiber.Ctx) error {
	user := getUser(c)
	if err := h.perms.RequireAction(user, "object:read"); err != nil {
		return err
	}

	obj, from, to, err := h.evaluator.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	h.objects.Redact(user, obj.ObjectTypeID, []*ObjectWithModules{obj})

	if from == nil {
		from = []metadata.ObjectRelation{}
	}
	if to == nil {
		to = []metadata.ObjectRelation{}
	}
	return c.JSON(fiber.Map{
		"data": obj,
		"relations": fiber.Map{
			"from": from,
			"to":   to,
		},
	})
}

// UpdateModule handles PUT /api/objects/:id/modules/:module
func (h *Handler) UpdateModule(c *fiber.Ctx) error {
	user := getUser(c)
	if err := h.perms.RequireAction(user, "object:update"); err != nil {
		return err
	}

	var data map[string]any
	if err := c.BodyParser(&data); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	if err := h.objects.UpdateModule(c.Context(), user, c.Params("id"), c.Params("module"), data); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id"), "module": c.Params("module")}})
}

// ClearModule handles DELETE /api/objects/:id/modules/:module
func (h *Handler) ClearModule(c *fiber.Ctx) error {
	user := getUser(c)
	if err := h.perms.RequireAction(user, "object:update"); err != nil {
		return err
	}
	if err := h.objects.ClearModule(c.Context(), user, c.Params("id"), c.Params("module")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id"), "module": c.Params("module")}})
}

// DeleteObject handles DELETE /api/objects/:id
func (h *Handler) DeleteObject(c *fiber.Ctx) error {
	user := getUser(c)
	if err := h.perms.RequireAction(user, "object:delete"); err != nil {
		return err
	}
	if err := h.objects.Delete(c.Context(), user, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id")}})
}

// CreateRelation handles POST /api/objects/:id/relations
func (h *Handler) CreateRelation(c *fiber.Ctx) error {
	user := getUser(c)
	if err := h.perms.RequireAction(user, "relation:create"); err != nil {
		return err
	}

	var body struct {
		ToObjectID   string         `json:"to_object_id"`
		RelationType string         `json:"relation_type"`
		Metadata     map[string]any `json:"metadata"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}
	if body.ToObjectID == "" {
		return apperr.Validation("to_object_id is required")
	}

	rel, err := h.objects.Relate(c.Context(), c.Params("id"), body.ToObjectID, body.RelationType, body.Metadata)
	if err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"data": rel})
}

// DeleteRelation handles DELETE /api/relations/:id
func (h *Handler) DeleteRelation(c *fiber.Ctx) error {
	user := getUser(c)
	if err := h.perms.RequireAction(user, "relation:delete"); err != nil {
		return err
	}
	if err := h.objects.Unrelate(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": c.Params("id")}})
}

// Aggregate handles GET /api/types/:type/aggregate?module=&field=&fn=
func (h *Handler) Aggregate(c *fiber.Ctx) error {
	objectType, err := h.resolveType(c)
	if err != nil {
		return err
	}
	user := getUser(c)
	if err := h.perms.RequireAction(user, "aggregate:read"); err != nil {
		return err
	}

	moduleName := c.Query("module")
	fieldKey := c.Query("field")
	fn := c.Query("fn", AggCount)
	if moduleName == "" || fieldKey == "" {
		return apperr.Validation("module and field query parameters are required")
	}
	if module := h.registry.GetModuleByName(moduleName); module != nil {
		if err := h.perms.RequireModuleAccess(user, module.ID, objectType.ID, permission.AccessRead); err != nil {
			return err
		}
	}

	result, err := h.evaluator.Aggregate(c.Context(), objectType.ID, moduleName, fieldKey, fn)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"module": moduleName,
		"field":  fieldKey,
		"fn":     fn,
		"value":  result,
	}})
}

// CountBy handles GET /api/modules/:module/count-by/:field
func (h *Handler) CountBy(c *fiber.Ctx) error {
	user := getUser(c)
	if err := h.perms.RequireAction(user, "aggregate:read"); err != nil {
		return err
	}

	moduleName := c.Params("module")
	if module := h.registry.GetModuleByName(moduleName); module != nil {
		if err := h.perms.RequireModuleAccess(user, module.ID, "", permission.AccessRead); err != nil {
			return err
		}
	}

	counts, err := h.evaluator.CountBy(c.Context(), moduleName, c.Params("field"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": counts})
}

// resolveType looks up the :type path parameter, by name first, then by id.
func (h *Handler) resolveType(c *fiber.Ctx) (*metadata.ObjectType, error) {
	name := c.Params("type")
	if t := h.registry.GetObjectTypeByName(name); t != nil {
		return t, nil
	}
	if t := h.registry.GetObjectType(name); t != nil {
		return t, nil
	}
	return nil, apperr.NotFound("object type", name)
}

func getUser(c *fiber.Ctx) *metadata.UserContext {
	user, _ := c.Locals("user").(*metadata.UserContext)
	return user
}
