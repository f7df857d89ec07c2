package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"flexbase-backend/internal/apperr"
	"flexbase-backend/internal/metadata"
	"flexbase-backend/internal/permission"
	"flexbase-backend/internal/value"
)

// ObjectService handles object writes: creation against the type's
// composition, per-module blob updates, deletion, and relations. Reads go
// through the Evaluator.
type ObjectService struct {
	registry *metadata.Registry
	objects  ObjectStore
	perms    *permission.Resolver
}

func NewObjectService(reg *metadata.Registry, objects ObjectStore, perms *permission.Resolver) *ObjectService {
	return &ObjectService{registry: reg, objects: objects, perms: perms}
}

// Create builds a new object of the given type from per-module payloads. All
// required modules of the composition must be present, every payload module
// must belong to the composition, and every field value must validate against
// the module schema. The caller needs write access to each module it writes.
func (s *ObjectService) Create(ctx context.Context, user *metadata.UserContext, objectTypeID string, modules map[string]map[string]any) (*ObjectWithModules, error) {
	composition := s.registry.Composition(objectTypeID)
	if s.registry.GetObjectType(objectTypeID) == nil {
		return nil, apperr.NotFound("object type", objectTypeID)
	}

	byName := make(map[string]metadata.ComposedModule, len(composition))
	for _, c := range composition {
		byName[c.Module.Name] = c
	}

	var details []apperr.ErrorDetail
	for _, c := range composition {
		if c.Required {
			if _, ok := modules[c.Module.Name]; !ok {
				details = append(details, apperr.ErrorDetail{
					Module:  c.Module.Name,
					Rule:    "required",
					Message: fmt.Sprintf("module %s is required for this object type", c.Module.Name),
				})
			}
		}
	}
	for name := range modules {
		if _, ok := byName[name]; !ok {
			details = append(details, apperr.ErrorDetail{
				Module:  name,
				Rule:    "unknown_module",
				Message: fmt.Sprintf("module %s is not part of this object type", name),
			})
		}
	}
	if len(details) > 0 {
		return nil, apperr.Validation("object payload does not match the type's composition", details...)
	}

	blobs := make(map[string]map[string]any, len(modules))
	for name, data := range modules {
		c := byName[name]
		if err := s.perms.RequireModuleAccess(user, c.Module.ID, objectTypeID, permission.AccessWrite); err != nil {
			return nil, err
		}
		if err := validateBlob(c.Module, data); err != nil {
			return nil, err
		}
		blobs[c.Module.ID] = data
	}

	obj := metadata.Object{
		ID:           uuid.New().String(),
		ObjectTypeID: objectTypeID,
		OwnerID:      user.ID,
		CreatedBy:    user.ID,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.objects.InsertObject(ctx, obj, blobs); err != nil {
		return nil, apperr.DBError("create object", err)
	}

	return &ObjectWithModules{Object: obj, Modules: modules}, nil
}

// UpdateModule merges data into one module blob of an object. Keys absent
// from data keep their stored values.
func (s *ObjectService) UpdateModule(ctx context.Context, user *metadata.UserContext, objectID, moduleName string, data map[string]any) error {
	header, module, err := s.resolveObjectModule(ctx, objectID, moduleName)
	if err != nil {
		return err
	}
	if err := s.perms.RequireModuleAccess(user, module.ID, header.ObjectTypeID, permission.AccessWrite); err != nil {
		return err
	}
	if err := validateBlob(module, data); err != nil {
		return err
	}
	if err := s.objects.UpsertModuleData(ctx, objectID, module.ID, data); err != nil {
		return apperr.DBError("update module data", err)
	}
	return nil
}

// ClearModule removes one module blob. Required modules of the composition
// keep their blob for the object's lifetime.
func (s *ObjectService) ClearModule(ctx context.Context, user *metadata.UserContext, objectID, moduleName string) error {
	header, module, err := s.resolveObjectModule(ctx, objectID, moduleName)
	if err != nil {
		return err
	}
	for _, c := range s.registry.Composition(header.ObjectTypeID) {
		if c.Module.ID == module.ID && c.Required {
			return apperr.Validation(fmt.Sprintf("module %s is required and cannot be cleared", moduleName))
		}
	}
	if err := s.perms.RequireModuleAccess(user, module.ID, header.ObjectTypeID, permission.AccessDelete); err != nil {
		return err
	}
	if err := s.objects.DeleteModuleData(ctx, objectID, module.ID); err != nil {
		if isNotFound(err) {
			return apperr.NotFound("module data", moduleName)
		}
		return apperr.DBError("clear module data", err)
	}
	return nil
}

// Delete removes an object and, via cascade, its blobs and relations. The
// caller needs delete access to every composed module of the type.
func (s *ObjectService) Delete(ctx context.Context, user *metadata.UserContext, objectID string) error {
	header, err := s.objects.GetHeader(ctx, objectID)
	if err != nil {
		return mapStoreError("object", objectID, err)
	}
	for _, c := range s.registry.Composition(header.ObjectTypeID) {
		if err := s.perms.RequireModuleAccess(user, c.Module.ID, header.ObjectTypeID, permission.AccessDelete); err != nil {
			return err
		}
	}
	if err := s.objects.DeleteObject(ctx, objectID); err != nil {
		return mapStoreError("object", objectID, err)
	}
	return nil
}

// Relate creates a directed edge between two existing objects.
func (s *ObjectService) Relate(ctx context.Context, fromID, toID, relationType string, meta map[string]any) (*metadata.ObjectRelation, error) {
	if fromID == toID {
		return nil, apperr.Validation("an object cannot relate to itself")
	}
	if _, err := s.objects.GetHeader(ctx, fromID); err != nil {
		return nil, mapStoreError("object", fromID, err)
	}
	if _, err := s.objects.GetHeader(ctx, toID); err != nil {
		return nil, mapStoreError("object", toID, err)
	}
	if relationType == "" {
		relationType = "related"
	}

	rel := metadata.ObjectRelation{
		ID:           uuid.New().String(),
		FromObjectID: fromID,
		ToObjectID:   toID,
		RelationType: relationType,
		Metadata:     meta,
		CreatedAt:    time.Now(),
	}
	if err := s.objects.CreateRelation(ctx, rel); err != nil {
		return nil, apperr.DBError("create relation", err)
	}
	return &rel, nil
}

// Unrelate removes one edge.
func (s *ObjectService) Unrelate(ctx context.Context, relationID string) error {
	if err := s.objects.DeleteRelation(ctx, relationID); err != nil {
		return mapStoreError("relation", relationID, err)
	}
	return nil
}

// Redact strips module blobs the user has no read capability for. The object
// header stays visible; only the blob content is withheld.
func (s *ObjectService) Redact(user *metadata.UserContext, objectTypeID string, objects []*ObjectWithModules) {
	if user != nil && user.IsAdmin() {
		return
	}
	for _, c := range s.registry.Composition(objectTypeID) {
		if s.perms.ModulePermission(user, c.Module.ID, objectTypeID).CanRead {
			continue
		}
		for _, obj := range objects {
			delete(obj.Modules, c.Module.Name)
		}
	}
}

func (s *ObjectService) resolveObjectModule(ctx context.Context, objectID, moduleName string) (metadata.Object, *metadata.Module, error) {
	header, err := s.objects.GetHeader(ctx, objectID)
	if err != nil {
		return metadata.Object{}, nil, mapStoreError("object", objectID, err)
	}
	for _, c := range s.registry.Composition(header.ObjectTypeID) {
		if c.Module.Name == moduleName {
			return header, c.Module, nil
		}
	}
	return metadata.Object{}, nil, apperr.Validation(fmt.Sprintf("module %s is not part of this object's type", moduleName))
}

// validateBlob checks every payload key against the module schema: unknown
// keys are rejected, known keys validate by field type.
func validateBlob(module *metadata.Module, data map[string]any) error {
	var details []apperr.ErrorDetail
	for key, v := range data {
		field := module.GetField(key)
		if field == nil {
			details = append(details, apperr.ErrorDetail{
				Module:  module.Name,
				Field:   key,
				Rule:    "unknown_field",
				Message: fmt.Sprintf("module %s has no field %s", module.Name, key),
			})
			continue
		}
		if err := value.Validate(v, field); err != nil {
			details = append(details, apperr.ErrorDetail{
				Module:  module.Name,
				Field:   key,
				Rule:    "invalid_value",
				Message: err.Error(),
			})
		}
	}
	if len(details) > 0 {
		return apperr.Validation(fmt.Sprintf("invalid data for module %s", module.Name), details...)
	}
	return nil
}
