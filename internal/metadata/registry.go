package metadata

import (
	"sort"
	"sync"
)

// Registry holds the schema snapshot: modules, object types, compositions and
// permission grants. Reads are lock-free for callers beyond the RWMutex; the
// whole snapshot is swapped wholesale by Load/LoadGrants after admin
// mutations, so in-flight evaluations see either the old or the new schema,
// never a mix.
type Registry struct {
	mu            sync.RWMutex
	modulesByID   map[string]*Module
	modulesByName map[string]*Module
	objectTypes   map[string]*ObjectType
	compositions  map[string][]ObjectTypeModule

	actionsByRole      map[string]map[string]bool
	moduleGrantsByRole map[string][]ModulePermission
}

func NewRegistry() *Registry {
	return &Registry{
		modulesByID:        make(map[string]*Module),
		modulesByName:      make(map[string]*Module),
		objectTypes:        make(map[string]*ObjectType),
		compositions:       make(map[string][]ObjectTypeModule),
		actionsByRole:      make(map[string]map[string]bool),
		moduleGrantsByRole: make(map[string][]ModulePermission),
	}
}

// GetModule returns the module with the given id, or nil.
func (r *Registry) GetModule(id string) *Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modulesByID[id]
}

// GetModuleByName returns the module with the given unique name, or nil.
func (r *Registry) GetModuleByName(name string) *Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.modulesByName[name]
}

// AllModules returns all registered modules sorted by name.
func (r *Registry) AllModules() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	modules := make([]*Module, 0, len(r.modulesByID))
	for _, m := range r.modulesByID {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Name < modules[j].Name })
	return modules
}

// GetObjectType returns the object type with the given id, or nil.
func (r *Registry) GetObjectType(id string) *ObjectType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.objectTypes[id]
}

// GetObjectTypeByName returns the object type with the given name, or nil.
func (r *Registry) GetObjectTypeByName(name string) *ObjectType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.objectTypes {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// AllObjectTypes returns all registered object types sorted by name.
func (r *Registry) AllObjectTypes() []*ObjectType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]*ObjectType, 0, len(r.objectTypes))
	for _, t := range r.objectTypes {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	return types
}

// Composition returns the object type's modules joined with their schemas,
// ordered by position. Composition entries referencing an unknown module are
// skipped.
func (r *Registry) Composition(objectTypeID string) []ComposedModule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.compositions[objectTypeID]
	composed := make([]ComposedModule, 0, len(entries))
	for _, e := range entries {
		m := r.modulesByID[e.ModuleID]
		if m == nil {
			continue
		}
		composed = append(composed, ComposedModule{Module: m, Required: e.Required, Position: e.Position})
	}
	return composed
}

// Load replaces all modules, object types and compositions in the registry.
// Called during startup and after admin mutations.
func (r *Registry) Load(modules []*Module, types []*ObjectType, compositions []ObjectTypeModule) {
	byID := make(map[string]*Module, len(modules))
	byName := make(map[string]*Module, len(modules))
	for _, m := range modules {
		byID[m.ID] = m
		byName[m.Name] = m
	}

	typeMap := make(map[string]*ObjectType, len(types))
	for _, t := range types {
		typeMap[t.ID] = t
	}

	compMap := make(map[string][]ObjectTypeModule)
	for _, c := range compositions {
		compMap[c.ObjectTypeID] = append(compMap[c.ObjectTypeID], c)
	}
	for _, entries := range compMap {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Position < entries[j].Position })
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.modulesByID = byID
	r.modulesByName = byName
	r.objectTypes = typeMap
	r.compositions = compMap
}

// LoadGrants replaces all permission grants in the registry.
func (r *Registry) LoadGrants(actions []ActionPermission, grants []ModulePermission) {
	actionMap := make(map[string]map[string]bool)
	for _, a := range actions {
		set := actionMap[a.RoleID]
		if set == nil {
			set = make(map[string]bool)
			actionMap[a.RoleID] = set
		}
		set[a.Action] = true
	}

	grantMap := make(map[string][]ModulePermission)
	for _, g := range grants {
		grantMap[g.RoleID] = append(grantMap[g.RoleID], g)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.actionsByRole = actionMap
	r.moduleGrantsByRole = grantMap
}

// ActionsForRoles returns the union of action grants across the given roles.
func (r *Registry) ActionsForRoles(roles []string) map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	union := make(map[string]bool)
	for _, role := range roles {
		for action := range r.actionsByRole[role] {
			union[action] = true
		}
	}
	return union
}

// ModuleGrantsForRoles returns all scoped grants recorded for the given roles.
func (r *Registry) ModuleGrantsForRoles(roles []string) []ModulePermission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var grants []ModulePermission
	for _, role := range roles {
		grants = append(grants, r.moduleGrantsByRole[role]...)
	}
	return grants
}
