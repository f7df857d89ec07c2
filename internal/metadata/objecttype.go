package metadata

// ObjectType is a named category of records defined by an ordered composition
// of modules. It carries presentation hints (icon, color) but no fields of
// its own.
type ObjectType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	IsActive    bool   `json:"is_active"`
}

// ObjectTypeModule is one entry of an object type's composition. Required
// entries must have a data blob on every object of the type; Position defines
// default field ordering and the scan order for kanban field auto-selection.
type ObjectTypeModule struct {
	ObjectTypeID string `json:"object_type_id"`
	ModuleID     string `json:"module_id"`
	Required     bool   `json:"required"`
	Position     int    `json:"position"`
}

// ComposedModule is a composition entry joined with its resolved module.
type ComposedModule struct {
	Module   *Module `json:"module"`
	Required bool    `json:"required"`
	Position int     `json:"position"`
}
