package engine

import (
	"fmt"

	"flexbase-backend/internal/apperr"
	"flexbase-backend/internal/metadata"
)

// fieldIndex resolves module-qualified field references against one object
// type's composition. Built once per evaluation so filter/sort operators are
// interpreted with the schema in effect when the evaluation started.
type fieldIndex struct {
	composition []metadata.ComposedModule
	byName      map[string]*metadata.Module
}

func newFieldIndex(composition []metadata.ComposedModule) *fieldIndex {
	byName := make(map[string]*metadata.Module, len(composition))
	for _, c := range composition {
		byName[c.Module.Name] = c.Module
	}
	return &fieldIndex{composition: composition, byName: byName}
}

func (fi *fieldIndex) module(name string) *metadata.Module {
	return fi.byName[name]
}

func (fi *fieldIndex) fieldDef(module, field string) *metadata.FieldDef {
	m := fi.byName[module]
	if m == nil {
		return nil
	}
	return m.GetField(field)
}

// firstSelectField scans modules in composition position order and fields in
// declaration order, returning the first select-typed field. This is the
// deterministic fallback when a kanban view has no grouping field configured.
func (fi *fieldIndex) firstSelectField() (moduleName string, field *metadata.FieldDef) {
	for _, c := range fi.composition {
		for i := range c.Module.Schema {
			if c.Module.Schema[i].Type == metadata.FieldSelect {
				return c.Module.Name, &c.Module.Schema[i]
			}
		}
	}
	return "", nil
}

// validateFilters rejects filter specs referencing unknown modules, fields
// or operators, and `in` filters whose value is not an array. Nil values on
// value-requiring operators pass validation; they are skipped at evaluation
// time.
func validateFilters(filters []metadata.Filter, fi *fieldIndex) error {
	for _, f := range filters {
		if !metadata.IsValidOperator(f.Operator) {
			return apperr.Validation(fmt.Sprintf("unknown filter operator: %s", f.Operator))
		}
		if fi.fieldDef(f.Module, f.Field) == nil {
			return apperr.Validation(fmt.Sprintf("unknown filter field: %s.%s", f.Module, f.Field))
		}
		if f.Operator == metadata.OpIn && f.Value != nil {
			if _, ok := f.Value.([]any); !ok {
				return apperr.Validation(fmt.Sprintf("filter %s.%s: in operator needs an array value", f.Module, f.Field))
			}
		}
	}
	return nil
}

// validateSorts rejects sort specs referencing unknown fields or directions.
func validateSorts(sorts []metadata.Sort, fi *fieldIndex) error {
	for _, s := range sorts {
		if s.Direction != metadata.SortAsc && s.Direction != metadata.SortDesc {
			return apperr.Validation(fmt.Sprintf("unknown sort direction: %s", s.Direction))
		}
		if fi.fieldDef(s.Module, s.Field) == nil {
			return apperr.Validation(fmt.Sprintf("unknown sort field: %s.%s", s.Module, s.Field))
		}
	}
	return nil
}
