package engine

import (
	"fmt"

	"flexbase-backend/internal/apperr"
	"flexbase-backend/internal/metadata"
	"flexbase-backend/internal/value"
)

// resolveKanbanField picks the grouping field for a kanban view: the
// configured module/field when set, otherwise the first select field in
// composition order. The field must be select-typed; a board cannot be built
// without one and the caller is told so explicitly instead of receiving an
// empty board.
func resolveKanbanField(view *metadata.View, fi *fieldIndex) (string, *metadata.FieldDef, error) {
	if view.KanbanFieldKey != "" {
		fieldDef := fi.fieldDef(view.KanbanModuleName, view.KanbanFieldKey)
		if fieldDef == nil {
			return "", nil, apperr.Validation(fmt.Sprintf(
				"kanban field %s.%s does not exist", view.KanbanModuleName, view.KanbanFieldKey))
		}
		if fieldDef.Type != metadata.FieldSelect {
			return "", nil, apperr.Validation(fmt.Sprintf(
				"kanban field %s.%s is %s, needs select", view.KanbanModuleName, view.KanbanFieldKey, fieldDef.Type))
		}
		return view.KanbanModuleName, fieldDef, nil
	}

	moduleName, fieldDef := fi.firstSelectField()
	if fieldDef == nil {
		return "", nil, apperr.Validation("kanban layout needs a select field; this object type has none")
	}
	return moduleName, fieldDef, nil
}

// groupKanban distributes the evaluated page into one bucket per declared
// select option plus one uncategorized bucket. Every object lands in exactly
// one bucket: a value matching a declared option goes to that option's
// bucket, anything else (null, missing, undeclared) to uncategorized.
func groupKanban(objects []*ObjectWithModules, moduleName string, fieldDef *metadata.FieldDef) []KanbanBucket {
	buckets := make([]KanbanBucket, 0, len(fieldDef.Options)+1)
	index := make(map[string]int, len(fieldDef.Options))
	for _, opt := range fieldDef.Options {
		index[opt.Value] = len(buckets)
		buckets = append(buckets, KanbanBucket{
			Value:   opt.Value,
			Label:   opt.Label,
			Color:   opt.Color,
			Objects: []*ObjectWithModules{},
		})
	}
	uncategorized := KanbanBucket{
		Value:   UncategorizedBucket,
		Label:   "Uncategorized",
		Objects: []*ObjectWithModules{},
	}

	for _, obj := range objects {
		v := obj.FieldValue(moduleName, fieldDef.Key)
		if !value.IsEmpty(v) {
			if i, ok := index[value.Display(v)]; ok {
				buckets[i].Objects = append(buckets[i].Objects, obj)
				continue
			}
		}
		uncategorized.Objects = append(uncategorized.Objects, obj)
	}

	return append(buckets, uncategorized)
}
