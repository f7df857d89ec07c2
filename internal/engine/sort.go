package engine

import (
	"sort"

	"flexbase-backend/internal/metadata"
	"flexbase-backend/internal/value"
)

// applySort orders objects by the first configured sort key. Empty values
// sort last in either direction. Ties, pairs the field type cannot
// interpret, and the no-sort case fall back to creation time ascending, then
// id, so the order is deterministic.
func applySort(objects []*ObjectWithModules, sorts []metadata.Sort, fi *fieldIndex) {
	if len(sorts) == 0 {
		sort.SliceStable(objects, func(i, j int) bool {
			return creationLess(objects[i], objects[j])
		})
		return
	}

	primary := sorts[0]
	fieldDef := fi.fieldDef(primary.Module, primary.Field)
	if fieldDef == nil {
		sort.SliceStable(objects, func(i, j int) bool {
			return creationLess(objects[i], objects[j])
		})
		return
	}
	desc := primary.Direction == metadata.SortDesc

	sort.SliceStable(objects, func(i, j int) bool {
		a := objects[i].FieldValue(primary.Module, primary.Field)
		b := objects[j].FieldValue(primary.Module, primary.Field)

		aEmpty := value.IsEmpty(a)
		bEmpty := value.IsEmpty(b)
		if aEmpty || bEmpty {
			if aEmpty && bEmpty {
				return creationLess(objects[i], objects[j])
			}
			// empties always sort last
			return bEmpty
		}

		cmp, ok := value.Compare(a, b, fieldDef.Type)
		if !ok {
			return creationLess(objects[i], objects[j])
		}
		if cmp == 0 {
			return creationLess(objects[i], objects[j])
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func creationLess(a, b *ObjectWithModules) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
