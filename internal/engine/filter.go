package engine

import (
	"strings"

	"flexbase-backend/internal/metadata"
	"flexbase-backend/internal/value"
)

// applyFilters returns the objects matching every filter. Filters whose
// operator requires a value but whose value is nil are skipped entirely.
func applyFilters(objects []*ObjectWithModules, filters []metadata.Filter, fi *fieldIndex) []*ObjectWithModules {
	active := filters[:0:0]
	for _, f := range filters {
		if f.NeedsValue() && f.Value == nil {
			continue
		}
		active = append(active, f)
	}
	if len(active) == 0 {
		return objects
	}

	matched := make([]*ObjectWithModules, 0, len(objects))
	for _, obj := range objects {
		ok := true
		for _, f := range active {
			if !matchFilter(obj, f, fi) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, obj)
		}
	}
	return matched
}

// matchFilter evaluates one filter against one object with type-aware
// semantics. Rows whose value cannot be coerced for a numeric or temporal
// comparison are excluded rather than erroring.
func matchFilter(obj *ObjectWithModules, f metadata.Filter, fi *fieldIndex) bool {
	fieldDef := fi.fieldDef(f.Module, f.Field)
	if fieldDef == nil {
		return false
	}
	v := obj.FieldValue(f.Module, f.Field)

	switch f.Operator {
	case metadata.OpIsEmpty:
		return value.IsEmpty(v)
	case metadata.OpIsNotEmpty:
		return !value.IsEmpty(v)
	case metadata.OpEq:
		return value.Equal(v, f.Value)
	case metadata.OpNeq:
		return !value.Equal(v, f.Value)
	case metadata.OpContains:
		return strings.Contains(
			strings.ToLower(value.Display(v)),
			strings.ToLower(value.Display(f.Value)))
	case metadata.OpIn:
		items, ok := f.Value.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if value.Equal(v, item) {
				return true
			}
		}
		return false
	case metadata.OpGt, metadata.OpGte, metadata.OpLt, metadata.OpLte:
		return matchOrdered(v, f.Value, f.Operator, fieldDef)
	default:
		return false
	}
}

// matchOrdered handles gt/gte/lt/lte. Date and datetime fields compare
// instants; everything else coerces both sides to number and excludes the
// row when coercion fails.
func matchOrdered(v, filterValue any, op string, fieldDef *metadata.FieldDef) bool {
	var cmp int
	switch fieldDef.Type {
	case metadata.FieldDate, metadata.FieldDatetime:
		c, ok := value.Compare(v, filterValue, fieldDef.Type)
		if !ok {
			return false
		}
		cmp = c
	default:
		fv, okV := value.ToFloat(v)
		ff, okF := value.ToFloat(filterValue)
		if !okV || !okF {
			return false
		}
		switch {
		case fv < ff:
			cmp = -1
		case fv > ff:
			cmp = 1
		}
	}

	switch op {
	case metadata.OpGt:
		return cmp > 0
	case metadata.OpGte:
		return cmp >= 0
	case metadata.OpLt:
		return cmp < 0
	case metadata.OpLte:
		return cmp <= 0
	default:
		return false
	}
}
