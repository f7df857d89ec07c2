package engine

import (
	"context"
	"fmt"

	"flexbase-backend/internal/apperr"
	"flexbase-backend/internal/metadata"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// Evaluator turns a view's declarative filter/sort/grouping definition into
// a result set over schema-less data blobs. It is stateless apart from the
// shared expression cache; independent evaluations can run concurrently.
type Evaluator struct {
	registry *metadata.Registry
	objects  ObjectStore
	expr     *ExprEvaluator

	defaultPageSize int
	maxPageSize     int
}

func NewEvaluator(reg *metadata.Registry, objects ObjectStore) *Evaluator {
	return &Evaluator{
		registry:        reg,
		objects:         objects,
		expr:            NewExprEvaluator(),
		defaultPageSize: DefaultPageSize,
		maxPageSize:     MaxPageSize,
	}
}

// SetPageBounds overrides the default/max page size (from config).
func (e *Evaluator) SetPageBounds(def, max int) {
	if def > 0 {
		e.defaultPageSize = def
	}
	if max > 0 {
		e.maxPageSize = max
	}
}

func (e *Evaluator) clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = e.defaultPageSize
	}
	if pageSize > e.maxPageSize {
		pageSize = e.maxPageSize
	}
	return page, pageSize
}

// Evaluate runs the view against current data: fetch candidate headers, join
// module blobs, apply filters/expression/sort in-core, paginate. Total is
// always the pre-pagination count of matching objects. All rows are fetched
// up front so one evaluation never mixes data from before and after a
// concurrent mutation.
func (e *Evaluator) Evaluate(ctx context.Context, view *metadata.View, page, pageSize int) (*EvalResult, error) {
	page, pageSize = e.clampPage(page, pageSize)

	if e.registry.GetObjectType(view.ObjectTypeID) == nil {
		return nil, apperr.NotFound("object type", view.ObjectTypeID)
	}
	fi := newFieldIndex(e.registry.Composition(view.ObjectTypeID))

	if err := validateFilters(view.Filters, fi); err != nil {
		return nil, err
	}
	if err := validateSorts(view.Sorts, fi); err != nil {
		return nil, err
	}

	// Pagination is pushed down to the adapter only when nothing has to be
	// evaluated in-core; field filters and sorts need the full candidate
	// set since the adapter cannot see inside the data blobs.
	pushDown := !needsFullScan(view)

	var headers []metadata.Object
	var total int
	var err error
	if pushDown {
		headers, total, err = e.objects.FetchHeaders(ctx, view.ObjectTypeID, (page-1)*pageSize, pageSize)
	} else {
		headers, total, err = e.objects.FetchHeaders(ctx, view.ObjectTypeID, 0, 0)
	}
	if err != nil {
		return nil, apperr.DBError("fetch headers", err)
	}

	objects, err := e.joinModules(ctx, headers, fi)
	if err != nil {
		return nil, err
	}

	objects = applyFilters(objects, view.Filters, fi)
	objects, err = applyExpression(objects, view.Expression, e.expr)
	if err != nil {
		return nil, err
	}
	applySort(objects, view.Sorts, fi)

	if !pushDown {
		total = len(objects)
		objects = pageSlice(objects, page, pageSize)
	}

	return &EvalResult{Objects: objects, Total: total}, nil
}

// EvaluateKanban evaluates the view and distributes the page into buckets.
// The grouping field is resolved before any data is fetched so an impossible
// board fails fast.
func (e *Evaluator) EvaluateKanban(ctx context.Context, view *metadata.View, page, pageSize int) (*KanbanResult, error) {
	if e.registry.GetObjectType(view.ObjectTypeID) == nil {
		return nil, apperr.NotFound("object type", view.ObjectTypeID)
	}
	fi := newFieldIndex(e.registry.Composition(view.ObjectTypeID))

	moduleName, fieldDef, err := resolveKanbanField(view, fi)
	if err != nil {
		return nil, err
	}

	result, err := e.Evaluate(ctx, view, page, pageSize)
	if err != nil {
		return nil, err
	}

	return &KanbanResult{
		Module:  moduleName,
		Field:   fieldDef.Key,
		Buckets: groupKanban(result.Objects, moduleName, fieldDef),
		Total:   result.Total,
	}, nil
}

// Get returns one object joined with its module blobs and both relation
// directions.
func (e *Evaluator) Get(ctx context.Context, objectID string) (*ObjectWithModules, []metadata.ObjectRelation, []metadata.ObjectRelation, error) {
	header, err := e.objects.GetHeader(ctx, objectID)
	if err != nil {
		return nil, nil, nil, mapStoreError("object", objectID, err)
	}

	fi := newFieldIndex(e.registry.Composition(header.ObjectTypeID))
	objects, err := e.joinModules(ctx, []metadata.Object{header}, fi)
	if err != nil {
		return nil, nil, nil, err
	}

	from, err := e.objects.FetchRelations(ctx, objectID, metadata.RelationFrom)
	if err != nil {
		return nil, nil, nil, apperr.DBError("fetch relations", err)
	}
	to, err := e.objects.FetchRelations(ctx, objectID, metadata.RelationTo)
	if err != nil {
		return nil, nil, nil, apperr.DBError("fetch relations", err)
	}

	return objects[0], from, to, nil
}

// joinModules attaches each header's data blobs keyed by module name. Blobs
// for modules outside the current composition are skipped (schema evolution
// leftovers); a fetch failure fails the whole evaluation rather than
// silently rendering partial rows.
func (e *Evaluator) joinModules(ctx context.Context, headers []metadata.Object, fi *fieldIndex) ([]*ObjectWithModules, error) {
	objects := make([]*ObjectWithModules, len(headers))
	ids := make([]string, len(headers))
	byID := make(map[string]*ObjectWithModules, len(headers))
	for i, h := range headers {
		objects[i] = &ObjectWithModules{Object: h, Modules: make(map[string]map[string]any)}
		ids[i] = h.ID
		byID[h.ID] = objects[i]
	}
	if len(headers) == 0 {
		return objects, nil
	}

	moduleNames := make(map[string]string, len(fi.composition))
	for _, c := range fi.composition {
		moduleNames[c.Module.ID] = c.Module.Name
	}

	records, err := e.objects.FetchModuleData(ctx, ids, "")
	if err != nil {
		return nil, apperr.DBError("fetch module data", err)
	}
	for _, rec := range records {
		name, ok := moduleNames[rec.ModuleID]
		if !ok {
			continue
		}
		if obj := byID[rec.ObjectID]; obj != nil {
			obj.Modules[name] = rec.Data
		}
	}

	return objects, nil
}

// needsFullScan reports whether anything must be evaluated in-core, which
// forces fetching the whole candidate set.
func needsFullScan(view *metadata.View) bool {
	for _, f := range view.Filters {
		if !f.NeedsValue() || f.Value != nil {
			return true
		}
	}
	return view.Expression != "" || len(view.Sorts) > 0
}

func pageSlice(objects []*ObjectWithModules, page, pageSize int) []*ObjectWithModules {
	start := (page - 1) * pageSize
	if start >= len(objects) {
		return []*ObjectWithModules{}
	}
	end := start + pageSize
	if end > len(objects) {
		end = len(objects)
	}
	return objects[start:end]
}

func mapStoreError(kind, id string, err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return apperr.NotFound(kind, id)
	}
	return apperr.DBError(fmt.Sprintf("load %s", kind), err)
}
