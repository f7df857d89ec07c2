package engine

import (
	"context"

	"flexbase-backend/internal/metadata"
)

// ObjectStore is the storage boundary the engine consumes. The engine only
// relies on object-type scoping and pagination being pushed down; every
// field-level predicate over the schema-less data blobs is evaluated
// in-core. store.Objects is the SQL implementation.
type ObjectStore interface {
	// FetchHeaders returns headers of one object type in creation order
	// plus the total count for the type. limit <= 0 disables pagination.
	FetchHeaders(ctx context.Context, objectTypeID string, offset, limit int) ([]metadata.Object, int, error)

	// GetHeader returns one header, or store.ErrNotFound.
	GetHeader(ctx context.Context, objectID string) (metadata.Object, error)

	// FetchModuleData returns data blobs. objectIDs nil means all objects
	// carrying the module; moduleID "" means all modules.
	FetchModuleData(ctx context.Context, objectIDs []string, moduleID string) ([]metadata.ObjectModuleRecord, error)

	// UpsertModuleData merges data into the (object, module) blob,
	// preserving stored keys absent from data.
	UpsertModuleData(ctx context.Context, objectID, moduleID string, data map[string]any) error

	// DeleteModuleData removes one blob.
	DeleteModuleData(ctx context.Context, objectID, moduleID string) error

	// InsertObject creates the header plus initial blobs atomically.
	InsertObject(ctx context.Context, obj metadata.Object, blobs map[string]map[string]any) error

	// DeleteObject removes the header; blobs and relations cascade.
	DeleteObject(ctx context.Context, objectID string) error

	// FetchRelations lists edges touching the object in one direction.
	FetchRelations(ctx context.Context, objectID, direction string) ([]metadata.ObjectRelation, error)

	// CreateRelation inserts a directed edge.
	CreateRelation(ctx context.Context, rel metadata.ObjectRelation) error

	// DeleteRelation removes one edge.
	DeleteRelation(ctx context.Context, relationID string) error
}

// ObjectWithModules is one evaluated row: the identity header joined with the
// data blobs of the type's composed modules, keyed by module name.
type ObjectWithModules struct {
	metadata.Object
	Modules map[string]map[string]any `json:"modules"`
}

// FieldValue looks up a module-qualified field value. Missing modules or
// keys yield nil.
func (o *ObjectWithModules) FieldValue(module, field string) any {
	data := o.Modules[module]
	if data == nil {
		return nil
	}
	return data[field]
}

// EvalResult is one evaluated page plus the pre-pagination total, which
// callers need for page-count display.
type EvalResult struct {
	Objects []*ObjectWithModules `json:"objects"`
	Total   int                  `json:"total"`
}

// KanbanBucket is one column of a kanban board.
type KanbanBucket struct {
	Value   string               `json:"value"`
	Label   string               `json:"label"`
	Color   string               `json:"color,omitempty"`
	Objects []*ObjectWithModules `json:"objects"`
}

// UncategorizedBucket keys objects whose grouping value is null, missing or
// not among the declared options.
const UncategorizedBucket = "uncategorized"

// KanbanResult is an evaluated kanban page: every object of the page appears
// in exactly one bucket.
type KanbanResult struct {
	Module  string         `json:"module"`
	Field   string         `json:"field"`
	Buckets []KanbanBucket `json:"buckets"`
	Total   int            `json:"total"`
}

// ValueCount is one entry of a countBy distribution.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// NullGroup keys null/missing values in countBy distributions, distinct from
// a legitimate empty-string value.
const NullGroup = "__none__"
