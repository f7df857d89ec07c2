package metadata

import "time"

// Object is the identity header of one record. Business fields live in the
// per-module data blobs, never here.
type Object struct {
	ID           string    `json:"id"`
	ObjectTypeID string    `json:"object_type_id"`
	OwnerID      string    `json:"owner_id,omitempty"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ObjectModuleRecord is the JSON payload of one module's fields for one
// object. Data keys should match the module's current schema, but stale keys
// from earlier schema versions are tolerated: ignored on read, preserved on
// write-merge.
type ObjectModuleRecord struct {
	ID       string         `json:"id"`
	ObjectID string         `json:"object_id"`
	ModuleID string         `json:"module_id"`
	Data     map[string]any `json:"data"`
}

// Relation directions for queries.
const (
	RelationFrom = "from"
	RelationTo   = "to"
)

// ObjectRelation is a directed edge between two objects.
type ObjectRelation struct {
	ID           string         `json:"id"`
	FromObjectID string         `json:"from_object_id"`
	ToObjectID   string         `json:"to_object_id"`
	RelationType string         `json:"relation_type"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
