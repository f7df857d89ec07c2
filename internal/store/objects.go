package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"flexbase-backend/internal/metadata"
)

// Objects is the SQL-backed object store. The query engine consumes it
// through the engine.ObjectStore interface; only object-type scoping and
// pagination bounds are pushed down to SQL, field-level predicates over the
// schema-less data blobs are evaluated in-core.
type Objects struct {
	s *Store
}

func NewObjects(s *Store) *Objects {
	return &Objects{s: s}
}

// FetchHeaders returns object headers of one type in creation order plus the
// total count of the type's objects. limit <= 0 disables pagination (the
// engine needs the whole candidate set when filters cannot be pushed down).
func (o *Objects) FetchHeaders(ctx context.Context, objectTypeID string, offset, limit int) ([]metadata.Object, int, error) {
	pb := o.s.Dialect.NewParamBuilder()
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM _objects WHERE object_type_id = %s", pb.Add(objectTypeID))
	var total int
	if err := o.s.DB.QueryRowContext(ctx, countSQL, pb.Params()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count objects: %w", err)
	}

	pb = o.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"SELECT id, object_type_id, owner_id, created_by, created_at, updated_at FROM _objects WHERE object_type_id = %s ORDER BY created_at, id",
		pb.Add(objectTypeID))
	if limit > 0 {
		sqlStr += fmt.Sprintf(" LIMIT %s OFFSET %s", pb.Add(limit), pb.Add(offset))
	}

	rows, err := o.s.DB.QueryContext(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch headers: %w", err)
	}
	defer rows.Close()

	var headers []metadata.Object
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, 0, err
		}
		headers = append(headers, obj)
	}
	return headers, total, rows.Err()
}

// GetHeader returns a single object header.
func (o *Objects) GetHeader(ctx context.Context, objectID string) (metadata.Object, error) {
	pb := o.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"SELECT id, object_type_id, owner_id, created_by, created_at, updated_at FROM _objects WHERE id = %s",
		pb.Add(objectID))
	rows, err := o.s.DB.QueryContext(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return metadata.Object{}, fmt.Errorf("get header: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return metadata.Object{}, err
		}
		return metadata.Object{}, ErrNotFound
	}
	return scanObject(rows)
}

func scanObject(rows *sql.Rows) (metadata.Object, error) {
	var obj metadata.Object
	var ownerID, createdBy sql.NullString
	var createdAt, updatedAt any
	if err := rows.Scan(&obj.ID, &obj.ObjectTypeID, &ownerID, &createdBy, &createdAt, &updatedAt); err != nil {
		return metadata.Object{}, fmt.Errorf("scan object row: %w", err)
	}
	obj.OwnerID = ownerID.String
	obj.CreatedBy = createdBy.String
	obj.CreatedAt = AsTime(createdAt)
	obj.UpdatedAt = AsTime(updatedAt)
	return obj, nil
}

// FetchModuleData returns data blobs. objectIDs nil means all objects
// carrying the module (the aggregation engine's population); moduleID ""
// means all modules of the given objects.
func (o *Objects) FetchModuleData(ctx context.Context, objectIDs []string, moduleID string) ([]metadata.ObjectModuleRecord, error) {
	pb := o.s.Dialect.NewParamBuilder()
	sqlStr := "SELECT id, object_id, module_id, data FROM _object_modules"

	var where []string
	if objectIDs != nil {
		if len(objectIDs) == 0 {
			return nil, nil
		}
		ids := make([]any, len(objectIDs))
		for i, id := range objectIDs {
			ids[i] = id
		}
		where = append(where, o.s.Dialect.InExpr("object_id", pb, ids))
	}
	if moduleID != "" {
		where = append(where, fmt.Sprintf("module_id = %s", pb.Add(moduleID)))
	}
	for i, clause := range where {
		if i == 0 {
			sqlStr += " WHERE " + clause
		} else {
			sqlStr += " AND " + clause
		}
	}

	rows, err := o.s.DB.QueryContext(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("fetch module data: %w", err)
	}
	defer rows.Close()

	var records []metadata.ObjectModuleRecord
	for rows.Next() {
		var rec metadata.ObjectModuleRecord
		var dataJSON []byte
		if err := rows.Scan(&rec.ID, &rec.ObjectID, &rec.ModuleID, &dataJSON); err != nil {
			return nil, fmt.Errorf("scan module data row: %w", err)
		}
		if err := json.Unmarshal(dataJSON, &rec.Data); err != nil {
			return nil, fmt.Errorf("decode module data %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpsertModuleData merges data into the (object, module) blob. Keys present
// in data overwrite stored keys; stored keys absent from data survive, so a
// write touching one field does not erase keys written concurrently or left
// over from older schema versions.
func (o *Objects) UpsertModuleData(ctx context.Context, objectID, moduleID string, data map[string]any) error {
	tx, err := o.s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	pb := o.s.Dialect.NewParamBuilder()
	var existingJSON []byte
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT data FROM _object_modules WHERE object_id = %s AND module_id = %s", pb.Add(objectID), pb.Add(moduleID)),
		pb.Params()...,
	).Scan(&existingJSON)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read existing blob: %w", err)
	}

	merged := make(map[string]any)
	if len(existingJSON) > 0 {
		if err := json.Unmarshal(existingJSON, &merged); err != nil {
			return fmt.Errorf("decode existing blob: %w", err)
		}
	}
	for k, v := range data {
		merged[k] = v
	}

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode blob: %w", err)
	}

	now := FormatTime(time.Now())
	pb = o.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		`INSERT INTO _object_modules (id, object_id, module_id, data, created_at, updated_at)
		 VALUES (%s, %s, %s, %s, %s, %s)
		 ON CONFLICT (object_id, module_id) DO UPDATE SET data = %s, updated_at = %s`,
		pb.Add(uuid.New().String()), pb.Add(objectID), pb.Add(moduleID),
		pb.Add(string(mergedJSON)), pb.Add(now), pb.Add(now),
		pb.Add(string(mergedJSON)), pb.Add(now))
	if _, err := tx.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return o.s.Dialect.MapError(fmt.Errorf("upsert blob: %w", err))
	}

	pb = o.s.Dialect.NewParamBuilder()
	sqlStr = fmt.Sprintf("UPDATE _objects SET updated_at = %s WHERE id = %s", pb.Add(now), pb.Add(objectID))
	if _, err := tx.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("touch object: %w", err)
	}

	return tx.Commit()
}

// DeleteModuleData removes one (object, module) blob.
func (o *Objects) DeleteModuleData(ctx context.Context, objectID, moduleID string) error {
	pb := o.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM _object_modules WHERE object_id = %s AND module_id = %s",
		pb.Add(objectID), pb.Add(moduleID))
	n, err := Exec(ctx, o.s.DB, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertObject creates the header and all initial module blobs in one
// transaction, keyed by module id.
func (o *Objects) InsertObject(ctx context.Context, obj metadata.Object, blobs map[string]map[string]any) error {
	tx, err := o.s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	now := FormatTime(obj.CreatedAt)
	pb := o.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO _objects (id, object_type_id, owner_id, created_by, created_at, updated_at) VALUES (%s, %s, %s, %s, %s, %s)",
		pb.Add(obj.ID), pb.Add(obj.ObjectTypeID), pb.Add(nullable(obj.OwnerID)), pb.Add(nullable(obj.CreatedBy)),
		pb.Add(now), pb.Add(now))
	if _, err := tx.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return o.s.Dialect.MapError(fmt.Errorf("insert object: %w", err))
	}

	for moduleID, data := range blobs {
		dataJSON, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("encode blob for module %s: %w", moduleID, err)
		}
		pb = o.s.Dialect.NewParamBuilder()
		sqlStr = fmt.Sprintf(
			"INSERT INTO _object_modules (id, object_id, module_id, data, created_at, updated_at) VALUES (%s, %s, %s, %s, %s, %s)",
			pb.Add(uuid.New().String()), pb.Add(obj.ID), pb.Add(moduleID),
			pb.Add(string(dataJSON)), pb.Add(now), pb.Add(now))
		if _, err := tx.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
			return o.s.Dialect.MapError(fmt.Errorf("insert blob for module %s: %w", moduleID, err))
		}
	}

	return tx.Commit()
}

// DeleteObject removes the header; blobs and relations cascade via foreign
// keys.
func (o *Objects) DeleteObject(ctx context.Context, objectID string) error {
	pb := o.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM _objects WHERE id = %s", pb.Add(objectID))
	n, err := Exec(ctx, o.s.DB, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FetchRelations returns edges touching the object. Direction "from" lists
// outgoing edges, "to" incoming ones.
func (o *Objects) FetchRelations(ctx context.Context, objectID, direction string) ([]metadata.ObjectRelation, error) {
	column := "from_object_id"
	if direction == metadata.RelationTo {
		column = "to_object_id"
	}

	pb := o.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"SELECT id, from_object_id, to_object_id, relation_type, metadata, created_at FROM _object_relations WHERE %s = %s ORDER BY created_at",
		column, pb.Add(objectID))

	rows, err := o.s.DB.QueryContext(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("fetch relations: %w", err)
	}
	defer rows.Close()

	var relations []metadata.ObjectRelation
	for rows.Next() {
		var rel metadata.ObjectRelation
		var metaJSON []byte
		var createdAt any
		if err := rows.Scan(&rel.ID, &rel.FromObjectID, &rel.ToObjectID, &rel.RelationType, &metaJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan relation row: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &rel.Metadata); err != nil {
				return nil, fmt.Errorf("decode relation metadata %s: %w", rel.ID, err)
			}
		}
		rel.CreatedAt = AsTime(createdAt)
		relations = append(relations, rel)
	}
	return relations, rows.Err()
}

// CreateRelation inserts a directed edge.
func (o *Objects) CreateRelation(ctx context.Context, rel metadata.ObjectRelation) error {
	metaJSON, err := json.Marshal(rel.Metadata)
	if err != nil {
		return fmt.Errorf("encode relation metadata: %w", err)
	}
	if rel.Metadata == nil {
		metaJSON = []byte("{}")
	}

	pb := o.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO _object_relations (id, from_object_id, to_object_id, relation_type, metadata, created_at) VALUES (%s, %s, %s, %s, %s, %s)",
		pb.Add(rel.ID), pb.Add(rel.FromObjectID), pb.Add(rel.ToObjectID),
		pb.Add(rel.RelationType), pb.Add(string(metaJSON)), pb.Add(FormatTime(rel.CreatedAt)))
	if _, err := o.s.DB.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return o.s.Dialect.MapError(fmt.Errorf("insert relation: %w", err))
	}
	return nil
}

// DeleteRelation removes one edge.
func (o *Objects) DeleteRelation(ctx context.Context, relationID string) error {
	pb := o.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM _object_relations WHERE id = %s", pb.Add(relationID))
	n, err := Exec(ctx, o.s.DB, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountObjectsOfType reports how many objects exist for a type. Used by the
// admin layer to refuse deleting types with live data.
func (o *Objects) CountObjectsOfType(ctx context.Context, objectTypeID string) (int, error) {
	pb := o.s.Dialect.NewParamBuilder()
	var count int
	err := o.s.DB.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM _objects WHERE object_type_id = %s", pb.Add(objectTypeID)),
		pb.Params()...,
	).Scan(&count)
	return count, err
}

// CountModuleData reports how many objects of a type carry data for a
// module. objectTypeID "" counts across all types. Used by the admin layer
// to refuse detaching required modules and deleting modules in use.
func (o *Objects) CountModuleData(ctx context.Context, objectTypeID, moduleID string) (int, error) {
	pb := o.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT COUNT(*) FROM _object_modules om WHERE om.module_id = %s", pb.Add(moduleID))
	if objectTypeID != "" {
		sqlStr += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM _objects o WHERE o.id = om.object_id AND o.object_type_id = %s)", pb.Add(objectTypeID))
	}
	var count int
	err := o.s.DB.QueryRowContext(ctx, sqlStr, pb.Params()...).Scan(&count)
	return count, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
