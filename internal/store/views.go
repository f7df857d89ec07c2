package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"flexbase-backend/internal/metadata"
)

// Views is the SQL-backed saved-view store. Filters, sorts and visible
// fields are stored as JSON columns; the engine interprets them.
type Views struct {
	s *Store
}

func NewViews(s *Store) *Views {
	return &Views{s: s}
}

const viewColumns = "id, object_type_id, name, layout_type, filters, sorts, visible_fields, expression, kanban_module_name, kanban_field_key, is_default, visibility, created_by"

// ListByType returns all views of one object type, default view first, then
// by name.
func (v *Views) ListByType(ctx context.Context, objectTypeID string) ([]metadata.View, error) {
	pb := v.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"SELECT %s FROM _views WHERE object_type_id = %s ORDER BY is_default DESC, name",
		viewColumns, pb.Add(objectTypeID))

	rows, err := v.s.DB.QueryContext(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	defer rows.Close()

	var views []metadata.View
	for rows.Next() {
		view, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, rows.Err()
}

// Get returns one view by id.
func (v *Views) Get(ctx context.Context, viewID string) (metadata.View, error) {
	pb := v.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("SELECT %s FROM _views WHERE id = %s", viewColumns, pb.Add(viewID))

	rows, err := v.s.DB.QueryContext(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return metadata.View{}, fmt.Errorf("get view: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return metadata.View{}, err
		}
		return metadata.View{}, ErrNotFound
	}
	return scanView(rows)
}

func scanView(rows *sql.Rows) (metadata.View, error) {
	var view metadata.View
	var filtersJSON, sortsJSON, fieldsJSON []byte
	var createdBy sql.NullString
	if err := rows.Scan(&view.ID, &view.ObjectTypeID, &view.Name, &view.LayoutType,
		&filtersJSON, &sortsJSON, &fieldsJSON, &view.Expression,
		&view.KanbanModuleName, &view.KanbanFieldKey, &view.IsDefault, &view.Visibility, &createdBy); err != nil {
		return metadata.View{}, fmt.Errorf("scan view row: %w", err)
	}
	view.CreatedBy = createdBy.String
	if err := json.Unmarshal(filtersJSON, &view.Filters); err != nil {
		return metadata.View{}, fmt.Errorf("decode view filters %s: %w", view.ID, err)
	}
	if err := json.Unmarshal(sortsJSON, &view.Sorts); err != nil {
		return metadata.View{}, fmt.Errorf("decode view sorts %s: %w", view.ID, err)
	}
	if err := json.Unmarshal(fieldsJSON, &view.VisibleFields); err != nil {
		return metadata.View{}, fmt.Errorf("decode view fields %s: %w", view.ID, err)
	}
	return view, nil
}

// Insert creates a view.
func (v *Views) Insert(ctx context.Context, view metadata.View) error {
	filtersJSON, sortsJSON, fieldsJSON, err := encodeViewJSON(view)
	if err != nil {
		return err
	}

	now := FormatTime(time.Now())
	pb := v.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		`INSERT INTO _views (id, object_type_id, name, layout_type, filters, sorts, visible_fields, expression, kanban_module_name, kanban_field_key, is_default, visibility, created_by, created_at, updated_at)
		 VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		pb.Add(view.ID), pb.Add(view.ObjectTypeID), pb.Add(view.Name), pb.Add(view.LayoutType),
		pb.Add(filtersJSON), pb.Add(sortsJSON), pb.Add(fieldsJSON), pb.Add(view.Expression),
		pb.Add(view.KanbanModuleName), pb.Add(view.KanbanFieldKey), pb.Add(view.IsDefault),
		pb.Add(view.Visibility), pb.Add(nullable(view.CreatedBy)), pb.Add(now), pb.Add(now))
	if _, err := v.s.DB.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return v.s.Dialect.MapError(fmt.Errorf("insert view: %w", err))
	}
	return nil
}

// Update overwrites the mutable columns of a view. The default flag and the
// owning object type never change after creation.
func (v *Views) Update(ctx context.Context, view metadata.View) error {
	filtersJSON, sortsJSON, fieldsJSON, err := encodeViewJSON(view)
	if err != nil {
		return err
	}

	pb := v.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		`UPDATE _views SET name = %s, layout_type = %s, filters = %s, sorts = %s, visible_fields = %s, expression = %s, kanban_module_name = %s, kanban_field_key = %s, visibility = %s, updated_at = %s
		 WHERE id = %s`,
		pb.Add(view.Name), pb.Add(view.LayoutType), pb.Add(filtersJSON), pb.Add(sortsJSON),
		pb.Add(fieldsJSON), pb.Add(view.Expression), pb.Add(view.KanbanModuleName),
		pb.Add(view.KanbanFieldKey), pb.Add(view.Visibility), pb.Add(FormatTime(time.Now())),
		pb.Add(view.ID))
	n, err := Exec(ctx, v.s.DB, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one view.
func (v *Views) Delete(ctx context.Context, viewID string) error {
	pb := v.s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM _views WHERE id = %s", pb.Add(viewID))
	n, err := Exec(ctx, v.s.DB, sqlStr, pb.Params()...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeViewJSON(view metadata.View) (string, string, string, error) {
	filters := view.Filters
	if filters == nil {
		filters = []metadata.Filter{}
	}
	sorts := view.Sorts
	if sorts == nil {
		sorts = []metadata.Sort{}
	}
	fields := view.VisibleFields
	if fields == nil {
		fields = []metadata.FieldRef{}
	}

	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return "", "", "", fmt.Errorf("encode view filters: %w", err)
	}
	sortsJSON, err := json.Marshal(sorts)
	if err != nil {
		return "", "", "", fmt.Errorf("encode view sorts: %w", err)
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return "", "", "", fmt.Errorf("encode view fields: %w", err)
	}
	return string(filtersJSON), string(sortsJSON), string(fieldsJSON), nil
}
