package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
)

// Querier is the minimal database surface the loader needs. *sql.DB and
// *sql.Tx both satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// LoadAll reads the full schema snapshot and all permission grants from the
// database and swaps them into the registry.
func LoadAll(ctx context.Context, db Querier, reg *Registry) error {
	modules, err := loadModules(ctx, db)
	if err != nil {
		return fmt.Errorf("load modules: %w", err)
	}

	types, err := loadObjectTypes(ctx, db)
	if err != nil {
		return fmt.Errorf("load object types: %w", err)
	}

	compositions, err := loadCompositions(ctx, db)
	if err != nil {
		return fmt.Errorf("load compositions: %w", err)
	}

	reg.Load(modules, types, compositions)

	actions, err := loadActionPermissions(ctx, db)
	if err != nil {
		return fmt.Errorf("load action permissions: %w", err)
	}

	grants, err := loadModulePermissions(ctx, db)
	if err != nil {
		return fmt.Errorf("load module permissions: %w", err)
	}

	reg.LoadGrants(actions, grants)

	log.Printf("Loaded %d modules, %d object types, %d composition entries, %d action grants, %d module grants into registry",
		len(modules), len(types), len(compositions), len(actions), len(grants))
	return nil
}

// Reload is an alias for LoadAll, called after admin mutations.
func Reload(ctx context.Context, db Querier, reg *Registry) error {
	return LoadAll(ctx, db, reg)
}

func loadModules(ctx context.Context, db Querier) ([]*Module, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, display_name, schema, is_active FROM _modules ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []*Module
	for rows.Next() {
		var m Module
		var schemaJSON []byte
		if err := rows.Scan(&m.ID, &m.Name, &m.DisplayName, &schemaJSON, &m.IsActive); err != nil {
			return nil, fmt.Errorf("scan module row: %w", err)
		}
		if err := json.Unmarshal(schemaJSON, &m.Schema); err != nil {
			log.Printf("WARN: skipping module %s (invalid schema JSON): %v", m.Name, err)
			continue
		}
		modules = append(modules, &m)
	}
	return modules, rows.Err()
}

func loadObjectTypes(ctx context.Context, db Querier) ([]*ObjectType, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, display_name, icon, color, is_active FROM _object_types ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []*ObjectType
	for rows.Next() {
		var t ObjectType
		if err := rows.Scan(&t.ID, &t.Name, &t.DisplayName, &t.Icon, &t.Color, &t.IsActive); err != nil {
			return nil, fmt.Errorf("scan object type row: %w", err)
		}
		types = append(types, &t)
	}
	return types, rows.Err()
}

func loadCompositions(ctx context.Context, db Querier) ([]ObjectTypeModule, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT object_type_id, module_id, required, position FROM _object_type_modules ORDER BY object_type_id, position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ObjectTypeModule
	for rows.Next() {
		var e ObjectTypeModule
		if err := rows.Scan(&e.ObjectTypeID, &e.ModuleID, &e.Required, &e.Position); err != nil {
			return nil, fmt.Errorf("scan composition row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// loadActionPermissions joins roles so grants are keyed by role name, which
// is what the JWT claims carry.
func loadActionPermissions(ctx context.Context, db Querier) ([]ActionPermission, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT r.name, p.action FROM _permissions p JOIN _roles r ON r.id = p.role_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []ActionPermission
	for rows.Next() {
		var a ActionPermission
		if err := rows.Scan(&a.RoleID, &a.Action); err != nil {
			return nil, fmt.Errorf("scan permission row: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func loadModulePermissions(ctx context.Context, db Querier) ([]ModulePermission, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT r.name, mp.module_id, mp.object_type_id, mp.can_read, mp.can_write, mp.can_delete
		 FROM _module_permissions mp JOIN _roles r ON r.id = mp.role_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []ModulePermission
	for rows.Next() {
		var g ModulePermission
		var moduleID, objectTypeID sql.NullString
		if err := rows.Scan(&g.RoleID, &moduleID, &objectTypeID, &g.CanRead, &g.CanWrite, &g.CanDelete); err != nil {
			return nil, fmt.Errorf("scan module permission row: %w", err)
		}
		if moduleID.Valid {
			g.ModuleID = &moduleID.String
		}
		if objectTypeID.Valid {
			g.ObjectTypeID = &objectTypeID.String
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
