package store

import (
	"fmt"
	"strings"
)

// SQLiteDialect implements Dialect for SQLite via modernc.org/sqlite.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) NewParamBuilder() ParamBuilder {
	return &sqliteParamBuilder{}
}

func (d *SQLiteDialect) NowExpr() string { return "datetime('now')" }

func (d *SQLiteDialect) SystemTablesSQL() string {
	return sqliteSystemTablesSQL
}

func (d *SQLiteDialect) InExpr(field string, pb ParamBuilder, values []any) string {
	if len(values) == 0 {
		return "1=0" // always false
	}
	return fmt.Sprintf("%s IN (%s)", field, joinPlaceholders(pb, values))
}

func (d *SQLiteDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "constraint failed: UNIQUE") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}

// --- SQLite DDL ---

const sqliteSystemTablesSQL = `
CREATE TABLE IF NOT EXISTS _modules (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    schema       TEXT NOT NULL DEFAULT '[]',
    is_active    INTEGER NOT NULL DEFAULT 1,
    created_at   TEXT DEFAULT (datetime('now')),
    updated_at   TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS _object_types (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    icon         TEXT NOT NULL DEFAULT '',
    color        TEXT NOT NULL DEFAULT '',
    is_active    INTEGER NOT NULL DEFAULT 1,
    created_at   TEXT DEFAULT (datetime('now')),
    updated_at   TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS _object_type_modules (
    object_type_id TEXT NOT NULL REFERENCES _object_types(id) ON DELETE CASCADE,
    module_id      TEXT NOT NULL REFERENCES _modules(id) ON DELETE CASCADE,
    required       INTEGER NOT NULL DEFAULT 0,
    position       INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (object_type_id, module_id)
);

CREATE TABLE IF NOT EXISTS _objects (
    id             TEXT PRIMARY KEY,
    object_type_id TEXT NOT NULL REFERENCES _object_types(id),
    owner_id       TEXT,
    created_by     TEXT,
    created_at     TEXT DEFAULT (datetime('now')),
    updated_at     TEXT DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_objects_type ON _objects(object_type_id, created_at);

CREATE TABLE IF NOT EXISTS _object_modules (
    id         TEXT PRIMARY KEY,
    object_id  TEXT NOT NULL REFERENCES _objects(id) ON DELETE CASCADE,
    module_id  TEXT NOT NULL REFERENCES _modules(id) ON DELETE CASCADE,
    data       TEXT NOT NULL DEFAULT '{}',
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now')),
    UNIQUE (object_id, module_id)
);
CREATE INDEX IF NOT EXISTS idx_object_modules_module ON _object_modules(module_id);

CREATE TABLE IF NOT EXISTS _object_relations (
    id             TEXT PRIMARY KEY,
    from_object_id TEXT NOT NULL REFERENCES _objects(id) ON DELETE CASCADE,
    to_object_id   TEXT NOT NULL REFERENCES _objects(id) ON DELETE CASCADE,
    relation_type  TEXT NOT NULL DEFAULT 'related',
    metadata       TEXT NOT NULL DEFAULT '{}',
    created_at     TEXT DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_object_relations_from ON _object_relations(from_object_id);
CREATE INDEX IF NOT EXISTS idx_object_relations_to ON _object_relations(to_object_id);

CREATE TABLE IF NOT EXISTS _roles (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    created_at   TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS _permissions (
    id         TEXT PRIMARY KEY,
    role_id    TEXT NOT NULL REFERENCES _roles(id) ON DELETE CASCADE,
    action     TEXT NOT NULL,
    created_at TEXT DEFAULT (datetime('now')),
    UNIQUE (role_id, action)
);

CREATE TABLE IF NOT EXISTS _module_permissions (
    id             TEXT PRIMARY KEY,
    role_id        TEXT NOT NULL REFERENCES _roles(id) ON DELETE CASCADE,
    module_id      TEXT REFERENCES _modules(id) ON DELETE CASCADE,
    object_type_id TEXT REFERENCES _object_types(id) ON DELETE CASCADE,
    can_read       INTEGER NOT NULL DEFAULT 0,
    can_write      INTEGER NOT NULL DEFAULT 0,
    can_delete     INTEGER NOT NULL DEFAULT 0,
    created_at     TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS _views (
    id                 TEXT PRIMARY KEY,
    object_type_id     TEXT NOT NULL REFERENCES _object_types(id) ON DELETE CASCADE,
    name               TEXT NOT NULL,
    layout_type        TEXT NOT NULL DEFAULT 'table',
    filters            TEXT NOT NULL DEFAULT '[]',
    sorts              TEXT NOT NULL DEFAULT '[]',
    visible_fields     TEXT NOT NULL DEFAULT '[]',
    expression         TEXT NOT NULL DEFAULT '',
    kanban_module_name TEXT NOT NULL DEFAULT '',
    kanban_field_key   TEXT NOT NULL DEFAULT '',
    is_default         INTEGER NOT NULL DEFAULT 0,
    visibility         TEXT NOT NULL DEFAULT 'workspace',
    created_by         TEXT,
    created_at         TEXT DEFAULT (datetime('now')),
    updated_at         TEXT DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_views_type ON _views(object_type_id);

CREATE TABLE IF NOT EXISTS _users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    is_active     INTEGER NOT NULL DEFAULT 1,
    created_at    TEXT DEFAULT (datetime('now')),
    updated_at    TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS _user_roles (
    user_id TEXT NOT NULL REFERENCES _users(id) ON DELETE CASCADE,
    role_id TEXT NOT NULL REFERENCES _roles(id) ON DELETE CASCADE,
    PRIMARY KEY (user_id, role_id)
);

CREATE TABLE IF NOT EXISTS _refresh_tokens (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL REFERENCES _users(id) ON DELETE CASCADE,
    token      TEXT NOT NULL UNIQUE,
    expires_at TEXT NOT NULL,
    created_at TEXT DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_token ON _refresh_tokens(token);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_expires ON _refresh_tokens(expires_at);
`

// Compile-time check
var _ Dialect = (*SQLiteDialect)(nil)
