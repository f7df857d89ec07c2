package store

import (
	"fmt"
	"strings"
)

// PostgresDialect implements Dialect for PostgreSQL via pgx/stdlib.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) NewParamBuilder() ParamBuilder {
	return &pgParamBuilder{}
}

func (d *PostgresDialect) NowExpr() string { return "NOW()" }

func (d *PostgresDialect) SystemTablesSQL() string {
	return pgSystemTablesSQL
}

func (d *PostgresDialect) InExpr(field string, pb ParamBuilder, values []any) string {
	if len(values) == 0 {
		return "1=0" // always false
	}
	// String keys (the id columns) bind as a single text array. Anything
	// else expands to one placeholder per value so pgx sees the original
	// types instead of a stringified copy.
	if strs, ok := asStringSlice(values); ok {
		return fmt.Sprintf("%s = ANY(%s)", field, pb.Add(strs))
	}
	return fmt.Sprintf("%s IN (%s)", field, joinPlaceholders(pb, values))
}

func asStringSlice(values []any) ([]string, bool) {
	strs := make([]string, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		strs[i] = s
	}
	return strs, true
}

func (d *PostgresDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	// With pgx/stdlib the underlying error message includes the PG code.
	errStr := err.Error()
	if strings.Contains(errStr, "23505") || strings.Contains(errStr, "unique constraint") || strings.Contains(errStr, "duplicate key") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}

// --- PostgreSQL DDL ---

const pgSystemTablesSQL = `
CREATE TABLE IF NOT EXISTS _modules (
    id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name         TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    schema       JSONB NOT NULL DEFAULT '[]',
    is_active    BOOLEAN NOT NULL DEFAULT true,
    created_at   TIMESTAMPTZ DEFAULT NOW(),
    updated_at   TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS _object_types (
    id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name         TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    icon         TEXT NOT NULL DEFAULT '',
    color        TEXT NOT NULL DEFAULT '',
    is_active    BOOLEAN NOT NULL DEFAULT true,
    created_at   TIMESTAMPTZ DEFAULT NOW(),
    updated_at   TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS _object_type_modules (
    object_type_id UUID NOT NULL REFERENCES _object_types(id) ON DELETE CASCADE,
    module_id      UUID NOT NULL REFERENCES _modules(id) ON DELETE CASCADE,
    required       BOOLEAN NOT NULL DEFAULT false,
    position       INT NOT NULL DEFAULT 0,
    PRIMARY KEY (object_type_id, module_id)
);

CREATE TABLE IF NOT EXISTS _objects (
    id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    object_type_id UUID NOT NULL REFERENCES _object_types(id),
    owner_id       UUID,
    created_by     UUID,
    created_at     TIMESTAMPTZ DEFAULT NOW(),
    updated_at     TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_objects_type ON _objects(object_type_id, created_at);

CREATE TABLE IF NOT EXISTS _object_modules (
    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    object_id  UUID NOT NULL REFERENCES _objects(id) ON DELETE CASCADE,
    module_id  UUID NOT NULL REFERENCES _modules(id) ON DELETE CASCADE,
    data       JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW(),
    UNIQUE (object_id, module_id)
);
CREATE INDEX IF NOT EXISTS idx_object_modules_module ON _object_modules(module_id);

CREATE TABLE IF NOT EXISTS _object_relations (
    id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    from_object_id UUID NOT NULL REFERENCES _objects(id) ON DELETE CASCADE,
    to_object_id   UUID NOT NULL REFERENCES _objects(id) ON DELETE CASCADE,
    relation_type  TEXT NOT NULL DEFAULT 'related',
    metadata       JSONB NOT NULL DEFAULT '{}',
    created_at     TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_object_relations_from ON _object_relations(from_object_id);
CREATE INDEX IF NOT EXISTS idx_object_relations_to ON _object_relations(to_object_id);

CREATE TABLE IF NOT EXISTS _roles (
    id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name         TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    created_at   TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS _permissions (
    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    role_id    UUID NOT NULL REFERENCES _roles(id) ON DELETE CASCADE,
    action     TEXT NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    UNIQUE (role_id, action)
);

CREATE TABLE IF NOT EXISTS _module_permissions (
    id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    role_id        UUID NOT NULL REFERENCES _roles(id) ON DELETE CASCADE,
    module_id      UUID REFERENCES _modules(id) ON DELETE CASCADE,
    object_type_id UUID REFERENCES _object_types(id) ON DELETE CASCADE,
    can_read       BOOLEAN NOT NULL DEFAULT false,
    can_write      BOOLEAN NOT NULL DEFAULT false,
    can_delete     BOOLEAN NOT NULL DEFAULT false,
    created_at     TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS _views (
    id                 UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    object_type_id     UUID NOT NULL REFERENCES _object_types(id) ON DELETE CASCADE,
    name               TEXT NOT NULL,
    layout_type        TEXT NOT NULL DEFAULT 'table',
    filters            JSONB NOT NULL DEFAULT '[]',
    sorts              JSONB NOT NULL DEFAULT '[]',
    visible_fields     JSONB NOT NULL DEFAULT '[]',
    expression         TEXT NOT NULL DEFAULT '',
    kanban_module_name TEXT NOT NULL DEFAULT '',
    kanban_field_key   TEXT NOT NULL DEFAULT '',
    is_default         BOOLEAN NOT NULL DEFAULT false,
    visibility         TEXT NOT NULL DEFAULT 'workspace',
    created_by         UUID,
    created_at         TIMESTAMPTZ DEFAULT NOW(),
    updated_at         TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_views_type ON _views(object_type_id);

CREATE TABLE IF NOT EXISTS _users (
    id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    is_active     BOOLEAN NOT NULL DEFAULT true,
    created_at    TIMESTAMPTZ DEFAULT NOW(),
    updated_at    TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS _user_roles (
    user_id UUID NOT NULL REFERENCES _users(id) ON DELETE CASCADE,
    role_id UUID NOT NULL REFERENCES _roles(id) ON DELETE CASCADE,
    PRIMARY KEY (user_id, role_id)
);

CREATE TABLE IF NOT EXISTS _refresh_tokens (
    id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id    UUID NOT NULL REFERENCES _users(id) ON DELETE CASCADE,
    token      UUID NOT NULL UNIQUE DEFAULT gen_random_uuid(),
    expires_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_token ON _refresh_tokens(token);
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_expires ON _refresh_tokens(expires_at);
`

// Compile-time check
var _ Dialect = (*PostgresDialect)(nil)
