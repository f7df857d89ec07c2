package store

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"flexbase-backend/internal/metadata"
)

// Bootstrap creates all system tables and seeds the built-in roles, default
// grants and the initial admin user. Safe to run on every startup.
func (s *Store) Bootstrap(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, s.Dialect.SystemTablesSQL()); err != nil {
		return fmt.Errorf("create system tables: %w", err)
	}

	adminRoleID, err := s.seedRole(ctx, metadata.AdminRole, "Administrator")
	if err != nil {
		return err
	}
	memberRoleID, err := s.seedRole(ctx, "member", "Member")
	if err != nil {
		return err
	}

	// Members get the standard object/view actions and a wildcard read/write
	// module grant. Narrower grants recorded later take precedence over the
	// wildcard.
	memberActions := []string{
		"object:read", "object:create", "object:update",
		"view:read", "view:create", "view:update",
		"relation:read", "relation:create",
		"aggregate:read",
	}
	for _, action := range memberActions {
		if err := s.seedActionPermission(ctx, memberRoleID, action); err != nil {
			return err
		}
	}
	if err := s.seedWildcardModuleGrant(ctx, memberRoleID); err != nil {
		return err
	}

	if err := s.seedAdminUser(ctx, adminRoleID); err != nil {
		return err
	}

	return nil
}

func (s *Store) seedRole(ctx context.Context, name, displayName string) (string, error) {
	pb := s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO _roles (id, name, display_name) VALUES (%s, %s, %s) ON CONFLICT (name) DO NOTHING",
		pb.Add(uuid.New().String()), pb.Add(name), pb.Add(displayName))
	if _, err := s.DB.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return "", fmt.Errorf("seed role %s: %w", name, err)
	}

	pb = s.Dialect.NewParamBuilder()
	var id string
	err := s.DB.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id FROM _roles WHERE name = %s", pb.Add(name)), pb.Params()...,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("read role %s: %w", name, err)
	}
	return id, nil
}

func (s *Store) seedActionPermission(ctx context.Context, roleID, action string) error {
	pb := s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO _permissions (id, role_id, action) VALUES (%s, %s, %s) ON CONFLICT (role_id, action) DO NOTHING",
		pb.Add(uuid.New().String()), pb.Add(roleID), pb.Add(action))
	if _, err := s.DB.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("seed permission %s: %w", action, err)
	}
	return nil
}

func (s *Store) seedWildcardModuleGrant(ctx context.Context, roleID string) error {
	pb := s.Dialect.NewParamBuilder()
	var count int
	err := s.DB.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM _module_permissions WHERE role_id = %s AND module_id IS NULL AND object_type_id IS NULL", pb.Add(roleID)),
		pb.Params()...,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("check wildcard grant: %w", err)
	}
	if count > 0 {
		return nil
	}

	pb = s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO _module_permissions (id, role_id, module_id, object_type_id, can_read, can_write, can_delete) VALUES (%s, %s, NULL, NULL, %s, %s, %s)",
		pb.Add(uuid.New().String()), pb.Add(roleID), pb.Add(true), pb.Add(true), pb.Add(false))
	if _, err := s.DB.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("seed wildcard grant: %w", err)
	}
	return nil
}

func (s *Store) seedAdminUser(ctx context.Context, adminRoleID string) error {
	var count int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM _users").Scan(&count); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	userID := uuid.New().String()
	pb := s.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO _users (id, email, password_hash) VALUES (%s, %s, %s)",
		pb.Add(userID), pb.Add("admin@flexbase.local"), pb.Add(string(hash)))
	if _, err := s.DB.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	pb = s.Dialect.NewParamBuilder()
	sqlStr = fmt.Sprintf(
		"INSERT INTO _user_roles (user_id, role_id) VALUES (%s, %s)",
		pb.Add(userID), pb.Add(adminRoleID))
	if _, err := s.DB.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("assign admin role: %w", err)
	}

	log.Println("Seeded initial admin user admin@flexbase.local (password: admin123, change it)")
	return nil
}
