package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"flexbase-backend/internal/apperr"
	"flexbase-backend/internal/metadata"
	"flexbase-backend/internal/store"
)

// Handler handles authentication endpoints.
type Handler struct {
	store     *store.Store
	jwtSecret string
}

func NewHandler(s *store.Store, jwtSecret string) *Handler {
	return &Handler{store: s, jwtSecret: jwtSecret}
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return apperr.Unauthorized("Email and password are required")
	}

	ctx := c.Context()

	pb := h.store.Dialect.NewParamBuilder()
	var userID, passwordHash string
	var active bool
	err := h.store.DB.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id, password_hash, is_active FROM _users WHERE email = %s", pb.Add(body.Email)),
		pb.Params()...,
	).Scan(&userID, &passwordHash, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Unauthorized("Invalid email or password")
	}
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if !active {
		return apperr.Unauthorized("Account is disabled")
	}
	if !CheckPassword(body.Password, passwordHash) {
		return apperr.Unauthorized("Invalid email or password")
	}

	roles, err := h.userRoles(ctx, userID)
	if err != nil {
		return err
	}
	pair, err := h.issueTokens(ctx, userID, roles)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

// Register handles POST /api/auth/register. New accounts get the member
// role.
func (h *Handler) Register(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Email == "" {
		return apperr.Validation("email is required")
	}
	if len(body.Password) < 8 {
		return apperr.Validation("password must be at least 8 characters")
	}

	ctx := c.Context()
	hash, err := HashPassword(body.Password)
	if err != nil {
		return err
	}

	userID := uuid.New().String()
	now := store.FormatTime(time.Now())
	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO _users (id, email, password_hash, is_active, created_at, updated_at) VALUES (%s, %s, %s, %s, %s, %s)",
		pb.Add(userID), pb.Add(body.Email), pb.Add(hash), pb.Add(true), pb.Add(now), pb.Add(now))
	if _, err := h.store.DB.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		if errors.Is(h.store.Dialect.MapError(err), store.ErrUniqueViolation) {
			return apperr.Validation("email is already registered")
		}
		return fmt.Errorf("create user: %w", err)
	}

	pb = h.store.Dialect.NewParamBuilder()
	var memberRoleID string
	err = h.store.DB.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id FROM _roles WHERE name = %s", pb.Add("member")),
		pb.Params()...,
	).Scan(&memberRoleID)
	if err != nil {
		return fmt.Errorf("look up member role: %w", err)
	}
	pb = h.store.Dialect.NewParamBuilder()
	sqlStr = fmt.Sprintf("INSERT INTO _user_roles (user_id, role_id) VALUES (%s, %s)",
		pb.Add(userID), pb.Add(memberRoleID))
	if _, err := h.store.DB.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("assign member role: %w", err)
	}

	pair, err := h.issueTokens(ctx, userID, []string{"member"})
	if err != nil {
		return err
	}
	return c.Status(201).JSON(fiber.Map{"data": pair})
}

// Refresh handles POST /api/auth/refresh. Tokens rotate: the presented token
// is consumed whether or not a new pair is issued.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.RefreshToken == "" {
		return apperr.Unauthorized("Refresh token is required")
	}

	ctx := c.Context()

	pb := h.store.Dialect.NewParamBuilder()
	var tokenID, userID string
	var expiresAt any
	var active bool
	err := h.store.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT rt.id, rt.user_id, rt.expires_at, u.is_active
		 FROM _refresh_tokens rt JOIN _users u ON u.id = rt.user_id
		 WHERE rt.token = %s`, pb.Add(body.RefreshToken)),
		pb.Params()...,
	).Scan(&tokenID, &userID, &expiresAt, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Unauthorized("Invalid refresh token")
	}
	if err != nil {
		return fmt.Errorf("look up refresh token: %w", err)
	}

	pb = h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM _refresh_tokens WHERE id = %s", pb.Add(tokenID))
	if _, err := store.Exec(ctx, h.store.DB, sqlStr, pb.Params()...); err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	if time.Now().After(store.AsTime(expiresAt)) {
		return apperr.Unauthorized("Refresh token expired")
	}
	if !active {
		return apperr.Unauthorized("Account is disabled")
	}

	roles, err := h.userRoles(ctx, userID)
	if err != nil {
		return err
	}
	pair, err := h.issueTokens(ctx, userID, roles)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": pair})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.New("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.RefreshToken == "" {
		return apperr.Unauthorized("Refresh token is required")
	}

	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf("DELETE FROM _refresh_tokens WHERE token = %s", pb.Add(body.RefreshToken))
	_, _ = store.Exec(c.Context(), h.store.DB, sqlStr, pb.Params()...)

	return c.JSON(fiber.Map{"message": "Logged out"})
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(c *fiber.Ctx) error {
	user := GetUser(c)
	if user == nil {
		return apperr.Unauthorized("Authentication required")
	}
	return c.JSON(fiber.Map{"data": user})
}

func (h *Handler) userRoles(ctx context.Context, userID string) ([]string, error) {
	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"SELECT r.name FROM _roles r JOIN _user_roles ur ON ur.role_id = r.id WHERE ur.user_id = %s ORDER BY r.name",
		pb.Add(userID))
	rows, err := h.store.DB.QueryContext(ctx, sqlStr, pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("load user roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role row: %w", err)
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

func (h *Handler) issueTokens(ctx context.Context, userID string, roles []string) (*TokenPair, error) {
	access, err := GenerateAccessToken(&metadata.UserContext{ID: userID, Roles: roles}, h.jwtSecret)
	if err != nil {
		return nil, err
	}
	refresh := GenerateRefreshToken()

	now := time.Now()
	pb := h.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO _refresh_tokens (id, user_id, token, expires_at, created_at) VALUES (%s, %s, %s, %s, %s)",
		pb.Add(uuid.New().String()), pb.Add(userID), pb.Add(refresh),
		pb.Add(store.FormatTime(now.Add(RefreshTokenTTL))), pb.Add(store.FormatTime(now)))
	if _, err := h.store.DB.ExecContext(ctx, sqlStr, pb.Params()...); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// RegisterRoutes registers auth routes on the given Fiber app.
func RegisterRoutes(app *fiber.App, h *Handler, authRequired fiber.Handler) {
	grp := app.Group("/api/auth")
	grp.Post("/login", h.Login)
	grp.Post("/register", h.Register)
	grp.Post("/refresh", h.Refresh)
	grp.Post("/logout", h.Logout)
	grp.Get("/me", authRequired, h.Me)
}
