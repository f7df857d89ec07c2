package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"flexbase-backend/internal/admin"
	"flexbase-backend/internal/apperr"
	"flexbase-backend/internal/auth"
	"flexbase-backend/internal/config"
	"flexbase-backend/internal/engine"
	"flexbase-backend/internal/metadata"
	"flexbase-backend/internal/permission"
	"flexbase-backend/internal/store"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, driver: %s)", cfg.Server.Port, cfg.Database.Driver)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// 3. Bootstrap system tables and seed roles
	if err := db.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap system tables: %v", err)
	}
	log.Println("System tables ready")

	// 4. Create registry and load metadata + grants
	reg := metadata.NewRegistry()
	if err := metadata.LoadAll(ctx, db.DB, reg); err != nil {
		log.Printf("WARN: Failed to load metadata: %v", err)
	}

	// 5. Core services
	objects := store.NewObjects(db)
	views := store.NewViews(db)
	perms := permission.NewResolver(reg)
	evaluator := engine.NewEvaluator(reg, objects)
	evaluator.SetPageBounds(cfg.Engine.DefaultPageSize, cfg.Engine.MaxPageSize)
	viewService := engine.NewViewService(reg, views)
	objectService := engine.NewObjectService(reg, objects, perms)

	// 6. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 7. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 8. Auth routes (login/register/refresh need no token)
	authHandler := auth.NewHandler(db, cfg.JWTSecret)
	authMW := auth.Middleware(cfg.JWTSecret)
	adminMW := auth.RequireAdmin()
	auth.RegisterRoutes(app, authHandler, authMW)

	// 9. Admin routes (auth + admin required)
	adminHandler := admin.NewHandler(db, reg, objects)
	admin.RegisterRoutes(app, adminHandler, authMW, adminMW)

	// 10. Engine routes (auth required)
	engineHandler := engine.NewHandler(reg, evaluator, viewService, objectService, perms)
	engine.RegisterRoutes(app, engineHandler, authMW)

	// 11. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(apperr.ErrorResponse{Error: appErr})
	}

	log.Printf("ERROR: %v", err)
	return c.Status(code).JSON(apperr.ErrorResponse{
		Error: &apperr.AppError{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		},
	})
}
