package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"lifelessons/backend/config"
	"lifelessons/backend/controllers"
	"lifelessons/backend/middleware"
	"lifelessons/backend/routes"
	"lifelessons/backend/services"
	"lifelessons/backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(cfg.LogMode)
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := utils.InitDB(cfg)
	if err != nil {
		logger.Fatal("Error initializing database", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := controllers.NewAuthController(db, cfg, logger).EnsureAdmin(cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Fatal("Error creating admin account", "error", err)
	}

	var locker services.Locker = services.NewMemoryLocker()
	if cfg.RedisAddr != "" {
		rl, err := services.NewRedisLocker(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Fatal("Error connecting to redis", "error", err)
		}
		defer rl.Close()
		locker = rl
		logger.Info("using redis locks", "addr", cfg.RedisAddr)
	}

	trash := services.NewTrashService(db, logger, locker, cfg.TrashRetention)
	go services.NewTrashSweeper(trash, cfg.TrashPurgeInterval, logger).Start(ctx)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + middleware.RequestIDHeader,
	}))
	app.Use(middleware.LoggingMiddleware(logger))

	// Setup routes
	routes.SetupRoutes(app, db, cfg, logger, trash)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	// Start server
	logger.Info("listening", "port", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("server stopped", "error", err)
	}
}
