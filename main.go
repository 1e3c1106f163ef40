package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"wizzzard/config"
	"wizzzard/handlers"
	"wizzzard/logger"
	"wizzzard/metrics"
	"wizzzard/middleware"
	"wizzzard/services"
	"wizzzard/utils"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("FATAL: failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	metrics.Init()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	backend, err := services.OpenBackend(ctx, cfg)
	cancel()
	if err != nil {
		logger.Log.Fatal("failed to open backend", zap.Error(err))
	}
	defer backend.Close()

	quizService := services.NewQuizService(backend.Quizzes)
	defer quizService.Shutdown()

	tokens := middleware.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	limits := middleware.NewRateLimits(cfg.RateLimit)
	defer limits.Close()

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler(cfg),
		BodyLimit:    4 * 1024 * 1024, // 4MB
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))
	app.Use(metrics.Middleware())
	app.Use(limits.GeneralMiddleware())

	auth := middleware.RequireIdentity(tokens)
	quizHandler := handlers.NewQuizHandler(quizService, services.NewWatcher(backend.Quizzes))

	// API Routes
	api := app.Group("/api")
	handlers.NewAuthHandler(backend.Users, tokens).
		WithProviders(services.OAuthProviders(cfg.OAuth)...).
		Routes(api, limits.AuthMiddleware(), auth)
	quizHandler.Routes(api, auth)

	// Live session stream
	app.Get("/ws/quizzes/:id", handlers.UpgradeCheck, middleware.WebSocketAuth(tokens), quizHandler.Stream())

	app.Get("/metrics", metrics.Handler())

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"backend":   cfg.StoreBackend,
		})
	})

	go func() {
		logger.Log.Info("🚀 HTTP server starting",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.AppEnv),
			zap.String("backend", cfg.StoreBackend),
			zap.Bool("redis", cfg.RedisURL != ""))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Log.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Log.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// customErrorHandler renders errors that escape handlers in the API envelope.
func customErrorHandler(cfg *config.Config) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := utils.StatusCode(err)
		message := err.Error()

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		}

		// Don't expose internal errors in production
		if cfg.IsProduction() && code == fiber.StatusInternalServerError {
			message = "An error occurred. Please try again later."
		}

		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}
}
