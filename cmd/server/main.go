package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/sheetsight/api/internal/client"
	"github.com/sheetsight/api/internal/config"
	"github.com/sheetsight/api/internal/handler"
	"github.com/sheetsight/api/internal/middleware"
	"github.com/sheetsight/api/internal/query"
	"github.com/sheetsight/api/internal/service"
	"github.com/sheetsight/api/internal/store"
	"github.com/sheetsight/api/internal/worker"
	ws "github.com/sheetsight/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Stores
	jobStore := store.NewJobStore(redisClient)
	datasetStore := store.NewDatasetStore(redisClient)
	computationStore := store.NewComputationStore(redisClient)

	// Query pipeline
	groqClient := client.NewGroqClient(&cfg.Groq)
	generator := query.NewGenerator(groqClient, time.Duration(cfg.Groq.Timeout)*time.Second)
	engine := query.NewEngine()

	// Services
	uploadService := service.NewUploadService(redisClient, asynqClient, jobStore, datasetStore)
	computeService := service.NewComputeService(datasetStore, computationStore, generator, engine)

	// Handlers
	uploadHandler := handler.NewUploadHandler(uploadService, cfg.Upload)
	jobsHandler := handler.NewJobsHandler(uploadService)
	computeHandler := handler.NewComputeHandler(computeService, validate)

	// Middleware
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    cfg.Upload.MaxBytes + 1024*1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"groq": groqClient.IsConfigured(),
			},
		})
	})

	// API routes
	api := app.Group("/api")

	api.Post("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour), uploadHandler.Upload)
	api.Get("/jobs/:jobId", jobsHandler.Status)

	computeGroup := api.Group("/compute", rateLimiter.ComputeLimit(cfg.RateLimit.ComputePerMin))
	computeGroup.Post("/", computeHandler.Compute)
	computeGroup.Get("/history", computeHandler.History)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, uploadService, jobStore, datasetStore, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, uploadService *service.UploadService, jobStore *store.JobStore, datasetStore *store.DatasetStore, hub *ws.Hub) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// The pool bound: jobs beyond this wait in pending, which is
			// the backpressure protecting the process from concurrent
			// large-file parses.
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				"extract": 10,
			},
		},
	)

	extractWorker := worker.NewExtractWorker(
		uploadService, jobStore, datasetStore, hub,
		time.Duration(cfg.Worker.ExtractTimeout)*time.Second,
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeExtract, extractWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
