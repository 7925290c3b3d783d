package main

import (
	"context"
	"log"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"

	"supportmail/config"
	"supportmail/mailbox"
	"supportmail/middleware"
	"supportmail/models"
	"supportmail/routes"
	"supportmail/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "INTAKE: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Error reporting is optional; without a DSN sentry calls are no-ops
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Failed to initialize sentry: %v", err)
		}
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Development convenience: seed a default account/inbox/channel
	if config.AppConfig.SeedChannelEmail != "" {
		if err := models.CreateDefaultAccount(config.DB, config.AppConfig.SeedChannelEmail); err != nil {
			logger.Fatalf("Failed to seed default account: %v", err)
		}
	}

	var redisClient *redis.Client
	if config.AppConfig.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     config.AppConfig.Redis.Address,
			Password: config.AppConfig.Redis.Password,
			DB:       config.AppConfig.Redis.DB,
		})
	}

	// Assemble the intake pipeline
	extractor, err := mailbox.NewDefaultThreadKeyExtractor(config.AppConfig.Grouping)
	if err != nil {
		logger.Fatalf("Failed to build grouping strategies: %v", err)
	}
	policy, err := mailbox.NewSenderPolicy(config.AppConfig.NotificationSenderPattern)
	if err != nil {
		logger.Fatalf("Failed to build sender policy: %v", err)
	}
	channelResolver := mailbox.NewChannelResolver(config.DB, redisClient)
	pipeline := mailbox.NewIntakePipeline(
		config.DB,
		channelResolver,
		extractor,
		policy,
		mailbox.NewMailPresenter(),
		logger,
	)

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Start IMAP intake worker
	intakeWorker := worker.NewIntakeWorker(config.DB, pipeline, log.New(os.Stdout, "IMAP: ", log.LstdFlags), config.AppConfig.IMAPPollInterval)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go intakeWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB, pipeline)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
