package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"

	controller "supportmail/controllers"
	"supportmail/mailbox"
	"supportmail/middleware"
)

// SetupRoutes wires the intake and read API.
func SetupRoutes(app *fiber.App, db *gorm.DB, pipeline *mailbox.IntakePipeline) {
	apiLogger := log.New(os.Stdout, "API: ", log.Ldate|log.Ltime|log.Lshortfile)

	api := app.Group("/api", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	intakeController := controller.NewIntakeController(db, pipeline, apiLogger)
	api.Post("/intake/raw", middleware.IntakeRateLimiter(), intakeController.IngestRaw)

	conversationController := controller.NewConversationController(db, apiLogger)
	api.Get("/conversations", conversationController.ListConversations)
	api.Get("/conversations/:id/messages", conversationController.GetMessages)

	channelController := controller.NewChannelController(db, apiLogger)
	api.Post("/channels", channelController.CreateChannel)
	api.Get("/channels", channelController.ListChannels)

	apiLogger.Println("Routes initialized successfully")
}
