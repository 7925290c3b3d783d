package controller

import (
	"bytes"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"supportmail/mailbox"
	"supportmail/utils"
)

type IntakeController struct {
	db       *gorm.DB
	pipeline *mailbox.IntakePipeline
	logger   *log.Logger
}

func NewIntakeController(db *gorm.DB, pipeline *mailbox.IntakePipeline, logger *log.Logger) *IntakeController {
	return &IntakeController{
		db:       db,
		pipeline: pipeline,
		logger:   logger,
	}
}

// IngestRaw accepts one raw RFC822 message in the request body and runs it
// through the intake pipeline. Gateways that already pulled the mail (SES,
// Mailgun routes) post here instead of waiting for the IMAP sweep.
func (ic *IntakeController) IngestRaw(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Empty message body", nil)
	}

	result, err := ic.pipeline.ProcessRaw(bytes.NewReader(body))
	if err != nil {
		if errors.Is(err, mailbox.ErrChannelNotFound) {
			utils.LogError("channel_not_found", err, map[string]interface{}{
				"ip": c.IP(),
			})
			return utils.ErrorResponse(c, fiber.StatusUnprocessableEntity, "No channel configured for destination address", err)
		}
		utils.LogError("intake_failed", err, map[string]interface{}{
			"ip": c.IP(),
		})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process message", err)
	}

	if result.Outcome == mailbox.OutcomeSkipped {
		return c.JSON(fiber.Map{
			"status": "skipped",
			"reason": result.SkipReason,
		})
	}

	return c.JSON(fiber.Map{
		"status":          "processed",
		"conversation_id": result.Conversation.ID,
		"message_id":      result.Message.ID,
	})
}
