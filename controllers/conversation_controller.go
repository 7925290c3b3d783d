package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"supportmail/models"
	"supportmail/utils"
)

type ConversationController struct {
	db     *gorm.DB
	logger *log.Logger
}

func NewConversationController(db *gorm.DB, logger *log.Logger) *ConversationController {
	return &ConversationController{
		db:     db,
		logger: logger,
	}
}

// ListConversations returns conversations of one account, newest first.
func (cc *ConversationController) ListConversations(c *fiber.Ctx) error {
	accountID := utils.ParseUint(c.Query("account_id"))
	if accountID == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "account_id is required", nil)
	}

	page := int(utils.ParseUint(c.Query("page", "1")))
	if page < 1 {
		page = 1
	}
	limit := int(utils.ParseUint(c.Query("limit", "25")))
	if limit < 1 || limit > 100 {
		limit = 25
	}

	var total int64
	if err := cc.db.Model(&models.Conversation{}).Where("account_id = ?", accountID).Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count conversations", err)
	}

	var conversations []models.Conversation
	err := cc.db.Preload("Contact").
		Where("account_id = ?", accountID).
		Order("updated_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&conversations).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch conversations", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  conversations,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetMessages returns the messages of one conversation in arrival order.
func (cc *ConversationController) GetMessages(c *fiber.Ctx) error {
	conversationID := utils.ParseUint(c.Params("id"))
	if conversationID == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid conversation id", nil)
	}

	var conversation models.Conversation
	if err := cc.db.First(&conversation, conversationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Conversation not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch conversation", err)
	}

	var messages []models.Message
	err := cc.db.Preload("Attachments", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "message_id", "filename", "content_type", "created_at")
	}).
		Where("conversation_id = ?", conversationID).
		Order("id").
		Find(&messages).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch messages", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"conversation": conversation,
		"messages":     messages,
	}))
}
