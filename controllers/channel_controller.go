package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"supportmail/models"
	"supportmail/utils"
)

type ChannelController struct {
	db     *gorm.DB
	logger *log.Logger
}

func NewChannelController(db *gorm.DB, logger *log.Logger) *ChannelController {
	return &ChannelController{
		db:     db,
		logger: logger,
	}
}

type CreateChannelInput struct {
	AccountID uint   `json:"account_id" validate:"required"`
	InboxID   uint   `json:"inbox_id" validate:"required"`
	Email     string `json:"email" validate:"required,email"`

	IMAPEnabled    bool   `json:"imap_enabled"`
	IMAPHost       string `json:"imap_host"`
	IMAPPort       int    `json:"imap_port"`
	IMAPUsername   string `json:"imap_username"`
	IMAPPassword   string `json:"imap_password"`
	IMAPEncryption string `json:"imap_encryption"`
	IMAPMailbox    string `json:"imap_mailbox"`
}

// CreateChannel registers a receiving address for an inbox. The IMAP password
// is encrypted before it touches the database.
func (ch *ChannelController) CreateChannel(c *fiber.Ctx) error {
	var input CreateChannelInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	email := utils.NormalizeAddress(input.Email)
	if err := utils.ValidateChannelAddress(email); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid channel address", err)
	}

	var inbox models.Inbox
	if err := ch.db.First(&inbox, input.InboxID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Inbox not found", err)
	}
	if inbox.AccountID != input.AccountID {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Inbox does not belong to account", nil)
	}

	encrypted, err := utils.Encrypt(input.IMAPPassword)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to encrypt IMAP password", err)
	}

	channel := models.Channel{
		AccountID:      input.AccountID,
		InboxID:        input.InboxID,
		Email:          email,
		IMAPEnabled:    input.IMAPEnabled,
		IMAPHost:       input.IMAPHost,
		IMAPPort:       input.IMAPPort,
		IMAPUsername:   input.IMAPUsername,
		IMAPPassword:   encrypted,
		IMAPEncryption: input.IMAPEncryption,
		IMAPMailbox:    input.IMAPMailbox,
	}
	if err := ch.db.Create(&channel).Error; err != nil {
		utils.LogError("channel_create_failed", err, map[string]interface{}{
			"email": email,
		})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create channel", err)
	}

	channel.Sanitize()
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(channel))
}

// ListChannels returns the channels of one account, secrets stripped.
func (ch *ChannelController) ListChannels(c *fiber.Ctx) error {
	accountID := utils.ParseUint(c.Query("account_id"))
	if accountID == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "account_id is required", nil)
	}

	var channels []models.Channel
	if err := ch.db.Where("account_id = ?", accountID).Find(&channels).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch channels", err)
	}
	for i := range channels {
		channels[i].Sanitize()
	}

	return c.JSON(utils.SuccessResponse(channels))
}
