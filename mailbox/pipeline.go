package mailbox

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"gorm.io/gorm"

	"supportmail/models"
	"supportmail/utils"
)

// ErrContactInboxMissing means a contact is bound to an inbox but its
// contact_inbox row is gone. That is prior data corruption; creating a
// duplicate binding would paper over it, so the pipeline fails instead.
var ErrContactInboxMissing = errors.New("contact is bound to inbox without a contact_inbox record")

// Outcome of one intake attempt.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
)

// Result reports what one intake run did. Conversation and Message are set
// only for processed messages.
type Result struct {
	Outcome      Outcome
	SkipReason   SkipReason
	Conversation *models.Conversation
	Message      *models.Message
}

// IntakePipeline threads one inbound message into the right conversation:
// channel resolution, skip policies, grouping-key extraction, then contact
// find-or-create, conversation find-or-create and message recording inside a
// single transaction. Either everything commits or nothing does.
type IntakePipeline struct {
	db        *gorm.DB
	channels  *ChannelResolver
	extractor *ThreadKeyExtractor
	policy    *SenderPolicy
	presenter MailPresenter
	logger    *log.Logger
}

func NewIntakePipeline(db *gorm.DB, channels *ChannelResolver, extractor *ThreadKeyExtractor, policy *SenderPolicy, presenter MailPresenter, logger *log.Logger) *IntakePipeline {
	return &IntakePipeline{
		db:        db,
		channels:  channels,
		extractor: extractor,
		policy:    policy,
		presenter: presenter,
		logger:    logger,
	}
}

// ProcessRaw parses a raw RFC822 message and threads it.
func (ip *IntakePipeline) ProcessRaw(raw io.Reader) (*Result, error) {
	pm, err := ip.presenter.Process(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize message: %v", err)
	}
	return ip.Process(pm)
}

// Process threads one normalized message. Returns ErrChannelNotFound when no
// channel owns any destination address. A transaction failure rolls back the
// whole unit; redelivery is the caller's job.
func (ip *IntakePipeline) Process(pm *ProcessedMail) (*Result, error) {
	channel, err := ip.channels.Resolve(pm.To)
	if err != nil {
		return nil, err
	}

	var account models.Account
	if err := ip.db.First(&account, channel.AccountID).Error; err != nil {
		return nil, fmt.Errorf("failed to load account %d: %v", channel.AccountID, err)
	}
	var inbox models.Inbox
	if err := ip.db.First(&inbox, channel.InboxID).Error; err != nil {
		return nil, fmt.Errorf("failed to load inbox %d: %v", channel.InboxID, err)
	}

	if reason := ip.policy.Check(&account, pm); reason != SkipNone {
		ip.logger.Printf("Skipping message %q from %s: %s", pm.MessageID, pm.OriginalSender, reason)
		return &Result{Outcome: OutcomeSkipped, SkipReason: reason}, nil
	}

	groupingKey := ip.extractor.Extract(pm)

	result := &Result{Outcome: OutcomeProcessed}
	err = ip.db.Transaction(func(tx *gorm.DB) error {
		contact, binding, err := ip.findOrCreateContact(tx, &account, &inbox, pm)
		if err != nil {
			return err
		}
		conversation, err := ip.findOrCreateConversation(tx, &account, &inbox, contact, binding, pm, groupingKey)
		if err != nil {
			return err
		}
		message, err := ip.recordMessage(tx, conversation, pm)
		if err != nil {
			return err
		}
		result.Conversation = conversation
		result.Message = message
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (ip *IntakePipeline) findOrCreateContact(tx *gorm.DB, account *models.Account, inbox *models.Inbox, pm *ProcessedMail) (*models.Contact, *models.ContactInbox, error) {
	email := pm.OriginalSender

	var contact models.Contact
	err := tx.Joins("JOIN contact_inboxes ON contact_inboxes.contact_id = contacts.id").
		Where("contact_inboxes.inbox_id = ? AND contacts.email = ?", inbox.ID, email).
		First(&contact).Error
	if err == nil {
		var binding models.ContactInbox
		err := tx.Where("inbox_id = ? AND contact_id = ?", inbox.ID, contact.ID).First(&binding).Error
		if err == gorm.ErrRecordNotFound {
			return nil, nil, ErrContactInboxMissing
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load contact inbox: %v", err)
		}
		return &contact, &binding, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, nil, fmt.Errorf("failed to look up contact: %v", err)
	}

	contact = models.Contact{
		AccountID: account.ID,
		Name:      contactName(pm),
		Email:     email,
	}
	if err := tx.Create(&contact).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create contact: %v", err)
	}
	binding := models.ContactInbox{
		ContactID: contact.ID,
		InboxID:   inbox.ID,
	}
	if err := tx.Create(&binding).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create contact inbox: %v", err)
	}
	return &contact, &binding, nil
}

// contactName falls back to the address local part when the sender carries no
// display name.
func contactName(pm *ProcessedMail) string {
	if pm.SenderName != "" {
		return pm.SenderName
	}
	return utils.LocalPart(pm.OriginalSender)
}

func (ip *IntakePipeline) findOrCreateConversation(tx *gorm.DB, account *models.Account, inbox *models.Inbox, contact *models.Contact, binding *models.ContactInbox, pm *ProcessedMail, groupingKey string) (*models.Conversation, error) {
	conversation, err := ip.matchConversation(tx, account.ID, groupingKey)
	if err != nil {
		return nil, err
	}
	if conversation != nil {
		return conversation, nil
	}

	attrs := models.JSONMap{
		models.AttrSource:      "email",
		models.AttrMailSubject: pm.Subject,
		models.AttrInitiatedAt: map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if groupingKey != "" {
		attrs[models.AttrGroupingKey] = groupingKey
	} else {
		attrs[models.AttrGroupingKey] = nil
	}

	conversation = &models.Conversation{
		AccountID:            account.ID,
		InboxID:              inbox.ID,
		ContactID:            contact.ID,
		ContactInboxID:       binding.ID,
		AdditionalAttributes: attrs,
	}
	if err := tx.Create(conversation).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %v", err)
	}
	return conversation, nil
}

// matchConversation is the read-only grouping-key lookup. An empty key never
// matches. Ties go to the oldest conversation; a well-formed account has at
// most one per key, but the index backing this lookup is not unique.
func (ip *IntakePipeline) matchConversation(tx *gorm.DB, accountID uint, groupingKey string) (*models.Conversation, error) {
	if groupingKey == "" {
		return nil, nil
	}
	var conversation models.Conversation
	err := tx.Where("account_id = ? AND additional_attributes->>'grouping_key' = ?", accountID, groupingKey).
		Order("id").
		First(&conversation).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to match conversation: %v", err)
	}
	return &conversation, nil
}

func (ip *IntakePipeline) recordMessage(tx *gorm.DB, conversation *models.Conversation, pm *ProcessedMail) (*models.Message, error) {
	message := &models.Message{
		ConversationID: conversation.ID,
		SourceID:       pm.MessageID,
		FromEmail:      pm.OriginalSender,
		FromName:       pm.SenderName,
		Subject:        pm.Subject,
		Body:           pm.TextBody,
		BodyHTML:       pm.HTMLBody,
		ReceivedAt:     time.Now().UTC(),
	}
	if err := tx.Create(message).Error; err != nil {
		return nil, fmt.Errorf("failed to create message: %v", err)
	}
	for _, att := range pm.Attachments {
		attachment := models.Attachment{
			MessageID:   message.ID,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Payload:     att.Content,
		}
		if err := tx.Create(&attachment).Error; err != nil {
			return nil, fmt.Errorf("failed to store attachment %s: %v", att.Filename, err)
		}
	}
	return message, nil
}
