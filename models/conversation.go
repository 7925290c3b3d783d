package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Attribute keys stored in Conversation.AdditionalAttributes.
const (
	AttrGroupingKey = "grouping_key"
	AttrSource      = "source"
	AttrMailSubject = "mail_subject"
	AttrInitiatedAt = "initiated_at"
)

// JSONMap stores semi-structured attributes as a JSON column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for JSONMap", value)
	}
	return json.Unmarshal(b, m)
}

// Conversation is a thread of inbound messages. The grouping key lives in the
// attributes map rather than a dedicated column; an expression index covers
// the equality lookup (the index is not unique, see the matcher).
type Conversation struct {
	gorm.Model
	AccountID      uint `gorm:"not null;index" json:"account_id"`
	InboxID        uint `gorm:"not null;index" json:"inbox_id"`
	ContactID      uint `gorm:"not null;index" json:"contact_id"`
	ContactInboxID uint `gorm:"not null" json:"contact_inbox_id"`

	AdditionalAttributes JSONMap `gorm:"type:jsonb" json:"additional_attributes"`

	// Relations
	Account      Account      `json:"-"`
	Inbox        Inbox        `json:"-"`
	Contact      Contact      `json:"contact,omitempty"`
	ContactInbox ContactInbox `json:"-"`
	Messages     []Message    `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// GroupingKey returns the stored grouping key, or "" when the conversation
// was created without one.
func (c *Conversation) GroupingKey() string {
	if c.AdditionalAttributes == nil {
		return ""
	}
	if key, ok := c.AdditionalAttributes[AttrGroupingKey].(string); ok {
		return key
	}
	return ""
}

// Message is one inbound email recorded on a conversation. Immutable once
// written.
type Message struct {
	gorm.Model
	ConversationID uint      `gorm:"not null;index" json:"conversation_id"`
	SourceID       string    `gorm:"index" json:"source_id"` // email Message-Id header
	FromEmail      string    `gorm:"not null" json:"from_email"`
	FromName       string    `json:"from_name"`
	Subject        string    `json:"subject"`
	Body           string    `gorm:"type:text" json:"body"`
	BodyHTML       string    `gorm:"type:text" json:"body_html"`
	ReceivedAt     time.Time `gorm:"not null" json:"received_at"`

	// Relations
	Conversation Conversation `json:"-"`
	Attachments  []Attachment `gorm:"foreignKey:MessageID" json:"attachments,omitempty"`
}

// Attachment is a file extracted from an inbound message.
type Attachment struct {
	gorm.Model
	MessageID   uint   `gorm:"not null;index" json:"message_id"`
	Filename    string `gorm:"not null" json:"filename"`
	ContentType string `json:"content_type"`
	Payload     []byte `gorm:"type:bytea" json:"-"`

	// Relations
	Message Message `json:"-"`
}
