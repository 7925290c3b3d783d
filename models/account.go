package models

import (
	"gorm.io/gorm"
)

// Account is the tenant boundary. Conversations are only created for active
// accounts; deactivating an account turns its inbound mail into no-ops.
// Active carries no column default on purpose: GORM drops zero-valued fields
// that have one, which would persist Active=false accounts as active.
type Account struct {
	gorm.Model
	Name   string `gorm:"not null" json:"name"`
	Active bool   `gorm:"not null" json:"active"`

	// Relations
	Inboxes       []Inbox        `gorm:"foreignKey:AccountID" json:"inboxes,omitempty"`
	Contacts      []Contact      `gorm:"foreignKey:AccountID" json:"contacts,omitempty"`
	Conversations []Conversation `gorm:"foreignKey:AccountID" json:"conversations,omitempty"`
}

// Inbox is a mailbox surface of an account. New conversations land here.
type Inbox struct {
	gorm.Model
	AccountID uint   `gorm:"not null;index" json:"account_id"`
	Name      string `gorm:"not null" json:"name"`

	// Relations
	Account        Account        `json:"-"`
	ContactInboxes []ContactInbox `gorm:"foreignKey:InboxID" json:"contact_inboxes,omitempty"`
}

// Channel maps a receiving email address to exactly one account and inbox.
// It also carries the IMAP settings the intake worker needs to poll the
// mailbox behind that address.
type Channel struct {
	gorm.Model
	AccountID uint   `gorm:"not null;index" json:"account_id"`
	InboxID   uint   `gorm:"not null;index" json:"inbox_id"`
	Email     string `gorm:"not null;uniqueIndex" json:"email"` // receiving address, stored lower-cased

	// ========= IMAP Configuration =========
	IMAPEnabled    bool   `gorm:"default:false" json:"imap_enabled"`
	IMAPHost       string `json:"imap_host"`
	IMAPPort       int    `json:"imap_port" gorm:"default:993"`
	IMAPUsername   string `json:"imap_username"`
	IMAPPassword   string `json:"-"` // Encrypted in application layer
	IMAPEncryption string `json:"imap_encryption" gorm:"default:'SSL'"` // SSL, TLS, STARTTLS
	IMAPMailbox    string `json:"imap_mailbox" gorm:"default:'INBOX'"`

	// Relations
	Account Account `json:"-"`
	Inbox   Inbox   `json:"-"`
}

// Sanitize strips secrets before a channel is serialized in a response.
func (c *Channel) Sanitize() {
	c.IMAPPassword = ""
}
