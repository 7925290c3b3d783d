package models

import (
	"gorm.io/gorm"
)

// Contact is a sender identity, created lazily on the first message from a
// new address. Per inbox it is deduplicated by the lower-cased email.
type Contact struct {
	gorm.Model
	AccountID uint   `gorm:"not null;index" json:"account_id"`
	Name      string `gorm:"not null" json:"name"`
	Email     string `gorm:"not null;index" json:"email"` // lower-cased

	// Relations
	Account        Account        `json:"-"`
	ContactInboxes []ContactInbox `gorm:"foreignKey:ContactID" json:"contact_inboxes,omitempty"`
}

// ContactInbox binds a contact to one inbox it has interacted with. A contact
// talking to two inboxes of the same account gets two bindings.
type ContactInbox struct {
	gorm.Model
	ContactID uint `gorm:"not null;index:idx_contact_inboxes_pair" json:"contact_id"`
	InboxID   uint `gorm:"not null;index:idx_contact_inboxes_pair" json:"inbox_id"`

	// Relations
	Contact Contact `json:"-"`
	Inbox   Inbox   `json:"-"`
}
