package models

import "gorm.io/gorm"

// CreateDefaultAccount seeds a development account with one inbox and one
// receiving channel so a fresh database can accept mail immediately.
func CreateDefaultAccount(db *gorm.DB, channelEmail string) error {
	account := Account{
		Name:   "Default",
		Active: true,
	}
	if err := db.FirstOrCreate(&account, "name = ?", account.Name).Error; err != nil {
		return err
	}

	inbox := Inbox{
		AccountID: account.ID,
		Name:      "Support",
	}
	if err := db.FirstOrCreate(&inbox, "account_id = ? AND name = ?", account.ID, inbox.Name).Error; err != nil {
		return err
	}

	channel := Channel{
		AccountID: account.ID,
		InboxID:   inbox.ID,
		Email:     channelEmail,
	}
	return db.FirstOrCreate(&channel, "email = ?", channelEmail).Error
}
