package models

import "gorm.io/gorm"

// AutoMigrate runs database migrations for the conversation domain
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Conversation{},
		&Message{},
		&Attachment{},
	)
}
