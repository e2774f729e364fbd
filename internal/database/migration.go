package database

import (
	"gorm.io/gorm"

	"meta-relay/internal/models"
)

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Conversation{},
		&models.Message{},
	); err != nil {
		return err
	}

	if err := createIndexes(db); err != nil {
		return err
	}

	return nil
}

func createIndexes(db *gorm.DB) error {
	// Listing a conversation's history walks messages by (conversation_id, timestamp).
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_conversation_timestamp
		ON messages(conversation_id, timestamp)
	`).Error; err != nil {
		return err
	}

	return nil
}
