package models

import "time"

// Attachment is the GORM model for the attachments table
type Attachment struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ConversationID string    `gorm:"type:uuid;not null;index" json:"conversation_id"`
	FileName       string    `gorm:"type:varchar(255);not null" json:"file_name"`
	MimeType       string    `gorm:"type:varchar(100);not null" json:"mime_type"`
	SizeBytes      int64     `gorm:"type:bigint;not null;default:0" json:"size_bytes"`
	URL            string    `gorm:"type:text" json:"url,omitempty"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
}

// TableName specifies the table name
func (Attachment) TableName() string {
	return "attachments"
}
