package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Conversation is the GORM model for the conversations table
type Conversation struct {
	ID                string    `gorm:"primaryKey;type:uuid" json:"id"`
	OwnerID           string    `gorm:"type:uuid;not null;index" json:"owner_id"`
	Title             string    `gorm:"type:varchar(255);not null" json:"title"`
	Model             string    `gorm:"type:varchar(100);not null" json:"model"`
	SystemPrompt      string    `gorm:"type:text" json:"system_prompt,omitempty"`
	Temperature       float32   `gorm:"type:real;not null" json:"temperature"`
	MaxTokens         int       `gorm:"type:integer;not null" json:"max_tokens"`
	Status            string    `gorm:"type:varchar(20);not null;default:active;index" json:"status"`
	TotalInputTokens  int64     `gorm:"type:bigint;not null;default:0" json:"total_input_tokens"`
	TotalOutputTokens int64     `gorm:"type:bigint;not null;default:0" json:"total_output_tokens"`
	LastActivityAt    time.Time `gorm:"not null;index" json:"last_activity_at"`
	Metadata          Metadata  `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt         time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null" json:"updated_at"`
}

// TableName specifies the table name
func (Conversation) TableName() string {
	return "conversations"
}

// Metadata is a free-form JSONB column
type Metadata map[string]any

// Scan implements sql.Scanner interface
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, m)
}

// Value implements driver.Valuer interface
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
