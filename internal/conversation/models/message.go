package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Message is the GORM model for the messages table. Rows are append-only:
// a persisted message is never updated or deleted.
type Message struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ConversationID string    `gorm:"type:uuid;not null;index:idx_messages_conv_seq,unique,priority:1" json:"conversation_id"`
	Role           string    `gorm:"type:varchar(20);not null" json:"role"` // user | assistant | system | tool
	Content        string    `gorm:"type:text" json:"content"`
	ToolCalls      ToolCalls `gorm:"type:jsonb" json:"tool_calls,omitempty"`
	ToolCallID     string    `gorm:"type:varchar(100)" json:"tool_call_id,omitempty"`
	Model          string    `gorm:"type:varchar(100)" json:"model,omitempty"`
	InputTokens    int       `gorm:"type:integer;not null;default:0" json:"input_tokens"`
	OutputTokens   int       `gorm:"type:integer;not null;default:0" json:"output_tokens"`
	SequenceNumber int64     `gorm:"type:bigint;not null;index:idx_messages_conv_seq,unique,priority:2" json:"sequence_number"`
	Orphaned       bool      `gorm:"not null;default:false" json:"orphaned,omitempty"`
	Metadata       Metadata  `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
}

// TableName specifies the table name
func (Message) TableName() string {
	return "messages"
}

// ToolCall is one model-requested invocation stored on an assistant message
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCalls is a custom type for []ToolCall stored as JSONB
type ToolCalls []ToolCall

// Scan implements sql.Scanner interface
func (tc *ToolCalls) Scan(value interface{}) error {
	if value == nil {
		*tc = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, tc)
}

// Value implements driver.Valuer interface
func (tc ToolCalls) Value() (driver.Value, error) {
	if tc == nil {
		return nil, nil
	}
	return json.Marshal(tc)
}
