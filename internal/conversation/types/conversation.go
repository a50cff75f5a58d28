package types

import "time"

// Conversation status values. Deleted is terminal; active and archived
// flip freely.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusDeleted  = "deleted"
)

// Conversation is a persisted chat thread with its model settings and
// cumulative token accounting.
type Conversation struct {
	ID                string         `json:"id"`
	OwnerID           string         `json:"owner_id"`
	Title             string         `json:"title"`
	Model             string         `json:"model"`
	SystemPrompt      string         `json:"system_prompt,omitempty"`
	Temperature       float32        `json:"temperature"`
	MaxTokens         int            `json:"max_tokens"`
	Status            string         `json:"status"`
	TotalInputTokens  int64          `json:"total_input_tokens"`
	TotalOutputTokens int64          `json:"total_output_tokens"`
	LastActivityAt    time.Time      `json:"last_activity_at"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// CreateConversationRequest is the explicit-create payload
type CreateConversationRequest struct {
	Title        string  `json:"title"`
	Model        string  `json:"model"`
	SystemPrompt string  `json:"system_prompt"`
	Temperature  float32 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
}

// UpdateConversationRequest carries partial updates; nil fields are left
// untouched.
type UpdateConversationRequest struct {
	Title        *string  `json:"title,omitempty"`
	Status       *string  `json:"status,omitempty"`
	Model        *string  `json:"model,omitempty"`
	SystemPrompt *string  `json:"system_prompt,omitempty"`
	Temperature  *float32 `json:"temperature,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
}

// BranchConversationRequest creates a new conversation from a prefix of an
// existing one. FromSequence is inclusive; zero means the full history.
type BranchConversationRequest struct {
	FromSequence int64  `json:"from_sequence"`
	Title        string `json:"title"`
}

// ListConversationsRequest filters and pages the caller's conversations
type ListConversationsRequest struct {
	Status   string `form:"status"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
