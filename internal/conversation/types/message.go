package types

import (
	"time"

	"github.com/Utkarshchaudhary009/IRIS/internal/agent/tools"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is one immutable transcript entry. SequenceNumber is assigned by
// the store at commit time and is strictly increasing per conversation.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	ToolCalls      []tools.Call   `json:"tool_calls,omitempty"`
	ToolCallID     string         `json:"tool_call_id,omitempty"`
	Model          string         `json:"model,omitempty"`
	InputTokens    int            `json:"input_tokens"`
	OutputTokens   int            `json:"output_tokens"`
	SequenceNumber int64          `json:"sequence_number"`
	Orphaned       bool           `json:"orphaned,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NewMessage is the pre-commit shape of a message: everything except the
// identifiers the store assigns.
type NewMessage struct {
	Role         string
	Content      string
	ToolCalls    []tools.Call
	ToolCallID   string
	Model        string
	InputTokens  int
	OutputTokens int
	Orphaned     bool
	Metadata     map[string]any
}

// ListMessagesRequest pages a conversation's ordered transcript
type ListMessagesRequest struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}
