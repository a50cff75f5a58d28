package biz

import (
	"context"

	"github.com/Utkarshchaudhary009/IRIS/internal/agent/llm"
	"github.com/Utkarshchaudhary009/IRIS/internal/agent/loop"
	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/types"
)

// TurnStore adapts the conversation use cases onto the loop controller's
// store contract.
type TurnStore struct {
	conversations *ConversationUseCase
	messages      *MessageUseCase
}

// NewTurnStore creates the store adapter the controller persists through
func NewTurnStore(conversations *ConversationUseCase, messages *MessageUseCase) *TurnStore {
	return &TurnStore{
		conversations: conversations,
		messages:      messages,
	}
}

// AppendMessages commits controller records through the message use case,
// preserving batch order.
func (s *TurnStore) AppendMessages(ctx context.Context, conversationID string, records []loop.MessageRecord) error {
	batch := make([]types.NewMessage, 0, len(records))
	for _, r := range records {
		batch = append(batch, types.NewMessage{
			Role:         r.Role,
			Content:      r.Content,
			ToolCalls:    r.ToolCalls,
			ToolCallID:   r.ToolCallID,
			Model:        r.Model,
			InputTokens:  r.InputTokens,
			OutputTokens: r.OutputTokens,
			Orphaned:     r.Orphaned,
		})
	}
	_, err := s.messages.Append(ctx, conversationID, batch)
	return err
}

// FinalizeTurn rolls the turn's usage into the conversation counters
func (s *TurnStore) FinalizeTurn(ctx context.Context, conversationID string, usage llm.Usage) error {
	return s.conversations.FinalizeTurn(ctx, conversationID, usage.PromptTokens, usage.CompletionTokens)
}
