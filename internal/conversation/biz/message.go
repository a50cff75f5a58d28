package biz

import (
	"context"
	"errors"

	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/data"
	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/types"
	apperrors "github.com/Utkarshchaudhary009/IRIS/internal/pkg/errors"
)

// MessageRepo is the persistence contract for messages
type MessageRepo interface {
	Append(ctx context.Context, conversationID string, batch []types.NewMessage) ([]*types.Message, error)
	ListByConversation(ctx context.Context, conversationID string, offset, limit int) ([]*types.Message, int64, error)
	ListPrefix(ctx context.Context, conversationID string, upTo int64) ([]*types.Message, error)
	HasToolCall(ctx context.Context, conversationID, toolCallID string) (bool, error)
}

// MessageUseCase contains business logic for transcript access and appends
type MessageUseCase struct {
	repo MessageRepo
}

// NewMessageUseCase creates a new message use case
func NewMessageUseCase(repo MessageRepo) *MessageUseCase {
	return &MessageUseCase{repo: repo}
}

// Append validates and commits a batch of messages. A tool message must
// reference a tool call carried by an earlier assistant message in the same
// conversation; messages are immutable once committed.
func (uc *MessageUseCase) Append(ctx context.Context, conversationID string, batch []types.NewMessage) ([]*types.Message, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	seenCalls := map[string]bool{}
	for _, m := range batch {
		switch m.Role {
		case types.RoleUser, types.RoleAssistant, types.RoleSystem, types.RoleTool:
		default:
			return nil, apperrors.New(apperrors.ErrInvalidParams, "invalid message role")
		}

		if m.Role == types.RoleTool {
			if m.ToolCallID == "" {
				return nil, apperrors.New(apperrors.ErrInvalidParams, "tool message requires tool_call_id")
			}
			if !seenCalls[m.ToolCallID] {
				ok, err := uc.repo.HasToolCall(ctx, conversationID, m.ToolCallID)
				if err != nil {
					return nil, apperrors.Wrap(err, apperrors.ErrPersistenceFailed)
				}
				if !ok {
					return nil, apperrors.New(apperrors.ErrInvalidParams, "tool_call_id does not reference an earlier tool call")
				}
			}
		}
		// Calls introduced earlier in the same batch are valid back-references.
		for _, c := range m.ToolCalls {
			seenCalls[c.ID] = true
		}
	}

	persisted, err := uc.repo.Append(ctx, conversationID, batch)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, apperrors.New(apperrors.ErrConversationNotFound)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrPersistenceFailed)
	}
	return persisted, nil
}

// List returns one page of a conversation's ordered transcript
func (uc *MessageUseCase) List(ctx context.Context, conversationID string, req *types.ListMessagesRequest) ([]*types.Message, int64, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 500 {
		pageSize = 100
	}

	messages, total, err := uc.repo.ListByConversation(ctx, conversationID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrPersistenceFailed)
	}
	return messages, total, nil
}

// History returns the full ordered transcript of a conversation
func (uc *MessageUseCase) History(ctx context.Context, conversationID string) ([]*types.Message, error) {
	messages, err := uc.repo.ListPrefix(ctx, conversationID, 0)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistenceFailed)
	}
	return messages, nil
}
