package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Utkarshchaudhary009/IRIS/internal/agent/tools"
	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/models"
	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/types"
)

// MessageRepo implements the message repository using GORM.
//
// Sequence numbers are assigned here, inside a transaction that takes a
// row lock on the owning conversation. Two writers for the same
// conversation serialize on that lock, so sequences stay strictly
// increasing and gap-free in commit order.
type MessageRepo struct {
	db *gorm.DB
}

// NewMessageRepo creates a new message repository
func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append commits a batch of messages in order, assigning sequence numbers
// atomically. Returns the persisted messages with ids and sequences filled.
func (r *MessageRepo) Append(ctx context.Context, conversationID string, batch []types.NewMessage) ([]*types.Message, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	persisted := make([]*types.Message, 0, len(batch))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the conversation row: single writer per conversation.
		var conv models.Conversation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", conversationID).
			First(&conv).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to lock conversation: %w", err)
		}

		var maxSeq int64
		if err := tx.Model(&models.Message{}).
			Where("conversation_id = ?", conversationID).
			Select("COALESCE(MAX(sequence_number), 0)").
			Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("failed to read max sequence: %w", err)
		}

		now := time.Now()
		for i, nm := range batch {
			model := &models.Message{
				ID:             uuid.NewString(),
				ConversationID: conversationID,
				Role:           nm.Role,
				Content:        nm.Content,
				ToolCalls:      toModelCalls(nm.ToolCalls),
				ToolCallID:     nm.ToolCallID,
				Model:          nm.Model,
				InputTokens:    nm.InputTokens,
				OutputTokens:   nm.OutputTokens,
				SequenceNumber: maxSeq + int64(i) + 1,
				Orphaned:       nm.Orphaned,
				Metadata:       models.Metadata(nm.Metadata),
				CreatedAt:      now,
			}
			if err := tx.Create(model).Error; err != nil {
				return fmt.Errorf("failed to create message: %w", err)
			}
			persisted = append(persisted, r.toDomain(model))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return persisted, nil
}

// ListByConversation returns the ordered transcript page for a conversation
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID string, offset, limit int) ([]*types.Message, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Message{}).Where("conversation_id = ?", conversationID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	var modelList []models.Message
	q := query.Order("sequence_number ASC")
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&modelList).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]*types.Message, 0, len(modelList))
	for i := range modelList {
		messages = append(messages, r.toDomain(&modelList[i]))
	}
	return messages, total, nil
}

// ListPrefix returns every message with sequence number <= upTo, in order.
// upTo <= 0 means the full history. Used by copy-on-branch.
func (r *MessageRepo) ListPrefix(ctx context.Context, conversationID string, upTo int64) ([]*types.Message, error) {
	query := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if upTo > 0 {
		query = query.Where("sequence_number <= ?", upTo)
	}

	var modelList []models.Message
	if err := query.Order("sequence_number ASC").Find(&modelList).Error; err != nil {
		return nil, fmt.Errorf("failed to list message prefix: %w", err)
	}

	messages := make([]*types.Message, 0, len(modelList))
	for i := range modelList {
		messages = append(messages, r.toDomain(&modelList[i]))
	}
	return messages, nil
}

// HasToolCall reports whether an earlier assistant message in the
// conversation carries the given tool-call id.
func (r *MessageRepo) HasToolCall(ctx context.Context, conversationID, toolCallID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND role = ?", conversationID, types.RoleAssistant).
		Where("tool_calls @> ?", fmt.Sprintf(`[{"id":%q}]`, toolCallID)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to look up tool call: %w", err)
	}
	return count > 0, nil
}

func toModelCalls(calls []tools.Call) models.ToolCalls {
	if len(calls) == 0 {
		return nil
	}
	out := make(models.ToolCalls, 0, len(calls))
	for _, c := range calls {
		out = append(out, models.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments})
	}
	return out
}

func toDomainCalls(calls models.ToolCalls) []tools.Call {
	if len(calls) == 0 {
		return nil
	}
	out := make([]tools.Call, 0, len(calls))
	for _, c := range calls {
		out = append(out, tools.Call{ID: c.ID, Name: c.Name, Arguments: c.Arguments})
	}
	return out
}

// toDomain converts GORM model to domain message
func (r *MessageRepo) toDomain(model *models.Message) *types.Message {
	return &types.Message{
		ID:             model.ID,
		ConversationID: model.ConversationID,
		Role:           model.Role,
		Content:        model.Content,
		ToolCalls:      toDomainCalls(model.ToolCalls),
		ToolCallID:     model.ToolCallID,
		Model:          model.Model,
		InputTokens:    model.InputTokens,
		OutputTokens:   model.OutputTokens,
		SequenceNumber: model.SequenceNumber,
		Orphaned:       model.Orphaned,
		Metadata:       map[string]any(model.Metadata),
		CreatedAt:      model.CreatedAt,
	}
}
