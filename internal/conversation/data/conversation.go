package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/models"
	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/types"
)

// ErrNotFound is the fail-closed sentinel for missing rows
var ErrNotFound = errors.New("record not found")

// ConversationRepo implements the conversation repository using GORM
type ConversationRepo struct {
	db *gorm.DB
}

// NewConversationRepo creates a new conversation repository
func NewConversationRepo(db *gorm.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// Create creates a new conversation
func (r *ConversationRepo) Create(ctx context.Context, conv *types.Conversation) error {
	model := r.toModel(conv)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// GetByID retrieves a conversation by ID
func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*types.Conversation, error) {
	var model models.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return r.toDomain(&model), nil
}

// ListByOwner lists conversations for an owner, most recent activity first.
// An empty status means every status except deleted.
func (r *ConversationRepo) ListByOwner(ctx context.Context, ownerID, status string, offset, limit int) ([]*types.Conversation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Conversation{}).Where("owner_id = ?", ownerID)
	if status != "" {
		query = query.Where("status = ?", status)
	} else {
		query = query.Where("status <> ?", types.StatusDeleted)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	var modelList []models.Conversation
	if err := query.
		Order("last_activity_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&modelList).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list conversations: %w", err)
	}

	conversations := make([]*types.Conversation, 0, len(modelList))
	for i := range modelList {
		conversations = append(conversations, r.toDomain(&modelList[i]))
	}
	return conversations, total, nil
}

// UpdateFields applies a partial update to a conversation row
func (r *ConversationRepo) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update conversation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddTokenUsage accumulates turn usage onto the conversation counters and
// refreshes the activity timestamp. Counters only ever increase.
func (r *ConversationRepo) AddTokenUsage(ctx context.Context, id string, inputTokens, outputTokens int) error {
	result := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_input_tokens":  gorm.Expr("total_input_tokens + ?", inputTokens),
			"total_output_tokens": gorm.Expr("total_output_tokens + ?", outputTokens),
			"last_activity_at":    time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to add token usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Touch refreshes the last-activity timestamp
func (r *ConversationRepo) Touch(ctx context.Context, id string) error {
	return r.UpdateFields(ctx, id, map[string]any{"last_activity_at": time.Now()})
}

// toModel converts domain conversation to GORM model
func (r *ConversationRepo) toModel(conv *types.Conversation) *models.Conversation {
	return &models.Conversation{
		ID:                conv.ID,
		OwnerID:           conv.OwnerID,
		Title:             conv.Title,
		Model:             conv.Model,
		SystemPrompt:      conv.SystemPrompt,
		Temperature:       conv.Temperature,
		MaxTokens:         conv.MaxTokens,
		Status:            conv.Status,
		TotalInputTokens:  conv.TotalInputTokens,
		TotalOutputTokens: conv.TotalOutputTokens,
		LastActivityAt:    conv.LastActivityAt,
		Metadata:          models.Metadata(conv.Metadata),
		CreatedAt:         conv.CreatedAt,
		UpdatedAt:         conv.UpdatedAt,
	}
}

// toDomain converts GORM model to domain conversation
func (r *ConversationRepo) toDomain(model *models.Conversation) *types.Conversation {
	return &types.Conversation{
		ID:                model.ID,
		OwnerID:           model.OwnerID,
		Title:             model.Title,
		Model:             model.Model,
		SystemPrompt:      model.SystemPrompt,
		Temperature:       model.Temperature,
		MaxTokens:         model.MaxTokens,
		Status:            model.Status,
		TotalInputTokens:  model.TotalInputTokens,
		TotalOutputTokens: model.TotalOutputTokens,
		LastActivityAt:    model.LastActivityAt,
		Metadata:          map[string]any(model.Metadata),
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}
