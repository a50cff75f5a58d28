package data

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/models"
	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/types"
)

// AttachmentRepo implements the attachment repository using GORM
type AttachmentRepo struct {
	db *gorm.DB
}

// NewAttachmentRepo creates a new attachment repository
func NewAttachmentRepo(db *gorm.DB) *AttachmentRepo {
	return &AttachmentRepo{db: db}
}

// Create creates a new attachment row
func (r *AttachmentRepo) Create(ctx context.Context, attachment *types.Attachment) error {
	model := &models.Attachment{
		ID:             attachment.ID,
		ConversationID: attachment.ConversationID,
		FileName:       attachment.FileName,
		MimeType:       attachment.MimeType,
		SizeBytes:      attachment.SizeBytes,
		URL:            attachment.URL,
		CreatedAt:      attachment.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create attachment: %w", err)
	}
	return nil
}

// ListByConversation lists attachments for a conversation
func (r *AttachmentRepo) ListByConversation(ctx context.Context, conversationID string) ([]*types.Attachment, error) {
	var modelList []models.Attachment
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&modelList).Error; err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}

	attachments := make([]*types.Attachment, 0, len(modelList))
	for _, model := range modelList {
		attachments = append(attachments, &types.Attachment{
			ID:             model.ID,
			ConversationID: model.ConversationID,
			FileName:       model.FileName,
			MimeType:       model.MimeType,
			SizeBytes:      model.SizeBytes,
			URL:            model.URL,
			CreatedAt:      model.CreatedAt,
		})
	}
	return attachments, nil
}
