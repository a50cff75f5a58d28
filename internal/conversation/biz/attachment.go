package biz

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/types"
	apperrors "github.com/Utkarshchaudhary009/IRIS/internal/pkg/errors"
)

// AttachmentRepo is the persistence contract for attachments
type AttachmentRepo interface {
	Create(ctx context.Context, attachment *types.Attachment) error
	ListByConversation(ctx context.Context, conversationID string) ([]*types.Attachment, error)
}

// AttachmentUseCase contains business logic for attachment metadata
type AttachmentUseCase struct {
	repo          AttachmentRepo
	conversations *ConversationUseCase
}

// NewAttachmentUseCase creates a new attachment use case
func NewAttachmentUseCase(repo AttachmentRepo, conversations *ConversationUseCase) *AttachmentUseCase {
	return &AttachmentUseCase{repo: repo, conversations: conversations}
}

// Create registers attachment metadata on a conversation the caller owns
func (uc *AttachmentUseCase) Create(ctx context.Context, ownerID, conversationID string, req *types.CreateAttachmentRequest) (*types.Attachment, error) {
	if _, err := uc.conversations.Get(ctx, ownerID, conversationID); err != nil {
		return nil, err
	}

	attachment := &types.Attachment{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		FileName:       req.FileName,
		MimeType:       req.MimeType,
		SizeBytes:      req.SizeBytes,
		URL:            req.URL,
		CreatedAt:      time.Now(),
	}
	if err := uc.repo.Create(ctx, attachment); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistenceFailed)
	}
	return attachment, nil
}

// List returns a conversation's attachments, oldest first
func (uc *AttachmentUseCase) List(ctx context.Context, ownerID, conversationID string) ([]*types.Attachment, error) {
	if _, err := uc.conversations.Get(ctx, ownerID, conversationID); err != nil {
		return nil, err
	}

	attachments, err := uc.repo.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistenceFailed)
	}
	return attachments, nil
}
