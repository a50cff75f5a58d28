package biz

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/data"
	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/types"
	apperrors "github.com/Utkarshchaudhary009/IRIS/internal/pkg/errors"
)

// ConversationRepo is the persistence contract for conversations
type ConversationRepo interface {
	Create(ctx context.Context, conv *types.Conversation) error
	GetByID(ctx context.Context, id string) (*types.Conversation, error)
	ListByOwner(ctx context.Context, ownerID, status string, offset, limit int) ([]*types.Conversation, int64, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	AddTokenUsage(ctx context.Context, id string, inputTokens, outputTokens int) error
	Touch(ctx context.Context, id string) error
}

// Defaults carries the configured fallbacks applied when a conversation is
// created without explicit settings.
type Defaults struct {
	Model        string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
}

// ConversationUseCase contains business logic for conversation lifecycle
type ConversationUseCase struct {
	repo     ConversationRepo
	messages MessageRepo
	defaults Defaults
}

// NewConversationUseCase creates a new conversation use case
func NewConversationUseCase(repo ConversationRepo, messages MessageRepo, defaults Defaults) *ConversationUseCase {
	return &ConversationUseCase{
		repo:     repo,
		messages: messages,
		defaults: defaults,
	}
}

// Create creates a conversation for an owner, filling unset fields from the
// configured defaults.
func (uc *ConversationUseCase) Create(ctx context.Context, ownerID string, req *types.CreateConversationRequest) (*types.Conversation, error) {
	if ownerID == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParams, "owner id is required")
	}

	now := time.Now()
	conv := &types.Conversation{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		Title:          req.Title,
		Model:          req.Model,
		SystemPrompt:   req.SystemPrompt,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		Status:         types.StatusActive,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if conv.Title == "" {
		conv.Title = "New Conversation"
	}
	if conv.Model == "" {
		conv.Model = uc.defaults.Model
	}
	if conv.SystemPrompt == "" {
		conv.SystemPrompt = uc.defaults.SystemPrompt
	}
	if conv.Temperature == 0 {
		conv.Temperature = uc.defaults.Temperature
	}
	if conv.MaxTokens == 0 {
		conv.MaxTokens = uc.defaults.MaxTokens
	}

	if err := uc.repo.Create(ctx, conv); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistenceFailed)
	}
	return conv, nil
}

// Get fetches a conversation and enforces ownership. Deleted conversations
// read as not found unless includeDeleted is set.
func (uc *ConversationUseCase) Get(ctx context.Context, ownerID, id string) (*types.Conversation, error) {
	conv, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, apperrors.New(apperrors.ErrConversationNotFound)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrPersistenceFailed)
	}
	if conv.OwnerID != ownerID {
		return nil, apperrors.New(apperrors.ErrConversationForbidden)
	}
	if conv.Status == types.StatusDeleted {
		return nil, apperrors.New(apperrors.ErrConversationDeleted)
	}
	return conv, nil
}

// List returns the owner's conversations, most recent activity first
func (uc *ConversationUseCase) List(ctx context.Context, ownerID string, req *types.ListConversationsRequest) ([]*types.Conversation, int64, error) {
	if req.Status != "" && req.Status != types.StatusActive && req.Status != types.StatusArchived {
		return nil, 0, apperrors.New(apperrors.ErrInvalidParams, "invalid status filter")
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	conversations, total, err := uc.repo.ListByOwner(ctx, ownerID, req.Status, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrPersistenceFailed)
	}
	return conversations, total, nil
}

// Update applies a partial update. Status changes follow the transition
// rules: active and archived flip freely, deleted is terminal and only
// reachable through Delete.
func (uc *ConversationUseCase) Update(ctx context.Context, ownerID, id string, req *types.UpdateConversationRequest) (*types.Conversation, error) {
	conv, err := uc.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Title != nil && *req.Title != "" {
		fields["title"] = *req.Title
	}
	if req.Model != nil && *req.Model != "" {
		fields["model"] = *req.Model
	}
	if req.SystemPrompt != nil {
		fields["system_prompt"] = *req.SystemPrompt
	}
	if req.Temperature != nil {
		fields["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		fields["max_tokens"] = *req.MaxTokens
	}
	if req.Status != nil && *req.Status != conv.Status {
		if err := validateStatusChange(conv.Status, *req.Status); err != nil {
			return nil, err
		}
		fields["status"] = *req.Status
	}

	if len(fields) > 0 {
		fields["updated_at"] = time.Now()
		if err := uc.repo.UpdateFields(ctx, id, fields); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrPersistenceFailed)
		}
	}
	return uc.Get(ctx, ownerID, id)
}

// Delete soft-deletes a conversation. Rows are never physically removed.
func (uc *ConversationUseCase) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := uc.Get(ctx, ownerID, id); err != nil {
		return err
	}
	fields := map[string]any{
		"status":     types.StatusDeleted,
		"updated_at": time.Now(),
	}
	if err := uc.repo.UpdateFields(ctx, id, fields); err != nil {
		return apperrors.Wrap(err, apperrors.ErrPersistenceFailed)
	}
	return nil
}

// Branch creates a new conversation whose history is a prefix copy of the
// source. The source is never mutated.
func (uc *ConversationUseCase) Branch(ctx context.Context, ownerID, sourceID string, req *types.BranchConversationRequest) (*types.Conversation, error) {
	source, err := uc.Get(ctx, ownerID, sourceID)
	if err != nil {
		return nil, err
	}
	if req.FromSequence < 0 {
		return nil, apperrors.New(apperrors.ErrInvalidBranchPoint, "from_sequence must not be negative")
	}

	prefix, err := uc.messages.ListPrefix(ctx, sourceID, req.FromSequence)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrPersistenceFailed)
	}
	if req.FromSequence > 0 {
		if len(prefix) == 0 || prefix[len(prefix)-1].SequenceNumber < req.FromSequence {
			return nil, apperrors.New(apperrors.ErrInvalidBranchPoint, "from_sequence is past the end of the conversation")
		}
	}

	title := req.Title
	if title == "" {
		title = source.Title + " (branch)"
	}

	branch, err := uc.Create(ctx, ownerID, &types.CreateConversationRequest{
		Title:        title,
		Model:        source.Model,
		SystemPrompt: source.SystemPrompt,
		Temperature:  source.Temperature,
		MaxTokens:    source.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	if len(prefix) > 0 {
		batch := make([]types.NewMessage, 0, len(prefix))
		for _, m := range prefix {
			batch = append(batch, types.NewMessage{
				Role:         m.Role,
				Content:      m.Content,
				ToolCalls:    m.ToolCalls,
				ToolCallID:   m.ToolCallID,
				Model:        m.Model,
				InputTokens:  m.InputTokens,
				OutputTokens: m.OutputTokens,
				Orphaned:     m.Orphaned,
				Metadata:     m.Metadata,
			})
		}
		if _, err := uc.messages.Append(ctx, branch.ID, batch); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrPersistenceFailed)
		}
	}
	return branch, nil
}

// FinalizeTurn accumulates turn usage onto the conversation counters
func (uc *ConversationUseCase) FinalizeTurn(ctx context.Context, id string, inputTokens, outputTokens int) error {
	if err := uc.repo.AddTokenUsage(ctx, id, inputTokens, outputTokens); err != nil {
		return apperrors.Wrap(err, apperrors.ErrPersistenceFailed)
	}
	return nil
}

func validateStatusChange(from, to string) error {
	switch {
	case from == types.StatusActive && to == types.StatusArchived:
		return nil
	case from == types.StatusArchived && to == types.StatusActive:
		return nil
	default:
		return apperrors.New(apperrors.ErrInvalidStatusChange, from+" -> "+to)
	}
}
