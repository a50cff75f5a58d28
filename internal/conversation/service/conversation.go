package service

import (
	"github.com/gin-gonic/gin"

	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/biz"
	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/types"
	apperrors "github.com/Utkarshchaudhary009/IRIS/internal/pkg/errors"
	"github.com/Utkarshchaudhary009/IRIS/internal/pkg/response"
)

// ConversationService handles HTTP requests for conversation operations
type ConversationService struct {
	conversations *biz.ConversationUseCase
	messages      *biz.MessageUseCase
}

// NewConversationService creates a new conversation service
func NewConversationService(conversations *biz.ConversationUseCase, messages *biz.MessageUseCase) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
	}
}

// RegisterRoutes registers conversation routes
func (s *ConversationService) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/conversations", s.Create)
	r.GET("/conversations", s.List)
	r.GET("/conversations/:id", s.Get)
	r.PATCH("/conversations/:id", s.Update)
	r.DELETE("/conversations/:id", s.Delete)
	r.POST("/conversations/:id/branch", s.Branch)
	r.GET("/conversations/:id/messages", s.ListMessages)
}

// Create creates a new conversation
// @Summary Create conversation
// @Tags conversations
// @Accept json
// @Produce json
// @Success 201 {object} types.Conversation
// @Router /api/v1/conversations [post]
func (s *ConversationService) Create(c *gin.Context) {
	var req types.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.AppError(c, apperrors.Wrap(err, apperrors.ErrInvalidParams))
		return
	}

	conv, err := s.conversations.Create(c.Request.Context(), c.GetString("user_id"), &req)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Created(c, conv)
}

// List returns the caller's conversations, most recently active first
// @Summary List conversations
// @Tags conversations
// @Produce json
// @Param status query string false "Filter by status (active|archived)"
// @Router /api/v1/conversations [get]
func (s *ConversationService) List(c *gin.Context) {
	var req types.ListConversationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.AppError(c, apperrors.Wrap(err, apperrors.ErrInvalidParams))
		return
	}

	conversations, total, err := s.conversations.List(c.Request.Context(), c.GetString("user_id"), &req)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{
		"conversations": conversations,
		"total":         total,
		"page":          req.Page,
		"page_size":     req.PageSize,
	})
}

// Get retrieves a conversation by ID
// @Summary Get conversation
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} types.Conversation
// @Router /api/v1/conversations/{id} [get]
func (s *ConversationService) Get(c *gin.Context) {
	conv, err := s.conversations.Get(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, conv)
}

// Update applies a partial update to conversation settings
// @Summary Update conversation
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Router /api/v1/conversations/{id} [patch]
func (s *ConversationService) Update(c *gin.Context) {
	var req types.UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.AppError(c, apperrors.Wrap(err, apperrors.ErrInvalidParams))
		return
	}

	conv, err := s.conversations.Update(c.Request.Context(), c.GetString("user_id"), c.Param("id"), &req)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, conv)
}

// Delete soft-deletes a conversation
// @Summary Delete conversation
// @Tags conversations
// @Param id path string true "Conversation ID"
// @Router /api/v1/conversations/{id} [delete]
func (s *ConversationService) Delete(c *gin.Context) {
	if err := s.conversations.Delete(c.Request.Context(), c.GetString("user_id"), c.Param("id")); err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": true})
}

// Branch copies a message prefix into a new conversation
// @Summary Branch conversation
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "Source conversation ID"
// @Success 201 {object} types.Conversation
// @Router /api/v1/conversations/{id}/branch [post]
func (s *ConversationService) Branch(c *gin.Context) {
	var req types.BranchConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.AppError(c, apperrors.Wrap(err, apperrors.ErrInvalidParams))
		return
	}

	branch, err := s.conversations.Branch(c.Request.Context(), c.GetString("user_id"), c.Param("id"), &req)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Created(c, branch)
}

// ListMessages returns a conversation's messages in sequence order
// @Summary List messages
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Router /api/v1/conversations/{id}/messages [get]
func (s *ConversationService) ListMessages(c *gin.Context) {
	userID := c.GetString("user_id")
	conversationID := c.Param("id")

	// 所有权检查走同一条路径，删除态会话在此被拒
	if _, err := s.conversations.Get(c.Request.Context(), userID, conversationID); err != nil {
		response.AppError(c, err)
		return
	}

	var req types.ListMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.AppError(c, apperrors.Wrap(err, apperrors.ErrInvalidParams))
		return
	}

	messages, total, err := s.messages.List(c.Request.Context(), conversationID, &req)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{
		"messages":  messages,
		"total":     total,
		"page":      req.Page,
		"page_size": req.PageSize,
	})
}
