package service

import (
	"github.com/gin-gonic/gin"

	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/biz"
	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/types"
	apperrors "github.com/Utkarshchaudhary009/IRIS/internal/pkg/errors"
	"github.com/Utkarshchaudhary009/IRIS/internal/pkg/response"
)

// AttachmentService handles HTTP requests for attachment metadata
type AttachmentService struct {
	attachments *biz.AttachmentUseCase
}

// NewAttachmentService creates a new attachment service
func NewAttachmentService(attachments *biz.AttachmentUseCase) *AttachmentService {
	return &AttachmentService{attachments: attachments}
}

// RegisterRoutes registers attachment routes
func (s *AttachmentService) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/conversations/:id/attachments", s.Create)
	r.GET("/conversations/:id/attachments", s.List)
}

// Create records attachment metadata against a conversation
// @Summary Create attachment
// @Tags attachments
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 201 {object} types.Attachment
// @Router /api/v1/conversations/{id}/attachments [post]
func (s *AttachmentService) Create(c *gin.Context) {
	var req types.CreateAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.AppError(c, apperrors.Wrap(err, apperrors.ErrInvalidParams))
		return
	}

	attachment, err := s.attachments.Create(c.Request.Context(), c.GetString("user_id"), c.Param("id"), &req)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Created(c, attachment)
}

// List returns attachment metadata for a conversation
// @Summary List attachments
// @Tags attachments
// @Produce json
// @Param id path string true "Conversation ID"
// @Router /api/v1/conversations/{id}/attachments [get]
func (s *AttachmentService) List(c *gin.Context) {
	attachments, err := s.attachments.List(c.Request.Context(), c.GetString("user_id"), c.Param("id"))
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{"attachments": attachments})
}
