package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Utkarshchaudhary009/IRIS/internal/agent/llm"
	"github.com/Utkarshchaudhary009/IRIS/internal/agent/loop"
	"github.com/Utkarshchaudhary009/IRIS/internal/agent/stream"
	"github.com/Utkarshchaudhary009/IRIS/internal/agent/tools"
	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/biz"
	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/types"
	apperrors "github.com/Utkarshchaudhary009/IRIS/internal/pkg/errors"
	"github.com/Utkarshchaudhary009/IRIS/internal/pkg/redis"
	"github.com/Utkarshchaudhary009/IRIS/internal/pkg/response"
)

// TurnDefaults 回合级默认参数（来自配置）
type TurnDefaults struct {
	MaxSteps     int
	TurnDeadline time.Duration
}

// ChatService 回合编排的 HTTP 入口
type ChatService struct {
	conversations *biz.ConversationUseCase
	messages      *biz.MessageUseCase
	controller    *loop.Controller
	registry      *tools.Registry
	locks         *redis.Client
	defaults      TurnDefaults
	logger        *zap.Logger
}

// NewChatService 创建聊天服务
func NewChatService(
	conversations *biz.ConversationUseCase,
	messages *biz.MessageUseCase,
	controller *loop.Controller,
	registry *tools.Registry,
	locks *redis.Client,
	defaults TurnDefaults,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		controller:    controller,
		registry:      registry,
		locks:         locks,
		defaults:      defaults,
		logger:        logger,
	}
}

// RegisterRoutes 注册回合与工具路由
func (s *ChatService) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/agent/chat", s.Chat)
	r.GET("/agent/chat", s.History)
	r.GET("/tools", s.ListTools)
}

// InboundMessage 请求携带的一条消息
type InboundMessage struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// TurnConfig 单回合覆盖项
type TurnConfig struct {
	Model        string   `json:"model"`
	SystemPrompt string   `json:"system_prompt"`
	Temperature  *float32 `json:"temperature"`
	MaxTokens    int      `json:"max_tokens"`
	MaxSteps     int      `json:"max_steps"`
	Tools        []string `json:"tools"`
}

// ChatRequest 回合启动请求
type ChatRequest struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []InboundMessage `json:"messages" binding:"required"`
	Config         *TurnConfig      `json:"config"`
}

// Chat 启动一个回合并以 SSE 流式返回
// POST /api/v1/agent/chat
func (s *ChatService) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.AppError(c, apperrors.Wrap(err, apperrors.ErrInvalidParams))
		return
	}
	if err := validateInbound(req.Messages); err != nil {
		response.AppError(c, err)
		return
	}

	userID := c.GetString("user_id")
	ctx := c.Request.Context()

	conv, err := s.resolveConversation(ctx, userID, &req)
	if err != nil {
		response.AppError(c, err)
		return
	}

	// 同会话单写者：拿不到租约即拒绝，绝不并发交错提交
	lock, acquired, err := s.locks.AcquireLock(ctx, "conv:lock:"+conv.ID, s.defaults.TurnDeadline+10*time.Second)
	if err != nil {
		response.AppError(c, apperrors.Wrap(err, apperrors.ErrInternalServer))
		return
	}
	if !acquired {
		response.AppError(c, apperrors.New(apperrors.ErrConversationBusy))
		return
	}
	defer lock.Release(context.WithoutCancel(ctx))

	// 回合开始前先落库用户消息
	batch := make([]types.NewMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		batch = append(batch, types.NewMessage{Role: m.Role, Content: m.Content})
	}
	if _, err := s.messages.Append(ctx, conv.ID, batch); err != nil {
		response.AppError(c, err)
		return
	}

	history, err := s.messages.History(ctx, conv.ID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	cfg := s.turnConfig(conv, req.Config)

	// SSE 响应头；会话 ID 同时走响应头与首个事件
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header("X-Conversation-Id", conv.ID)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.AppError(c, apperrors.New(apperrors.ErrInternalServer, "streaming not supported"))
		return
	}

	writeSSE(c, flusher, stream.EventConversation, map[string]any{"conversation_id": conv.ID})

	turnCtx, cancel := context.WithTimeout(ctx, s.defaults.TurnDeadline)
	defer cancel()

	pub := stream.NewPublisher(256)
	go func() {
		res := s.controller.Run(turnCtx, conv.ID, gatewayHistory(history), cfg, pub)
		if res.State == loop.StateFailed {
			s.logger.Error("turn failed",
				zap.String("conversation_id", conv.ID),
				zap.Int("steps", res.Steps),
				zap.Error(res.Err))
			_ = pub.Publish(context.WithoutCancel(turnCtx), stream.Event{
				Type: stream.EventError,
				Data: map[string]any{"error": apperrors.GetMessage(apperrors.ExtractCode(res.Err))},
			})
		}
		pub.Close()
	}()

	for ev := range pub.Events() {
		writeSSE(c, flusher, ev.Type, ev.Data)
		if c.Request.Context().Err() != nil {
			// 客户端已断开；继续排空事件让回合按取消语义收尾
			for range pub.Events() {
			}
			return
		}
	}
}

// History 返回会话头与完整有序消息列表
// GET /api/v1/agent/chat?conversation_id=
func (s *ChatService) History(c *gin.Context) {
	conversationID := c.Query("conversation_id")
	if conversationID == "" {
		response.AppError(c, apperrors.New(apperrors.ErrInvalidParams, "conversation_id is required"))
		return
	}

	userID := c.GetString("user_id")
	conv, err := s.conversations.Get(c.Request.Context(), userID, conversationID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	messages, err := s.messages.History(c.Request.Context(), conversationID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{
		"conversation": conv,
		"messages":     messages,
	})
}

// ListTools 返回向模型公布的工具描述符
// GET /api/v1/tools
func (s *ChatService) ListTools(c *gin.Context) {
	response.Success(c, gin.H{"tools": s.registry.Describe()})
}

func (s *ChatService) resolveConversation(ctx context.Context, userID string, req *ChatRequest) (*types.Conversation, error) {
	if req.ConversationID != "" {
		return s.conversations.Get(ctx, userID, req.ConversationID)
	}

	create := &types.CreateConversationRequest{}
	if req.Config != nil {
		create.Model = req.Config.Model
		create.SystemPrompt = req.Config.SystemPrompt
		create.MaxTokens = req.Config.MaxTokens
		if req.Config.Temperature != nil {
			create.Temperature = *req.Config.Temperature
		}
	}
	if len(req.Messages) > 0 {
		create.Title = truncateTitle(req.Messages[0].Content)
	}
	return s.conversations.Create(ctx, userID, create)
}

// turnConfig 合并优先级：请求覆盖 > 会话设置 > 配置默认
func (s *ChatService) turnConfig(conv *types.Conversation, override *TurnConfig) loop.Config {
	cfg := loop.Config{
		Model:        conv.Model,
		SystemPrompt: conv.SystemPrompt,
		Temperature:  conv.Temperature,
		MaxTokens:    conv.MaxTokens,
		MaxSteps:     s.defaults.MaxSteps,
	}
	if override == nil {
		return cfg
	}
	if override.Model != "" {
		cfg.Model = override.Model
	}
	if override.SystemPrompt != "" {
		cfg.SystemPrompt = override.SystemPrompt
	}
	if override.Temperature != nil {
		cfg.Temperature = *override.Temperature
	}
	if override.MaxTokens > 0 {
		cfg.MaxTokens = override.MaxTokens
	}
	if override.MaxSteps > 0 && override.MaxSteps <= s.defaults.MaxSteps {
		cfg.MaxSteps = override.MaxSteps
	}
	if override.Tools != nil {
		cfg.Tools = override.Tools
	}
	return cfg
}

func validateInbound(messages []InboundMessage) error {
	if len(messages) == 0 {
		return apperrors.New(apperrors.ErrInvalidParams, "messages must not be empty")
	}
	for _, m := range messages {
		if m.Role != types.RoleUser && m.Role != types.RoleSystem {
			return apperrors.New(apperrors.ErrInvalidParams, "inbound messages must have role user or system")
		}
	}
	if messages[len(messages)-1].Role != types.RoleUser {
		return apperrors.New(apperrors.ErrInvalidParams, "last message must have role user")
	}
	return nil
}

// gatewayHistory 把持久化记录转换为网关消息。
// 工具调用必须成对回灌：assistant 的 tool_calls 若缺少对应的工具回复
// （结果被标记孤儿，或提交在结果落库前中断），整组交换一并丢弃，
// 否则 OpenAI 兼容接口会拒绝后续请求。
func gatewayHistory(messages []*types.Message) []llm.Message {
	answered := map[string]bool{}
	for _, m := range messages {
		if m.Role == types.RoleTool && !m.Orphaned {
			answered[m.ToolCallID] = true
		}
	}

	dropped := map[string]bool{}
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		if m.Orphaned {
			continue
		}
		if m.Role == types.RoleAssistant && hasUnansweredCall(m.ToolCalls, answered) {
			for _, call := range m.ToolCalls {
				dropped[call.ID] = true
			}
			continue
		}
		if m.Role == types.RoleTool && dropped[m.ToolCallID] {
			continue
		}
		out = append(out, llm.Message{
			Role:       m.Role,
			Content:    m.Content,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
		})
	}
	return out
}

func hasUnansweredCall(calls []tools.Call, answered map[string]bool) bool {
	for _, c := range calls {
		if !answered[c.ID] {
			return true
		}
	}
	return false
}

func truncateTitle(content string) string {
	runes := []rune(content)
	if len(runes) > 60 {
		return string(runes[:60])
	}
	return content
}

func writeSSE(c *gin.Context, flusher http.Flusher, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte("{}")
	}
	fmt.Fprintf(c.Writer, "event: %s\n", eventType)
	fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
	flusher.Flush()
}
