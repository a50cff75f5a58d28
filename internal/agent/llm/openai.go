package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Utkarshchaudhary009/IRIS/internal/agent/tools"
	apperrors "github.com/Utkarshchaudhary009/IRIS/internal/pkg/errors"
)

// OpenAIGateway OpenAI 兼容网关（支持自定义 BaseURL 的兼容服务）
type OpenAIGateway struct {
	client *openai.Client
	logger *zap.Logger
}

// OpenAIConfig 网关配置
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

// NewOpenAIGateway 创建 OpenAI 网关
func NewOpenAIGateway(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIGateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAIGateway{
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger,
	}, nil
}

// Name 返回网关名称
func (g *OpenAIGateway) Name() string {
	return "openai"
}

// ChatStream 发起一次流式调用，逐 token 转发，结束时汇总 Completion
func (g *OpenAIGateway) ChatStream(ctx context.Context, req *Request) (<-chan StreamEvent, error) {
	stream, err := g.client.CreateChatCompletionStream(ctx, g.buildRequest(req))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrGatewayRequestFailed)
	}

	events := make(chan StreamEvent, 64)

	go func() {
		defer close(events)
		defer stream.Close()

		var (
			content      []byte
			finishReason string
			usage        *Usage
			calls        = newToolCallAccumulator()
		)

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				events <- StreamEvent{Type: EventDone, Completion: &Completion{
					Content:      string(content),
					ToolCalls:    calls.finish(),
					FinishReason: finishReason,
					Usage:        usage,
				}}
				return
			}
			if err != nil {
				g.logger.Error("model stream broken", zap.Error(err))
				events <- StreamEvent{Type: EventError, Err: apperrors.Wrap(err, apperrors.ErrGatewayStreamBroken)}
				return
			}

			// usage 在最后一个 chunk 上报（choices 为空）
			if chunk.Usage != nil {
				usage = &Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				}
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]
			if choice.FinishReason != "" {
				finishReason = string(choice.FinishReason)
			}
			if choice.Delta.Content != "" {
				content = append(content, choice.Delta.Content...)
				events <- StreamEvent{Type: EventToken, Delta: choice.Delta.Content}
			}
			for _, tc := range choice.Delta.ToolCalls {
				calls.add(tc)
			}
		}
	}()

	return events, nil
}

func (g *OpenAIGateway) buildRequest(req *Request) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, toOpenAIMessage(m))
	}

	out := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}

	for _, t := range req.Tools {
		params, err := json.Marshal(t.InputSchema)
		if err != nil {
			g.logger.Warn("tool schema not serializable, advertising without parameters",
				zap.String("tool", t.Name), zap.Error(err))
			params = []byte(`{"type":"object"}`)
		}
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(params),
			},
		})
	}

	return out
}

func toOpenAIMessage(m Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:       m.Role,
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, c := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   c.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      c.Name,
				Arguments: c.Arguments,
			},
		})
	}
	return out
}

// toolCallAccumulator 按 index 聚合工具调用的增量分片
type toolCallAccumulator struct {
	order []int
	byIdx map[int]*tools.Call
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{byIdx: make(map[int]*tools.Call)}
}

func (a *toolCallAccumulator) add(delta openai.ToolCall) {
	idx := 0
	if delta.Index != nil {
		idx = *delta.Index
	}
	call, ok := a.byIdx[idx]
	if !ok {
		call = &tools.Call{}
		a.byIdx[idx] = call
		a.order = append(a.order, idx)
	}
	if delta.ID != "" {
		call.ID = delta.ID
	}
	if delta.Function.Name != "" {
		call.Name = delta.Function.Name
	}
	call.Arguments += delta.Function.Arguments
}

func (a *toolCallAccumulator) finish() []tools.Call {
	if len(a.order) == 0 {
		return nil
	}
	out := make([]tools.Call, 0, len(a.order))
	for i, idx := range a.order {
		call := a.byIdx[idx]
		if call.ID == "" {
			call.ID = fmt.Sprintf("call_%d", i)
		}
		out = append(out, *call)
	}
	return out
}
