package llm

import (
	"context"

	"github.com/Utkarshchaudhary009/IRIS/internal/agent/tools"
)

// Gateway 模型网关适配器接口
type Gateway interface {
	// Name 返回网关名称
	Name() string

	// ChatStream 发起一次流式模型调用（返回 channel）
	// channel 以 EventDone 或 EventError 收尾后关闭
	ChatStream(ctx context.Context, req *Request) (<-chan StreamEvent, error)
}

// Request 统一的模型调用请求格式
type Request struct {
	// 消息内容
	Messages []Message `json:"messages"`

	// 模型配置
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	// 系统提示
	SystemPrompt string `json:"system,omitempty"`

	// 本次调用可用的工具（可选）
	Tools []tools.Descriptor `json:"tools,omitempty"`
}

// Message 消息结构
type Message struct {
	Role       string       `json:"role"` // user | assistant | tool
	Content    string       `json:"content"`
	ToolCalls  []tools.Call `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"` // role=tool 时指向发起调用
}

// StreamEvent 流式事件
type StreamEvent struct {
	Type EventType `json:"type"`

	// EventToken 的文本增量
	Delta string `json:"delta,omitempty"`

	// EventDone 携带的完整结果
	Completion *Completion `json:"completion,omitempty"`

	// EventError 携带的错误
	Err error `json:"-"`
}

// EventType 事件类型
type EventType string

const (
	EventToken EventType = "token"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Completion 一次模型调用的最终结果
type Completion struct {
	Content      string       `json:"content"`
	ToolCalls    []tools.Call `json:"tool_calls,omitempty"`
	FinishReason string       `json:"finish_reason"`

	// Usage 为 nil 表示服务端未上报，需要调用方估算
	Usage *Usage `json:"usage,omitempty"`
}

// Usage token 用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// FinishReason 取值
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
	FinishLength    = "length"
)
