package llm

import (
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// messageOverheadTokens 每条消息的封装开销（role、分隔符）
const messageOverheadTokens = 4

// TokenCounter Token 计数器，服务端未上报 usage 时用于估算
type TokenCounter struct {
	logger *zap.Logger
}

// NewTokenCounter 创建计数器
func NewTokenCounter(logger *zap.Logger) *TokenCounter {
	return &TokenCounter{logger: logger}
}

// Count 计算一段文本的 token 数量
func (c *TokenCounter) Count(text string, model string) int {
	if text == "" {
		return 0
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// 未收录的模型回退到 cl100k_base
		enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err != nil {
			c.logger.Warn("token encoding unavailable, falling back to rough estimate",
				zap.String("model", model), zap.Error(err))
			return len(text) / 4
		}
	}
	return len(enc.Encode(text, nil, nil))
}

// Estimate 估算一次调用的 usage：prompt 按请求消息累加，completion 按结果文本
func (c *TokenCounter) Estimate(req *Request, completion *Completion) *Usage {
	prompt := c.Count(req.SystemPrompt, req.Model)
	for _, m := range req.Messages {
		prompt += c.Count(m.Content, req.Model) + messageOverheadTokens
		for _, call := range m.ToolCalls {
			prompt += c.Count(call.Name, req.Model) + c.Count(call.Arguments, req.Model)
		}
	}

	out := c.Count(completion.Content, req.Model)
	for _, call := range completion.ToolCalls {
		out += c.Count(call.Name, req.Model) + c.Count(call.Arguments, req.Model)
	}

	return &Usage{
		PromptTokens:     prompt,
		CompletionTokens: out,
		TotalTokens:      prompt + out,
	}
}
