package loop

import (
	"context"

	"go.uber.org/zap"

	"github.com/Utkarshchaudhary009/IRIS/internal/agent/llm"
	"github.com/Utkarshchaudhary009/IRIS/internal/agent/stream"
	"github.com/Utkarshchaudhary009/IRIS/internal/agent/tools"
	apperrors "github.com/Utkarshchaudhary009/IRIS/internal/pkg/errors"
)

// State 工具循环状态
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingModel    State = "awaiting_model"
	StateExecutingTools   State = "executing_tools"
	StateDone             State = "done"
	StateFailed           State = "failed"
	StateStepLimitReached State = "step_limit_reached"
)

const stepLimitMarker = "Step limit reached before a final answer was produced."

// MessageRecord 待持久化的消息（序列号由存储层在提交时分配）
type MessageRecord struct {
	Role         string
	Content      string
	ToolCalls    []tools.Call
	ToolCallID   string
	Model        string
	InputTokens  int
	OutputTokens int
	Orphaned     bool
}

// Store 控制器对会话存储的最小依赖
// 实现方必须保证同一会话内按提交顺序分配严格递增的序列号
type Store interface {
	// AppendMessages 在单个事务内按顺序提交一批消息
	AppendMessages(ctx context.Context, conversationID string, records []MessageRecord) error

	// FinalizeTurn 回合结束时累加会话级 token 计数并刷新活跃时间
	FinalizeTurn(ctx context.Context, conversationID string, usage llm.Usage) error
}

// Config 单次回合的模型与循环参数
type Config struct {
	Model        string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
	MaxSteps     int

	// Tools 为 nil 表示全部已注册工具
	Tools []string
}

// Result 回合结果
type Result struct {
	State        State
	FinalContent string
	Steps        int
	Usage        llm.Usage
	Err          error
}

// Controller 工具循环控制器：在模型调用与工具执行之间交替，
// 直到模型给出最终回答、网关失败或步数耗尽
type Controller struct {
	gateway  llm.Gateway
	registry *tools.Registry
	executor *tools.Executor
	store    Store
	counter  *llm.TokenCounter
	logger   *zap.Logger
}

// NewController 创建控制器（依赖全部显式注入）
func NewController(gateway llm.Gateway, registry *tools.Registry, executor *tools.Executor, store Store, counter *llm.TokenCounter, logger *zap.Logger) *Controller {
	return &Controller{
		gateway:  gateway,
		registry: registry,
		executor: executor,
		store:    store,
		counter:  counter,
		logger:   logger,
	}
}

// Run 驱动一个完整回合。history 为已持久化的上下文（含本回合用户消息）。
// 事件按序写入 pub；调用方负责在 Run 返回后关闭 pub。
// 返回的 Result 总是有效，Result.Err 仅在 StateFailed 时非空。
func (c *Controller) Run(ctx context.Context, conversationID string, history []llm.Message, cfg Config, pub *stream.Publisher) *Result {
	res := &Result{State: StateIdle}

	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 10
	}

	resolved := c.registry.Resolve(cfg.Tools)
	descriptors := make([]tools.Descriptor, 0, len(resolved))
	for _, t := range resolved {
		descriptors = append(descriptors, tools.Descriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	messages := make([]llm.Message, len(history))
	copy(messages, history)

	var lastText string

	for step := 1; step <= cfg.MaxSteps; step++ {
		res.State = StateAwaitingModel
		res.Steps = step

		req := &llm.Request{
			Messages:     messages,
			Model:        cfg.Model,
			Temperature:  cfg.Temperature,
			MaxTokens:    cfg.MaxTokens,
			SystemPrompt: cfg.SystemPrompt,
			Tools:        descriptors,
		}

		completion, err := c.consumeModelStream(ctx, req, pub)
		if err != nil {
			return c.fail(res, err)
		}

		usage := completion.Usage
		if usage == nil {
			// 服务端未上报 usage：估算而非静默置零
			c.logger.Warn("usage not reported by gateway, estimating",
				zap.String("conversation_id", conversationID),
				zap.String("model", cfg.Model))
			usage = c.counter.Estimate(req, completion)
		}
		res.Usage.PromptTokens += usage.PromptTokens
		res.Usage.CompletionTokens += usage.CompletionTokens
		res.Usage.TotalTokens += usage.TotalTokens

		assistant := MessageRecord{
			Role:         "assistant",
			Content:      completion.Content,
			ToolCalls:    completion.ToolCalls,
			Model:        cfg.Model,
			InputTokens:  usage.PromptTokens,
			OutputTokens: usage.CompletionTokens,
		}
		// 消息提交失败即回合失败：序列号完整性无法保证
		if err := c.store.AppendMessages(ctx, conversationID, []MessageRecord{assistant}); err != nil {
			return c.fail(res, apperrors.Wrap(err, apperrors.ErrPersistenceFailed))
		}
		if completion.Content != "" {
			lastText = completion.Content
		}

		// 无工具请求即为最终回答
		if len(completion.ToolCalls) == 0 {
			res.State = StateDone
			res.FinalContent = completion.Content
			c.finish(ctx, conversationID, res, pub)
			return res
		}

		res.State = StateExecutingTools
		for _, call := range completion.ToolCalls {
			c.publish(ctx, pub, stream.Event{Type: stream.EventToolCallStarted, Data: map[string]any{
				"call_id": call.ID,
				"name":    call.Name,
			}})
		}

		// 与回合取消解耦：客户端断开后在途工具仍跑完，结果照常落库
		execCtx := context.WithoutCancel(ctx)
		results := c.executor.ExecuteAll(execCtx, completion.ToolCalls)

		cancelled := ctx.Err() != nil
		records := make([]MessageRecord, 0, len(results))
		for _, r := range results {
			records = append(records, MessageRecord{
				Role:       "tool",
				Content:    string(r.Content),
				ToolCallID: r.CallID,
				Orphaned:   cancelled,
			})
		}
		if err := c.store.AppendMessages(execCtx, conversationID, records); err != nil {
			return c.fail(res, apperrors.Wrap(err, apperrors.ErrPersistenceFailed))
		}

		// 回合已被放弃：孤儿结果已落库，不再回灌模型
		if cancelled {
			return c.fail(res, ctx.Err())
		}

		for _, r := range results {
			c.publish(ctx, pub, stream.Event{Type: stream.EventToolCallResult, Data: r})
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   completion.Content,
			ToolCalls: completion.ToolCalls,
		})
		for _, r := range results {
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    string(r.Content),
				ToolCallID: r.CallID,
			})
		}
	}

	// 步数耗尽：截断并合成终止消息，不是失败
	res.State = StateStepLimitReached
	synth := lastText
	if synth == "" {
		synth = stepLimitMarker
	}
	res.FinalContent = synth

	terminal := MessageRecord{
		Role:         "assistant",
		Content:      synth,
		Model:        cfg.Model,
		OutputTokens: c.counter.Count(synth, cfg.Model),
	}
	if err := c.store.AppendMessages(ctx, conversationID, []MessageRecord{terminal}); err != nil {
		return c.fail(res, apperrors.Wrap(err, apperrors.ErrPersistenceFailed))
	}

	c.finish(ctx, conversationID, res, pub)
	return res
}

// consumeModelStream 消费一次模型流：转发增量，汇总最终结果
func (c *Controller) consumeModelStream(ctx context.Context, req *llm.Request, pub *stream.Publisher) (*llm.Completion, error) {
	events, err := c.gateway.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}

	for ev := range events {
		switch ev.Type {
		case llm.EventToken:
			c.publish(ctx, pub, stream.Event{Type: stream.EventTextDelta, Data: ev.Delta})
		case llm.EventDone:
			return ev.Completion, nil
		case llm.EventError:
			return nil, ev.Err
		}
	}
	return nil, apperrors.New(apperrors.ErrGatewayStreamBroken, "model stream ended without a terminal event")
}

// finish 推送收尾事件并最终化会话计数。
// 最终计数更新失败只记日志：回合本身已完整。
func (c *Controller) finish(ctx context.Context, conversationID string, res *Result, pub *stream.Publisher) {
	if err := c.store.FinalizeTurn(context.WithoutCancel(ctx), conversationID, res.Usage); err != nil {
		c.logger.Error("failed to finalize conversation counters",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
	}

	c.publish(ctx, pub, stream.Event{Type: stream.EventUsage, Data: res.Usage})
	c.publish(ctx, pub, stream.Event{Type: stream.EventDone, Data: map[string]any{
		"state":   string(res.State),
		"content": res.FinalContent,
		"steps":   res.Steps,
	}})
}

func (c *Controller) fail(res *Result, err error) *Result {
	res.State = StateFailed
	res.Err = err
	return res
}

// publish 尽力推送：消费者已断开时丢弃事件，循环按取消语义收尾
func (c *Controller) publish(ctx context.Context, pub *stream.Publisher, ev stream.Event) {
	if err := pub.Publish(ctx, ev); err != nil {
		c.logger.Debug("dropping stream event", zap.String("type", ev.Type), zap.Error(err))
	}
}
