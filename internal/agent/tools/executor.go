package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/Utkarshchaudhary009/IRIS/internal/pkg/workerpool"
)

const DefaultCallTimeout = 30 * time.Second

// Executor dispatches validated tool calls onto a worker pool with a bounded
// per-call timeout. Every failure mode (unknown tool, bad arguments, timeout,
// handler error, handler panic) becomes a structured Result; Execute never
// returns an error to the caller.
type Executor struct {
	registry *Registry
	pool     *workerpool.Pool
	timeout  time.Duration
	logger   *zap.Logger
}

// NewExecutor creates an executor over the given registry and pool
func NewExecutor(registry *Registry, pool *workerpool.Pool, timeout time.Duration, logger *zap.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Executor{
		registry: registry,
		pool:     pool,
		timeout:  timeout,
		logger:   logger,
	}
}

// Execute runs a single tool call to a structured result
func (e *Executor) Execute(ctx context.Context, call Call) Result {
	start := time.Now()

	tool, ok := e.registry.Get(call.Name)
	if !ok {
		return errorResult(call, FailureUnknownTool,
			fmt.Sprintf("tool %q is not registered", call.Name), time.Since(start))
	}

	args, err := parseArguments(call.Arguments)
	if err != nil {
		return errorResult(call, FailureInvalidArguments, err.Error(), time.Since(start))
	}

	if err := ValidateArguments(tool.InputSchema, args); err != nil {
		return errorResult(call, FailureInvalidArguments, err.Error(), time.Since(start))
	}

	return e.run(ctx, tool, call, args, start)
}

// ExecuteAll runs sibling calls of one step concurrently and returns results
// in the order the calls were requested. It waits for every call: a slow tool
// delays the step, partial continuation is not supported.
func (e *Executor) ExecuteAll(ctx context.Context, calls []Call) []Result {
	results := make([]Result, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		i, call := i, call
		task := func() {
			defer wg.Done()
			results[i] = e.Execute(ctx, call)
		}
		if err := e.pool.Submit(task); err != nil {
			// Pool closed during shutdown; degrade to inline execution.
			task()
		}
	}
	wg.Wait()

	return results
}

type handlerOutcome struct {
	value any
	err   error
}

func (e *Executor) run(ctx context.Context, tool Tool, call Call, args map[string]any, start time.Time) Result {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan handlerOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("tool handler panicked",
					zap.String("tool", call.Name),
					zap.Any("panic", r))
				done <- handlerOutcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		value, err := tool.Handler(callCtx, args)
		done <- handlerOutcome{value: value, err: err}
	}()

	select {
	case <-callCtx.Done():
		elapsed := time.Since(start)
		e.logger.Warn("tool call timed out",
			zap.String("tool", call.Name),
			zap.Duration("elapsed", elapsed))
		return errorResult(call, FailureTimeout,
			fmt.Sprintf("tool %q exceeded the %s execution budget", call.Name, e.timeout), elapsed)

	case outcome := <-done:
		elapsed := time.Since(start)
		if outcome.err != nil {
			return errorResult(call, FailureExecution, outcome.err.Error(), elapsed)
		}
		content, err := marshalContent(outcome.value)
		if err != nil {
			return errorResult(call, FailureExecution,
				fmt.Sprintf("tool result not serializable: %v", err), elapsed)
		}
		return Result{
			CallID:   call.ID,
			Name:     call.Name,
			Content:  content,
			Duration: elapsed,
		}
	}
}

// parseArguments decodes the model-produced argument JSON into a map.
// An empty payload means "no arguments".
func parseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("arguments are not valid JSON")
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("arguments must be a JSON object")
	}
	args, ok := parsed.Value().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("arguments must be a JSON object")
	}
	return args, nil
}
