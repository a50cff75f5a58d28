package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Utkarshchaudhary009/IRIS/internal/pkg/workerpool"
)

func newTestExecutor(t *testing.T, timeout time.Duration, register ...Tool) *Executor {
	t.Helper()

	pool, err := workerpool.New(4, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	registry := NewRegistry()
	for _, tool := range register {
		require.NoError(t, registry.Register(tool))
	}
	return NewExecutor(registry, pool, timeout, zap.NewNop())
}

func TestExecutorExecute(t *testing.T) {
	echo := Tool{
		Name: "echo",
		InputSchema: map[string]any{
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []any{"text"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"echoed": args["text"]}, nil
		},
	}
	e := newTestExecutor(t, time.Second, echo)

	result := e.Execute(context.Background(), Call{ID: "c1", Name: "echo", Arguments: `{"text":"hi"}`})

	assert.False(t, result.IsError)
	assert.Equal(t, "c1", result.CallID)
	assert.Equal(t, "echo", result.Name)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(result.Content, &payload))
	assert.Equal(t, "hi", payload["echoed"])
}

func TestExecutorUnknownTool(t *testing.T) {
	e := newTestExecutor(t, time.Second)

	result := e.Execute(context.Background(), Call{ID: "c1", Name: "ghost", Arguments: "{}"})

	assert.True(t, result.IsError)
	assert.Equal(t, FailureUnknownTool, result.FailureKind)
}

func TestExecutorInvalidArguments(t *testing.T) {
	echo := Tool{
		Name: "echo",
		InputSchema: map[string]any{
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []any{"text"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return args, nil
		},
	}
	e := newTestExecutor(t, time.Second, echo)

	tests := []struct {
		name      string
		arguments string
	}{
		{"not JSON", "not json"},
		{"not an object", `[1,2,3]`},
		{"missing required", `{}`},
		{"wrong type", `{"text":42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := e.Execute(context.Background(), Call{ID: "c1", Name: "echo", Arguments: tt.arguments})
			assert.True(t, result.IsError)
			assert.Equal(t, FailureInvalidArguments, result.FailureKind)
		})
	}
}

func TestExecutorEmptyArguments(t *testing.T) {
	noArgs := Tool{
		Name: "no_args",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return "ok", nil
		},
	}
	e := newTestExecutor(t, time.Second, noArgs)

	result := e.Execute(context.Background(), Call{ID: "c1", Name: "no_args", Arguments: ""})
	assert.False(t, result.IsError)
	assert.Equal(t, json.RawMessage(`"ok"`), result.Content)
}

func TestExecutorHandlerError(t *testing.T) {
	failing := Tool{
		Name: "failing",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("backend unavailable")
		},
	}
	e := newTestExecutor(t, time.Second, failing)

	result := e.Execute(context.Background(), Call{ID: "c1", Name: "failing", Arguments: "{}"})

	assert.True(t, result.IsError)
	assert.Equal(t, FailureExecution, result.FailureKind)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(result.Content, &payload))
	assert.Equal(t, "backend unavailable", payload.Error)
	assert.Equal(t, "failing", payload.Tool)
}

func TestExecutorHandlerPanic(t *testing.T) {
	panicking := Tool{
		Name: "panicking",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			panic("boom")
		},
	}
	e := newTestExecutor(t, time.Second, panicking)

	result := e.Execute(context.Background(), Call{ID: "c1", Name: "panicking", Arguments: "{}"})

	assert.True(t, result.IsError)
	assert.Equal(t, FailureExecution, result.FailureKind)
}

func TestExecutorTimeout(t *testing.T) {
	slow := Tool{
		Name: "slow",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return "done", nil
			}
		},
	}
	e := newTestExecutor(t, 50*time.Millisecond, slow)

	start := time.Now()
	result := e.Execute(context.Background(), Call{ID: "c1", Name: "slow", Arguments: "{}"})

	assert.True(t, result.IsError)
	assert.Equal(t, FailureTimeout, result.FailureKind)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExecutorExecuteAllOrder(t *testing.T) {
	sleepy := Tool{
		Name: "sleepy",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			if d, ok := asFloat(args["ms"]); ok {
				time.Sleep(time.Duration(d) * time.Millisecond)
			}
			return args["tag"], nil
		},
	}
	e := newTestExecutor(t, time.Second, sleepy)

	calls := []Call{
		{ID: "c1", Name: "sleepy", Arguments: `{"ms":80,"tag":"first"}`},
		{ID: "c2", Name: "sleepy", Arguments: `{"ms":10,"tag":"second"}`},
		{ID: "c3", Name: "sleepy", Arguments: `{"ms":40,"tag":"third"}`},
	}

	results := e.ExecuteAll(context.Background(), calls)

	require.Len(t, results, 3)
	assert.Equal(t, json.RawMessage(`"first"`), results[0].Content)
	assert.Equal(t, json.RawMessage(`"second"`), results[1].Content)
	assert.Equal(t, json.RawMessage(`"third"`), results[2].Content)
}

func TestExecutorExecuteAllMixedOutcomes(t *testing.T) {
	ok := Tool{
		Name: "ok",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return "fine", nil
		},
	}
	e := newTestExecutor(t, time.Second, ok)

	results := e.ExecuteAll(context.Background(), []Call{
		{ID: "c1", Name: "ok", Arguments: "{}"},
		{ID: "c2", Name: "ghost", Arguments: "{}"},
	})

	require.Len(t, results, 2)
	assert.False(t, results[0].IsError)
	assert.True(t, results[1].IsError)
	assert.Equal(t, FailureUnknownTool, results[1].FailureKind)
}
