package loop

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Utkarshchaudhary009/IRIS/internal/agent/llm"
	"github.com/Utkarshchaudhary009/IRIS/internal/agent/stream"
	"github.com/Utkarshchaudhary009/IRIS/internal/agent/tools"
	apperrors "github.com/Utkarshchaudhary009/IRIS/internal/pkg/errors"
	"github.com/Utkarshchaudhary009/IRIS/internal/pkg/workerpool"
)

type appendCall struct {
	conversationID string
	records        []MessageRecord
}

// fakeStore records appended messages and finalized usage in commit order.
type fakeStore struct {
	mu        sync.Mutex
	appends   []appendCall
	finalized []llm.Usage

	appendErr   error
	finalizeErr error
}

func (s *fakeStore) AppendMessages(ctx context.Context, conversationID string, records []MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appends = append(s.appends, appendCall{conversationID: conversationID, records: records})
	return nil
}

func (s *fakeStore) FinalizeTurn(ctx context.Context, conversationID string, usage llm.Usage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalizeErr != nil {
		return s.finalizeErr
	}
	s.finalized = append(s.finalized, usage)
	return nil
}

func (s *fakeStore) allRecords() []MessageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []MessageRecord
	for _, a := range s.appends {
		out = append(out, a.records...)
	}
	return out
}

type controllerFixture struct {
	controller *Controller
	store      *fakeStore
	gateway    *llm.ScriptedGateway
	pub        *stream.Publisher
	events     []stream.Event
}

func newFixture(t *testing.T, gateway *llm.ScriptedGateway, extraTools ...tools.Tool) *controllerFixture {
	t.Helper()

	pool, err := workerpool.New(4, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	registry := tools.NewRegistry()
	require.NoError(t, tools.RegisterBuiltins(registry, tools.BuiltinConfig{}))
	for _, tool := range extraTools {
		require.NoError(t, registry.Register(tool))
	}

	store := &fakeStore{}
	executor := tools.NewExecutor(registry, pool, time.Second, zap.NewNop())
	counter := llm.NewTokenCounter(zap.NewNop())

	return &controllerFixture{
		controller: NewController(gateway, registry, executor, store, counter, zap.NewNop()),
		store:      store,
		gateway:    gateway,
		pub:        stream.NewPublisher(256),
	}
}

func (f *controllerFixture) run(ctx context.Context, cfg Config, history ...llm.Message) *Result {
	res := f.controller.Run(ctx, "conv-1", history, cfg, f.pub)
	f.pub.Close()
	for ev := range f.pub.Events() {
		f.events = append(f.events, ev)
	}
	return res
}

func (f *controllerFixture) eventTypes() []string {
	out := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

func calcToolStep(id, expression string) llm.ScriptedStep {
	args, _ := json.Marshal(map[string]string{"expression": expression})
	return llm.ScriptedStep{Completion: &llm.Completion{
		ToolCalls:    []tools.Call{{ID: id, Name: "calculate", Arguments: string(args)}},
		FinishReason: llm.FinishToolCalls,
		Usage:        &llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
}

func finalStep(content string) llm.ScriptedStep {
	return llm.ScriptedStep{Completion: &llm.Completion{
		Content:      content,
		FinishReason: llm.FinishStop,
		Usage:        &llm.Usage{PromptTokens: 20, CompletionTokens: 8, TotalTokens: 28},
	}}
}

func TestRunSingleToolTurn(t *testing.T) {
	f := newFixture(t, llm.NewScriptedGateway(
		calcToolStep("call_1", "2+2"),
		finalStep("2+2 is 4"),
	))

	res := f.run(context.Background(), Config{Model: "gpt-4o-mini", MaxSteps: 10},
		llm.Message{Role: "user", Content: "what is 2+2?"})

	require.Equal(t, StateDone, res.State)
	assert.Equal(t, "2+2 is 4", res.FinalContent)
	assert.Equal(t, 2, res.Steps)
	assert.Equal(t, 2, f.gateway.Calls())
	assert.Equal(t, 43, res.Usage.TotalTokens)

	// assistant(tool call) + tool result + assistant(final), in commit order
	records := f.store.allRecords()
	require.Len(t, records, 3)
	assert.Equal(t, "assistant", records[0].Role)
	require.Len(t, records[0].ToolCalls, 1)

	assert.Equal(t, "tool", records[1].Role)
	assert.Equal(t, "call_1", records[1].ToolCallID)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(records[1].Content), &payload))
	assert.Equal(t, float64(4), payload["result"])

	assert.Equal(t, "assistant", records[2].Role)
	assert.Equal(t, "2+2 is 4", records[2].Content)

	require.Len(t, f.store.finalized, 1)
	assert.Equal(t, 43, f.store.finalized[0].TotalTokens)

	types := f.eventTypes()
	assert.Contains(t, types, stream.EventToolCallStarted)
	assert.Contains(t, types, stream.EventToolCallResult)
	assert.Contains(t, types, stream.EventUsage)
	assert.Equal(t, stream.EventDone, types[len(types)-1])
}

func TestRunTextDeltasForwarded(t *testing.T) {
	f := newFixture(t, llm.NewScriptedGateway(finalStep("hello")))

	res := f.run(context.Background(), Config{Model: "gpt-4o-mini", MaxSteps: 10},
		llm.Message{Role: "user", Content: "hi"})

	require.Equal(t, StateDone, res.State)

	var text string
	for _, ev := range f.events {
		if ev.Type == stream.EventTextDelta {
			text += ev.Data.(string)
		}
	}
	assert.Equal(t, "hello", text)
}

func TestRunGatewayCallsNeverExceedMaxSteps(t *testing.T) {
	// A model that always requests tools: the loop must stop at maxSteps.
	steps := make([]llm.ScriptedStep, 20)
	for i := range steps {
		steps[i] = calcToolStep("call", "1+1")
	}
	f := newFixture(t, llm.NewScriptedGateway(steps...))

	res := f.run(context.Background(), Config{Model: "gpt-4o-mini", MaxSteps: 3},
		llm.Message{Role: "user", Content: "loop forever"})

	assert.Equal(t, StateStepLimitReached, res.State)
	assert.LessOrEqual(t, f.gateway.Calls(), 3)
}

func TestRunStepLimitSynthesizesTerminalMessage(t *testing.T) {
	f := newFixture(t, llm.NewScriptedGateway(calcToolStep("call_1", "2+2")))

	res := f.run(context.Background(), Config{Model: "gpt-4o-mini", MaxSteps: 1},
		llm.Message{Role: "user", Content: "what is 2+2?"})

	// Exactly one model call, one tool dispatch, then truncation.
	require.Equal(t, StateStepLimitReached, res.State)
	assert.Equal(t, 1, f.gateway.Calls())
	assert.Equal(t, stepLimitMarker, res.FinalContent)

	records := f.store.allRecords()
	require.Len(t, records, 3)
	assert.Equal(t, "tool", records[1].Role)
	assert.Equal(t, stepLimitMarker, records[2].Content)

	// Truncation is an outcome, not a failure: counters still finalized.
	require.Len(t, f.store.finalized, 1)
}

func TestRunStepLimitReusesLastModelText(t *testing.T) {
	args, _ := json.Marshal(map[string]string{"expression": "2+2"})
	f := newFixture(t, llm.NewScriptedGateway(llm.ScriptedStep{Completion: &llm.Completion{
		Content:      "Let me check that.",
		ToolCalls:    []tools.Call{{ID: "c1", Name: "calculate", Arguments: string(args)}},
		FinishReason: llm.FinishToolCalls,
		Usage:        &llm.Usage{TotalTokens: 5},
	}}))

	res := f.run(context.Background(), Config{Model: "gpt-4o-mini", MaxSteps: 1},
		llm.Message{Role: "user", Content: "what is 2+2?"})

	require.Equal(t, StateStepLimitReached, res.State)
	assert.Equal(t, "Let me check that.", res.FinalContent)
}

func TestRunGatewayFailureAbortsTurn(t *testing.T) {
	f := newFixture(t, llm.NewScriptedGateway(
		calcToolStep("call_1", "2+2"),
		llm.ScriptedStep{Err: apperrors.New(apperrors.ErrGatewayStreamBroken, "connection reset")},
	))

	res := f.run(context.Background(), Config{Model: "gpt-4o-mini", MaxSteps: 10},
		llm.Message{Role: "user", Content: "what is 2+2?"})

	require.Equal(t, StateFailed, res.State)
	assert.Equal(t, apperrors.ErrGatewayStreamBroken, apperrors.ExtractCode(res.Err))

	// Messages committed before the failure stay committed.
	records := f.store.allRecords()
	require.Len(t, records, 2)
	assert.Equal(t, "tool", records[1].Role)
	// No counters finalized for a failed turn.
	assert.Empty(t, f.store.finalized)
}

func TestRunInvalidToolArgumentsAbsorbed(t *testing.T) {
	f := newFixture(t, llm.NewScriptedGateway(
		llm.ScriptedStep{Completion: &llm.Completion{
			ToolCalls:    []tools.Call{{ID: "c1", Name: "calculate", Arguments: `{"wrong":"field"}`}},
			FinishReason: llm.FinishToolCalls,
			Usage:        &llm.Usage{TotalTokens: 5},
		}},
		finalStep("something went wrong with the tool"),
	))

	res := f.run(context.Background(), Config{Model: "gpt-4o-mini", MaxSteps: 10},
		llm.Message{Role: "user", Content: "calculate"})

	// The turn continues; the failure travels as a tool result.
	require.Equal(t, StateDone, res.State)

	records := f.store.allRecords()
	require.Len(t, records, 3)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(records[1].Content), &payload))
	assert.Contains(t, payload["error"], "required")
}

func TestRunToolTimeoutContinuesWithSiblings(t *testing.T) {
	slow := tools.Tool{
		Name: "slow",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(10 * time.Second):
				return "late", nil
			}
		},
	}
	args, _ := json.Marshal(map[string]string{"expression": "3*3"})
	f := newFixture(t, llm.NewScriptedGateway(
		llm.ScriptedStep{Completion: &llm.Completion{
			ToolCalls: []tools.Call{
				{ID: "c1", Name: "slow", Arguments: `{}`},
				{ID: "c2", Name: "calculate", Arguments: string(args)},
			},
			FinishReason: llm.FinishToolCalls,
			Usage:        &llm.Usage{TotalTokens: 5},
		}},
		finalStep("9"),
	), slow)

	res := f.run(context.Background(), Config{Model: "gpt-4o-mini", MaxSteps: 10},
		llm.Message{Role: "user", Content: "race"})

	require.Equal(t, StateDone, res.State)

	records := f.store.allRecords()
	require.Len(t, records, 4)

	// Sibling results land in request order: timeout first, then the result.
	assert.Equal(t, "c1", records[1].ToolCallID)
	assert.Contains(t, records[1].Content, "execution budget")
	assert.Equal(t, "c2", records[2].ToolCallID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(records[2].Content), &payload))
	assert.Equal(t, float64(9), payload["result"])
}

func TestRunCancellationPersistsOrphanedResults(t *testing.T) {
	started := make(chan struct{})
	finish := make(chan struct{})
	inflight := tools.Tool{
		Name: "inflight",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			close(started)
			<-finish
			return "side effect happened", nil
		},
	}
	f := newFixture(t, llm.NewScriptedGateway(
		llm.ScriptedStep{Completion: &llm.Completion{
			ToolCalls:    []tools.Call{{ID: "c1", Name: "inflight", Arguments: `{}`}},
			FinishReason: llm.FinishToolCalls,
			Usage:        &llm.Usage{TotalTokens: 5},
		}},
	))
	require.NoError(t, f.controller.registry.Register(inflight))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
		close(finish)
	}()

	res := f.run(ctx, Config{Model: "gpt-4o-mini", MaxSteps: 10},
		llm.Message{Role: "user", Content: "go"})

	// The loop does not resume, but the in-flight result is on disk.
	require.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 1, f.gateway.Calls())

	records := f.store.allRecords()
	require.Len(t, records, 2)
	assert.Equal(t, "tool", records[1].Role)
	assert.True(t, records[1].Orphaned)
	assert.Contains(t, records[1].Content, "side effect happened")
}

func TestRunMessageCommitFailureFailsTurn(t *testing.T) {
	f := newFixture(t, llm.NewScriptedGateway(finalStep("answer")))
	f.store.appendErr = errors.New("db down")

	res := f.run(context.Background(), Config{Model: "gpt-4o-mini", MaxSteps: 10},
		llm.Message{Role: "user", Content: "hi"})

	require.Equal(t, StateFailed, res.State)
	assert.Equal(t, apperrors.ErrPersistenceFailed, apperrors.ExtractCode(res.Err))
}

func TestRunFinalizeFailureStillCompletes(t *testing.T) {
	f := newFixture(t, llm.NewScriptedGateway(finalStep("answer")))
	f.store.finalizeErr = errors.New("db hiccup")

	res := f.run(context.Background(), Config{Model: "gpt-4o-mini", MaxSteps: 10},
		llm.Message{Role: "user", Content: "hi"})

	// Degraded but completed: the answer stands even if counters lag.
	require.Equal(t, StateDone, res.State)
	assert.Equal(t, "answer", res.FinalContent)
}

func TestRunEstimatesUsageWhenMissing(t *testing.T) {
	f := newFixture(t, llm.NewScriptedGateway(llm.ScriptedStep{Completion: &llm.Completion{
		Content:      "four",
		FinishReason: llm.FinishStop,
	}}))

	res := f.run(context.Background(), Config{Model: "gpt-4o-mini", MaxSteps: 10},
		llm.Message{Role: "user", Content: "what is 2+2?"})

	require.Equal(t, StateDone, res.State)
	assert.Greater(t, res.Usage.TotalTokens, 0)
}
