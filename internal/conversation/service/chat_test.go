package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Utkarshchaudhary009/IRIS/internal/agent/tools"
	"github.com/Utkarshchaudhary009/IRIS/internal/conversation/types"
)

func TestGatewayHistorySkipsOrphanedResults(t *testing.T) {
	messages := []*types.Message{
		{Role: types.RoleUser, Content: "what is the weather"},
		{
			Role: types.RoleAssistant,
			ToolCalls: []tools.Call{
				{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Paris"}`},
			},
		},
		{Role: types.RoleTool, ToolCallID: "call_1", Content: `{"city":"Paris"}`, Orphaned: true},
		{Role: types.RoleUser, Content: "never mind"},
	}

	history := gatewayHistory(messages)

	require.Len(t, history, 2)
	assert.Equal(t, "what is the weather", history[0].Content)
	assert.Equal(t, "never mind", history[1].Content)
}

func TestGatewayHistoryDropsDanglingToolCalls(t *testing.T) {
	// 工具结果落库前提交中断：assistant 行存在但没有对应的 tool 行。
	// 重试回合的上下文必须丢掉这半截配对，否则网关请求会被拒绝。
	messages := []*types.Message{
		{Role: types.RoleUser, Content: "calculate 2+2"},
		{
			Role: types.RoleAssistant,
			ToolCalls: []tools.Call{
				{ID: "call_1", Name: "calculate", Arguments: `{"expression":"2+2"}`},
			},
		},
		{Role: types.RoleUser, Content: "try again"},
	}

	history := gatewayHistory(messages)

	require.Len(t, history, 2)
	assert.Equal(t, "calculate 2+2", history[0].Content)
	assert.Equal(t, "try again", history[1].Content)
	for _, m := range history {
		assert.Empty(t, m.ToolCalls)
	}
}

func TestGatewayHistoryKeepsCompletedToolExchanges(t *testing.T) {
	messages := []*types.Message{
		{Role: types.RoleUser, Content: "calculate 2+2"},
		{
			Role: types.RoleAssistant,
			ToolCalls: []tools.Call{
				{ID: "call_1", Name: "calculate", Arguments: `{"expression":"2+2"}`},
			},
		},
		{Role: types.RoleTool, ToolCallID: "call_1", Content: `{"result":4}`},
		{Role: types.RoleAssistant, Content: "The answer is 4."},
	}

	history := gatewayHistory(messages)

	require.Len(t, history, 4)
	assert.Equal(t, "call_1", history[2].ToolCallID)
	assert.Len(t, history[1].ToolCalls, 1)
}

func TestTurnConfigMergesOverrides(t *testing.T) {
	s := &ChatService{defaults: TurnDefaults{MaxSteps: 10}}
	conv := &types.Conversation{
		Model:        "gpt-4o-mini",
		SystemPrompt: "base prompt",
		Temperature:  0.7,
		MaxTokens:    4096,
	}

	t.Run("no override uses conversation settings", func(t *testing.T) {
		cfg := s.turnConfig(conv, nil)
		assert.Equal(t, "gpt-4o-mini", cfg.Model)
		assert.Equal(t, float32(0.7), cfg.Temperature)
		assert.Equal(t, 10, cfg.MaxSteps)
	})

	t.Run("override wins per field", func(t *testing.T) {
		temp := float32(0.1)
		cfg := s.turnConfig(conv, &TurnConfig{
			Model:       "gpt-4o",
			Temperature: &temp,
			MaxSteps:    3,
			Tools:       []string{"calculate"},
		})
		assert.Equal(t, "gpt-4o", cfg.Model)
		assert.Equal(t, "base prompt", cfg.SystemPrompt)
		assert.Equal(t, float32(0.1), cfg.Temperature)
		assert.Equal(t, 3, cfg.MaxSteps)
		assert.Equal(t, []string{"calculate"}, cfg.Tools)
	})

	t.Run("max steps cannot exceed configured ceiling", func(t *testing.T) {
		cfg := s.turnConfig(conv, &TurnConfig{MaxSteps: 50})
		assert.Equal(t, 10, cfg.MaxSteps)
	})
}

func TestValidateInbound(t *testing.T) {
	tests := []struct {
		name     string
		messages []InboundMessage
		wantErr  bool
	}{
		{
			name:     "single user message",
			messages: []InboundMessage{{Role: "user", Content: "hi"}},
			wantErr:  false,
		},
		{
			name: "system then user",
			messages: []InboundMessage{
				{Role: "system", Content: "be terse"},
				{Role: "user", Content: "hi"},
			},
			wantErr: false,
		},
		{
			name:     "empty batch",
			messages: nil,
			wantErr:  true,
		},
		{
			name:     "assistant role rejected",
			messages: []InboundMessage{{Role: "assistant", Content: "hi"}},
			wantErr:  true,
		},
		{
			name:     "last message must be from user",
			messages: []InboundMessage{{Role: "user", Content: "hi"}, {Role: "system", Content: "x"}},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateInbound(tt.messages)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTruncateTitle(t *testing.T) {
	assert.Equal(t, "short", truncateTitle("short"))

	long := ""
	for i := 0; i < 30; i++ {
		long += "ab会"
	}
	assert.Equal(t, 60, len([]rune(truncateTitle(long))))
}
