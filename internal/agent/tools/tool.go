package tools

import (
	"context"
	"encoding/json"
	"time"
)

// Handler executes one tool call using validated arguments and returns a
// JSON-serializable result value.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool is a registered capability: a name, a human description for the model,
// a JSON-schema object describing the arguments, and the execution function.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     Handler
}

// Descriptor is the advertisable part of a tool, safe to hand to the model
// gateway or to API clients.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Failure kinds carried on executor results. Tool failures are data, never
// control flow: the loop keeps going whichever of these occurs.
const (
	FailureUnknownTool      = "unknown_tool"
	FailureInvalidArguments = "invalid_arguments"
	FailureTimeout          = "timeout"
	FailureExecution        = "execution_error"
)

// Call identifies one model-requested tool invocation. Arguments arrive as
// the raw JSON string produced by the model.
type Call struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Result is the normalized outcome of one tool execution.
type Result struct {
	CallID      string          `json:"call_id"`
	Name        string          `json:"name"`
	Content     json.RawMessage `json:"content"`
	IsError     bool            `json:"is_error,omitempty"`
	FailureKind string          `json:"failure_kind,omitempty"`
	Duration    time.Duration   `json:"duration"`
}

// errorPayload is the content body of a failed execution.
type errorPayload struct {
	Error string `json:"error"`
	Tool  string `json:"tool"`
}

func marshalContent(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(v)
}

func errorResult(call Call, kind string, msg string, elapsed time.Duration) Result {
	content, _ := json.Marshal(errorPayload{Error: msg, Tool: call.Name})
	return Result{
		CallID:      call.ID,
		Name:        call.Name,
		Content:     content,
		IsError:     true,
		FailureKind: kind,
		Duration:    elapsed,
	}
}
