package llm

import (
	"context"
	"sync"

	apperrors "github.com/Utkarshchaudhary009/IRIS/internal/pkg/errors"
)

// ScriptedGateway replays a fixed sequence of completions, one per call.
// It exists for tests and local development: the loop can be driven through
// multi-step tool scenarios without a live model behind it.
type ScriptedGateway struct {
	mu    sync.Mutex
	steps []ScriptedStep
	next  int

	// Requests records every request received, in order.
	Requests []*Request
}

// ScriptedStep is one scripted model call outcome.
type ScriptedStep struct {
	Completion *Completion
	Err        error
}

// NewScriptedGateway creates a gateway that replays steps in order
func NewScriptedGateway(steps ...ScriptedStep) *ScriptedGateway {
	return &ScriptedGateway{steps: steps}
}

func (g *ScriptedGateway) Name() string {
	return "scripted"
}

// Calls returns how many requests the gateway has served
func (g *ScriptedGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next
}

// ChatStream emits the next scripted step: content split into single-rune
// token events followed by a done event. A scripted error becomes an error
// event; running past the script fails the request outright.
func (g *ScriptedGateway) ChatStream(ctx context.Context, req *Request) (<-chan StreamEvent, error) {
	g.mu.Lock()
	if g.next >= len(g.steps) {
		g.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrGatewayRequestFailed, "scripted gateway exhausted")
	}
	step := g.steps[g.next]
	g.next++
	g.Requests = append(g.Requests, req)
	g.mu.Unlock()

	events := make(chan StreamEvent, 16)
	go func() {
		defer close(events)

		if step.Err != nil {
			events <- StreamEvent{Type: EventError, Err: step.Err}
			return
		}
		for _, r := range step.Completion.Content {
			select {
			case <-ctx.Done():
				events <- StreamEvent{Type: EventError, Err: ctx.Err()}
				return
			case events <- StreamEvent{Type: EventToken, Delta: string(r)}:
			}
		}
		events <- StreamEvent{Type: EventDone, Completion: step.Completion}
	}()
	return events, nil
}
