package stream

import (
	"context"
	"errors"
	"sync"
)

var ErrPublisherClosed = errors.New("stream publisher is closed")

// Event is one envelope on a turn's output stream. Data carries a
// JSON-serializable payload specific to the event type.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Event types emitted over a turn, in the order a consumer can rely on:
// conversation resolution first, then interleaved text deltas and tool
// lifecycle events, then usage, then exactly one terminal event.
const (
	EventConversation    = "conversation"
	EventTextDelta       = "text_delta"
	EventToolCallStarted = "tool_call_started"
	EventToolCallResult  = "tool_call_result"
	EventUsage           = "usage"
	EventDone            = "done"
	EventError           = "error"
)

// Publisher is a single-producer single-consumer ordered event pipe between
// a running turn and its transport. Publish preserves emission order; the
// consumer reads Events() until it closes. The producing goroutine owns the
// lifecycle: it calls Close after its final Publish.
type Publisher struct {
	ch        chan Event
	closeOnce sync.Once
	done      chan struct{}
}

// NewPublisher creates a publisher with the given buffer size
func NewPublisher(buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Publisher{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

// Publish enqueues one event. It blocks when the buffer is full and the
// consumer is slow, and fails once the publisher is closed or the context
// ends.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	select {
	case <-p.done:
		return ErrPublisherClosed
	default:
	}

	select {
	case p.ch <- ev:
		return nil
	case <-p.done:
		return ErrPublisherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the consumer side of the pipe
func (p *Publisher) Events() <-chan Event {
	return p.ch
}

// Close ends the stream. Events already buffered stay readable; further
// Publish calls fail. Safe to call more than once.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		close(p.ch)
	})
}
