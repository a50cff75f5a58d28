package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherOrdering(t *testing.T) {
	p := NewPublisher(8)

	go func() {
		require.NoError(t, p.Publish(context.Background(), Event{Type: EventConversation}))
		require.NoError(t, p.Publish(context.Background(), Event{Type: EventTextDelta, Data: "a"}))
		require.NoError(t, p.Publish(context.Background(), Event{Type: EventTextDelta, Data: "b"}))
		require.NoError(t, p.Publish(context.Background(), Event{Type: EventDone}))
		p.Close()
	}()

	var got []Event
	for ev := range p.Events() {
		got = append(got, ev)
	}

	require.Len(t, got, 4)
	assert.Equal(t, EventConversation, got[0].Type)
	assert.Equal(t, "a", got[1].Data)
	assert.Equal(t, "b", got[2].Data)
	assert.Equal(t, EventDone, got[3].Type)
}

func TestPublisherBufferedEventsSurviveClose(t *testing.T) {
	p := NewPublisher(8)

	require.NoError(t, p.Publish(context.Background(), Event{Type: EventConversation}))
	require.NoError(t, p.Publish(context.Background(), Event{Type: EventError}))
	p.Close()

	var got []Event
	for ev := range p.Events() {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, EventError, got[1].Type)
}

func TestPublisherPublishAfterClose(t *testing.T) {
	p := NewPublisher(1)
	p.Close()

	err := p.Publish(context.Background(), Event{Type: EventTextDelta})
	assert.ErrorIs(t, err, ErrPublisherClosed)
}

func TestPublisherCloseIdempotent(t *testing.T) {
	p := NewPublisher(1)
	p.Close()
	p.Close()
}

func TestPublisherBlockedPublishRespectsContext(t *testing.T) {
	p := NewPublisher(1)
	require.NoError(t, p.Publish(context.Background(), Event{Type: EventTextDelta}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Publish(ctx, Event{Type: EventTextDelta})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
