package agenthandler

import (
	"context"
	"testing"

	"github.com/flowpilot/agentcore/pkg/agentloop"
	"github.com/flowpilot/agentcore/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	events []event.Event
	err    error
	panics bool
}

func (s stubRunner) Run(ctx context.Context, input event.RunAgentInput) func(func(event.Event, error) bool) {
	return func(yield func(event.Event, error) bool) {
		if s.panics {
			panic("boom")
		}
		for _, e := range s.events {
			if !yield(e, nil) {
				return
			}
		}
		if s.err != nil {
			yield(event.Event{}, s.err)
		}
	}
}

func collect(t *testing.T, h *Handler, input event.RunAgentInput) []event.Event {
	t.Helper()
	var got []event.Event
	h.Stream(context.Background(), input, func(e event.Event) bool {
		got = append(got, e)
		return true
	})
	return got
}

func TestStreamEmitsStartedThenEventsThenFinished(t *testing.T) {
	h := New(stubRunner{events: []event.Event{event.TextMessageStart("m1", "assistant")}})
	got := collect(t, h, event.RunAgentInput{ThreadID: "t1", RunID: "r1"})

	require.Len(t, got, 3)
	assert.Equal(t, event.TypeRunStarted, got[0].Type)
	assert.Equal(t, event.TypeTextMessageStart, got[1].Type)
	assert.Equal(t, event.TypeRunFinished, got[2].Type)
}

func TestStreamEmitsRunErrorOnLoopError(t *testing.T) {
	h := New(stubRunner{err: agentloop.ErrStepLimitExceeded})
	got := collect(t, h, event.RunAgentInput{ThreadID: "t1", RunID: "r1"})

	require.Len(t, got, 2)
	assert.Equal(t, event.TypeRunStarted, got[0].Type)
	assert.Equal(t, event.TypeRunError, got[1].Type)
	payload := got[1].Payload.(event.RunErrorPayload)
	assert.Equal(t, "STEP_LIMIT_EXCEEDED", payload.Code)
}

func TestStreamRecoversFromPanicAsRunError(t *testing.T) {
	h := New(stubRunner{panics: true})
	got := collect(t, h, event.RunAgentInput{ThreadID: "t1", RunID: "r1"})

	require.Len(t, got, 2)
	assert.Equal(t, event.TypeRunError, got[1].Type)
}

func TestStreamStopsWhenEmitDeclines(t *testing.T) {
	h := New(stubRunner{events: []event.Event{event.TextMessageStart("m1", "assistant"), event.TextMessageEnd("m1")}})
	var got []event.Event
	h.Stream(context.Background(), event.RunAgentInput{}, func(e event.Event) bool {
		got = append(got, e)
		return e.Type != event.TypeTextMessageStart
	})
	// RUN_STARTED, then TEXT_MESSAGE_START (at which point emit declines further events).
	assert.Equal(t, []event.Type{event.TypeRunStarted, event.TypeTextMessageStart}, typesOf(got))
}

func typesOf(events []event.Event) []event.Type {
	out := make([]event.Type, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
