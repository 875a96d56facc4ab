package authz

import (
	"context"
	"testing"
	"time"

	"github.com/flowpilot/agentcore/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysAllow() config.AuthorizationConfig {
	mode := config.AuthorizationAlwaysAllow
	return config.AuthorizationConfig{Mode: mode}
}

func askMode(timeoutSeconds int) config.AuthorizationConfig {
	return config.AuthorizationConfig{Mode: config.AuthorizationAsk, TimeoutSeconds: &timeoutSeconds}
}

func TestRequestAlwaysAllowShortCircuits(t *testing.T) {
	h := New(alwaysAllow(), nil)
	decision, err := h.Request(context.Background(), RequestContext{ToolCallID: "t1"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, Yes, decision)
	assert.Empty(t, h.ListPending())
}

func TestRequestAlwaysDenyShortCircuits(t *testing.T) {
	mode := config.AuthorizationAlwaysDeny
	h := New(config.AuthorizationConfig{Mode: mode}, nil)
	decision, err := h.Request(context.Background(), RequestContext{ToolCallID: "t1"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, No, decision)
}

func TestRequestAskApprovedByDeliverResponse(t *testing.T) {
	h := New(askMode(5), nil)
	done := make(chan Decision, 1)
	go func() {
		decision, err := h.Request(context.Background(), RequestContext{ToolCallID: "t1"}, 1, 10)
		require.NoError(t, err)
		done <- decision
	}()

	// Wait until the request is actually pending before responding.
	require.Eventually(t, func() bool { return len(h.ListPending()) == 1 }, time.Second, time.Millisecond)
	h.DeliverResponse("t1", Yes)

	select {
	case decision := <-done:
		assert.Equal(t, Yes, decision)
	case <-time.After(time.Second):
		t.Fatal("Request did not return after DeliverResponse")
	}
}

func TestRequestTimesOutToNo(t *testing.T) {
	// TimeoutSeconds only has whole-second granularity; 1s keeps the test
	// fast while still exercising the real timer path.
	h := New(askMode(1), nil)

	decision, err := h.Request(context.Background(), RequestContext{ToolCallID: "t1"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, No, decision)
	assert.Empty(t, h.ListPending())
}

func TestDeliverResponseUnknownIDIsNoop(t *testing.T) {
	h := New(askMode(5), nil)
	// Must not panic or block.
	h.DeliverResponse("does-not-exist", Yes)
}

func TestSecondResponseForSameIDIsIgnored(t *testing.T) {
	h := New(askMode(5), nil)
	done := make(chan Decision, 1)
	go func() {
		decision, _ := h.Request(context.Background(), RequestContext{ToolCallID: "t1"}, 1, 10)
		done <- decision
	}()
	require.Eventually(t, func() bool { return len(h.ListPending()) == 1 }, time.Second, time.Millisecond)

	h.DeliverResponse("t1", Yes)
	<-done

	// The request has already been resolved and removed; a second delivery
	// for the same id must be a logged no-op, not a panic or a resend.
	h.DeliverResponse("t1", No)
}

func TestAllDecisionFlipsModeForFutureRequests(t *testing.T) {
	h := New(askMode(5), nil)
	done := make(chan Decision, 1)
	go func() {
		decision, _ := h.Request(context.Background(), RequestContext{ToolCallID: "t1"}, 1, 10)
		done <- decision
	}()
	require.Eventually(t, func() bool { return len(h.ListPending()) == 1 }, time.Second, time.Millisecond)
	h.DeliverResponse("t1", All)
	assert.Equal(t, Yes, <-done)

	// A subsequent request must now be auto-approved without becoming pending.
	decision, err := h.Request(context.Background(), RequestContext{ToolCallID: "t2"}, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, Yes, decision)
	assert.Empty(t, h.ListPending())
}

func TestCancelDeliversNo(t *testing.T) {
	h := New(askMode(5), nil)
	done := make(chan Decision, 1)
	go func() {
		decision, _ := h.Request(context.Background(), RequestContext{ToolCallID: "t1"}, 1, 10)
		done <- decision
	}()
	require.Eventually(t, func() bool { return len(h.ListPending()) == 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.Cancel("t1"))
	assert.Equal(t, No, <-done)
}

func TestCancelUnknownIDReturnsError(t *testing.T) {
	h := New(askMode(5), nil)
	err := h.Cancel("nope")
	require.Error(t, err)
}
