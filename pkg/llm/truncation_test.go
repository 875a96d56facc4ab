package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpilot/agentcore/pkg/event"
)

// scriptedLLM returns one canned (*Response, error) pair per call, in order.
type scriptedLLM struct {
	responses []*Response
	errs      []error
	calls     []int // records len(messages) seen on each call
}

func (s *scriptedLLM) Generate(_ context.Context, messages []event.Message, _ []event.ToolDescriptor) (*Response, error) {
	i := len(s.calls)
	s.calls = append(s.calls, len(messages))
	var resp *Response
	var err error
	if i < len(s.responses) {
		resp = s.responses[i]
	}
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return resp, err
}

func (s *scriptedLLM) Model() string { return "scripted" }

func contextLengthErr() error {
	return &Error{Kind: KindContextLength, Message: "too long"}
}

func transientErr() error {
	return &Error{Kind: KindTransient, Message: "rate limited"}
}

func fatalErr() error {
	return &Error{Kind: KindFatal, Message: "bad request"}
}

func msgs(n int) []event.Message {
	out := make([]event.Message, n)
	for i := range out {
		out[i] = event.NewUserMessage(string(rune('a'+i)), "hi")
	}
	return out
}

func TestContextTruncationDropsOldestAndRetries(t *testing.T) {
	base := &scriptedLLM{
		errs:      []error{contextLengthErr(), nil},
		responses: []*Response{nil, {Content: "ok"}},
	}
	c := NewContextTruncation(base, 3, 0.5, 2)

	resp, err := c.Generate(context.Background(), msgs(10), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	require.Len(t, base.calls, 2)
	assert.Equal(t, 10, base.calls[0])
	assert.Less(t, base.calls[1], base.calls[0], "second attempt must see fewer messages")
}

func TestContextTruncationGivesUpAtMinMessages(t *testing.T) {
	base := &scriptedLLM{
		errs: []error{contextLengthErr(), contextLengthErr(), contextLengthErr(), contextLengthErr()},
	}
	c := NewContextTruncation(base, 3, 0.9, 4)

	_, err := c.Generate(context.Background(), msgs(4), nil)
	require.Error(t, err)
	// Already at the floor: base is called once and truncation gives up
	// immediately rather than looping.
	assert.Len(t, base.calls, 1)
}

func TestContextTruncationPassesThroughNonContextLengthErrors(t *testing.T) {
	base := &scriptedLLM{errs: []error{fatalErr()}}
	c := NewContextTruncation(base, 3, 0.5, 2)

	_, err := c.Generate(context.Background(), msgs(10), nil)
	require.Error(t, err)
	assert.Len(t, base.calls, 1)
}

func TestContextTruncationPreservesSystemMessageAndToolPairing(t *testing.T) {
	history := []event.Message{
		event.NewSystemMessage("sys", "be helpful"),
		event.NewUserMessage("u1", "hi"),
		event.NewAssistantMessage("a1", "", []event.ToolCall{{ID: "tc1", Name: "calc"}}),
		event.NewToolMessage("t1", "tc1", "4", true),
		event.NewUserMessage("u2", "thanks"),
	}
	dropped := dropOldest(history, 0.3, 2)

	require.Len(t, dropped, 4)
	assert.Equal(t, event.RoleSystem, dropped[0].Role, "system message must survive truncation")

	for i, m := range dropped {
		if m.HasToolCalls() {
			require.Less(t, i+1, len(dropped))
			assert.True(t, dropped[i+1].IsToolResponse())
		}
	}
}

func TestContextTruncationModelDelegates(t *testing.T) {
	base := &scriptedLLM{}
	c := NewContextTruncation(base, 1, 0.5, 1)
	assert.Equal(t, "scripted", c.Model())
}
