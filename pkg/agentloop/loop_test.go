package agentloop

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/flowpilot/agentcore/pkg/authz"
	"github.com/flowpilot/agentcore/pkg/config"
	"github.com/flowpilot/agentcore/pkg/event"
	"github.com/flowpilot/agentcore/pkg/llm"
	"github.com/flowpilot/agentcore/pkg/memory"
	"github.com/flowpilot/agentcore/pkg/tool"
	"github.com/flowpilot/agentcore/pkg/tool/control"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memConfig() config.MemoryConfig {
	return config.MemoryConfig{EvictionStrategy: config.MemoryFIFOWindow, MaxHistorySteps: 50}
}

// scriptedLLM returns one canned *llm.Response per call, in order.
type scriptedLLM struct {
	responses []*llm.Response
	calls     int
}

func (s *scriptedLLM) Generate(ctx context.Context, messages []event.Message, tools []event.ToolDescriptor) (*llm.Response, error) {
	if s.calls >= len(s.responses) {
		return &llm.Response{Content: "out of script"}, nil
	}
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}

func (s *scriptedLLM) Model() string { return "scripted" }

func sequentialIDs() IDGenerator {
	n := 0
	return func() string {
		n++
		return "id-" + string(rune('a'+n))
	}
}

func newTestLoop(t *testing.T, responses []*llm.Response, cfg Config) (*Loop, *tool.Registry) {
	t.Helper()
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(control.NewDone()))
	mem, err := memory.New(memConfig(), nil)
	require.NoError(t, err)
	if cfg.NewID == nil {
		cfg.NewID = sequentialIDs()
	}
	l := New(cfg, &scriptedLLM{responses: responses}, reg, mem, nil, nil, "be helpful")
	return l, reg
}

func drain(t *testing.T, seq func(func(event.Event, error) bool)) ([]event.Event, error) {
	t.Helper()
	var events []event.Event
	var runErr error
	seq(func(e event.Event, err error) bool {
		if err != nil {
			runErr = err
			return false
		}
		events = append(events, e)
		return true
	})
	return events, runErr
}

func TestRunStopsOnContentOnlyResponse(t *testing.T) {
	l, _ := newTestLoop(t, []*llm.Response{{Content: "the answer is 42"}}, Config{MaxSteps: 5})
	events, err := drain(t, l.Run(context.Background(), event.RunAgentInput{
		Messages: []event.Message{event.NewUserMessage("u1", "what is the answer?")},
	}))
	require.NoError(t, err)

	var sawEnd bool
	for _, e := range events {
		if e.Type == event.TypeTextMessageEnd {
			sawEnd = true
		}
	}
	assert.True(t, sawEnd)
}

func TestRunStopsOnAssistantDone(t *testing.T) {
	doneArgs, _ := json.Marshal(map[string]any{"summary": "finished the requested task", "status": "success"})
	l, _ := newTestLoop(t, []*llm.Response{
		{ToolCalls: []event.ToolCall{{ID: "tc1", Name: control.DoneName, Arguments: doneArgs}}},
	}, Config{MaxSteps: 5})

	events, err := drain(t, l.Run(context.Background(), event.RunAgentInput{
		Messages: []event.Message{event.NewUserMessage("u1", "do the thing")},
	}))
	require.NoError(t, err)

	var sawToolEnd bool
	for _, e := range events {
		if e.Type == event.TypeToolCallEnd {
			sawToolEnd = true
		}
	}
	assert.True(t, sawToolEnd)
}

func TestRunReturnsStepLimitExceeded(t *testing.T) {
	// Every response keeps calling a real tool, never terminating.
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(control.NewDone()))
	require.NoError(t, reg.Register(&infiniteTool{}))

	mem, err := memory.New(memConfig(), nil)
	require.NoError(t, err)

	responses := make([]*llm.Response, 0, 3)
	for i := 0; i < 3; i++ {
		responses = append(responses, &llm.Response{
			ToolCalls: []event.ToolCall{{ID: "tc", Name: "ping", Arguments: json.RawMessage(`{}`)}},
		})
	}
	l := New(Config{MaxSteps: 2, NewID: sequentialIDs()}, &scriptedLLM{responses: responses}, reg, mem, nil, nil, "")

	_, err = drain(t, l.Run(context.Background(), event.RunAgentInput{
		Messages: []event.Message{event.NewUserMessage("u1", "loop forever")},
	}))
	require.ErrorIs(t, err, ErrStepLimitExceeded)
}

func TestRunRecordsDeniedToolCall(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(&infiniteTool{}))
	mem, err := memory.New(memConfig(), nil)
	require.NoError(t, err)

	gate := authz.New(config.AuthorizationConfig{Mode: config.AuthorizationAlwaysDeny}, nil)
	responses := []*llm.Response{
		{ToolCalls: []event.ToolCall{{ID: "tc1", Name: "ping", Arguments: json.RawMessage(`{}`)}}},
		{Content: "giving up"},
	}
	l := New(Config{MaxSteps: 3, NewID: sequentialIDs()}, &scriptedLLM{responses: responses}, reg, mem, gate, nil, "")

	_, err = drain(t, l.Run(context.Background(), event.RunAgentInput{
		Messages: []event.Message{event.NewUserMessage("u1", "ping please")},
	}))
	require.NoError(t, err)

	var denied bool
	for _, m := range mem.GetContext() {
		if m.Role == event.RoleTool && m.Content == "Authorization denied by user." {
			denied = true
			require.NotNil(t, m.Success)
			assert.False(t, *m.Success)
		}
	}
	assert.True(t, denied, "denied call must synthesize a failed Tool message")
}

type infiniteTool struct{}

func (i *infiniteTool) Metadata() tool.Metadata {
	return tool.Metadata{Name: "ping", Description: "always replies pong", InputSchema: json.RawMessage(`{"type":"object"}`)}
}

func (i *infiniteTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	return "pong", nil
}
