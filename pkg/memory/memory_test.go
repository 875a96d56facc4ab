package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpilot/agentcore/pkg/config"
	"github.com/flowpilot/agentcore/pkg/event"
)

// scriptedSummarizer returns a fixed summary, recording the messages it was
// asked to fold in so tests can assert on the split point.
type scriptedSummarizer struct {
	calls  int
	folded []event.Message
}

func (s *scriptedSummarizer) Summarize(_ context.Context, priorSummary string, messages []event.Message) (string, error) {
	s.calls++
	s.folded = messages
	return "summary#" + string(rune('0'+s.calls)), nil
}

func userMsg(id string) event.Message { return event.NewUserMessage(id, "msg-"+id) }

func TestFIFOWindowBound(t *testing.T) {
	m := NewFIFOWindow(3)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, m.AddMessage(ctx, userMsg(string(rune('a'+i)))))
	}

	msgs := m.GetContext()
	require.Len(t, msgs, 3)
	assert.Equal(t, "msg-h", msgs[0].Content)
	assert.Equal(t, "msg-j", msgs[2].Content)
	assert.Equal(t, 3, m.Stats().MessageCount)
}

func TestFIFOWindowNeverSplitsToolCallPairing(t *testing.T) {
	m := NewFIFOWindow(2)
	ctx := context.Background()

	require.NoError(t, m.AddMessage(ctx, userMsg("1")))
	require.NoError(t, m.AddMessage(ctx, event.NewAssistantMessage("2", "", []event.ToolCall{{ID: "tc1", Name: "calc"}})))
	require.NoError(t, m.AddMessage(ctx, event.NewToolMessage("3", "tc1", "4", true)))

	msgs := m.GetContext()
	// maxMessages=2 cuts to the last 2, which are exactly the Assistant
	// call and its Tool response, so the pair stays together and the user
	// message is evicted.
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].HasToolCalls())
	assert.True(t, msgs[1].IsToolResponse())
}

func TestFIFOWindowClear(t *testing.T) {
	m := NewFIFOWindow(5)
	require.NoError(t, m.AddMessage(context.Background(), userMsg("1")))
	m.Clear()
	assert.Empty(t, m.GetContext())
	assert.Equal(t, 0, m.Stats().MessageCount)
}

func TestSummarizingCollapsesOlderHalf(t *testing.T) {
	summarizer := &scriptedSummarizer{}
	m := NewSummarizing(1, summarizer) // threshold of 1 token: any message triggers it
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, m.AddMessage(ctx, userMsg(string(rune('a'+i)))))
	}

	require.Positive(t, summarizer.calls)
	msgs := m.GetContext()
	require.NotEmpty(t, msgs)
	assert.Equal(t, event.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "summary#")
	assert.True(t, m.Stats().SummarizedOnce)
}

func TestSummarizingWithNilSummarizerNeverCollapses(t *testing.T) {
	m := NewSummarizing(1, nil)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		require.NoError(t, m.AddMessage(ctx, userMsg(string(rune('a'+i)))))
	}
	assert.Len(t, m.GetContext(), 20)
	assert.False(t, m.Stats().SummarizedOnce)
}

func TestSummarizingPreservesToolCallPairingAcrossCollapse(t *testing.T) {
	summarizer := &scriptedSummarizer{}
	m := NewSummarizing(1, summarizer)
	ctx := context.Background()

	require.NoError(t, m.AddMessage(ctx, event.NewUserMessage("1", "aaaa1")))
	require.NoError(t, m.AddMessage(ctx, event.NewAssistantMessage("2", "aaaa2", []event.ToolCall{{ID: "tc1", Name: "calc"}})))
	require.NoError(t, m.AddMessage(ctx, event.NewToolMessage("3", "tc1", "aaaa3", true)))
	// Collapses run as the pair arrives, but the cut never moves past the
	// last Assistant tool-call message: only what precedes it (the user
	// turn, then the rolling summary) is folded.
	assert.Equal(t, 2, summarizer.calls)
	for _, f := range summarizer.folded {
		assert.False(t, f.HasToolCalls())
	}

	require.NoError(t, m.AddMessage(ctx, event.NewUserMessage("4", "aaaa4")))

	require.Equal(t, 3, summarizer.calls)
	require.Len(t, summarizer.folded, 1)
	assert.Equal(t, event.RoleSystem, summarizer.folded[0].Role)
	assert.False(t, summarizer.folded[0].HasToolCalls())

	msgs := m.GetContext()
	require.Len(t, msgs, 4)
	assert.Equal(t, event.RoleSystem, msgs[0].Role)
	assert.True(t, msgs[1].HasToolCalls())
	assert.True(t, msgs[2].IsToolResponse())
	assert.Equal(t, "aaaa4", msgs[3].Content)
}

func TestSummaryBufferKeepsRecentVerbatim(t *testing.T) {
	summarizer := &scriptedSummarizer{}
	m := NewSummaryBuffer(3, summarizer)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		require.NoError(t, m.AddMessage(ctx, userMsg(string(rune('a'+i)))))
	}

	msgs := m.GetContext()
	require.True(t, m.Stats().SummarizedOnce)
	require.Len(t, msgs, 4) // 1 summary message + bufferSize=3 verbatim
	assert.Equal(t, event.RoleSystem, msgs[0].Role)
	assert.Equal(t, "msg-f", msgs[1].Content)
	assert.Equal(t, "msg-g", msgs[2].Content)
	assert.Equal(t, "msg-h", msgs[3].Content)
}

func TestSummaryBufferClearResetsSummary(t *testing.T) {
	summarizer := &scriptedSummarizer{}
	m := NewSummaryBuffer(2, summarizer)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		require.NoError(t, m.AddMessage(ctx, userMsg(string(rune('a'+i)))))
	}
	require.True(t, m.Stats().SummarizedOnce)

	m.Clear()
	assert.Empty(t, m.GetContext())
	assert.False(t, m.Stats().SummarizedOnce)
}

func TestNewSelectsStrategyByConfig(t *testing.T) {
	fifo, err := New(config.MemoryConfig{EvictionStrategy: config.MemoryFIFOWindow, MaxHistorySteps: 5}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FIFOWindow{}, fifo)

	summarizing, err := New(config.MemoryConfig{EvictionStrategy: config.MemorySummarizing}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Summarizing{}, summarizing)

	buffer, err := New(config.MemoryConfig{EvictionStrategy: config.MemorySummaryBuffer}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SummaryBuffer{}, buffer)

	_, err = New(config.MemoryConfig{EvictionStrategy: "bogus"}, nil)
	assert.Error(t, err)
}

func TestNewDefaultsToFIFOWindow(t *testing.T) {
	m, err := New(config.MemoryConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FIFOWindow{}, m)
}
