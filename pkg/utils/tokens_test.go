package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenCounter(t *testing.T) {
	// Models tiktoken knows and models that fall back to cl100k_base
	// both construct successfully.
	for _, model := range []string{"gpt-4o", "gpt-4", "gpt-3.5-turbo", "claude-sonnet-4", "gemini-2.0-flash"} {
		counter, err := NewTokenCounter(model)
		require.NoError(t, err, "model %s", model)
		require.NotNil(t, counter)
		assert.Equal(t, model, counter.Model())
	}
}

func TestNewTokenCounterReusesCachedEncoding(t *testing.T) {
	a, err := NewTokenCounter("gpt-4o")
	require.NoError(t, err)
	b, err := NewTokenCounter("gpt-4o")
	require.NoError(t, err)
	assert.Same(t, a.encoding, b.encoding)
}

func TestCount(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4o")
	require.NoError(t, err)

	assert.Zero(t, counter.Count(""))
	assert.Greater(t, counter.Count("Hello, world!"), 0)

	short := counter.Count("hi")
	long := counter.Count(strings.Repeat("the quick brown fox ", 50))
	assert.Greater(t, long, short)
}

func TestCountMessages(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4o")
	require.NoError(t, err)

	// Empty history still costs the reply priming.
	assert.Equal(t, 3, counter.CountMessages(nil))

	messages := []Message{
		{Role: "user", Content: "What is 2+2?"},
		{Role: "assistant", Content: "4"},
	}
	total := counter.CountMessages(messages)

	// Total must exceed the sum of raw content tokens because each
	// message adds framing overhead.
	raw := counter.Count(messages[0].Content) + counter.Count(messages[1].Content)
	assert.Greater(t, total, raw)

	assert.Greater(t, counter.CountMessages(messages),
		counter.CountMessages(messages[:1]))
}

func TestEstimateTokens(t *testing.T) {
	assert.Zero(t, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("x", 100)))
}
