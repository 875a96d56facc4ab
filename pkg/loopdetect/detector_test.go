package loopdetect

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectorExactLoop(t *testing.T) {
	d := New(DefaultConfig())
	args := json.RawMessage(`{"tz":"UTC"}`)
	now := time.Now()

	var last Pattern
	for i := 0; i < 3; i++ {
		last = d.Observe("get_time", args, i, now.Add(time.Duration(i)*time.Second))
	}
	require.Equal(t, PatternExact, last.Kind)
	assert.Equal(t, "get_time", last.ToolName)
	assert.GreaterOrEqual(t, last.Count, 3)

	// And every subsequent identical call keeps reporting ExactLoop.
	again := d.Observe("get_time", args, 3, now.Add(4*time.Second))
	assert.Equal(t, PatternExact, again.Kind)
}

func TestDetectorSimilarLoop(t *testing.T) {
	d := New(DefaultConfig())
	now := time.Now()

	calls := []string{
		`{"query":"weather in paris"}`,
		`{"query":"weather in parris"}`,
		`{"query":"weather in pariss"}`,
	}
	var last Pattern
	for i, c := range calls {
		last = d.Observe("search", json.RawMessage(c), i, now.Add(time.Duration(i)*time.Second))
	}
	assert.Equal(t, PatternSimilar, last.Kind)
	assert.GreaterOrEqual(t, last.AvgScore, 0.7)
}

func TestDetectorNoLoopForDistinctCalls(t *testing.T) {
	d := New(DefaultConfig())
	now := time.Now()

	p1 := d.Observe("search", json.RawMessage(`{"query":"cats"}`), 0, now)
	assert.Equal(t, PatternNone, p1.Kind)
	p2 := d.Observe("search", json.RawMessage(`{"query":"the history of the roman empire in detail"}`), 1, now.Add(time.Second))
	assert.Equal(t, PatternNone, p2.Kind)
}

func TestSimilaritySymmetricAndReflexive(t *testing.T) {
	a := map[string]any{"x": 1.0, "y": "hello"}
	b := map[string]any{"x": 2.0, "y": "hullo"}

	assert.InDelta(t, Similarity(a, a), 1.0, 1e-9)
	assert.InDelta(t, Similarity(a, b), Similarity(b, a), 1e-9)
}

func TestSimilarityNumbersAndStrings(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity(5.0, 5.0), 1e-9)
	assert.Less(t, Similarity(5.0, 500.0), 0.5)
	assert.Greater(t, Similarity("hello world", "hello worlds"), 0.8)
}
