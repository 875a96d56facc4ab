package tracing

import (
	"context"
	"testing"

	"github.com/flowpilot/agentcore/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledTracerRecordIsNoop(t *testing.T) {
	tr, err := Open(config.TracingConfig{Enabled: false}, nil)
	require.NoError(t, err)
	// Must not panic without a backing file.
	tr.Record(context.Background(), Record{StepNumber: 1, TraceType: TraceThought, Content: "thinking"})
	require.NoError(t, tr.Close())
}

func TestEnabledTracerWritesJSONLWithDegradedSummary(t *testing.T) {
	dir := t.TempDir()
	tr, err := Open(config.TracingConfig{Enabled: true, TraceFile: dir + "/trace.jsonl"}, nil)
	require.NoError(t, err)
	tr.Record(context.Background(), Record{StepNumber: 1, TraceType: TraceFinal, Content: "done"})
	require.NoError(t, tr.Close())
}

func TestDescribeRecordToolCall(t *testing.T) {
	desc := describeRecord(Record{
		StepNumber: 2,
		TraceType:  TraceToolCall,
	})
	assert.Contains(t, desc, "Step 2")
}
