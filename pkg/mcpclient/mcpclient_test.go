package mcpclient

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpilot/agentcore/pkg/config"
	"github.com/flowpilot/agentcore/pkg/tool"
)

func TestTruncateDescriptionLeavesShortTextAlone(t *testing.T) {
	assert.Equal(t, "a short tool", truncateDescription("a short tool", 200))
}

func TestTruncateDescriptionCutsAtTokenBudget(t *testing.T) {
	long := strings.Repeat("word ", 500)
	out := truncateDescription(long, 10)
	assert.Less(t, len(out), len(long))
	assert.True(t, strings.HasSuffix(out, "…"))
}

func TestTruncateDescriptionZeroBudgetDisablesTruncation(t *testing.T) {
	long := strings.Repeat("word ", 500)
	assert.Equal(t, long, truncateDescription(long, 0))
}

func TestJoinTexts(t *testing.T) {
	assert.Equal(t, "", joinTexts(nil))
	assert.Equal(t, "one", joinTexts([]string{"one"}))
	assert.Equal(t, "one\ntwo", joinTexts([]string{"one", "two"}))
}

func TestNewManagerSelectsTransportPerEntry(t *testing.T) {
	m := NewManager([]config.MCPServerConfig{
		{Name: "stdio-default", Command: "some-mcp-server"},
		{Name: "stdio-explicit", Command: "npx", Args: []string{"-y", "@some/mcp-server"}, Transport: "stdio"},
		{Name: "plugin-by-field", Command: "companion", Transport: "grpc-plugin"},
		{Name: "plugin-by-suffix", Command: "/opt/tools/companion.hplugin"},
	})

	require.Len(t, m.clients, 4)
	assert.IsType(t, &Client{}, m.clients[0])
	assert.IsType(t, &Client{}, m.clients[1])
	assert.IsType(t, &PluginClient{}, m.clients[2])
	assert.IsType(t, &PluginClient{}, m.clients[3])
}

// fakeProvider scripts a ToolProviderClient without a real subprocess.
type fakeProvider struct {
	tools    []tool.Metadata
	lastCall string
	lastArgs json.RawMessage
	result   string
	err      error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) ListTools(ctx context.Context) ([]tool.Metadata, error) {
	return f.tools, f.err
}

func (f *fakeProvider) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	f.lastCall, f.lastArgs = name, args
	return f.result, f.err
}

func (f *fakeProvider) Close() error { return nil }

func TestWrapExposesProviderToolsThroughToolContract(t *testing.T) {
	provider := &fakeProvider{
		tools: []tool.Metadata{
			{Name: "get_time", Description: "current time", InputSchema: json.RawMessage(`{"type":"object"}`)},
			{Name: "get_weather", Description: "weather lookup"},
		},
		result: "12:00 UTC",
	}

	wrapped, err := Wrap(context.Background(), provider)
	require.NoError(t, err)
	require.Len(t, wrapped, 2)
	assert.Equal(t, "get_time", wrapped[0].Metadata().Name)

	out, err := wrapped[0].Execute(context.Background(), json.RawMessage(`{"tz":"UTC"}`))
	require.NoError(t, err)
	assert.Equal(t, "12:00 UTC", out)
	assert.Equal(t, "get_time", provider.lastCall)
	assert.JSONEq(t, `{"tz":"UTC"}`, string(provider.lastArgs))
}

func TestManagerStartRegistersToolsAndSkipsBrokenProviders(t *testing.T) {
	good := &fakeProvider{tools: []tool.Metadata{{Name: "get_time"}}}
	broken := &fakeProvider{err: assert.AnError}

	m := &Manager{clients: []ToolProviderClient{broken, good}}
	reg := tool.NewRegistry()
	require.NoError(t, m.Start(context.Background(), reg))

	_, ok := reg.Get("get_time")
	assert.True(t, ok, "the healthy provider's tools register despite the broken one")
	assert.Len(t, reg.List(), 1)
}
