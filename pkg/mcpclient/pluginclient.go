// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/rpc"
	"os/exec"
	"sync"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"

	"github.com/flowpilot/agentcore/pkg/config"
	"github.com/flowpilot/agentcore/pkg/tool"
)

// handshakeConfig identifies the plugin protocol version tool providers
// launched this way must speak, mirroring the magic-cookie handshake
// hashicorp/go-plugin uses to confirm the child process is actually one
// of ours before trusting its stdout.
var handshakeConfig = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "AGENTCORE_TOOL_PLUGIN",
	MagicCookieValue: "agentcore",
}

// ToolProvider is the interface a subprocess tool-plugin process exposes
// over net/rpc. It is intentionally narrower than mcpclient.Client's MCP
// handshake — this transport is for long-lived companion processes that
// would rather keep one connection open than re-negotiate per run.
type ToolProvider interface {
	ListTools() ([]tool.Metadata, error)
	Execute(name string, args json.RawMessage) (string, error)
}

// toolProviderPlugin adapts ToolProvider to hashicorp/go-plugin's
// net/rpc plugin shape. Only the client side is implemented here — this
// package consumes tool-plugin processes, it never serves as one.
type toolProviderPlugin struct{}

func (p *toolProviderPlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return nil, fmt.Errorf("mcpclient: this process is a plugin host, not a plugin server")
}

func (p *toolProviderPlugin) Client(_ *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &rpcToolProviderClient{client: c}, nil
}

type rpcToolProviderClient struct {
	client *rpc.Client
}

type executeArgs struct {
	Name string
	Args json.RawMessage
}

func (c *rpcToolProviderClient) ListTools() ([]tool.Metadata, error) {
	var resp []tool.Metadata
	if err := c.client.Call("Plugin.ListTools", new(interface{}), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *rpcToolProviderClient) Execute(name string, args json.RawMessage) (string, error) {
	var resp string
	err := c.client.Call("Plugin.Execute", executeArgs{Name: name, Args: args}, &resp)
	return resp, err
}

// PluginClient owns a go-plugin subprocess's lifetime: launch, RPC
// dispense, tool discovery, invocation, and teardown via Kill.
type PluginClient struct {
	cfg config.MCPServerConfig

	mu        sync.Mutex
	client    *goplugin.Client
	provider  ToolProvider
	tools     []tool.Metadata
	connected bool
}

// NewPluginClient builds a PluginClient for the go-plugin transport. cfg
// reuses the same subprocess-provider configuration shape as the MCP
// stdio Client — Command/Args/Env/StartupTimeoutSeconds all apply the
// same way.
func NewPluginClient(cfg config.MCPServerConfig) *PluginClient {
	cfg.SetDefaults()
	return &PluginClient{cfg: cfg}
}

// Name returns the configured provider name.
func (c *PluginClient) Name() string { return c.cfg.Name }

func (c *PluginClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	command, args := resolveCommand(c.cfg)
	goClient := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: handshakeConfig,
		Plugins:         map[string]goplugin.Plugin{"tool": &toolProviderPlugin{}},
		Cmd:             exec.Command(command, args...),
		Logger:          hclog.New(&hclog.LoggerOptions{Name: "agentcore-toolplugin-" + c.cfg.Name, Level: hclog.Warn}),
		AllowedProtocols: []goplugin.Protocol{
			goplugin.ProtocolNetRPC,
		},
	})

	rpcClient, err := goClient.Client()
	if err != nil {
		goClient.Kill()
		return fmt.Errorf("mcpclient(plugin) %s: rpc client: %w", c.cfg.Name, err)
	}

	raw, err := rpcClient.Dispense("tool")
	if err != nil {
		goClient.Kill()
		return fmt.Errorf("mcpclient(plugin) %s: dispense: %w", c.cfg.Name, err)
	}

	provider, ok := raw.(ToolProvider)
	if !ok {
		goClient.Kill()
		return fmt.Errorf("mcpclient(plugin) %s: dispensed value is not a ToolProvider", c.cfg.Name)
	}

	tools, err := provider.ListTools()
	if err != nil {
		goClient.Kill()
		return fmt.Errorf("mcpclient(plugin) %s: list tools: %w", c.cfg.Name, err)
	}
	for i := range tools {
		tools[i].Description = truncateDescription(tools[i].Description, c.cfg.DescriptionTokenBudget)
	}

	c.client = goClient
	c.provider = provider
	c.tools = tools
	c.connected = true
	return nil
}

func (c *PluginClient) ListTools(ctx context.Context) ([]tool.Metadata, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]tool.Metadata, len(c.tools))
	copy(out, c.tools)
	return out, nil
}

func (c *PluginClient) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	if err := c.Connect(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	provider := c.provider
	c.mu.Unlock()
	if provider == nil {
		return "", tool.NewError(name, "subprocess plugin not connected")
	}
	out, err := provider.Execute(name, args)
	if err != nil {
		return "", tool.NewError(name, err.Error())
	}
	return out, nil
}

// Close kills the plugin subprocess. go-plugin's Kill sends an interrupt
// and escalates to SIGKILL after its own grace period, so no separate
// grace-then-force handling is needed here.
func (c *PluginClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	c.client.Kill()
	c.client = nil
	c.provider = nil
	c.connected = false
	c.tools = nil
	return nil
}

var _ ToolProviderClient = (*PluginClient)(nil)
