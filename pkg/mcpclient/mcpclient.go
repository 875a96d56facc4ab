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

// Package mcpclient spawns and supervises subprocess tool providers and
// exposes the tools they advertise through the ordinary tool.Tool contract.
//
// Two transports are supported:
//   - stdio, via mark3labs/mcp-go — the default, used for MCP-speaking
//     servers launched as a child process (a raw binary, or a language
//     runtime launcher like npx/uvx/cargo with the package as an argument).
//   - a hashicorp/go-plugin transport over go-plugin's net/rpc protocol,
//     for providers that speak go-plugin's handshake rather than MCP.
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mcpgoclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flowpilot/agentcore/pkg/config"
	"github.com/flowpilot/agentcore/pkg/tool"
	"github.com/flowpilot/agentcore/pkg/utils"
)

// resolveCommand expands a runtime-manager-shaped command (npx, uvx,
// cargo) into itself unchanged — mark3labs/mcp-go's stdio client already
// execs Command with Args verbatim, so a config entry like
// {command: "npx", args: ["-y", "@some/mcp-server"]} or
// {command: "uvx", args: ["some-mcp-server"]} needs no rewriting here.
// This indirection exists so a future resolver (version pinning, a
// shared cache dir, alternate lookup paths) has one place to live.
func resolveCommand(cfg config.MCPServerConfig) (string, []string) {
	return cfg.Command, cfg.Args
}

// Client owns one subprocess tool provider's lifetime: spawn, handshake,
// tool discovery, invocation, and teardown.
type Client struct {
	cfg config.MCPServerConfig

	mu        sync.Mutex
	mcpClient *mcpgoclient.Client
	tools     []tool.Metadata
	connected bool
}

// New builds a Client. The subprocess is not spawned until Connect (or
// the first ListTools/Execute, which connect lazily) is called.
func New(cfg config.MCPServerConfig) *Client {
	cfg.SetDefaults()
	return &Client{cfg: cfg}
}

// Name returns the configured provider name.
func (c *Client) Name() string { return c.cfg.Name }

// Connect spawns the subprocess, performs the MCP initialize handshake,
// and discovers its tools. Safe to call more than once; subsequent calls
// are no-ops while already connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}

	command, args := resolveCommand(c.cfg)
	mcpClient, err := mcpgoclient.NewStdioMCPClient(command, envSlice(c.cfg.Env), args...)
	if err != nil {
		return fmt.Errorf("mcpclient %s: create client: %w", c.cfg.Name, err)
	}

	startCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.StartupTimeoutSeconds)*time.Second)
	defer cancel()

	if err := mcpClient.Start(startCtx); err != nil {
		return fmt.Errorf("mcpclient %s: start: %w", c.cfg.Name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "agentcored", Version: "1.0.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(startCtx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("mcpclient %s: initialize: %w", c.cfg.Name, err)
	}

	listResp, err := mcpClient.ListTools(startCtx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("mcpclient %s: list tools: %w", c.cfg.Name, err)
	}

	tools := make([]tool.Metadata, 0, len(listResp.Tools))
	for _, mt := range listResp.Tools {
		schema, err := json.Marshal(mt.InputSchema)
		if err != nil {
			slog.Warn("mcpclient: dropping tool with unmarshalable schema", "server", c.cfg.Name, "tool", mt.Name)
			continue
		}
		tools = append(tools, tool.Metadata{
			Name:        mt.Name,
			Description: truncateDescription(mt.Description, c.cfg.DescriptionTokenBudget),
			InputSchema: schema,
		})
	}

	c.mcpClient = mcpClient
	c.tools = tools
	c.connected = true

	slog.Info("mcpclient: connected", "server", c.cfg.Name, "command", command, "tools", len(tools))
	return nil
}

// truncateDescription trims overlong tool descriptions at the last space
// within the token budget (four characters per token) rather than at an
// arbitrary byte, so the cut doesn't land mid-word for the LLM reading it
// back as function-calling context. A description with no space inside
// the budget is cut at the budget's byte limit.
func truncateDescription(desc string, tokenBudget int) string {
	if tokenBudget <= 0 || utils.EstimateTokens(desc) <= tokenBudget {
		return desc
	}
	maxChars := tokenBudget * 4
	if maxChars >= len(desc) {
		return desc
	}
	cut := maxChars
	for cut > 0 && desc[cut] != ' ' {
		cut--
	}
	if cut > 0 {
		maxChars = cut
	}
	return desc[:maxChars] + "…"
}

// ListTools returns the discovered tool metadata, connecting lazily if
// this is the first call.
func (c *Client) ListTools(ctx context.Context) ([]tool.Metadata, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]tool.Metadata, len(c.tools))
	copy(out, c.tools)
	return out, nil
}

// Execute invokes one remote tool by name and renders its result as the
// text a tool.Tool.Execute call returns.
func (c *Client) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	if err := c.Connect(ctx); err != nil {
		return "", err
	}

	var decodedArgs map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &decodedArgs); err != nil {
			return "", tool.NewError(name, fmt.Sprintf("invalid arguments: %v", err))
		}
	}

	c.mu.Lock()
	mcpClient := c.mcpClient
	c.mu.Unlock()
	if mcpClient == nil {
		return "", tool.NewError(name, "subprocess tool provider not connected")
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = decodedArgs

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return "", tool.NewError(name, fmt.Sprintf("call failed: %v", err))
	}

	return renderResult(name, resp)
}

func renderResult(name string, resp *mcp.CallToolResult) (string, error) {
	var texts []string
	for _, content := range resp.Content {
		if tc, ok := content.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	joined := joinTexts(texts)

	if resp.IsError {
		if joined == "" {
			joined = "unknown error"
		}
		return "", tool.NewError(name, joined)
	}
	return joined, nil
}

func joinTexts(texts []string) string {
	switch len(texts) {
	case 0:
		return ""
	case 1:
		return texts[0]
	default:
		out := texts[0]
		for _, t := range texts[1:] {
			out += "\n" + t
		}
		return out
	}
}

// Close terminates the subprocess, giving it a grace period to exit on
// its own MCP shutdown path before the client forcibly kills it.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.mcpClient == nil {
		return nil
	}
	err := c.mcpClient.Close()
	c.mcpClient = nil
	c.connected = false
	c.tools = nil
	return err
}

var _ ToolProviderClient = (*Client)(nil)

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}
