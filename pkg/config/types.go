// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config defines the data model the agent runtime is configured
// with. It deliberately only describes shapes and defaults — parsing a
// YAML/TOML file or a CLI flag set into one of these structs is the
// embedder's job, not the runtime's.
package config

import (
	"fmt"

	"github.com/flowpilot/agentcore/pkg/observability"
)

// MemoryEvictionStrategy names a conversation-memory eviction policy.
type MemoryEvictionStrategy string

const (
	MemoryFIFOWindow     MemoryEvictionStrategy = "fifo_window"
	MemorySummarizing    MemoryEvictionStrategy = "summarizing"
	MemorySummaryBuffer  MemoryEvictionStrategy = "summary_buffer"
)

// MemoryConfig configures an agent's conversation memory.
type MemoryConfig struct {
	// EvictionStrategy selects the memory implementation.
	EvictionStrategy MemoryEvictionStrategy `yaml:"eviction_strategy,omitempty" json:"eviction_strategy,omitempty" jsonschema:"title=Eviction Strategy,enum=fifo_window,enum=summarizing,enum=summary_buffer,default=fifo_window"`

	// MaxHistorySteps bounds the FIFO window (messages retained verbatim).
	MaxHistorySteps int `yaml:"max_history_steps,omitempty" json:"max_history_steps,omitempty" jsonschema:"title=Max History Steps,minimum=1,default=50"`

	// SummarizationThresholdTokens is the approximate token budget that,
	// once exceeded, triggers summarization of the older half of history.
	SummarizationThresholdTokens int `yaml:"summarization_threshold_tokens,omitempty" json:"summarization_threshold_tokens,omitempty" jsonschema:"title=Summarization Threshold (tokens),default=4000"`

	// BufferSize is the number of most-recent messages the summary+buffer
	// strategy always keeps verbatim alongside the rolling summary.
	BufferSize int `yaml:"buffer_size,omitempty" json:"buffer_size,omitempty" jsonschema:"title=Buffer Size,default=10"`
}

// SetDefaults applies default values.
func (c *MemoryConfig) SetDefaults() {
	if c.EvictionStrategy == "" {
		c.EvictionStrategy = MemoryFIFOWindow
	}
	if c.MaxHistorySteps == 0 {
		c.MaxHistorySteps = 50
	}
	if c.SummarizationThresholdTokens == 0 {
		c.SummarizationThresholdTokens = 4000
	}
	if c.BufferSize == 0 {
		c.BufferSize = 10
	}
}

// Validate checks the memory configuration.
func (c *MemoryConfig) Validate() error {
	switch c.EvictionStrategy {
	case "", MemoryFIFOWindow, MemorySummarizing, MemorySummaryBuffer:
	default:
		return fmt.Errorf("invalid memory eviction_strategy %q", c.EvictionStrategy)
	}
	if c.MaxHistorySteps < 0 {
		return fmt.Errorf("memory max_history_steps must be >= 0")
	}
	return nil
}

// AuthorizationMode governs whether tool executions require user approval.
type AuthorizationMode string

const (
	AuthorizationAlwaysAllow AuthorizationMode = "always_allow"
	AuthorizationAlwaysDeny  AuthorizationMode = "always_deny"
	AuthorizationAsk         AuthorizationMode = "ask"
)

// AuthorizationConfig configures the human-in-the-loop tool authorization gate.
type AuthorizationConfig struct {
	Mode           AuthorizationMode `yaml:"mode,omitempty" json:"mode,omitempty" jsonschema:"title=Mode,enum=always_allow,enum=always_deny,enum=ask,default=ask"`
	Enabled        *bool             `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=true"`
	PromptMessage  string            `yaml:"prompt_message,omitempty" json:"prompt_message,omitempty" jsonschema:"title=Prompt Message"`
	TimeoutSeconds *int              `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty" jsonschema:"title=Timeout (seconds),default=30"`
}

// SetDefaults applies default values (mode=ask, enabled=true, timeout=30s).
func (c *AuthorizationConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = AuthorizationAsk
	}
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}
	if c.TimeoutSeconds == nil {
		c.TimeoutSeconds = IntPtr(30)
	}
}

// Validate checks the authorization configuration.
func (c *AuthorizationConfig) Validate() error {
	switch c.Mode {
	case "", AuthorizationAlwaysAllow, AuthorizationAlwaysDeny, AuthorizationAsk:
	default:
		return fmt.Errorf("invalid authorization mode %q", c.Mode)
	}
	if c.TimeoutSeconds != nil && *c.TimeoutSeconds <= 0 {
		return fmt.Errorf("authorization timeout_seconds must be > 0")
	}
	return nil
}

// ToolsConfig controls which built-in tools an agent has access to.
type ToolsConfig struct {
	Calculator    *bool `yaml:"calculator,omitempty" json:"calculator,omitempty" jsonschema:"title=Calculator,default=true"`
	WebSearch     *bool `yaml:"web_search,omitempty" json:"web_search,omitempty" jsonschema:"title=Web Search"`
	CodeExecution *bool `yaml:"code_execution,omitempty" json:"code_execution,omitempty" jsonschema:"title=Code Execution"`
}

// SetDefaults enables the calculator by default; other tools opt-in.
func (c *ToolsConfig) SetDefaults() {
	if c.Calculator == nil {
		c.Calculator = BoolPtr(true)
	}
}

// RAGConfig configures retrieval-augmented generation for the rag_search tool.
type RAGConfig struct {
	// TopK is the default number of documents to retrieve.
	TopK int `yaml:"top_k,omitempty" json:"top_k,omitempty" jsonschema:"title=Top K,default=5"`

	// Collection names the document collection to search.
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty" jsonschema:"title=Collection"`

	// Embedder references a configured embedder by name.
	Embedder string `yaml:"embedder,omitempty" json:"embedder,omitempty" jsonschema:"title=Embedder"`

	// VectorStore references a configured vector provider by name.
	VectorStore string `yaml:"vector_store,omitempty" json:"vector_store,omitempty" jsonschema:"title=Vector Store"`
}

// SetDefaults applies default values.
func (c *RAGConfig) SetDefaults() {
	if c.TopK == 0 {
		c.TopK = 5
	}
}

// MCPServerConfig describes one subprocess tool provider to spawn and
// supervise for the lifetime of the runtime.
type MCPServerConfig struct {
	// Name uniquely identifies this provider within mcp_servers.
	Name string `yaml:"name,omitempty" json:"name,omitempty" jsonschema:"title=Name"`

	// Command is the executable to run. For a raw binary this is its
	// path; for a language-runtime entry point it is the runtime's own
	// launcher (e.g. "npx", "uvx") with Args carrying the package/module.
	Command string `yaml:"command,omitempty" json:"command,omitempty" jsonschema:"title=Command"`

	// Transport selects how the subprocess speaks: "stdio" (MCP over
	// stdin/stdout, the default) or "grpc-plugin" (a hashicorp/go-plugin
	// companion process). A Command ending in ".hplugin" also selects the
	// plugin transport.
	Transport string `yaml:"transport,omitempty" json:"transport,omitempty" jsonschema:"title=Transport,enum=stdio,enum=grpc-plugin,default=stdio"`

	Args []string          `yaml:"args,omitempty" json:"args,omitempty" jsonschema:"title=Arguments"`
	Env  map[string]string `yaml:"env,omitempty" json:"env,omitempty" jsonschema:"title=Environment"`

	// WorkingDir overrides the subprocess's working directory.
	WorkingDir string `yaml:"working_dir,omitempty" json:"working_dir,omitempty" jsonschema:"title=Working Directory"`

	// StartupTimeoutSeconds bounds how long the handshake may take.
	StartupTimeoutSeconds int `yaml:"startup_timeout_seconds,omitempty" json:"startup_timeout_seconds,omitempty" jsonschema:"title=Startup Timeout (seconds),default=10"`

	// DescriptionTokenBudget truncates overlong tool descriptions returned
	// during discovery, at a token boundary.
	DescriptionTokenBudget int `yaml:"description_token_budget,omitempty" json:"description_token_budget,omitempty" jsonschema:"title=Description Token Budget,default=200"`
}

// SetDefaults applies default values.
func (c *MCPServerConfig) SetDefaults() {
	if c.StartupTimeoutSeconds == 0 {
		c.StartupTimeoutSeconds = 10
	}
	if c.DescriptionTokenBudget == 0 {
		c.DescriptionTokenBudget = 200
	}
}

// Validate checks the MCP server configuration.
func (c *MCPServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("mcp server name is required")
	}
	if c.Command == "" {
		return fmt.Errorf("mcp server %q: command is required", c.Name)
	}
	switch c.Transport {
	case "", "stdio", "grpc-plugin":
	default:
		return fmt.Errorf("mcp server %q: unknown transport %q", c.Name, c.Transport)
	}
	return nil
}

// TracingConfig configures per-step JSONL trace output.
type TracingConfig struct {
	Enabled   bool   `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=false"`
	TraceFile string `yaml:"trace_file,omitempty" json:"trace_file,omitempty" jsonschema:"title=Trace File,default=trace.jsonl"`
}

// SetDefaults applies default values.
func (c *TracingConfig) SetDefaults() {
	if c.TraceFile == "" {
		c.TraceFile = "trace.jsonl"
	}
}

// AgentConfig configures the single agent the runtime drives.
type AgentConfig struct {
	Name        string `yaml:"name,omitempty" json:"name,omitempty" jsonschema:"title=Name,pattern=^[a-zA-Z][a-zA-Z0-9_-]*$"`
	Description string `yaml:"description,omitempty" json:"description,omitempty" jsonschema:"title=Description"`

	// MaxSteps bounds the reason-act-observe loop per run.
	MaxSteps int `yaml:"max_steps,omitempty" json:"max_steps,omitempty" jsonschema:"title=Max Steps,minimum=1,default=25"`

	// SystemPrompt is the instruction prepended to every step's messages.
	SystemPrompt string `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty" jsonschema:"title=System Prompt"`

	Memory            MemoryConfig      `yaml:"memory,omitempty" json:"memory,omitempty" jsonschema:"title=Memory"`
	AuthorizationMode AuthorizationMode `yaml:"authorization_mode,omitempty" json:"authorization_mode,omitempty" jsonschema:"title=Authorization Mode,enum=always_allow,enum=always_deny,enum=ask,default=ask"`
}

// SetDefaults applies default values.
func (c *AgentConfig) SetDefaults() {
	if c.MaxSteps == 0 {
		c.MaxSteps = 25
	}
	if c.AuthorizationMode == "" {
		c.AuthorizationMode = AuthorizationAsk
	}
	c.Memory.SetDefaults()
}

// Validate checks the agent configuration.
func (c *AgentConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("agent name is required")
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("agent max_steps must be > 0")
	}
	return c.Memory.Validate()
}

// Config is the root configuration record the core is driven by.
type Config struct {
	Agent      AgentConfig         `yaml:"agent,omitempty" json:"agent,omitempty"`
	LLM        LLMConfig           `yaml:"llm,omitempty" json:"llm,omitempty"`
	Tools      ToolsConfig         `yaml:"tools,omitempty" json:"tools,omitempty"`
	RAG        *RAGConfig          `yaml:"rag,omitempty" json:"rag,omitempty"`
	MCPServers []MCPServerConfig   `yaml:"mcp_servers,omitempty" json:"mcp_servers,omitempty"`
	Tracing    TracingConfig       `yaml:"tracing,omitempty" json:"tracing,omitempty"`
	Authz      AuthorizationConfig `yaml:"authorization,omitempty" json:"authorization,omitempty"`

	// Auth configures inbound JWT authentication on the HTTP/SSE surface.
	// Orthogonal to Authz, which gates individual tool calls.
	Auth AuthConfig `yaml:"auth,omitempty" json:"auth,omitempty"`

	// Server configures the HTTP/SSE surface the runtime listens on.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty"`

	// Observability configures OTel tracing and Prometheus metrics around
	// the HTTP/SSE surface. Orthogonal to Tracing,
	// which is the per-step JSONL run transcript.
	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// SetDefaults applies default values to the whole configuration tree.
func (c *Config) SetDefaults() {
	c.Agent.SetDefaults()
	c.LLM.SetDefaults()
	c.Tools.SetDefaults()
	if c.RAG != nil {
		c.RAG.SetDefaults()
	}
	for i := range c.MCPServers {
		c.MCPServers[i].SetDefaults()
	}
	c.Tracing.SetDefaults()
	if c.Authz.Mode == "" {
		c.Authz.Mode = c.Agent.AuthorizationMode
	}
	c.Authz.SetDefaults()
	c.Auth.SetDefaults()
	c.Server.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks the whole configuration tree.
func (c *Config) Validate() error {
	if err := c.Agent.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	for i := range c.MCPServers {
		if err := c.MCPServers[i].Validate(); err != nil {
			return err
		}
	}
	if err := c.Authz.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	return c.Observability.Validate()
}
