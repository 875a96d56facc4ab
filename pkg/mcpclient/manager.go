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
	"log/slog"
	"strings"
	"sync"

	"github.com/flowpilot/agentcore/pkg/config"
	"github.com/flowpilot/agentcore/pkg/tool"
)

// ToolProviderClient is the transport-independent contract both the MCP
// stdio Client and the go-plugin PluginClient satisfy. The Manager and
// the tool wrappers only ever see this interface.
type ToolProviderClient interface {
	Name() string
	ListTools(ctx context.Context) ([]tool.Metadata, error)
	Execute(ctx context.Context, name string, args json.RawMessage) (string, error)
	Close() error
}

// Manager owns every configured subprocess tool provider for the
// lifetime of the runtime process. It connects eagerly on Start so a
// broken provider surfaces at startup rather than on first use, and
// kills every subprocess it owns on Close.
type Manager struct {
	mu      sync.Mutex
	clients []ToolProviderClient
}

// NewManager builds a Manager for the given server configs, selecting
// the transport per entry: Transport "grpc-plugin" (or a Command ending
// in ".hplugin") gets the go-plugin client, everything else MCP stdio.
// Connections aren't made until Start.
func NewManager(servers []config.MCPServerConfig) *Manager {
	clients := make([]ToolProviderClient, 0, len(servers))
	for _, s := range servers {
		if s.Transport == "grpc-plugin" || strings.HasSuffix(s.Command, ".hplugin") {
			clients = append(clients, NewPluginClient(s))
		} else {
			clients = append(clients, New(s))
		}
	}
	return &Manager{clients: clients}
}

// Start connects every configured provider and registers their tools
// into reg. A provider that fails to start is logged and skipped rather
// than failing the whole runtime — one broken subprocess tool shouldn't
// take down every other tool.
func (m *Manager) Start(ctx context.Context, reg *tool.Registry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.clients {
		tools, err := Wrap(ctx, c)
		if err != nil {
			slog.Error("mcpclient: provider failed to start, skipping", "server", c.Name(), "error", err)
			continue
		}
		for _, t := range tools {
			if err := reg.Register(t); err != nil {
				slog.Warn("mcpclient: tool registration conflict", "server", c.Name(), "tool", t.Metadata().Name, "error", err)
			}
		}
	}
	return nil
}

// Close terminates every subprocess this Manager owns, reporting the
// first shutdown error without stopping at it.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, c := range m.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("mcpclient: closing %s: %w", c.Name(), err)
		}
	}
	return firstErr
}
