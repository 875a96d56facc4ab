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

	"github.com/flowpilot/agentcore/pkg/tool"
)

// toolWrapper adapts one remote tool discovered on a provider to the
// ordinary tool.Tool contract, so the registry and the agent loop never
// need to know a tool call crosses a process boundary.
type toolWrapper struct {
	client   ToolProviderClient
	metadata tool.Metadata
}

func (w *toolWrapper) Metadata() tool.Metadata {
	return w.metadata
}

func (w *toolWrapper) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	return w.client.Execute(ctx, w.metadata.Name, args)
}

// Wrap discovers every tool a provider advertises and returns them as
// ordinary tool.Tool values, ready for tool.Registry.Register.
func Wrap(ctx context.Context, client ToolProviderClient) ([]tool.Tool, error) {
	metas, err := client.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]tool.Tool, 0, len(metas))
	for _, m := range metas {
		out = append(out, &toolWrapper{client: client, metadata: m})
	}
	return out, nil
}
