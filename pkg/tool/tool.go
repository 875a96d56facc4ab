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

// Package tool defines the uniform tool contract and the name→tool registry
// every in-process, control-plane, and subprocess tool is addressed through.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowpilot/agentcore/pkg/registry"
)

// Metadata describes a tool for both the LLM (as a JSON-Schema function
// spec) and the authorization UI.
type Metadata struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Tool is the capability every tool — in-process, control-plane, or a proxy
// for a subprocess-provided tool — implements.
type Tool interface {
	Metadata() Metadata
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Error is the typed error a tool's Execute returns. The agent loop
// converts it into a failed Tool message rather than failing the run.
type Error struct {
	ToolName string
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool %q: %s", e.ToolName, e.Message)
}

// NewError builds a *Error, the only error shape tools should return from
// Execute for expected, user-facing failures.
func NewError(toolName, message string) *Error {
	return &Error{ToolName: toolName, Message: message}
}

// Registry is a read-mostly name→tool mapping. Registration happens before
// the first run; lookups during a run are concurrency-safe and O(1).
type Registry struct {
	base *registry.BaseRegistry[Tool]
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Tool]()}
}

// Register adds t under its own Metadata().Name. Returns an error if the
// name is already taken.
func (r *Registry) Register(t Tool) error {
	name := t.Metadata().Name
	if name == "" {
		return fmt.Errorf("tool metadata must carry a name")
	}
	return r.base.Register(name, t)
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	return r.base.Get(name)
}

// List returns every registered tool, in no particular order.
func (r *Registry) List() []Tool {
	return r.base.List()
}

// Metadata returns the JSON-Schema-shaped descriptor for every registered
// tool, in the form LLM.generate expects as its tools argument.
func (r *Registry) Metadata() []Metadata {
	tools := r.base.List()
	out := make([]Metadata, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.Metadata())
	}
	return out
}

// Execute looks up name and runs it. A missing tool is itself a *Error so
// callers can treat it uniformly with execution failures.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, ok := r.base.Get(name)
	if !ok {
		return "", NewError(name, "no such tool")
	}
	return t.Execute(ctx, args)
}
