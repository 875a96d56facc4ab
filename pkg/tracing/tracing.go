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

// Package tracing writes one JSONL record per agent-loop step to a trace
// file, distinct from the OTel/Prometheus metrics in pkg/observability:
// this is a human-readable run transcript, not a metrics pipeline.
package tracing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/flowpilot/agentcore/pkg/config"
	"github.com/flowpilot/agentcore/pkg/event"
	"github.com/flowpilot/agentcore/pkg/llm"
)

// TraceType labels one recorded step event.
type TraceType string

const (
	TraceThought  TraceType = "thought"
	TraceToolCall TraceType = "tool_call"
	TraceFinal    TraceType = "final"
)

// Record is one line of the trace file.
type Record struct {
	Timestamp  int64             `json:"timestamp"`
	StepNumber int               `json:"stepNumber"`
	TraceType  TraceType         `json:"traceType"`
	Content    string            `json:"content,omitempty"`
	ToolCall   *event.ToolCall   `json:"toolCall,omitempty"`
	Result     *event.ToolResult `json:"result,omitempty"`
	Summary    string            `json:"summary,omitempty"`
}

// Narrator produces a one-sentence summary of a Record for a human
// skimming the trace file. A nil Narrator (or one that errors) degrades
// to "No summary available" rather than failing the run.
type Narrator interface {
	Narrate(ctx context.Context, r Record) (string, error)
}

// LLMNarrator drives narration off the ordinary llm.LLM contract with a
// fixed one-shot prompt, the same pattern memory.LLMSummarizer uses for
// progressive summarization.
type LLMNarrator struct {
	model llm.LLM
}

func NewLLMNarrator(model llm.LLM) *LLMNarrator {
	return &LLMNarrator{model: model}
}

func (n *LLMNarrator) Narrate(ctx context.Context, r Record) (string, error) {
	if n.model == nil {
		return "", fmt.Errorf("tracing: no model configured")
	}
	prompt := fmt.Sprintf("Summarize this agent step in exactly one sentence:\n\n%s", describeRecord(r))
	resp, err := n.model.Generate(ctx, []event.Message{event.NewUserMessage("narrate", prompt)}, nil)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func describeRecord(r Record) string {
	switch r.TraceType {
	case TraceToolCall:
		name := ""
		if r.ToolCall != nil {
			name = r.ToolCall.Name
		}
		return fmt.Sprintf("Step %d called tool %q. Result: %s", r.StepNumber, name, resultText(r.Result))
	case TraceFinal:
		return fmt.Sprintf("Step %d produced the final response: %s", r.StepNumber, r.Content)
	default:
		return fmt.Sprintf("Step %d: %s", r.StepNumber, r.Content)
	}
}

func resultText(r *event.ToolResult) string {
	if r == nil {
		return ""
	}
	return r.Output
}

// Tracer serializes Record writes to one JSONL file. A write failure is
// logged, never propagated — a broken trace file must not abort a run.
type Tracer struct {
	mu       sync.Mutex
	file     *os.File
	narrator Narrator
}

// Open creates or appends to cfg.TraceFile. If cfg.Enabled is false, Open
// returns a Tracer whose Record calls are no-ops, so callers never need
// to branch on whether tracing is on.
func Open(cfg config.TracingConfig, narrator Narrator) (*Tracer, error) {
	cfg.SetDefaults()
	if !cfg.Enabled {
		return &Tracer{}, nil
	}
	f, err := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("tracing: open %s: %w", cfg.TraceFile, err)
	}
	return &Tracer{file: f, narrator: narrator}, nil
}

// Record narrates and appends one step event. Narration failures degrade
// to "No summary available"; write failures are logged and swallowed.
func (t *Tracer) Record(ctx context.Context, r Record) {
	if t == nil || t.file == nil {
		return
	}

	summary := "No summary available"
	if t.narrator != nil {
		if s, err := t.narrator.Narrate(ctx, r); err == nil && s != "" {
			summary = s
		}
	}
	r.Summary = summary

	line, err := json.Marshal(r)
	if err != nil {
		slog.Error("tracing: marshal record", "error", err)
		return
	}
	line = append(line, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.file.Write(line); err != nil {
		slog.Error("tracing: write record", "error", err)
	}
}

// Close closes the underlying trace file, if one is open.
func (t *Tracer) Close() error {
	if t == nil || t.file == nil {
		return nil
	}
	return t.file.Close()
}
