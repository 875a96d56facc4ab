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

package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowpilot/agentcore/pkg/event"
	"github.com/flowpilot/agentcore/pkg/llm"
)

// LLMSummarizer drives an llm.LLM through a progressive-summarization
// prompt: preserve a summary of prior conversation, extend with new lines.
type LLMSummarizer struct {
	model llm.LLM
}

// NewLLMSummarizer wraps model as a Summarizer.
func NewLLMSummarizer(model llm.LLM) *LLMSummarizer {
	return &LLMSummarizer{model: model}
}

// Model returns the name of the underlying LLM, so a caller building a
// Summarizing or SummaryBuffer memory can size an accurate tiktoken counter
// for the same model doing the summarizing.
func (s *LLMSummarizer) Model() string {
	return s.model.Model()
}

func (s *LLMSummarizer) Summarize(ctx context.Context, priorSummary string, messages []event.Message) (string, error) {
	var lines strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&lines, "%s: %s\n", m.Role, renderForSummary(m))
	}

	prompt := fmt.Sprintf(progressivePrompt, priorSummary, lines.String())
	resp, err := s.model.Generate(ctx, []event.Message{
		event.NewUserMessage("summarize", prompt),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("memory: summarization call failed: %w", err)
	}
	if resp.Content == "" {
		return "", fmt.Errorf("memory: summarization returned empty content")
	}
	return resp.Content, nil
}

func renderForSummary(m event.Message) string {
	if m.Role == event.RoleTool {
		status := "ok"
		if m.Success != nil && !*m.Success {
			status = "error"
		}
		return fmt.Sprintf("[tool result, %s] %s", status, m.Content)
	}
	if m.HasToolCalls() {
		names := make([]string, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			names = append(names, tc.Name)
		}
		return fmt.Sprintf("%s (called: %s)", m.Content, strings.Join(names, ", "))
	}
	return m.Content
}
