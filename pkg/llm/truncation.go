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

package llm

import (
	"context"
	"log/slog"

	"github.com/flowpilot/agentcore/pkg/event"
)

// ContextTruncation wraps a base LLM and, on a context-length error, drops
// the oldest ratio·N messages (never touching the system message at
// position 0, and never splitting a tool-call/tool-response pair) and
// retries, down to a floor of minMessages.
type ContextTruncation struct {
	base        LLM
	maxRetries  int
	dropRatio   float64
	minMessages int
}

// NewContextTruncation builds the decorator. Defaults: 3 retries, drop
// 30% per attempt, floor of 4 messages.
func NewContextTruncation(base LLM, maxRetries int, dropRatio float64, minMessages int) *ContextTruncation {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if dropRatio <= 0 || dropRatio >= 1 {
		dropRatio = 0.3
	}
	if minMessages <= 0 {
		minMessages = 4
	}
	return &ContextTruncation{base: base, maxRetries: maxRetries, dropRatio: dropRatio, minMessages: minMessages}
}

func (c *ContextTruncation) Model() string { return c.base.Model() }

func (c *ContextTruncation) Generate(ctx context.Context, messages []event.Message, tools []event.ToolDescriptor) (*Response, error) {
	current := messages
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, err := c.base.Generate(ctx, current, tools)
		if err == nil {
			return resp, nil
		}
		if !IsContextLength(err) {
			return nil, err
		}
		if attempt == c.maxRetries || len(current) <= c.minMessages {
			return nil, err
		}

		next := dropOldest(current, c.dropRatio, c.minMessages)
		if len(next) == len(current) {
			// Nothing could be safely dropped (e.g. a single pinned
			// tool-call/response pair spans the whole history).
			return nil, err
		}
		slog.Warn("llm: context length exceeded, truncating and retrying",
			"attempt", attempt+1, "before", len(current), "after", len(next))
		current = next
	}
	return nil, nil
}

// dropOldest removes floor(ratio*len(messages)) messages from the front,
// preserving index 0 when it is a System/Developer message and never
// cutting between a tool-call Assistant message and the Tool responses
// that answer it.
func dropOldest(messages []event.Message, ratio float64, minMessages int) []event.Message {
	if len(messages) <= minMessages {
		return messages
	}

	start := 0
	if len(messages) > 0 && (messages[0].Role == event.RoleSystem || messages[0].Role == event.RoleDeveloper) {
		start = 1
	}

	drop := int(float64(len(messages)) * ratio)
	if drop <= 0 {
		drop = 1
	}
	cut := start + drop
	if cut > len(messages)-minMessages {
		cut = len(messages) - minMessages
	}
	if cut <= start {
		return messages
	}

	// Don't let cut land on a Tool message whose Assistant tool-call
	// message would be dropped along with it but whose sibling Tool
	// responses would not (or vice versa) — push cut forward past the
	// whole pairing.
	for cut < len(messages) && messages[cut].IsToolResponse() {
		cut++
	}
	if cut >= len(messages) {
		return messages
	}

	out := make([]event.Message, 0, start+(len(messages)-cut))
	out = append(out, messages[:start]...)
	out = append(out, messages[cut:]...)
	return out
}
