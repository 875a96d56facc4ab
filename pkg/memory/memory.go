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

// Package memory implements the agent loop's pluggable conversation memory:
// a polymorphic add/get/clear/stats contract with three eviction strategies
// (FIFO window, summarizing, summary+buffer).
package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/flowpilot/agentcore/pkg/event"
	"github.com/flowpilot/agentcore/pkg/utils"
)

// Memory is the capability the agent loop drives its conversation history
// through. Implementations own their own state; the agent loop keeps one
// Memory across runs, and Clear resets it.
type Memory interface {
	AddMessage(ctx context.Context, m event.Message) error
	GetContext() []event.Message
	Clear()
	Stats() Stats
}

// Stats reports the current size of a Memory for observability.
type Stats struct {
	MessageCount     int
	EstimatedTokens  int
	SummarizedOnce   bool
	EvictionStrategy string
}

// Summarizer is the single-method contract a summarizing memory drives to
// condense older history. It is satisfied by an llm.LLM wrapped with a
// fixed progressive-summarization prompt; see NewLLMSummarizer.
type Summarizer interface {
	Summarize(ctx context.Context, priorSummary string, messages []event.Message) (string, error)
}

// lastToolCallBoundary returns the index, within messages, of the last
// Assistant message carrying tool_calls. Everything from that index
// onward must be preserved verbatim by any eviction strategy: an Assistant
// tool-call message must never be separated from its Tool responses.
func lastToolCallBoundary(messages []event.Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].HasToolCalls() {
			return i
		}
	}
	return -1
}

// approxTokens counts tokens in messages. Given a counter (built for the
// summarizing model in use) it delegates to tiktoken for an accurate count;
// with no counter it falls back to a four-characters-per-token estimate,
// cheap enough for the FIFO window's every-message bookkeeping.
func approxTokens(counter *utils.TokenCounter, messages []event.Message) int {
	if counter != nil {
		um := make([]utils.Message, len(messages))
		for i, m := range messages {
			um[i] = utils.Message{Role: string(m.Role), Content: m.Content}
		}
		return counter.CountMessages(um)
	}
	total := 0
	for _, m := range messages {
		total += (len(m.Content) + 3) / 4
	}
	return total
}

// modelNamed is implemented by a Summarizer that knows which model it
// drives, letting maybeSummarize/maybeCollapse size an accurate tiktoken
// counter instead of falling back to the four-chars-per-token estimate.
type modelNamed interface {
	Model() string
}

// counterFor builds a TokenCounter for summarizer's model, or nil if
// summarizer is nil or doesn't name a model (e.g. a test double).
func counterFor(summarizer Summarizer) *utils.TokenCounter {
	named, ok := summarizer.(modelNamed)
	if !ok {
		return nil
	}
	counter, err := utils.NewTokenCounter(named.Model())
	if err != nil {
		slog.Warn("memory: falling back to approximate token counting", "model", named.Model(), "error", err)
		return nil
	}
	return counter
}

// base holds the bookkeeping common to every strategy: a mutex-guarded
// message slice. Concrete strategies embed it and add eviction behavior.
type base struct {
	mu       sync.Mutex
	messages []event.Message
}

func (b *base) append(m event.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, m)
}

func (b *base) snapshot() []event.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]event.Message, len(b.messages))
	copy(out, b.messages)
	return out
}

func (b *base) reset(messages []event.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = messages
}

func (b *base) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = nil
}
