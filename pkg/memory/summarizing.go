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
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/flowpilot/agentcore/pkg/event"
	"github.com/flowpilot/agentcore/pkg/utils"
)

// Summarizing accumulates messages verbatim until the estimated token
// count crosses thresholdTokens, then collapses the older half into a
// single rolling System message via an LLM-driven progressive summary.
type Summarizing struct {
	base
	thresholdTokens int
	summarizer      Summarizer
	counter         *utils.TokenCounter

	sumMu          sync.Mutex
	summary        string
	summarizedOnce bool
}

// NewSummarizing builds a Summarizing memory. summarizer may be nil, in
// which case the memory behaves like an unbounded buffer (summarization
// silently never triggers) — useful in tests that don't wire an LLM. When
// summarizer names its model, token counts are sized for that model's
// tiktoken encoding instead of the four-chars-per-token fallback.
func NewSummarizing(thresholdTokens int, summarizer Summarizer) *Summarizing {
	if thresholdTokens <= 0 {
		thresholdTokens = 4000
	}
	return &Summarizing{thresholdTokens: thresholdTokens, summarizer: summarizer, counter: counterFor(summarizer)}
}

func (s *Summarizing) AddMessage(ctx context.Context, m event.Message) error {
	s.append(m)
	return s.maybeSummarize(ctx)
}

func (s *Summarizing) maybeSummarize(ctx context.Context) error {
	if s.summarizer == nil {
		return nil
	}
	msgs := s.snapshot()
	if approxTokens(s.counter, msgs) <= s.thresholdTokens {
		return nil
	}

	boundary := lastToolCallBoundary(msgs)
	// Summarize only the older half of messages, never crossing a
	// pending tool-call/response pairing, and never the in-flight tail:
	// the cut stays at or before the last Assistant tool-call message.
	splitAt := len(msgs) / 2
	if boundary >= 0 && splitAt > boundary {
		splitAt = boundary
	}
	// A tool-call message's responses immediately follow it; keep them on
	// the same side of the cut as the call itself.
	for splitAt >= 0 && splitAt < len(msgs) && msgs[splitAt].IsToolResponse() {
		splitAt++
	}
	if splitAt <= 0 || splitAt >= len(msgs) {
		return nil
	}

	older, recent := msgs[:splitAt], msgs[splitAt:]

	s.sumMu.Lock()
	priorSummary := s.summary
	s.sumMu.Unlock()

	newSummary, err := s.summarizer.Summarize(ctx, priorSummary, older)
	if err != nil {
		slog.Warn("memory: summarization failed, keeping messages verbatim", "error", err)
		return nil
	}

	s.sumMu.Lock()
	s.summary = newSummary
	s.summarizedOnce = true
	s.sumMu.Unlock()

	summaryMsg := event.NewSystemMessage(uuid.NewString(), newSummary)
	s.reset(append([]event.Message{summaryMsg}, recent...))
	return nil
}

func (s *Summarizing) GetContext() []event.Message {
	return s.snapshot()
}

func (s *Summarizing) Clear() {
	s.clear()
	s.sumMu.Lock()
	s.summary = ""
	s.summarizedOnce = false
	s.sumMu.Unlock()
}

func (s *Summarizing) Stats() Stats {
	msgs := s.snapshot()
	s.sumMu.Lock()
	once := s.summarizedOnce
	s.sumMu.Unlock()
	return Stats{
		MessageCount:     len(msgs),
		EstimatedTokens:  approxTokens(s.counter, msgs),
		SummarizedOnce:   once,
		EvictionStrategy: "summarizing",
	}
}

// progressivePrompt folds older messages into a running summary: preserve
// a summary of prior conversation, extend with new lines.
const progressivePrompt = `You are maintaining a running summary of a conversation so older turns can be discarded from context.

Existing summary (may be empty):
%s

New conversation lines to fold in:
%s

Write an updated summary that preserves every fact, decision, and open thread still relevant to finishing the task. Be concise. Output only the summary text.`
