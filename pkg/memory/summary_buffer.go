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

// SummaryBuffer is the hybrid strategy: the most recent bufferSize
// messages are always kept verbatim; everything older is collapsed into
// one rolling summary message, recomputed via the same progressive
// summarization Summarizing uses.
type SummaryBuffer struct {
	base
	bufferSize int
	summarizer Summarizer
	counter    *utils.TokenCounter

	sumMu          sync.Mutex
	summary        string
	summarizedOnce bool
}

// NewSummaryBuffer builds a SummaryBuffer keeping bufferSize recent
// messages verbatim.
func NewSummaryBuffer(bufferSize int, summarizer Summarizer) *SummaryBuffer {
	if bufferSize <= 0 {
		bufferSize = 10
	}
	return &SummaryBuffer{bufferSize: bufferSize, summarizer: summarizer, counter: counterFor(summarizer)}
}

func (s *SummaryBuffer) AddMessage(ctx context.Context, m event.Message) error {
	s.append(m)
	return s.maybeCollapse(ctx)
}

func (s *SummaryBuffer) maybeCollapse(ctx context.Context) error {
	if s.summarizer == nil {
		return nil
	}
	msgs := s.snapshot()
	if len(msgs) <= s.bufferSize {
		return nil
	}

	boundary := lastToolCallBoundary(msgs)
	splitAt := len(msgs) - s.bufferSize
	if boundary >= 0 && splitAt > boundary {
		splitAt = boundary
	}
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
		slog.Warn("memory: summary_buffer collapse failed, keeping messages verbatim", "error", err)
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

func (s *SummaryBuffer) GetContext() []event.Message {
	return s.snapshot()
}

func (s *SummaryBuffer) Clear() {
	s.clear()
	s.sumMu.Lock()
	s.summary = ""
	s.summarizedOnce = false
	s.sumMu.Unlock()
}

func (s *SummaryBuffer) Stats() Stats {
	msgs := s.snapshot()
	s.sumMu.Lock()
	once := s.summarizedOnce
	s.sumMu.Unlock()
	return Stats{
		MessageCount:     len(msgs),
		EstimatedTokens:  approxTokens(s.counter, msgs),
		SummarizedOnce:   once,
		EvictionStrategy: "summary_buffer",
	}
}
