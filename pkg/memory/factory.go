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
	"fmt"

	"github.com/flowpilot/agentcore/pkg/config"
	"github.com/flowpilot/agentcore/pkg/llm"
)

// New builds the Memory implementation named by cfg.EvictionStrategy. model
// may be nil for fifo_window (which never summarizes); it is required to
// actually perform summarization for the other two strategies, but both
// degrade gracefully (buffer grows unbounded) when nil, matching
// Summarizing/SummaryBuffer's documented nil-summarizer behavior.
func New(cfg config.MemoryConfig, model llm.LLM) (Memory, error) {
	var summarizer Summarizer
	if model != nil {
		summarizer = NewLLMSummarizer(model)
	}

	switch cfg.EvictionStrategy {
	case "", config.MemoryFIFOWindow:
		return NewFIFOWindow(cfg.MaxHistorySteps), nil
	case config.MemorySummarizing:
		return NewSummarizing(cfg.SummarizationThresholdTokens, summarizer), nil
	case config.MemorySummaryBuffer:
		return NewSummaryBuffer(cfg.BufferSize, summarizer), nil
	default:
		return nil, fmt.Errorf("memory: unknown eviction strategy %q", cfg.EvictionStrategy)
	}
}
