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
	"fmt"
	"time"

	"github.com/flowpilot/agentcore/pkg/config"
)

// New builds an LLM from configuration, wrapped auto-recovery(truncation(base))
// so truncation sees the raw context-length error before a retry can mask it.
func New(ctx context.Context, cfg config.LLMConfig) (LLM, error) {
	base, err := newBase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	truncated := NewContextTruncation(base, 3, 0.3, 4)
	return NewAutoRecovery(truncated, 3, 500*time.Millisecond), nil
}

func newBase(ctx context.Context, cfg config.LLMConfig) (LLM, error) {
	temperature := 0.7
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}

	switch cfg.Provider {
	case config.LLMProviderAnthropic, "":
		return NewAnthropic(AnthropicOptions{
			APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL,
			MaxTokens: cfg.MaxTokens, Temperature: temperature,
		}), nil
	case config.LLMProviderOpenAI:
		return NewOpenAI(OpenAIOptions{
			APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL,
			MaxTokens: cfg.MaxTokens, Temperature: temperature,
		}), nil
	case config.LLMProviderOllama:
		return NewOllama(OpenAIOptions{
			APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL,
			MaxTokens: cfg.MaxTokens, Temperature: temperature,
		}), nil
	case config.LLMProviderGemini:
		return NewGemini(ctx, GeminiOptions{
			APIKey: cfg.APIKey, Model: cfg.Model, MaxTokens: cfg.MaxTokens, Temperature: temperature,
		})
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
