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
	"errors"
	"log/slog"
	"time"

	"github.com/flowpilot/agentcore/pkg/event"
)

// AutoRecovery wraps a base LLM and retries transient errors with a simple
// linear backoff. Structured parsing errors are never retried.
type AutoRecovery struct {
	base       LLM
	maxRetries int
	backoff    time.Duration
}

// NewAutoRecovery builds an AutoRecovery decorator. maxRetries and backoff
// fall back to sane defaults (3 retries, 500ms linear backoff) when zero.
func NewAutoRecovery(base LLM, maxRetries int, backoff time.Duration) *AutoRecovery {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &AutoRecovery{base: base, maxRetries: maxRetries, backoff: backoff}
}

func (a *AutoRecovery) Model() string { return a.base.Model() }

func (a *AutoRecovery) Generate(ctx context.Context, messages []event.Message, tools []event.ToolDescriptor) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		resp, err := a.base.Generate(ctx, messages, tools)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var llmErr *Error
		if !errors.As(err, &llmErr) || !llmErr.Retryable() {
			return nil, err
		}
		if attempt == a.maxRetries {
			break
		}

		slog.Warn("llm: transient error, retrying", "attempt", attempt+1, "max_retries", a.maxRetries, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.backoff * time.Duration(attempt+1)):
		}
	}
	return nil, lastErr
}
