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

// Package llm defines the generate(messages, tools) -> response contract
// the agent loop drives, concrete REST-backed providers for it, and the
// auto-recovery / context-truncation decorators that compose atop any of
// them.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowpilot/agentcore/pkg/event"
)

// Usage reports token accounting for one generate call, when the provider
// supplies it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the result of one LLM.Generate call. Either Content or
// ToolCalls must be non-empty.
type Response struct {
	Content      string
	ToolCalls    []event.ToolCall
	FinishReason string
	Usage        *Usage
}

// HasToolCalls reports whether the model chose to invoke one or more
// tools rather than (or alongside) returning content.
func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// LLM is the capability the agent loop, memory summarizer, and tracer all
// drive generation through.
type LLM interface {
	Generate(ctx context.Context, messages []event.Message, tools []event.ToolDescriptor) (*Response, error)
	// Model names the underlying model, used for token counting and logs.
	Model() string
}

// ErrorKind classifies an Error for the wrappers in this package.
type ErrorKind int

const (
	// KindTransient covers rate limits, timeouts, and 5xx upstream errors:
	// auto-recovery retries these.
	KindTransient ErrorKind = iota
	// KindContextLength signals the provider rejected the request because
	// the prompt exceeded its context window: the truncation wrapper
	// handles these by dropping oldest messages and retrying.
	KindContextLength
	// KindParsing covers malformed response payloads: never retried.
	KindParsing
	// KindFatal covers auth failures, invalid requests, and anything else
	// that retrying cannot fix.
	KindFatal
)

// Error is the typed error LLM.Generate returns on failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("llm: %s", e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether auto-recovery should retry this error.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient
}

// IsContextLength reports whether err (or a wrapped *Error within it)
// signals a context-length overflow.
func IsContextLength(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindContextLength
}
