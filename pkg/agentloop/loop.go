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

// Package agentloop drives the reason-act-observe state machine: it calls
// the LLM, dispatches tool calls through the authorization gate, consults
// the loop detector, and feeds the conversation memory, yielding a stream
// of wire events the caller forwards to its listener (agenthandler wraps
// this with the RUN_STARTED/RUN_FINISHED/RUN_ERROR lifecycle).
package agentloop

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/flowpilot/agentcore/pkg/authz"
	"github.com/flowpilot/agentcore/pkg/event"
	"github.com/flowpilot/agentcore/pkg/llm"
	"github.com/flowpilot/agentcore/pkg/loopdetect"
	"github.com/flowpilot/agentcore/pkg/memory"
	"github.com/flowpilot/agentcore/pkg/tool"
	"github.com/flowpilot/agentcore/pkg/tool/control"
	"github.com/flowpilot/agentcore/pkg/tracing"
)

// ErrStepLimitExceeded is returned when a run exhausts its step budget
// without reaching a terminal state.
var ErrStepLimitExceeded = errors.New("agentloop: step limit exceeded")

// IDGenerator produces unique identifiers for messages and tool calls.
// Injecting it keeps message and tool-call ids deterministic under test
// (trace timestamps and the loop detector still read time.Now);
// cmd/agentcored wires a real generator (e.g. google/uuid) at runtime.
type IDGenerator func() string

// Config tunes one Loop's behavior.
type Config struct {
	MaxSteps int

	// FinalAnswerPrefixes are content prefixes that terminate a run even
	// without an assistant_done call, for models that haven't been told
	// about (or choose not to use) the control tool. Matching is
	// case-insensitive and checked against the trimmed response content.
	FinalAnswerPrefixes []string

	NewID IDGenerator
}

// Loop is the reason-act-observe engine. Its memory and loop detector
// persist across calls to Run: cmd/agentcored builds one Loop that serves
// every run, and memory is reset only through Memory().Clear. Loop holds
// no lock of its own.
type Loop struct {
	cfg      Config
	model    llm.LLM
	tools    *tool.Registry
	mem      memory.Memory
	authz    *authz.Handler
	detector *loopdetect.Detector
	tracer   *tracing.Tracer
	system   string
}

// New builds a Loop. authzHandler may be nil, in which case every tool
// call is executed without a gate (equivalent to always_allow). tracer may
// be nil (or a disabled *tracing.Tracer), in which case no trace is
// written.
func New(cfg Config, model llm.LLM, tools *tool.Registry, mem memory.Memory, authzHandler *authz.Handler, tracer *tracing.Tracer, systemPrompt string) *Loop {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 25
	}
	if cfg.NewID == nil {
		cfg.NewID = defaultIDGenerator()
	}
	return &Loop{
		cfg:      cfg,
		model:    model,
		tools:    tools,
		mem:      mem,
		authz:    authzHandler,
		detector: loopdetect.New(loopdetect.DefaultConfig()),
		tracer:   tracer,
		system:   systemPrompt,
	}
}

// Memory exposes the loop's conversation memory so callers (the HTTP
// surface's clear-memory endpoint) can reset it between conversations.
func (l *Loop) Memory() memory.Memory {
	return l.mem
}

// Run executes the loop for one RunAgentInput, yielding wire events in
// the order they occur. The sequence ends either because a terminal
// state was reached (assistant_done, or a content-only response that
// matches FinalAnswerPrefixes — any content-only response when none are
// configured) or because an error occurred — including
// ErrStepLimitExceeded, which the caller should translate to RUN_ERROR
// with code "STEP_LIMIT_EXCEEDED".
func (l *Loop) Run(ctx context.Context, input event.RunAgentInput) iter.Seq2[event.Event, error] {
	return func(yield func(event.Event, error) bool) {
		for _, m := range input.Messages {
			if err := l.mem.AddMessage(ctx, m); err != nil {
				yield(event.Event{}, fmt.Errorf("agentloop: seed message: %w", err))
				return
			}
		}

		toolDescriptors := l.tools.Metadata()
		descriptors := make([]event.ToolDescriptor, 0, len(toolDescriptors))
		for _, md := range toolDescriptors {
			descriptors = append(descriptors, event.ToolDescriptor{Name: md.Name, Description: md.Description, InputSchema: md.InputSchema})
		}

		for step := 1; step <= l.cfg.MaxSteps; step++ {
			if ctx.Err() != nil {
				yield(event.Event{}, ctx.Err())
				return
			}

			stepName := fmt.Sprintf("step-%d", step)
			if !yield(event.StepStarted(stepName), nil) {
				return
			}

			messages := append([]event.Message{event.NewSystemMessage(l.cfg.NewID(), l.system)}, l.mem.GetContext()...)

			resp, err := l.model.Generate(ctx, messages, descriptors)
			if err != nil {
				yield(event.Event{}, fmt.Errorf("agentloop: generate: %w", err))
				return
			}

			var done, stop bool
			if !resp.HasToolCalls() {
				msgID := l.cfg.NewID()
				for _, ev := range []event.Event{
					event.TextMessageStart(msgID, string(event.RoleAssistant)),
					event.TextMessageContent(msgID, resp.Content),
					event.TextMessageEnd(msgID),
				} {
					if !yield(ev, nil) {
						return
					}
				}
				if err := l.mem.AddMessage(ctx, event.NewAssistantMessage(msgID, resp.Content, nil)); err != nil {
					yield(event.Event{}, fmt.Errorf("agentloop: record assistant message: %w", err))
					return
				}
				l.tracer.Record(ctx, tracing.Record{Timestamp: time.Now().UnixMilli(), StepNumber: step, TraceType: tracing.TraceFinal, Content: resp.Content})
				if l.matchesFinalAnswer(resp.Content) {
					stop = true
				}
			} else {
				assistantMsgID := l.cfg.NewID()
				if resp.Content != "" {
					for _, ev := range []event.Event{
						event.TextMessageStart(assistantMsgID, string(event.RoleAssistant)),
						event.TextMessageContent(assistantMsgID, resp.Content),
						event.TextMessageEnd(assistantMsgID),
					} {
						if !yield(ev, nil) {
							return
						}
					}
					l.tracer.Record(ctx, tracing.Record{Timestamp: time.Now().UnixMilli(), StepNumber: step, TraceType: tracing.TraceThought, Content: resp.Content})
				}
				if err := l.mem.AddMessage(ctx, event.NewAssistantMessage(assistantMsgID, resp.Content, resp.ToolCalls)); err != nil {
					yield(event.Event{}, fmt.Errorf("agentloop: record assistant message: %w", err))
					return
				}

				for _, tc := range resp.ToolCalls {
					if err := l.runToolCall(ctx, step, assistantMsgID, tc, yield, &done); err != nil {
						yield(event.Event{}, err)
						return
					}
					if done {
						stop = true
						break
					}
				}
			}

			if !yield(event.StepFinished(stepName), nil) {
				return
			}
			if stop {
				return
			}
		}

		yield(event.Event{}, ErrStepLimitExceeded)
	}
}

// runToolCall gates, executes, and records the outcome of one tool call.
// *done is set true when the call is assistant_done's successful
// completion.
func (l *Loop) runToolCall(ctx context.Context, step int, parentMessageID string, tc event.ToolCall, yield func(event.Event, error) bool, done *bool) error {
	if !yield(event.ToolCallStart(tc.ID, tc.Name, parentMessageID), nil) {
		return nil
	}
	if !yield(event.ToolCallArgs(tc.ID, string(tc.Arguments)), nil) {
		return nil
	}

	pattern := l.detector.Observe(tc.Name, tc.Arguments, step, time.Now())
	if pattern.Kind != loopdetect.PatternNone {
		slog.Warn("agentloop: repetitive tool-call pattern detected", "tool", tc.Name, "kind", pattern.Kind, "count", pattern.Count)
		warning := correctiveMessage(pattern)
		if err := l.mem.AddMessage(ctx, event.NewSystemMessage(l.cfg.NewID(), warning)); err != nil {
			return fmt.Errorf("agentloop: record corrective message: %w", err)
		}
		l.detector.Reset()
	}

	decision := authz.Yes
	if l.authz != nil {
		var err error
		decision, err = l.authz.Request(ctx, authz.RequestContext{
			ToolCallID:   tc.ID,
			ToolCallName: tc.Name,
			ToolCallArgs: tc.Arguments,
		}, step, l.cfg.MaxSteps)
		if err != nil {
			return fmt.Errorf("agentloop: authorization: %w", err)
		}
	}

	var output string
	var success bool
	if decision != authz.Yes {
		output = "Authorization denied by user."
		success = false
	} else {
		result, err := l.tools.Execute(ctx, tc.Name, tc.Arguments)
		if err != nil {
			var toolErr *tool.Error
			if errors.As(err, &toolErr) {
				output = toolErr.Message
			} else {
				output = err.Error()
			}
			success = false
		} else {
			output = result
			success = true
			if tc.Name == control.DoneName {
				*done = true
			}
		}
	}

	if !yield(event.ToolCallEnd(tc.ID), nil) {
		return nil
	}
	if err := l.mem.AddMessage(ctx, event.NewToolMessage(l.cfg.NewID(), tc.ID, output, success)); err != nil {
		return fmt.Errorf("agentloop: record tool result: %w", err)
	}
	l.tracer.Record(ctx, tracing.Record{
		Timestamp:  time.Now().UnixMilli(),
		StepNumber: step,
		TraceType:  tracing.TraceToolCall,
		ToolCall:   &event.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments},
		Result:     &event.ToolResult{ToolCallID: tc.ID, Success: success, Output: output},
	})
	return nil
}

func (l *Loop) matchesFinalAnswer(content string) bool {
	trimmed := strings.TrimSpace(content)
	for _, prefix := range l.cfg.FinalAnswerPrefixes {
		if strings.HasPrefix(strings.ToLower(trimmed), strings.ToLower(prefix)) {
			return true
		}
	}
	return len(l.cfg.FinalAnswerPrefixes) == 0
}

func correctiveMessage(p loopdetect.Pattern) string {
	switch p.Kind {
	case loopdetect.PatternExact:
		return fmt.Sprintf("You have called %q with identical arguments %d times. Stop repeating this call; either use its existing result or try a different approach.", p.ToolName, p.Count)
	case loopdetect.PatternSimilar:
		return fmt.Sprintf("You have called %q with near-identical arguments %d times (avg similarity %.2f). Consider whether repeating this call is necessary.", p.ToolName, p.Count, p.AvgScore)
	default:
		return fmt.Sprintf("You have called %q %d times in quick succession. Re-evaluate your plan before calling it again.", p.ToolName, p.Count)
	}
}
