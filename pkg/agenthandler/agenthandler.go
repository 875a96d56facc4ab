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

// Package agenthandler translates one agentloop.Loop run into the
// complete wire event sequence a client expects: exactly one
// RUN_STARTED, followed by the loop's own events, followed by exactly
// one of RUN_FINISHED or RUN_ERROR — even when the loop itself errors,
// panics are recovered, or the caller's context is cancelled mid-run.
package agenthandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowpilot/agentcore/pkg/agentloop"
	"github.com/flowpilot/agentcore/pkg/event"
)

// Runner is the subset of agentloop.Loop this package drives. Declared
// as an interface so tests can substitute a stub loop.
type Runner interface {
	Run(ctx context.Context, input event.RunAgentInput) func(func(event.Event, error) bool)
}

// loopAdapter adapts *agentloop.Loop's iter.Seq2 return type to the
// plain func(func(event.Event, error) bool) Runner expects, since
// iter.Seq2[T, U] is itself exactly that function type — this exists
// only to give the indirection a name for tests.
type loopAdapter struct{ loop *agentloop.Loop }

func (a loopAdapter) Run(ctx context.Context, input event.RunAgentInput) func(func(event.Event, error) bool) {
	return a.loop.Run(ctx, input)
}

// Adapt wraps a concrete *agentloop.Loop as a Runner.
func Adapt(loop *agentloop.Loop) Runner {
	return loopAdapter{loop: loop}
}

// Handler produces the full wire event sequence for runs driven by one
// Runner (in cmd/agentcored, one agentloop.Loop shared by every run).
type Handler struct {
	runner Runner
}

// New builds a Handler.
func New(runner Runner) *Handler {
	return &Handler{runner: runner}
}

// Stream calls emit for every event in the run's wire sequence, in
// order: RUN_STARTED, then the loop's events, then exactly one of
// RUN_FINISHED or RUN_ERROR. emit returning false stops the run
// immediately (the caller disconnected); Stream then still emits
// nothing further and returns.
//
// A panic inside the loop is recovered and reported as RUN_ERROR rather
// than crashing the process — one misbehaving run must not take down
// every other concurrent run sharing the server.
func (h *Handler) Stream(ctx context.Context, input event.RunAgentInput, emit func(event.Event) bool) {
	if !emit(event.RunStarted(input.ThreadID, input.RunID)) {
		return
	}

	declined := false
	gated := func(e event.Event) bool {
		if !emit(e) {
			declined = true
			return false
		}
		return true
	}

	terminal := h.runOnce(ctx, input, gated)
	if !declined {
		emit(terminal)
	}
}

// runOnce drives the loop to completion and returns the single terminal
// event (RUN_FINISHED or RUN_ERROR) the caller must emit exactly once.
func (h *Handler) runOnce(ctx context.Context, input event.RunAgentInput, emit func(event.Event) bool) (finished event.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("agenthandler: recovered panic in run", "thread_id", input.ThreadID, "run_id", input.RunID, "panic", r)
			finished = event.RunError(fmt.Sprintf("internal error: %v", r), "INTERNAL")
		}
	}()

	var runErr error
	seq := h.runner.Run(ctx, input)
	seq(func(e event.Event, err error) bool {
		if err != nil {
			runErr = err
			return false
		}
		return emit(e)
	})

	if runErr != nil {
		return event.RunError(runErr.Error(), errorCode(runErr))
	}
	return event.RunFinished(input.ThreadID, input.RunID, "completed")
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, agentloop.ErrStepLimitExceeded):
		return "STEP_LIMIT_EXCEEDED"
	case errors.Is(err, context.Canceled):
		return "CANCELLED"
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	default:
		return "RUN_ERROR"
	}
}
