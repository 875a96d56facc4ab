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

// Package authz implements the human-in-the-loop tool authorization gate:
// a mode-driven request/response exchange that suspends tool execution
// pending user approval, with timeout and cancellation semantics.
package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flowpilot/agentcore/pkg/config"
	"github.com/flowpilot/agentcore/pkg/event"
)

// Decision is the outcome of a Request call.
type Decision = event.AuthorizationDecision

const (
	Yes = event.DecisionYes
	No  = event.DecisionNo
	All = event.DecisionAll
)

// Status is the lifecycle state of a PendingAuthorization.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDenied    Status = "denied"
	StatusTimedOut  Status = "timed_out"
	StatusCancelled Status = "cancelled"
)

// ErrAuthorizationFailed is returned when the requester's channel breaks
// (e.g. the run was cancelled) or a Cancel targets an unknown id. A
// response for an unknown id is only logged (see DeliverResponse).
type ErrAuthorizationFailed struct {
	ToolCallID string
	Reason     string
}

func (e *ErrAuthorizationFailed) Error() string {
	return fmt.Sprintf("authz: %s: %s", e.ToolCallID, e.Reason)
}

// PendingAuthorization describes one outstanding request, as surfaced by
// ListPending. Field names marshal camelCase to match the wire events.
type PendingAuthorization struct {
	ToolCallID   string          `json:"toolCallId"`
	ToolCallName string          `json:"toolCallName"`
	ToolCallArgs json.RawMessage `json:"toolCallArgs,omitempty"`
	Description  string          `json:"description,omitempty"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	ExpiresAt    *time.Time      `json:"expiresAt,omitempty"`
}

// RequestContext carries everything the handler needs to gate (and, if
// asking, describe) one tool call.
type RequestContext struct {
	ToolCallID   string
	ToolCallName string
	ToolCallArgs json.RawMessage
	Description  string
}

// Publisher emits authorization-related wire events. The SSE producer
// (C10) implements this; the handler never writes to the stream directly.
type Publisher interface {
	PublishAuthorizationRequest(ctx RequestContext, expiresAt *time.Time)
	PublishAuthorizationStatus(toolCallID string, status Status)
}

type pendingEntry struct {
	responseCh chan Decision
	ctx        RequestContext
	createdAt  time.Time
	expiresAt  *time.Time
}

// Handler is the authorization gate. One Handler is shared by every tool
// call within a run.
type Handler struct {
	mu        sync.Mutex
	cfg       config.AuthorizationConfig
	pending   map[string]*pendingEntry
	publisher Publisher
}

// New builds a Handler. publisher may be nil in tests that don't care
// about emitted events.
func New(cfg config.AuthorizationConfig, publisher Publisher) *Handler {
	cfg.SetDefaults()
	return &Handler{cfg: cfg, pending: make(map[string]*pendingEntry), publisher: publisher}
}

// Request gates one tool call pending an approval decision. It never holds
// h.mu across the await on the user's response.
func (h *Handler) Request(ctx context.Context, rc RequestContext, stepNumber, maxSteps int) (Decision, error) {
	h.mu.Lock()
	mode := h.cfg.Mode
	enabled := h.cfg.Enabled == nil || *h.cfg.Enabled
	timeout := 30 * time.Second
	if h.cfg.TimeoutSeconds != nil {
		timeout = time.Duration(*h.cfg.TimeoutSeconds) * time.Second
	}
	pub := h.publisher
	h.mu.Unlock()

	if !enabled || mode == config.AuthorizationAlwaysAllow {
		return Yes, nil
	}
	if mode == config.AuthorizationAlwaysDeny {
		return No, nil
	}

	respCh := make(chan Decision, 1)
	now := time.Now()
	expiresAt := now.Add(timeout)
	entry := &pendingEntry{responseCh: respCh, ctx: rc, createdAt: now, expiresAt: &expiresAt}

	h.mu.Lock()
	h.pending[rc.ToolCallID] = entry
	h.mu.Unlock()

	if pub != nil {
		pub.PublishAuthorizationRequest(rc, &expiresAt)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case decision, ok := <-respCh:
		if !ok {
			return No, &ErrAuthorizationFailed{ToolCallID: rc.ToolCallID, Reason: "response channel closed"}
		}
		if decision == All {
			h.mu.Lock()
			h.cfg.Mode = config.AuthorizationAlwaysAllow
			h.mu.Unlock()
			decision = Yes
		}
		status := StatusDenied
		if decision == Yes {
			status = StatusApproved
		}
		if pub != nil {
			pub.PublishAuthorizationStatus(rc.ToolCallID, status)
		}
		return decision, nil

	case <-timer.C:
		h.mu.Lock()
		delete(h.pending, rc.ToolCallID)
		h.mu.Unlock()
		slog.Warn("authz: request timed out", "tool_call_id", rc.ToolCallID, "tool_name", rc.ToolCallName)
		if pub != nil {
			pub.PublishAuthorizationStatus(rc.ToolCallID, StatusTimedOut)
		}
		return No, nil

	case <-ctx.Done():
		h.mu.Lock()
		delete(h.pending, rc.ToolCallID)
		h.mu.Unlock()
		return No, &ErrAuthorizationFailed{ToolCallID: rc.ToolCallID, Reason: "context cancelled"}
	}
}

// DeliverResponse resolves a pending request. An unknown tool_call_id is
// logged as a warning, not returned as an error — the second of two
// responses for the same id falls into this branch.
func (h *Handler) DeliverResponse(toolCallID string, decision Decision) {
	h.mu.Lock()
	entry, ok := h.pending[toolCallID]
	if ok {
		delete(h.pending, toolCallID)
	}
	h.mu.Unlock()

	if !ok {
		slog.Warn("authz: response for unknown or already-resolved tool_call_id", "tool_call_id", toolCallID)
		return
	}
	entry.responseCh <- decision
}

// ListPending reports every outstanding request, computing Status as
// TimedOut if the deadline has passed, else Pending.
func (h *Handler) ListPending() []PendingAuthorization {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	out := make([]PendingAuthorization, 0, len(h.pending))
	for id, entry := range h.pending {
		status := StatusPending
		if entry.expiresAt != nil && now.After(*entry.expiresAt) {
			status = StatusTimedOut
		}
		out = append(out, PendingAuthorization{
			ToolCallID:   id,
			ToolCallName: entry.ctx.ToolCallName,
			ToolCallArgs: entry.ctx.ToolCallArgs,
			Description:  entry.ctx.Description,
			Status:       status,
			CreatedAt:    entry.createdAt,
			ExpiresAt:    entry.expiresAt,
		})
	}
	return out
}

// Cancel removes a pending request and delivers No to its waiter. An
// absent key is ErrAuthorizationFailed.
func (h *Handler) Cancel(toolCallID string) error {
	h.mu.Lock()
	entry, ok := h.pending[toolCallID]
	if ok {
		delete(h.pending, toolCallID)
	}
	pub := h.publisher
	h.mu.Unlock()

	if !ok {
		return &ErrAuthorizationFailed{ToolCallID: toolCallID, Reason: "no such pending authorization"}
	}
	if pub != nil {
		pub.PublishAuthorizationStatus(toolCallID, StatusCancelled)
	}
	entry.responseCh <- No
	return nil
}

// CleanupExpired removes every pending entry past its deadline and
// delivers No to each. Intended to be called periodically.
func (h *Handler) CleanupExpired() {
	now := time.Now()

	h.mu.Lock()
	var expired []*pendingEntry
	for id, entry := range h.pending {
		if entry.expiresAt != nil && now.After(*entry.expiresAt) {
			expired = append(expired, entry)
			delete(h.pending, id)
		}
	}
	pub := h.publisher
	h.mu.Unlock()

	for _, entry := range expired {
		if pub != nil {
			pub.PublishAuthorizationStatus(entry.ctx.ToolCallID, StatusTimedOut)
		}
		entry.responseCh <- No
	}
}

// Config returns a copy of the current authorization configuration.
func (h *Handler) Config() config.AuthorizationConfig {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg
}

// SetConfig replaces the authorization configuration. Mode transitions
// are not retroactive: changing the mode does not resolve requests
// already pending.
func (h *Handler) SetConfig(cfg config.AuthorizationConfig) {
	cfg.SetDefaults()
	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
}

// SetPublisher replaces the Publisher requests are announced through. The
// SSE surface calls this once per stream connection so authorization
// events for the run it is driving land on that connection.
func (h *Handler) SetPublisher(p Publisher) {
	h.mu.Lock()
	h.publisher = p
	h.mu.Unlock()
}
