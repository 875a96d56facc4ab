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

package sseserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/flowpilot/agentcore/pkg/authz"
	"github.com/flowpilot/agentcore/pkg/event"
)

// eventBacklog sizes the buffer between the agent-loop task and the
// SSE-writer task. 256 events is far more than one step can produce
// before the writer drains it, so a slow network write delays only the
// client's view of the run, not the run itself, and keep-alive comments
// can still go out while the loop is parked on an LLM call or an
// authorization decision.
const eventBacklog = 256

// handleStream drives one run end to end: decode the request, open an SSE
// response, run the agent loop on its own goroutine, and relay its events
// (plus periodic keep-alives) to the client until the run finishes, errors,
// or the client disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var input event.RunAgentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(input.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "messages must not be empty"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	runCtx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := make(chan event.Event, eventBacklog)
	if s.authz != nil {
		// Authorization events ride the same channel as the loop's own
		// events, so the SSE writer goroutine is this connection's only
		// writer and the client sees one FIFO sequence.
		s.authz.SetPublisher(&connPublisher{events: events, done: runCtx.Done()})
	}

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		s.runner.Stream(runCtx, input, func(e event.Event) bool {
			select {
			case events <- e:
				return true
			case <-runCtx.Done():
				return false
			}
		})
	}()

	keepAlive := time.NewTicker(time.Duration(s.cfg.KeepAliveSeconds) * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case e := <-events:
			if err := writeSSEEvent(w, e); err != nil {
				slog.Warn("sseserver: write event", "error", err)
				return
			}
			flusher.Flush()

		case <-runDone:
			// The run is over; drain anything still queued, then close.
			for {
				select {
				case e := <-events:
					if err := writeSSEEvent(w, e); err != nil {
						slog.Warn("sseserver: write event", "error", err)
						return
					}
					flusher.Flush()
				default:
					return
				}
			}

		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ":keep-alive\n\n"); err != nil {
				slog.Warn("sseserver: write keep-alive", "error", err)
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			// Client disconnected; runCtx cancellation (deferred above)
			// propagates to the agent loop and any pending authorization.
			return
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, e event.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	return err
}

// connPublisher announces authorization requests/status by enqueueing
// them on the stream's event channel. Publishes may come from the
// agent-loop goroutine (Request) or from REST handler goroutines (Cancel,
// CleanupExpired); the channel makes both safe and keeps the SSE writer
// goroutine as the connection's single writer. Events published after the
// run's context is done are dropped.
type connPublisher struct {
	events chan<- event.Event
	done   <-chan struct{}
}

func (p *connPublisher) publish(ev event.Event) {
	select {
	case p.events <- ev:
	case <-p.done:
		slog.Debug("sseserver: dropping authorization event for finished run", "type", ev.Type)
	}
}

func (p *connPublisher) PublishAuthorizationRequest(rc authz.RequestContext, expiresAt *time.Time) {
	var exp *int64
	if expiresAt != nil {
		ms := expiresAt.UnixMilli()
		exp = &ms
	}
	p.publish(event.ToolAuthorizationRequest(rc.ToolCallID, rc.ToolCallName, rc.ToolCallArgs, rc.Description, exp))
}

func (p *connPublisher) PublishAuthorizationStatus(toolCallID string, status authz.Status) {
	p.publish(event.AuthorizationStatus(toolCallID, string(status)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
