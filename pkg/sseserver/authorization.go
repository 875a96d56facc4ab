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
	"encoding/json"
	"net/http"
	"time"

	"github.com/flowpilot/agentcore/pkg/config"
	"github.com/flowpilot/agentcore/pkg/event"
)

func (s *Server) handleClearMemory(w http.ResponseWriter, r *http.Request) {
	s.loop.Memory().Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAuthorizationResponse(w http.ResponseWriter, r *http.Request) {
	if s.authz == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "authorization is not configured"})
		return
	}
	var payload event.ToolAuthorizationResponsePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	s.authz.DeliverResponse(payload.ToolCallID, payload.Decision)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAuthorizationPending(w http.ResponseWriter, r *http.Request) {
	if s.authz == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "pending_authorizations": []any{}, "count": 0, "timestamp": time.Now().Unix()})
		return
	}
	pending := s.authz.ListPending()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                 "ok",
		"pending_authorizations": pending,
		"count":                  len(pending),
		"timestamp":              time.Now().Unix(),
	})
}

func (s *Server) handleAuthorizationCancel(w http.ResponseWriter, r *http.Request) {
	if s.authz == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "authorization is not configured"})
		return
	}
	var body struct {
		ToolCallID string `json:"tool_call_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := s.authz.Cancel(body.ToolCallID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAuthorizationConfigGet(w http.ResponseWriter, r *http.Request) {
	if s.authz == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "authorization is not configured"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"config":    s.authz.Config(),
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleAuthorizationConfigSet(w http.ResponseWriter, r *http.Request) {
	if s.authz == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "authorization is not configured"})
		return
	}
	var cfg config.AuthorizationConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	s.authz.SetConfig(cfg)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
