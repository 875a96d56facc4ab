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

// Package control implements the control-plane tools: assistant_done and
// report_progress. Executing either influences the agent loop itself
// rather than external state — assistant_done is the loop's preferred
// terminator (see agentloop).
package control

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowpilot/agentcore/pkg/tool"
)

const (
	DoneName     = "assistant_done"
	ProgressName = "report_progress"
)

// Status is the outcome assistant_done reports for the run.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialSuccess Status = "partial_success"
	StatusError          Status = "error"
	StatusUserAbort      Status = "user_abort"
)

var doneSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"summary": {"type": "string", "minLength": 10, "maxLength": 1000},
		"status": {"type": "string", "enum": ["success", "partial_success", "error", "user_abort"]},
		"final_artifact_id": {"type": "string"},
		"metrics": {"type": "object"}
	},
	"required": ["summary", "status"]
}`)

// Completion is the result of a successful assistant_done call. The agent
// loop inspects IsCompletion to recognize run termination.
type Completion struct {
	IsCompletion    bool           `json:"is_completion"`
	Summary         string         `json:"summary"`
	Status          Status         `json:"status"`
	FinalArtifactID string         `json:"final_artifact_id,omitempty"`
	Metrics         map[string]any `json:"metrics,omitempty"`
}

// Done is the assistant_done control-plane tool.
type Done struct{}

func NewDone() *Done { return &Done{} }

func (d *Done) Metadata() tool.Metadata {
	return tool.Metadata{
		Name:        DoneName,
		Description: "Signals that the assistant has finished the task. Must be the last tool call of a run.",
		InputSchema: doneSchema,
	}
}

type doneRequest struct {
	Summary         string         `json:"summary"`
	Status          Status         `json:"status"`
	FinalArtifactID string         `json:"final_artifact_id,omitempty"`
	Metrics         map[string]any `json:"metrics,omitempty"`
}

func (d *Done) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var req doneRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return "", tool.NewError(DoneName, fmt.Sprintf("invalid arguments: %s", err))
	}
	if l := len(req.Summary); l < 10 || l > 1000 {
		return "", tool.NewError(DoneName, "summary must be between 10 and 1000 characters")
	}
	switch req.Status {
	case StatusSuccess, StatusPartialSuccess, StatusError, StatusUserAbort:
	default:
		return "", tool.NewError(DoneName, fmt.Sprintf("unknown status %q", req.Status))
	}

	completion := Completion{
		IsCompletion:    true,
		Summary:         req.Summary,
		Status:          req.Status,
		FinalArtifactID: req.FinalArtifactID,
		Metrics:         req.Metrics,
	}
	out, err := json.Marshal(completion)
	if err != nil {
		return "", tool.NewError(DoneName, fmt.Sprintf("failed to encode completion: %s", err))
	}
	return string(out), nil
}

// ProgressReason names why the assistant is reporting progress without
// terminating.
type ProgressReason string

const (
	ReasonAwaitingInput     ProgressReason = "awaiting_input"
	ReasonPendingChoice     ProgressReason = "pending_choice"
	ReasonNeedClarification ProgressReason = "need_clarification"
	ReasonResponseComplete  ProgressReason = "response_complete"
	ReasonResultsDisplayed  ProgressReason = "results_displayed"
)

var progressSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"reason": {"type": "string", "enum": ["awaiting_input", "pending_choice", "need_clarification", "response_complete", "results_displayed"]},
		"context": {"type": "string"}
	},
	"required": ["reason"]
}`)

// Progress is the report_progress control-plane tool. It never terminates
// the run; it only emits a signal the loop/UI may act on.
type Progress struct{}

func NewProgress() *Progress { return &Progress{} }

func (p *Progress) Metadata() tool.Metadata {
	return tool.Metadata{
		Name:        ProgressName,
		Description: "Reports progress without ending the run, e.g. when awaiting further user input.",
		InputSchema: progressSchema,
	}
}

type progressRequest struct {
	Reason  ProgressReason `json:"reason"`
	Context string         `json:"context,omitempty"`
}

// Signal is the non-terminal result of a report_progress call.
type Signal struct {
	Reason  ProgressReason `json:"reason"`
	Context string         `json:"context,omitempty"`
}

func (p *Progress) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var req progressRequest
	if err := json.Unmarshal(args, &req); err != nil {
		return "", tool.NewError(ProgressName, fmt.Sprintf("invalid arguments: %s", err))
	}
	switch req.Reason {
	case ReasonAwaitingInput, ReasonPendingChoice, ReasonNeedClarification, ReasonResponseComplete, ReasonResultsDisplayed:
	default:
		return "", tool.NewError(ProgressName, fmt.Sprintf("unknown reason %q", req.Reason))
	}
	out, err := json.Marshal(Signal{Reason: req.Reason, Context: req.Context})
	if err != nil {
		return "", tool.NewError(ProgressName, fmt.Sprintf("failed to encode signal: %s", err))
	}
	return string(out), nil
}
