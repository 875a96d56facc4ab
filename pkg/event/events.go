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

package event

import (
	"encoding/json"
	"fmt"
)

// Type discriminates the wire event union. Values are UPPER_SNAKE_CASE per
// the SSE `event:` line; struct fields are camelCase in the `data:` line.
type Type string

const (
	TypeRunStarted  Type = "RUN_STARTED"
	TypeRunFinished Type = "RUN_FINISHED"
	TypeRunError    Type = "RUN_ERROR"

	TypeStepStarted  Type = "STEP_STARTED"
	TypeStepFinished Type = "STEP_FINISHED"

	TypeTextMessageStart   Type = "TEXT_MESSAGE_START"
	TypeTextMessageContent Type = "TEXT_MESSAGE_CONTENT"
	TypeTextMessageEnd     Type = "TEXT_MESSAGE_END"
	TypeTextMessageChunk   Type = "TEXT_MESSAGE_CHUNK"

	TypeToolCallStart Type = "TOOL_CALL_START"
	TypeToolCallArgs  Type = "TOOL_CALL_ARGS"
	TypeToolCallEnd   Type = "TOOL_CALL_END"
	TypeToolCallChunk Type = "TOOL_CALL_CHUNK"

	TypeToolAuthorizationRequest  Type = "TOOL_AUTHORIZATION_REQUEST"
	TypeToolAuthorizationResponse Type = "TOOL_AUTHORIZATION_RESPONSE"
	TypeAuthorizationStatus       Type = "AUTHORIZATION_STATUS"

	TypeStateSnapshot    Type = "STATE_SNAPSHOT"
	TypeStateDelta       Type = "STATE_DELTA"
	TypeMessagesSnapshot Type = "MESSAGES_SNAPSHOT"

	TypeCustom Type = "CUSTOM"
	TypeRaw    Type = "RAW"
)

// Event is one entry in the ordered wire event stream for a run. Payload
// carries the variant-specific fields and is flattened into the same JSON
// object as Type/Timestamp/RawEvent on marshal.
type Event struct {
	Type      Type   `json:"type"`
	Timestamp *int64 `json:"-"`
	RawEvent  any    `json:"-"`
	Payload   any    `json:"-"`
}

// MarshalJSON flattens Payload's fields alongside type/timestamp/rawEvent
// into one JSON object, matching the wire format in §6.2.
func (e Event) MarshalJSON() ([]byte, error) {
	out := map[string]any{"type": e.Type}
	if e.Payload != nil {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal event payload: %w", err)
		}
		var fields map[string]any
		if err := json.Unmarshal(b, &fields); err != nil {
			return nil, fmt.Errorf("flatten event payload: %w", err)
		}
		for k, v := range fields {
			out[k] = v
		}
	}
	if e.Timestamp != nil {
		out["timestamp"] = *e.Timestamp
	}
	if e.RawEvent != nil {
		out["rawEvent"] = e.RawEvent
	}
	return json.Marshal(out)
}

// Payload structs, one per variant named in §3/§4.10/§6.2.

type RunStartedPayload struct {
	ThreadID string `json:"threadId"`
	RunID    string `json:"runId"`
}

type RunFinishedPayload struct {
	ThreadID string `json:"threadId"`
	RunID    string `json:"runId"`
	Result   string `json:"result,omitempty"`
}

type RunErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type StepPayload struct {
	StepName string `json:"stepName"`
}

type TextMessageStartPayload struct {
	MessageID string `json:"messageId"`
	Role      string `json:"role,omitempty"`
}

type TextMessageContentPayload struct {
	MessageID string `json:"messageId"`
	Delta     string `json:"delta"`
}

type TextMessageEndPayload struct {
	MessageID string `json:"messageId"`
}

type ToolCallStartPayload struct {
	ToolCallID      string `json:"toolCallId"`
	ToolCallName    string `json:"toolCallName"`
	ParentMessageID string `json:"parentMessageId,omitempty"`
}

type ToolCallArgsPayload struct {
	ToolCallID string `json:"toolCallId"`
	Delta      string `json:"delta"`
}

type ToolCallEndPayload struct {
	ToolCallID string `json:"toolCallId"`
}

type ToolAuthorizationRequestPayload struct {
	ToolCallID   string          `json:"toolCallId"`
	ToolCallName string          `json:"toolCallName"`
	ToolCallArgs json.RawMessage `json:"toolCallArgs"`
	Description  string          `json:"description,omitempty"`
	ExpiresAt    *int64          `json:"expiresAt,omitempty"`
}

// AuthorizationDecision is the user's answer to a pending authorization
// request: approve once, deny, or approve and switch the mode to
// always_allow for the rest of the run.
type AuthorizationDecision string

const (
	DecisionYes AuthorizationDecision = "yes"
	DecisionNo  AuthorizationDecision = "no"
	DecisionAll AuthorizationDecision = "all"
)

type ToolAuthorizationResponsePayload struct {
	ToolCallID string                `json:"toolCallId"`
	Decision   AuthorizationDecision `json:"decision"`
}

type AuthorizationStatusPayload struct {
	ToolCallID string `json:"toolCallId"`
	Status     string `json:"status"`
}

type StateSnapshotPayload struct {
	Snapshot any `json:"snapshot"`
}

type StateDeltaPayload struct {
	Delta []JSONPatchOp `json:"delta"`
}

// JSONPatchOp is one RFC 6902-shaped patch operation used by STATE_DELTA.
type JSONPatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

type MessagesSnapshotPayload struct {
	Messages []Message `json:"messages"`
}

type CustomPayload struct {
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
}

type RawPayload struct {
	Event any `json:"event"`
}

// Constructors. Each returns a ready-to-send Event; callers may set
// Timestamp/RawEvent afterward.

func RunStarted(threadID, runID string) Event {
	return Event{Type: TypeRunStarted, Payload: RunStartedPayload{ThreadID: threadID, RunID: runID}}
}

func RunFinished(threadID, runID, result string) Event {
	return Event{Type: TypeRunFinished, Payload: RunFinishedPayload{ThreadID: threadID, RunID: runID, Result: result}}
}

func RunError(message, code string) Event {
	return Event{Type: TypeRunError, Payload: RunErrorPayload{Message: message, Code: code}}
}

func StepStarted(name string) Event {
	return Event{Type: TypeStepStarted, Payload: StepPayload{StepName: name}}
}

func StepFinished(name string) Event {
	return Event{Type: TypeStepFinished, Payload: StepPayload{StepName: name}}
}

func TextMessageStart(messageID, role string) Event {
	return Event{Type: TypeTextMessageStart, Payload: TextMessageStartPayload{MessageID: messageID, Role: role}}
}

func TextMessageContent(messageID, delta string) Event {
	return Event{Type: TypeTextMessageContent, Payload: TextMessageContentPayload{MessageID: messageID, Delta: delta}}
}

func TextMessageEnd(messageID string) Event {
	return Event{Type: TypeTextMessageEnd, Payload: TextMessageEndPayload{MessageID: messageID}}
}

func ToolCallStart(toolCallID, name, parentMessageID string) Event {
	return Event{Type: TypeToolCallStart, Payload: ToolCallStartPayload{ToolCallID: toolCallID, ToolCallName: name, ParentMessageID: parentMessageID}}
}

func ToolCallArgs(toolCallID, delta string) Event {
	return Event{Type: TypeToolCallArgs, Payload: ToolCallArgsPayload{ToolCallID: toolCallID, Delta: delta}}
}

func ToolCallEnd(toolCallID string) Event {
	return Event{Type: TypeToolCallEnd, Payload: ToolCallEndPayload{ToolCallID: toolCallID}}
}

func ToolAuthorizationRequest(toolCallID, name string, args json.RawMessage, description string, expiresAt *int64) Event {
	return Event{Type: TypeToolAuthorizationRequest, Payload: ToolAuthorizationRequestPayload{
		ToolCallID: toolCallID, ToolCallName: name, ToolCallArgs: args, Description: description, ExpiresAt: expiresAt,
	}}
}

func ToolAuthorizationResponse(toolCallID string, decision AuthorizationDecision) Event {
	return Event{Type: TypeToolAuthorizationResponse, Payload: ToolAuthorizationResponsePayload{ToolCallID: toolCallID, Decision: decision}}
}

func AuthorizationStatus(toolCallID, status string) Event {
	return Event{Type: TypeAuthorizationStatus, Payload: AuthorizationStatusPayload{ToolCallID: toolCallID, Status: status}}
}

func MessagesSnapshot(messages []Message) Event {
	return Event{Type: TypeMessagesSnapshot, Payload: MessagesSnapshotPayload{Messages: messages}}
}

func Custom(name string, value any) Event {
	return Event{Type: TypeCustom, Payload: CustomPayload{Name: name, Value: value}}
}
