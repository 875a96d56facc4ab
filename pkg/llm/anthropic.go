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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/flowpilot/agentcore/pkg/event"
	"github.com/flowpilot/agentcore/pkg/httpclient"
)

const anthropicDefaultBaseURL = "https://api.anthropic.com/v1/messages"

// Anthropic implements LLM against the Claude Messages API.
type Anthropic struct {
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	client      *httpclient.Client
}

// AnthropicOptions configures an Anthropic provider.
type AnthropicOptions struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

// NewAnthropic builds an Anthropic provider.
func NewAnthropic(opts AnthropicOptions) *Anthropic {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Anthropic{
		apiKey:      opts.APIKey,
		model:       opts.Model,
		baseURL:     baseURL,
		maxTokens:   maxTokens,
		temperature: opts.Temperature,
		client: httpclient.New(
			httpclient.WithRetryStrategy(httpclient.DefaultStrategy),
			httpclient.WithHeaderParser(httpclient.ParseAnthropicHeaders),
		),
	}
}

func (a *Anthropic) Model() string { return a.model }

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

type anthropicContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *Anthropic) Generate(ctx context.Context, messages []event.Message, tools []event.ToolDescriptor) (*Response, error) {
	req := anthropicRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	}

	for _, m := range messages {
		switch m.Role {
		case event.RoleSystem, event.RoleDeveloper:
			if req.System != "" {
				req.System += "\n\n"
			}
			req.System += m.Content
		case event.RoleUser:
			req.Messages = append(req.Messages, anthropicMessage{
				Role:    "user",
				Content: []anthropicContentBlock{{Type: "text", Text: m.Content}},
			})
		case event.RoleAssistant:
			blocks := []anthropicContentBlock{}
			if m.Content != "" {
				blocks = append(blocks, anthropicContentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropicContentBlock{
					Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: tc.Arguments,
				})
			}
			req.Messages = append(req.Messages, anthropicMessage{Role: "assistant", Content: blocks})
		case event.RoleTool:
			req.Messages = append(req.Messages, anthropicMessage{
				Role: "user",
				Content: []anthropicContentBlock{{
					Type: "tool_result", ToolUseID: m.ToolCallID, Content: m.Content,
					IsError: m.Success != nil && !*m.Success,
				}},
			})
		}
	}

	for _, t := range tools {
		req.Tools = append(req.Tools, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: KindParsing, Message: "encode request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindFatal, Message: "build request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: "request failed", Cause: err}
	}
	defer httpResp.Body.Close()

	var resp anthropicResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &Error{Kind: KindParsing, Message: "decode response", Cause: err}
	}

	if resp.Error != nil {
		kind := classifyAnthropicError(httpResp.StatusCode, resp.Error.Type, resp.Error.Message)
		return nil, &Error{Kind: kind, Message: resp.Error.Message}
	}

	out := &Response{
		FinishReason: resp.StopReason,
		Usage: &Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	var texts []string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			texts = append(texts, block.Text)
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, event.ToolCall{
				ID: orNewID(block.ID), Name: block.Name, Arguments: block.Input,
			})
		}
	}
	out.Content = strings.Join(texts, "")

	if out.Content == "" && len(out.ToolCalls) == 0 {
		return nil, &Error{Kind: KindParsing, Message: "response carried neither content nor tool calls"}
	}
	return out, nil
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func classifyAnthropicError(status int, errType, message string) ErrorKind {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(errType, "overloaded"), status == 429, status >= 500:
		return KindTransient
	case strings.Contains(lower, "prompt is too long"),
		strings.Contains(lower, "context length"),
		strings.Contains(lower, "maximum context"):
		return KindContextLength
	default:
		return KindFatal
	}
}
