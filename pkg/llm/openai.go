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

	"github.com/flowpilot/agentcore/pkg/event"
	"github.com/flowpilot/agentcore/pkg/httpclient"
)

// OpenAICompatible implements LLM against the OpenAI chat-completions wire
// format. It also serves Ollama, which exposes the same shape at
// /v1/chat/completions.
type OpenAICompatible struct {
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	client      *httpclient.Client
}

// OpenAIOptions configures an OpenAICompatible provider.
type OpenAIOptions struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

const openAIDefaultBaseURL = "https://api.openai.com/v1/chat/completions"

// NewOpenAI builds a provider against the real OpenAI API.
func NewOpenAI(opts OpenAIOptions) *OpenAICompatible {
	return newOpenAICompatible(opts, openAIDefaultBaseURL)
}

// NewOllama builds a provider against a local Ollama server's
// OpenAI-compatible endpoint.
func NewOllama(opts OpenAIOptions) *OpenAICompatible {
	base := opts.BaseURL
	if base == "" {
		base = "http://localhost:11434/v1/chat/completions"
	}
	return newOpenAICompatible(opts, base)
}

func newOpenAICompatible(opts OpenAIOptions, defaultBaseURL string) *OpenAICompatible {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &OpenAICompatible{
		apiKey:      opts.APIKey,
		model:       opts.Model,
		baseURL:     baseURL,
		maxTokens:   maxTokens,
		temperature: opts.Temperature,
		client: httpclient.New(
			httpclient.WithRetryStrategy(httpclient.DefaultStrategy),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
	}
}

func (o *OpenAICompatible) Model() string { return o.model }

type openAIFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func (o *OpenAICompatible) Generate(ctx context.Context, messages []event.Message, tools []event.ToolDescriptor) (*Response, error) {
	req := openAIRequest{Model: o.model, MaxTokens: o.maxTokens, Temperature: o.temperature}

	for _, m := range messages {
		switch m.Role {
		case event.RoleSystem, event.RoleDeveloper:
			req.Messages = append(req.Messages, openAIMessage{Role: "system", Content: m.Content})
		case event.RoleUser:
			req.Messages = append(req.Messages, openAIMessage{Role: "user", Content: m.Content})
		case event.RoleAssistant:
			msg := openAIMessage{Role: "assistant", Content: m.Content}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openAIToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					}{Name: tc.Name, Arguments: string(tc.Arguments)},
				})
			}
			req.Messages = append(req.Messages, msg)
		case event.RoleTool:
			req.Messages = append(req.Messages, openAIMessage{Role: "tool", Content: m.Content, ToolCallID: m.ToolCallID})
		}
	}

	for _, t := range tools {
		req.Tools = append(req.Tools, openAITool{Type: "function", Function: openAIFunction{
			Name: t.Name, Description: t.Description, Parameters: t.InputSchema,
		}})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: KindParsing, Message: "encode request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindFatal, Message: "build request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	httpResp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Message: "request failed", Cause: err}
	}
	defer httpResp.Body.Close()

	var resp openAIResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, &Error{Kind: KindParsing, Message: "decode response", Cause: err}
	}

	if resp.Error != nil {
		return nil, &Error{Kind: classifyOpenAIError(httpResp.StatusCode, resp.Error.Code, resp.Error.Type), Message: resp.Error.Message}
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Kind: KindParsing, Message: "response carried no choices"}
	}

	choice := resp.Choices[0]
	out := &Response{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, event.ToolCall{
			ID: tc.ID, Name: tc.Function.Name, Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}

	if out.Content == "" && len(out.ToolCalls) == 0 {
		return nil, &Error{Kind: KindParsing, Message: "response carried neither content nor tool calls"}
	}
	return out, nil
}

func classifyOpenAIError(status int, code, errType string) ErrorKind {
	switch {
	case code == "context_length_exceeded", strings.Contains(errType, "context_length"):
		return KindContextLength
	case status == 429, status >= 500:
		return KindTransient
	case status == 401, status == 403:
		return KindFatal
	default:
		return KindFatal
	}
}
