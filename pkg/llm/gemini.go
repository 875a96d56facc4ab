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
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/flowpilot/agentcore/pkg/event"
)

// Gemini implements LLM against the official google.golang.org/genai SDK.
type Gemini struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float64
}

// GeminiOptions configures a Gemini provider.
type GeminiOptions struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// NewGemini builds a Gemini provider.
func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: opts.APIKey})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Gemini{client: client, model: model, maxTokens: maxTokens, temperature: opts.Temperature}, nil
}

func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Generate(ctx context.Context, messages []event.Message, tools []event.ToolDescriptor) (*Response, error) {
	var contents []*genai.Content
	var systemInstruction *genai.Content

	for _, m := range messages {
		switch m.Role {
		case event.RoleSystem, event.RoleDeveloper:
			systemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case event.RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case event.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal(tc.Arguments, &args)
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Name, args))
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
		case event.RoleTool:
			resp := map[string]any{"result": m.Content}
			contents = append(contents, genai.NewContentFromParts(
				[]*genai.Part{genai.NewPartFromFunctionResponse(m.ToolCallID, resp)}, genai.RoleUser))
		}
	}

	var genTools []*genai.Tool
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			var schema map[string]any
			_ = json.Unmarshal(t.InputSchema, &schema)
			decls = append(decls, &genai.FunctionDeclaration{
				Name: t.Name, Description: t.Description, ParametersJsonSchema: schema,
			})
		}
		genTools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens:   int32(g.maxTokens),
		Temperature:       genai.Ptr(float32(g.temperature)),
		SystemInstruction: systemInstruction,
		Tools:             genTools,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, &Error{Kind: classifyGeminiError(err), Message: "generate content", Cause: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &Error{Kind: KindParsing, Message: "response carried no candidates"}
	}

	out := &Response{FinishReason: string(resp.Candidates[0].FinishReason)}
	if resp.UsageMetadata != nil {
		out.Usage = &Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	var texts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			// The SDK may leave FunctionCall.ID empty; the loop needs a
			// unique id to correlate the tool response.
			out.ToolCalls = append(out.ToolCalls, event.ToolCall{
				ID: orNewID(part.FunctionCall.ID), Name: part.FunctionCall.Name, Arguments: args,
			})
		}
	}
	out.Content = strings.Join(texts, "")

	if out.Content == "" && len(out.ToolCalls) == 0 {
		return nil, &Error{Kind: KindParsing, Message: "response carried neither content nor tool calls"}
	}
	return out, nil
}

func classifyGeminiError(err error) ErrorKind {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "token") && strings.Contains(msg, "exceed"):
		return KindContextLength
	case strings.Contains(msg, "429"), strings.Contains(msg, "unavailable"), strings.Contains(msg, "deadline"):
		return KindTransient
	default:
		return KindFatal
	}
}
