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

// Package ragsearch implements the rag_search built-in tool, delegating
// retrieval to a rag.Retriever.
package ragsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowpilot/agentcore/pkg/rag"
	"github.com/flowpilot/agentcore/pkg/tool"
)

const name = "rag_search"

var schema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string"},
		"top_k": {"type": "integer", "default": 5}
	},
	"required": ["query"]
}`)

// RagSearch is the rag_search built-in tool.
type RagSearch struct {
	retriever Retriever
	defaultK  int
}

// Retriever is the narrow dependency this tool needs from pkg/rag.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]rag.Document, error)
}

// New builds the rag_search tool over a retriever and default top-k.
func New(retriever Retriever, defaultK int) *RagSearch {
	if defaultK <= 0 {
		defaultK = 5
	}
	return &RagSearch{retriever: retriever, defaultK: defaultK}
}

func (t *RagSearch) Metadata() tool.Metadata {
	return tool.Metadata{
		Name:        name,
		Description: "Searches the configured document collection and returns the top matching passages.",
		InputSchema: schema,
	}
}

type request struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

func (t *RagSearch) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var req request
	if err := json.Unmarshal(args, &req); err != nil {
		return "", tool.NewError(name, fmt.Sprintf("invalid arguments: %s", err))
	}
	if strings.TrimSpace(req.Query) == "" {
		return "", tool.NewError(name, "query must not be empty")
	}
	k := req.TopK
	if k <= 0 {
		k = t.defaultK
	}

	docs, err := t.retriever.Retrieve(ctx, req.Query, k)
	if err != nil {
		return "", tool.NewError(name, err.Error())
	}
	if len(docs) == 0 {
		return "No matching documents found.", nil
	}

	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Document %d (Score: %.4f):\nSource: %s\nContent: %s", i+1, d.Score, d.Source, d.Content)
	}
	return b.String(), nil
}
