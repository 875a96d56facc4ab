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

// Package websearch implements the built-in web_search tool over a
// configurable HTTP search endpoint.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/flowpilot/agentcore/pkg/httpclient"
	"github.com/flowpilot/agentcore/pkg/tool"
)

const name = "web_search"

var schema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string"},
		"max_results": {"type": "integer", "default": 5}
	},
	"required": ["query"]
}`)

// Result is a single web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearch calls a configured search endpoint (e.g. an internal meta-search
// proxy) that returns a JSON array of Result.
type WebSearch struct {
	client     *httpclient.Client
	endpoint   string
	apiKey     string
	maxResults int
}

// New builds a web_search tool against endpoint, authenticating with apiKey
// when non-empty.
func New(endpoint, apiKey string, maxResults int) *WebSearch {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &WebSearch{
		client:     httpclient.New(httpclient.WithMaxRetries(2)),
		endpoint:   endpoint,
		apiKey:     apiKey,
		maxResults: maxResults,
	}
}

func (t *WebSearch) Metadata() tool.Metadata {
	return tool.Metadata{
		Name:        name,
		Description: "Searches the web and returns a short list of titles, URLs, and snippets.",
		InputSchema: schema,
	}
}

type request struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

func (t *WebSearch) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var req request
	if err := json.Unmarshal(args, &req); err != nil {
		return "", tool.NewError(name, fmt.Sprintf("invalid arguments: %s", err))
	}
	if strings.TrimSpace(req.Query) == "" {
		return "", tool.NewError(name, "query must not be empty")
	}
	if t.endpoint == "" {
		return "", tool.NewError(name, "no search endpoint configured")
	}
	limit := req.MaxResults
	if limit <= 0 {
		limit = t.maxResults
	}

	u := fmt.Sprintf("%s?q=%s", t.endpoint, url.QueryEscape(req.Query))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", tool.NewError(name, fmt.Sprintf("build request: %s", err))
	}
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", tool.NewError(name, fmt.Sprintf("search request failed: %s", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", tool.NewError(name, fmt.Sprintf("search endpoint returned status %d", resp.StatusCode))
	}

	var results []Result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", tool.NewError(name, fmt.Sprintf("decode search response: %s", err))
	}
	if len(results) > limit {
		results = results[:limit]
	}
	if len(results) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s\n%s\n%s", i+1, r.Title, r.URL, r.Snippet)
	}
	return b.String(), nil
}
