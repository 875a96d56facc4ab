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

// Package embedders implements the text-embedding backends the RAG
// retrieval path can be configured with: a local Ollama instance, the
// OpenAI embeddings API, and the Cohere embeddings API. All three satisfy
// EmbedderProvider; pkg/rag only ever sees the interface.
package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flowpilot/agentcore/pkg/config"
	"github.com/flowpilot/agentcore/pkg/registry"
)

// EmbedderProvider turns text into an embedding vector.
type EmbedderProvider interface {
	Embed(text string) ([]float32, error)

	// GetDimension returns the width of the vectors this provider emits.
	GetDimension() int

	// GetModelName names the embedding model in use.
	GetModelName() string

	Close() error
}

// EmbedderRegistry holds named embedder instances.
type EmbedderRegistry struct {
	*registry.BaseRegistry[EmbedderProvider]
}

func NewEmbedderRegistry() *EmbedderRegistry {
	return &EmbedderRegistry{BaseRegistry: registry.NewBaseRegistry[EmbedderProvider]()}
}

// RegisterEmbedder registers provider under name.
func (r *EmbedderRegistry) RegisterEmbedder(name string, provider EmbedderProvider) error {
	if name == "" {
		return fmt.Errorf("embedder name cannot be empty")
	}
	if provider == nil {
		return fmt.Errorf("embedder provider cannot be nil")
	}
	return r.Register(name, provider)
}

// CreateEmbedderFromConfig builds the provider cfg.Type selects and
// registers it under name.
func (r *EmbedderRegistry) CreateEmbedderFromConfig(name string, cfg *config.EmbedderProviderConfig) (EmbedderProvider, error) {
	if name == "" {
		return nil, fmt.Errorf("embedder name cannot be empty")
	}
	if cfg == nil {
		return nil, fmt.Errorf("embedder config cannot be nil")
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedder config: %w", err)
	}

	var provider EmbedderProvider
	var err error
	switch cfg.Type {
	case "ollama":
		provider, err = NewOllamaEmbedderFromConfig(cfg)
	case "openai":
		provider, err = NewOpenAIEmbedderFromConfig(cfg)
	case "cohere":
		provider, err = NewCohereEmbedderFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedder type: %s", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder provider: %w", err)
	}

	if err := r.RegisterEmbedder(name, provider); err != nil {
		return nil, fmt.Errorf("failed to register embedder: %w", err)
	}
	return provider, nil
}

// GetEmbedder looks up a registered embedder by name.
func (r *EmbedderRegistry) GetEmbedder(name string) (EmbedderProvider, error) {
	provider, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("embedder provider '%s' not found", name)
	}
	return provider, nil
}

// ListEmbedders returns the model names of all registered embedders.
func (r *EmbedderRegistry) ListEmbedders() []string {
	names := make([]string, 0, r.Count())
	for _, provider := range r.List() {
		names = append(names, provider.GetModelName())
	}
	return names
}

// postEmbedRequest is the shared request core for the REST embedders:
// marshal, POST with the given headers, retry transport failures and
// non-200s with linear backoff, and return the final response body.
func postEmbedRequest(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any, maxRetries int, provider string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var resp *http.Response
	for attempt := 0; attempt < maxRetries; attempt++ {
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err = client.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			break
		}
		if err == nil && attempt == maxRetries-1 {
			// Keep the last failed response so the caller can report
			// the provider's error payload.
			break
		}
		if resp != nil {
			resp.Body.Close()
			resp = nil
		}
		if attempt < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &embedHTTPError{provider: provider, status: resp.StatusCode, body: raw}
	}
	return raw, nil
}

// embedHTTPError carries a non-200 embedding response for provider-specific
// error decoding.
type embedHTTPError struct {
	provider string
	status   int
	body     []byte
}

func (e *embedHTTPError) Error() string {
	return fmt.Sprintf("%s API returned status %d: %s", e.provider, e.status, string(e.body))
}
