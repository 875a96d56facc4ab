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

package embedders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/flowpilot/agentcore/pkg/config"
)

// Ollama's llama runner can crash (SIGABRT, "decode: cannot decode
// batches with this context") when it receives concurrent embedding
// requests, so all requests through this process are serialized.
var ollamaEmbedMu sync.Mutex

// OllamaEmbedder embeds through a local Ollama instance's /api/embeddings
// endpoint. No API key; the default pairing is nomic-embed-text on
// localhost:11434.
type OllamaEmbedder struct {
	cfg    *config.EmbedderProviderConfig
	client *http.Client
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaEmbedder builds an embedder with the zero-config defaults.
func NewOllamaEmbedder() *OllamaEmbedder {
	e, _ := NewOllamaEmbedderFromConfig(&config.EmbedderProviderConfig{
		Type:       "ollama",
		Model:      "nomic-embed-text",
		Host:       "http://localhost:11434",
		Dimension:  768,
		Timeout:    30,
		MaxRetries: 3,
	})
	return e
}

func NewOllamaEmbedderFromConfig(cfg *config.EmbedderProviderConfig) (*OllamaEmbedder, error) {
	return &OllamaEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}, nil
}

func (e *OllamaEmbedder) Embed(text string) ([]float32, error) {
	return e.EmbedWithContext(context.Background(), text)
}

func (e *OllamaEmbedder) EmbedWithContext(ctx context.Context, text string) ([]float32, error) {
	ollamaEmbedMu.Lock()
	defer ollamaEmbedMu.Unlock()

	slog.Debug("Ollama embedding request", "model", e.cfg.Model, "text_length", len(text))

	raw, err := postEmbedRequest(ctx, e.client, e.cfg.Host+"/api/embeddings", nil,
		ollamaEmbedRequest{Model: e.cfg.Model, Prompt: text}, e.cfg.MaxRetries, "ollama")
	if err != nil {
		slog.Error("Ollama embedding failed", "error", err, "model", e.cfg.Model)
		return nil, err
	}

	var resp ollamaEmbedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("received empty embedding from Ollama")
	}
	return resp.Embedding, nil
}

func (e *OllamaEmbedder) GetDimension() int { return e.cfg.Dimension }

func (e *OllamaEmbedder) GetModelName() string { return e.cfg.Model }

func (e *OllamaEmbedder) Close() error { return nil }
