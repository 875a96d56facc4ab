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
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/flowpilot/agentcore/pkg/config"
)

var cohereDimensions = map[string]int{
	"embed-english-v3.0":            1024,
	"embed-multilingual-v3.0":       1024,
	"embed-english-light-v3.0":      384,
	"embed-multilingual-light-v3.0": 384,
}

// CohereEmbedder embeds through the Cohere embeddings API.
type CohereEmbedder struct {
	cfg       *config.EmbedderProviderConfig
	client    *http.Client
	baseURL   string
	model     string
	dimension int
	batchSize int
}

type cohereEmbedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`

	// InputType: search_document, search_query, classification, clustering.
	InputType string `json:"input_type,omitempty"`

	// Truncate: NONE, START, END.
	Truncate string `json:"truncate,omitempty"`
}

type cohereEmbedResponse struct {
	ID         string      `json:"id"`
	Texts      []string    `json:"texts"`
	Embeddings [][]float32 `json:"embeddings"`
}

type cohereErrorResponse struct {
	Message string `json:"message"`
}

func NewCohereEmbedderFromConfig(cfg *config.EmbedderProviderConfig) (*CohereEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Cohere embedder")
	}

	model := cfg.Model
	if model == "" {
		model = "embed-english-v3.0"
	}
	dimension := cfg.Dimension
	if dimension == 0 {
		if d, ok := cohereDimensions[model]; ok {
			dimension = d
		} else {
			dimension = 1024
		}
	}
	baseURL := cfg.Host
	if baseURL == "" {
		baseURL = "https://api.cohere.ai/v1"
	}
	timeout := 30 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 96 // Cohere's documented maximum per request
	}

	return &CohereEmbedder{
		cfg:       cfg,
		client:    &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		model:     model,
		dimension: dimension,
		batchSize: batchSize,
	}, nil
}

func (e *CohereEmbedder) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + e.cfg.APIKey,
		"Accept":        "application/json",
	}
}

func (e *CohereEmbedder) decodeError(err error) error {
	var httpErr *embedHTTPError
	if errors.As(err, &httpErr) {
		var payload cohereErrorResponse
		if json.Unmarshal(httpErr.body, &payload) == nil && payload.Message != "" {
			return fmt.Errorf("Cohere API error: %s", payload.Message)
		}
	}
	return err
}

func (e *CohereEmbedder) Embed(text string) ([]float32, error) {
	return e.EmbedWithContext(context.Background(), text)
}

func (e *CohereEmbedder) EmbedWithContext(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("received empty embedding from Cohere")
	}
	return vectors[0], nil
}

func (e *CohereEmbedder) EmbedBatch(texts []string) ([][]float32, error) {
	return e.EmbedBatchWithContext(context.Background(), texts)
}

func (e *CohereEmbedder) EmbedBatchWithContext(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vectors, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, vectors...)
	}
	return results, nil
}

func (e *CohereEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	raw, err := postEmbedRequest(ctx, e.client, e.baseURL+"/embed", e.headers(),
		cohereEmbedRequest{Texts: texts, Model: e.model}, e.cfg.MaxRetries, "Cohere")
	if err != nil {
		return nil, e.decodeError(err)
	}

	var resp cohereEmbedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.Embeddings, nil
}

func (e *CohereEmbedder) GetDimension() int { return e.dimension }

func (e *CohereEmbedder) GetModelName() string { return e.model }

func (e *CohereEmbedder) Close() error { return nil }
