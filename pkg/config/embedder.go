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

package config

import "fmt"

// EmbedderProviderConfig configures a text-embedding backend for RAG.
type EmbedderProviderConfig struct {
	Type       string `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"title=Type,enum=openai,enum=cohere,enum=ollama"`
	Model      string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model"`
	APIKey     string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key"`
	Host       string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host"`
	Dimension  int    `yaml:"dimension,omitempty" json:"dimension,omitempty" jsonschema:"title=Dimension"`
	Timeout    int    `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout (seconds),default=30"`
	MaxRetries int    `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"title=Max Retries,default=3"`

	// BatchSize bounds how many texts go into one batch-embedding request.
	// Provider-specific default when zero.
	BatchSize int `yaml:"batch_size,omitempty" json:"batch_size,omitempty" jsonschema:"title=Batch Size"`
}

// SetDefaults applies default values.
func (c *EmbedderProviderConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Validate checks the embedder configuration.
func (c *EmbedderProviderConfig) Validate() error {
	if c.Type != "ollama" && c.APIKey == "" {
		return fmt.Errorf("embedder %q: api_key is required", c.Type)
	}
	return nil
}
