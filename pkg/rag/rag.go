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

// Package rag exposes the retrieve(query, k) -> context contract the
// rag_search tool consumes. Indexing, chunking, and embedding internals are
// out of scope here; this package only wires an embedder and a vector store
// together behind that one contract.
package rag

import (
	"context"
	"fmt"

	"github.com/flowpilot/agentcore/pkg/embedders"
	"github.com/flowpilot/agentcore/pkg/vector"
)

// Document is one retrieved passage.
type Document struct {
	Source  string
	Content string
	Score   float32
}

// Retriever is the contract the rag_search tool depends on.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Document, error)
}

// Store retrieves documents by embedding the query and searching a vector
// collection.
type Store struct {
	embedder   embedders.EmbedderProvider
	store      vector.Provider
	collection string
}

// New builds a Store over the given embedder, vector provider, and
// collection name.
func New(embedder embedders.EmbedderProvider, store vector.Provider, collection string) *Store {
	if store == nil {
		store = vector.NilProvider{}
	}
	return &Store{embedder: embedder, store: store, collection: collection}
}

// Retrieve embeds query and returns the top-k nearest documents.
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	if query == "" {
		return nil, fmt.Errorf("rag: query must not be empty")
	}
	if k <= 0 {
		k = 5
	}

	vec, err := s.embedder.Embed(query)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}

	results, err := s.store.Search(ctx, s.collection, vec, k)
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		source, _ := r.Metadata["source"].(string)
		docs = append(docs, Document{Source: source, Content: r.Content, Score: r.Score})
	}
	return docs, nil
}
