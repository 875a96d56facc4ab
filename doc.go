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

// Package agentcore is an autonomous agent runtime: it drives an LLM
// through reason-act-observe cycles, dispatches tool calls (in-process
// tools, control-plane tools, and subprocess tool providers speaking MCP
// or the go-plugin protocol), and streams typed events to clients over
// Server-Sent Events, with human-in-the-loop authorization of tool calls.
//
// # Quick start
//
// Run the server against a config file:
//
//	agentcored --config agent.yaml
//
// or zero-config, picking the provider from the environment:
//
//	ANTHROPIC_API_KEY=... agentcored --port 8080
//
// then POST a run and read the event stream:
//
//	curl -N -X POST localhost:8080/agents/stream \
//	  -H 'Content-Type: application/json' \
//	  -d '{"threadId":"t1","runId":"r1","messages":[{"id":"m1","role":"user","content":"What is 2+2?"}]}'
//
// # Layout
//
// The runtime is assembled from small packages under pkg/: event (wire
// event and message model), tool and its subpackages (tool contract and
// built-ins), mcpclient (subprocess tool providers), memory (conversation
// memory strategies), loopdetect (repetition detection), llm (provider
// abstraction and recovery wrappers), authz (tool-call authorization),
// agentloop (the reason-act-observe driver), agenthandler (run lifecycle
// events), sseserver (the HTTP/SSE surface), rag/vector/embedders
// (retrieval), tracing (per-run JSONL transcript), and observability
// (OTel/Prometheus telemetry). cmd/agentcored wires them together.
package agentcore
