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

// Command agentcored wires one configured agent into the HTTP/SSE
// surface and serves it until terminated.
//
// Usage:
//
//	agentcored --config config.yaml
//	agentcored --provider anthropic --model claude-sonnet-4-20250514 --port 8080
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/flowpilot/agentcore"
	"github.com/flowpilot/agentcore/pkg/agentloop"
	"github.com/flowpilot/agentcore/pkg/agenthandler"
	"github.com/flowpilot/agentcore/pkg/auth"
	"github.com/flowpilot/agentcore/pkg/authz"
	"github.com/flowpilot/agentcore/pkg/config"
	"github.com/flowpilot/agentcore/pkg/embedders"
	"github.com/flowpilot/agentcore/pkg/llm"
	"github.com/flowpilot/agentcore/pkg/logger"
	"github.com/flowpilot/agentcore/pkg/mcpclient"
	"github.com/flowpilot/agentcore/pkg/memory"
	"github.com/flowpilot/agentcore/pkg/observability"
	"github.com/flowpilot/agentcore/pkg/rag"
	"github.com/flowpilot/agentcore/pkg/sseserver"
	"github.com/flowpilot/agentcore/pkg/tool"
	"github.com/flowpilot/agentcore/pkg/tool/calculator"
	"github.com/flowpilot/agentcore/pkg/tool/control"
	"github.com/flowpilot/agentcore/pkg/tool/ragsearch"
	"github.com/flowpilot/agentcore/pkg/tool/websearch"
	"github.com/flowpilot/agentcore/pkg/tracing"
	"github.com/flowpilot/agentcore/pkg/utils"
	"github.com/flowpilot/agentcore/pkg/vector"
)

// CLI defines the command-line surface. Flag parsing is all this binary
// does with the config file path: the file (when given) is read with a
// direct yaml.Unmarshal rather than a generalized config loader.
type CLI struct {
	Config string `short:"c" help:"Path to a YAML config file." type:"path"`

	Provider string `help:"LLM provider (anthropic, openai, gemini, ollama)."`
	Model    string `help:"Model name."`
	APIKey   string `name:"api-key" help:"API key (defaults to the provider's environment variable)."`

	Instruction string `help:"System prompt for the agent."`
	MaxSteps    int    `name:"max-steps" help:"Maximum reason-act-observe steps per run." default:"25"`

	Host string `help:"Host to listen on." default:"0.0.0.0"`
	Port int    `help:"Port to listen on." default:"8080"`

	LogLevel string `name:"log-level" help:"Log level (debug, info, warn, error)." default:"info"`

	Version kong.VersionFlag `help:"Print version and exit."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("agentcored"),
		kong.Description("agentcore — a single-agent runtime with an HTTP/SSE surface"),
		kong.UsageOnError(),
		kong.Vars{"version": agentcore.GetVersion().String()},
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Init(level, os.Stderr, "simple")

	if err := run(cli); err != nil {
		slog.Error("agentcored: fatal", "error", err)
		os.Exit(1)
	}
}

func run(cli CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("agentcored: shutting down")
		cancel()
	}()

	cfg, err := loadConfig(cli)
	if err != nil {
		return fmt.Errorf("agentcored: config: %w", err)
	}

	// llm.New layers auto-recovery over context truncation over the base
	// provider; no further wrapping needed here.
	model, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("agentcored: build llm: %w", err)
	}

	mem, err := memory.New(cfg.Agent.Memory, model)
	if err != nil {
		return fmt.Errorf("agentcored: build memory: %w", err)
	}

	registry := tool.NewRegistry()
	if err := registerBuiltinTools(registry, cfg); err != nil {
		return fmt.Errorf("agentcored: register tools: %w", err)
	}

	mcpManager := mcpclient.NewManager(cfg.MCPServers)
	if err := mcpManager.Start(ctx, registry); err != nil {
		return fmt.Errorf("agentcored: start mcp servers: %w", err)
	}
	defer mcpManager.Close()

	tracer, err := tracing.Open(cfg.Tracing, tracing.NewLLMNarrator(model))
	if err != nil {
		return fmt.Errorf("agentcored: open tracing: %w", err)
	}
	defer tracer.Close()

	authzHandler := authz.New(cfg.Authz, nil)

	loop := agentloop.New(
		agentloop.Config{MaxSteps: cfg.Agent.MaxSteps, NewID: uuid.NewString},
		model, registry, mem, authzHandler, tracer, cfg.Agent.SystemPrompt,
	)

	obs, err := observability.NewManager(ctx, &cfg.Observability)
	if err != nil {
		return fmt.Errorf("agentcored: observability: %w", err)
	}
	defer obs.Shutdown(context.Background())

	serverOpts := []sseserver.Option{sseserver.WithObservability(obs)}
	validator, err := auth.NewValidatorFromConfig(&cfg.Auth)
	if err != nil {
		return fmt.Errorf("agentcored: build auth validator: %w", err)
	}
	if validator != nil {
		serverOpts = append(serverOpts, sseserver.WithAuthValidator(validator))
	}

	handler := agenthandler.New(agenthandler.Adapt(loop))
	srv := sseserver.New(cfg.Server, loop, handler, authzHandler, serverOpts...)

	slog.Info("agentcored: ready", "address", cfg.Server.Address())
	return srv.Start(ctx)
}

// loadConfig builds the runtime configuration from a YAML file (if
// --config was given) layered under CLI-flag overrides, then applies
// defaults and validates the result.
func loadConfig(cli CLI) (config.Config, error) {
	var cfg config.Config

	if err := config.LoadEnvFiles(); err != nil {
		return cfg, err
	}

	if cli.Config != "" {
		data, err := os.ReadFile(cli.Config)
		if err != nil {
			return cfg, fmt.Errorf("read %s: %w", cli.Config, err)
		}
		// Expand ${VAR} references before decoding into the typed config,
		// so secrets stay out of the file itself.
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", cli.Config, err)
		}
		expanded, err := yaml.Marshal(config.ExpandEnvVarsInData(raw))
		if err != nil {
			return cfg, fmt.Errorf("expand %s: %w", cli.Config, err)
		}
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", cli.Config, err)
		}
	}

	if cli.Provider != "" {
		cfg.LLM.Provider = config.LLMProvider(cli.Provider)
	}
	if cli.Model != "" {
		cfg.LLM.Model = cli.Model
	}
	if cli.APIKey != "" {
		cfg.LLM.APIKey = cli.APIKey
	}
	if cli.Instruction != "" {
		cfg.Agent.SystemPrompt = cli.Instruction
	}
	if cli.MaxSteps != 0 {
		cfg.Agent.MaxSteps = cli.MaxSteps
	}
	if cfg.Agent.Name == "" {
		cfg.Agent.Name = "assistant"
	}
	if cli.Host != "" {
		cfg.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		cfg.Server.Port = cli.Port
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// registerBuiltinTools wires the in-process tools ToolsConfig/RAGConfig
// select. assistant_done and report_progress are always registered: the
// agent loop's termination path depends on assistant_done being callable.
func registerBuiltinTools(registry *tool.Registry, cfg config.Config) error {
	for _, t := range []tool.Tool{control.NewDone(), control.NewProgress()} {
		if err := registry.Register(t); err != nil {
			return err
		}
	}

	if cfg.Tools.Calculator == nil || *cfg.Tools.Calculator {
		if err := registry.Register(calculator.New()); err != nil {
			return err
		}
	}

	if cfg.Tools.WebSearch != nil && *cfg.Tools.WebSearch {
		endpoint := os.Getenv("WEB_SEARCH_ENDPOINT")
		apiKey := os.Getenv("WEB_SEARCH_API_KEY")
		if err := registry.Register(websearch.New(endpoint, apiKey, 5)); err != nil {
			return err
		}
	}

	if cfg.RAG != nil {
		stateDir, err := utils.EnsureStateDir("")
		if err != nil {
			return fmt.Errorf("create state directory: %w", err)
		}
		providerCfg := &vector.ProviderConfig{
			Type:    vector.ProviderChromem,
			Chromem: &vector.ChromemConfig{PersistPath: filepath.Join(stateDir, "vectors")},
		}
		providerCfg.SetDefaults()
		store, err := vector.NewProvider(providerCfg)
		if err != nil {
			return fmt.Errorf("build rag vector store: %w", err)
		}
		embedder := embedders.NewOllamaEmbedder()
		collection := cfg.RAG.Collection
		if collection == "" {
			collection = "default"
		}
		ragStore := rag.New(embedder, store, collection)
		if err := registry.Register(ragsearch.New(ragStore, cfg.RAG.TopK)); err != nil {
			return err
		}
	}

	return nil
}
