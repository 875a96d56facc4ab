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

// Package sseserver is the HTTP/SSE surface: one POST starts a run and
// streams its events back as Server-Sent Events, while a handful of plain
// JSON endpoints let a client answer (or cancel, or reconfigure) the
// out-of-band tool authorization requests a run raises.
package sseserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flowpilot/agentcore/pkg/agentloop"
	"github.com/flowpilot/agentcore/pkg/auth"
	"github.com/flowpilot/agentcore/pkg/authz"
	"github.com/flowpilot/agentcore/pkg/config"
	"github.com/flowpilot/agentcore/pkg/event"
	"github.com/flowpilot/agentcore/pkg/observability"
)

// Runner is the subset of agenthandler.Handler the server drives. Declared
// locally so tests can substitute a stub loop.
type Runner interface {
	Stream(ctx context.Context, input event.RunAgentInput, emit func(event.Event) bool)
}

// Server is the HTTP/SSE surface for one agentloop.Loop.
type Server struct {
	cfg    config.ServerConfig
	loop   *agentloop.Loop
	runner Runner
	authz  *authz.Handler

	authValidator auth.TokenValidator
	obs           *observability.Manager

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithAuthValidator enables JWT authentication on the HTTP surface.
func WithAuthValidator(v auth.TokenValidator) Option {
	return func(s *Server) { s.authValidator = v }
}

// WithObservability wires OTel tracing and Prometheus metrics around every
// request.
func WithObservability(obs *observability.Manager) Option {
	return func(s *Server) { s.obs = obs }
}

// New builds a Server. runner drives one agentloop.Loop run per stream
// request; authzHandler gates tool calls and answers the authorization
// REST endpoints.
func New(cfg config.ServerConfig, loop *agentloop.Loop, runner Runner, authzHandler *authz.Handler, opts ...Option) *Server {
	cfg.SetDefaults()
	s := &Server{cfg: cfg, loop: loop, runner: runner, authz: authzHandler}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the complete route tree with its middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)

	if s.obs != nil {
		r.Use(observability.HTTPMiddleware(s.obs.Tracer(), s.obs.Metrics()))
	}

	r.Get("/health", s.handleHealth)

	if s.obs != nil && s.obs.MetricsEnabled() {
		r.Handle(s.obs.MetricsEndpoint(), s.obs.MetricsHandler())
	}

	authed := chi.NewRouter()
	if s.authValidator != nil {
		if v, ok := s.authValidator.(interface {
			HTTPMiddleware(http.Handler) http.Handler
		}); ok {
			authed.Use(v.HTTPMiddleware)
		}
	}
	authed.Post("/agents/stream", s.handleStream)
	authed.Post("/stream", s.handleStream)
	authed.Post("/agents/clear-memory", s.handleClearMemory)
	authed.Post("/memory/clear", s.handleClearMemory)
	authed.Post("/authorization", s.handleAuthorizationResponse)
	authed.Get("/authorization/pending", s.handleAuthorizationPending)
	authed.Post("/authorization/cancel", s.handleAuthorizationCancel)
	authed.Get("/authorization/config", s.handleAuthorizationConfigGet)
	authed.Post("/authorization/config", s.handleAuthorizationConfigSet)
	r.Mount("/", authed)

	return r
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams can run indefinitely.
		IdleTimeout:  120 * time.Second,
	}

	slog.Info("sseserver: starting", "address", s.cfg.Address())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	slog.Info("sseserver: shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("sseserver: shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// loggingMiddleware logs each request without wrapping the ResponseWriter,
// since wrapping breaks http.Flusher for SSE streams.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("sseserver: request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	cors := s.cfg.CORS
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if cors == nil {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, allowed := range cors.AllowedOrigins {
				if allowed == "*" || allowed == origin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
			if cors.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
