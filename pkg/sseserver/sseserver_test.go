package sseserver

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpilot/agentcore/pkg/agentloop"
	"github.com/flowpilot/agentcore/pkg/authz"
	"github.com/flowpilot/agentcore/pkg/config"
	"github.com/flowpilot/agentcore/pkg/event"
	"github.com/flowpilot/agentcore/pkg/memory"
	"github.com/flowpilot/agentcore/pkg/tool"
)

// stubRunner replays a fixed event sequence, ignoring the input.
type stubRunner struct {
	events []event.Event
}

func (s stubRunner) Stream(ctx context.Context, input event.RunAgentInput, emit func(event.Event) bool) {
	for _, e := range s.events {
		if !emit(e) {
			return
		}
	}
}

func newTestServer(t *testing.T, runner Runner, authzHandler *authz.Handler) *Server {
	t.Helper()
	mem, err := memory.New(config.MemoryConfig{EvictionStrategy: config.MemoryFIFOWindow, MaxHistorySteps: 50}, nil)
	require.NoError(t, err)
	loop := agentloop.New(agentloop.Config{MaxSteps: 5}, nil, tool.NewRegistry(), mem, nil, nil, "")
	cfg := config.ServerConfig{KeepAliveSeconds: 60}
	return New(cfg, loop, runner, authzHandler)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, stubRunner{}, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClearMemoryEndpoint(t *testing.T) {
	srv := newTestServer(t, stubRunner{}, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/agents/clear-memory", "application/json", strings.NewReader(""))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthorizationPendingEmpty(t *testing.T) {
	h := authz.New(config.AuthorizationConfig{}, nil)
	srv := newTestServer(t, stubRunner{}, h)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/authorization/pending")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthorizationConfigRoundTrip(t *testing.T) {
	h := authz.New(config.AuthorizationConfig{}, nil)
	srv := newTestServer(t, stubRunner{}, h)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/authorization/config", "application/json", strings.NewReader(`{"mode":"always_allow"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, config.AuthorizationAlwaysAllow, h.Config().Mode)
}

func TestStreamSendsSSEFramesInOrder(t *testing.T) {
	events := []event.Event{
		event.TextMessageStart("m1", "assistant"),
		event.TextMessageContent("m1", "hi"),
		event.TextMessageEnd("m1"),
	}
	srv := newTestServer(t, stubRunner{events: events}, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(ts.URL+"/agents/stream", "application/json", strings.NewReader(`{"messages":[{"id":"u1","role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) >= 6 {
			break
		}
	}
	require.GreaterOrEqual(t, len(lines), 6)
	assert.Equal(t, "event: TEXT_MESSAGE_START", lines[0])
	assert.Equal(t, "event: TEXT_MESSAGE_CONTENT", lines[2])
	assert.Equal(t, "event: TEXT_MESSAGE_END", lines[4])
}

func TestStreamRejectsEmptyMessages(t *testing.T) {
	srv := newTestServer(t, stubRunner{}, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/agents/stream", "application/json", strings.NewReader(`{"messages":[]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
