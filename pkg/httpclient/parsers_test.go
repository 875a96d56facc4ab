package httpclient

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func headersOf(kv map[string]string) http.Header {
	h := http.Header{}
	for k, v := range kv {
		h.Set(k, v)
	}
	return h
}

func TestParseOpenAIHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    RateLimitInfo
	}{
		{
			name: "empty",
		},
		{
			name:    "retry after seconds",
			headers: map[string]string{"Retry-After": "30"},
			want:    RateLimitInfo{RetryAfter: 30 * time.Second},
		},
		{
			name:    "unparseable retry after ignored",
			headers: map[string]string{"Retry-After": "soon"},
		},
		{
			name:    "token reset wins over request reset",
			headers: map[string]string{"x-ratelimit-reset-tokens": "1640995200", "x-ratelimit-reset-requests": "1640995300"},
			want:    RateLimitInfo{ResetTime: 1640995200},
		},
		{
			name:    "request reset when token reset absent",
			headers: map[string]string{"x-ratelimit-reset-requests": "1640995300"},
			want:    RateLimitInfo{ResetTime: 1640995300},
		},
		{
			name: "remaining counters",
			headers: map[string]string{
				"x-ratelimit-remaining-requests": "42",
				"x-ratelimit-remaining-tokens":   "90000",
			},
			want: RateLimitInfo{RequestsRemaining: 42, TokensRemaining: 90000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOpenAIHeaders(headersOf(tt.headers)))
		})
	}
}

func TestParseAnthropicHeaders(t *testing.T) {
	reset := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		headers map[string]string
		want    RateLimitInfo
	}{
		{
			name: "empty",
		},
		{
			name:    "retry after seconds",
			headers: map[string]string{"retry-after": "12"},
			want:    RateLimitInfo{RetryAfter: 12 * time.Second},
		},
		{
			name:    "input tokens reset preferred",
			headers: map[string]string{"anthropic-ratelimit-input-tokens-reset": reset.Format(time.RFC3339)},
			want:    RateLimitInfo{ResetTime: reset.Unix()},
		},
		{
			name:    "requests reset as fallback",
			headers: map[string]string{"anthropic-ratelimit-requests-reset": reset.Format(time.RFC3339)},
			want:    RateLimitInfo{ResetTime: reset.Unix()},
		},
		{
			name:    "unparseable reset timestamp ignored",
			headers: map[string]string{"anthropic-ratelimit-requests-reset": "tomorrow"},
		},
		{
			name: "remaining counters",
			headers: map[string]string{
				"anthropic-ratelimit-requests-remaining":      "7",
				"anthropic-ratelimit-input-tokens-remaining":  "10000",
				"anthropic-ratelimit-output-tokens-remaining": "2000",
			},
			want: RateLimitInfo{RequestsRemaining: 7, InputTokensRemaining: 10000, OutputTokensRemaining: 2000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAnthropicHeaders(headersOf(tt.headers)))
		})
	}
}
