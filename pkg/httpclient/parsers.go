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

package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

// ParseAnthropicHeaders reads Anthropic's rate-limit response headers.
// Reset timestamps are RFC3339; the first parseable one of the three
// reset headers wins.
func ParseAnthropicHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{RetryAfter: retryAfterSeconds(headers)}

	for _, h := range []string{
		"anthropic-ratelimit-input-tokens-reset",
		"anthropic-ratelimit-output-tokens-reset",
		"anthropic-ratelimit-requests-reset",
	} {
		if v := headers.Get(h); v != "" {
			if reset, err := time.Parse(time.RFC3339, v); err == nil {
				info.ResetTime = reset.Unix()
				break
			}
		}
	}

	info.RequestsRemaining = intHeader(headers, "anthropic-ratelimit-requests-remaining")
	info.InputTokensRemaining = intHeader(headers, "anthropic-ratelimit-input-tokens-remaining")
	info.OutputTokensRemaining = intHeader(headers, "anthropic-ratelimit-output-tokens-remaining")
	return info
}

// ParseOpenAIHeaders reads OpenAI's rate-limit response headers. Reset
// values are unix timestamps.
func ParseOpenAIHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{RetryAfter: retryAfterSeconds(headers)}

	for _, h := range []string{"x-ratelimit-reset-tokens", "x-ratelimit-reset-requests"} {
		if v := headers.Get(h); v != "" {
			if reset, err := strconv.ParseInt(v, 10, 64); err == nil {
				info.ResetTime = reset
				break
			}
		}
	}

	info.RequestsRemaining = intHeader(headers, "x-ratelimit-remaining-requests")
	info.TokensRemaining = intHeader(headers, "x-ratelimit-remaining-tokens")
	return info
}

func retryAfterSeconds(headers http.Header) time.Duration {
	v := headers.Get("Retry-After")
	if v == "" {
		return 0
	}
	seconds, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func intHeader(headers http.Header, name string) int {
	n, _ := strconv.Atoi(headers.Get(name))
	return n
}
