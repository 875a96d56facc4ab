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

// Package auth gates the HTTP/SSE surface with JWT bearer tokens.
//
// A JWTValidator fetches and caches the identity provider's JWKS, verifies
// inbound tokens against it, and exposes an http.Handler middleware that
// attaches the validated Claims to the request context. This is inbound
// request authentication; per-tool-call approval is a separate concern
// handled by pkg/authz.
package auth

import "context"

// contextKey keeps the claims context key private to this package.
type contextKey string

const claimsKey contextKey = "auth_claims"

// Claims carries the identity extracted from a validated token. The field
// set covers what common identity providers emit; anything else lands in
// Custom keyed by claim name.
type Claims struct {
	Subject  string         `json:"sub"`
	Email    string         `json:"email,omitempty"`
	Role     string         `json:"role,omitempty"`
	TenantID string         `json:"tenant_id,omitempty"`
	Custom   map[string]any `json:"-"`
}

// GetClaim looks up a non-standard claim by name.
func (c *Claims) GetClaim(key string) (any, bool) {
	v, ok := c.Custom[key]
	return v, ok
}

// GetStringClaim looks up a non-standard claim and returns it as a string,
// or "" when absent or not a string.
func (c *Claims) GetStringClaim(key string) string {
	if v, ok := c.Custom[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// HasRole reports whether the token's role claim equals role.
func (c *Claims) HasRole(role string) bool { return c.Role == role }

// HasAnyRole reports whether the token's role claim matches any of roles.
func (c *Claims) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

// ClaimsFromContext returns the claims attached by the middleware, or nil
// when the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// ContextWithClaims attaches claims to ctx.
func ContextWithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}
