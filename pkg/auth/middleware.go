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

package auth

import (
	"net/http"
	"strings"
)

// HTTPMiddleware rejects requests without a valid `Authorization: Bearer
// <token>` header and attaches the validated claims to the request context
// for handlers downstream.
func (v *JWTValidator) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			unauthorized(w, "Missing Authorization header")
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			unauthorized(w, "Invalid Authorization format, expected: Bearer <token>")
			return
		}

		claims, err := v.ValidateToken(r.Context(), token)
		if err != nil {
			unauthorized(w, "Unauthorized: "+err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// GetClaims returns the claims the middleware attached to r, or nil when
// the request was not authenticated.
func GetClaims(r *http.Request) *Claims {
	return ClaimsFromContext(r.Context())
}

// RequireRole wraps the validator's middleware with a role check: requests
// whose token carries none of allowedRoles get a 403.
func RequireRole(v *JWTValidator, allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return v.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r)
			if claims == nil || !claims.HasAnyRole(allowedRoles...) {
				forbidden(w, "Forbidden: insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// RequireTenant wraps the validator's middleware with a tenant check.
func RequireTenant(v *JWTValidator, allowedTenants ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return v.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r)
			if claims == nil {
				unauthorized(w, "Unauthorized")
				return
			}
			for _, t := range allowedTenants {
				if claims.TenantID == t {
					next.ServeHTTP(w, r)
					return
				}
			}
			forbidden(w, "Forbidden: access denied for this tenant")
		}))
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	http.Error(w, `{"error":"`+msg+`"}`, http.StatusUnauthorized)
}

func forbidden(w http.ResponseWriter, msg string) {
	http.Error(w, `{"error":"`+msg+`"}`, http.StatusForbidden)
}
