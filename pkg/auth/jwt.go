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
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenValidator is satisfied by anything that turns a bearer token string
// into validated claims.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

// JWTValidatorConfig configures a JWTValidator.
type JWTValidatorConfig struct {
	JWKSURL  string
	Issuer   string
	Audience string

	// RefreshInterval bounds how often the cached JWKS is re-fetched to
	// pick up key rotation. Defaults to 15 minutes.
	RefreshInterval time.Duration
}

// JWTValidator verifies tokens against a provider's JWKS endpoint. The key
// set is fetched once at construction and refreshed in the background.
type JWTValidator struct {
	jwksURL  string
	issuer   string
	audience string
	cache    *jwk.Cache
}

// standard claims the validator lifts into named Claims fields; everything
// else goes to Claims.Custom.
var reservedClaims = map[string]bool{
	"sub": true, "email": true, "role": true, "tenant_id": true,
	"iss": true, "aud": true, "exp": true, "iat": true, "nbf": true,
}

// NewJWTValidator builds a validator and performs the initial JWKS fetch,
// so a misconfigured endpoint fails at startup rather than on the first
// request.
func NewJWTValidator(cfg JWTValidatorConfig) (*JWTValidator, error) {
	ctx := context.Background()

	refresh := cfg.RefreshInterval
	if refresh <= 0 {
		refresh = 15 * time.Minute
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(refresh)); err != nil {
		return nil, fmt.Errorf("register JWKS URL: %w", err)
	}
	if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("fetch JWKS from %s: %w", cfg.JWKSURL, err)
	}

	return &JWTValidator{
		jwksURL:  cfg.JWKSURL,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		cache:    cache,
	}, nil
}

// ValidateToken verifies the token's signature against the cached JWKS and
// checks expiry, issuer, and audience. On success it returns the extracted
// claims.
func (v *JWTValidator) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("get JWKS: %w", err)
	}

	parsed, err := jwt.Parse(
		[]byte(token),
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &Claims{
		Subject: parsed.Subject(),
		Custom:  make(map[string]any),
	}
	if s, ok := stringClaim(parsed, "email"); ok {
		claims.Email = s
	}
	if s, ok := stringClaim(parsed, "role"); ok {
		claims.Role = s
	}
	if s, ok := stringClaim(parsed, "tenant_id"); ok {
		claims.TenantID = s
	}

	for iter := parsed.Iterate(ctx); iter.Next(ctx); {
		pair := iter.Pair()
		if key, ok := pair.Key.(string); ok && !reservedClaims[key] {
			claims.Custom[key] = pair.Value
		}
	}

	return claims, nil
}

// Close does nothing. The JWKS cache is created under
// context.Background, so its refresh goroutine runs until the process
// exits.
func (v *JWTValidator) Close() {}

func stringClaim(t jwt.Token, name string) (string, bool) {
	v, ok := t.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
