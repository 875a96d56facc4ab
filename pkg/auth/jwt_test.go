package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTValidatorFetchesJWKSEagerly(t *testing.T) {
	idp := newTestIdentityProvider(t)
	v := idp.Validator(t)
	assert.Equal(t, idp.JWKSURL, v.jwksURL)
}

func TestNewJWTValidatorRejectsUnreachableJWKS(t *testing.T) {
	_, err := NewJWTValidator(JWTValidatorConfig{
		JWKSURL:  "http://127.0.0.1:1/jwks.json",
		Issuer:   "https://issuer.test",
		Audience: "agentcore-api",
	})
	require.Error(t, err)
}

func TestValidateToken(t *testing.T) {
	idp := newTestIdentityProvider(t)
	v := idp.Validator(t)
	ctx := context.Background()

	t.Run("valid token with mapped claims", func(t *testing.T) {
		token := idp.SignToken(t, "", "", "user-1", map[string]any{
			"email":     "user@example.com",
			"role":      "admin",
			"tenant_id": "acme",
		})

		claims, err := v.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.Subject)
		assert.Equal(t, "user@example.com", claims.Email)
		assert.Equal(t, "admin", claims.Role)
		assert.Equal(t, "acme", claims.TenantID)
	})

	t.Run("unmapped claims land in Custom", func(t *testing.T) {
		token := idp.SignToken(t, "", "", "user-2", map[string]any{
			"department": "engineering",
		})

		claims, err := v.ValidateToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "engineering", claims.GetStringClaim("department"))
		_, ok := claims.GetClaim("sub")
		assert.False(t, ok, "standard claims must not be duplicated into Custom")
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := idp.SignToken(t, "https://someone-else.test", "", "user-3", nil)
		_, err := v.ValidateToken(ctx, token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		token := idp.SignToken(t, "", "other-api", "user-4", nil)
		_, err := v.ValidateToken(ctx, token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		token := idp.SignExpiredToken(t, "user-5")
		_, err := v.ValidateToken(ctx, token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := v.ValidateToken(ctx, "not-a-jwt")
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestValidateTokenRejectsUnknownSigningKey(t *testing.T) {
	// Token signed by a second provider whose key is not in the first
	// provider's JWKS.
	idp := newTestIdentityProvider(t)
	other := newTestIdentityProvider(t)
	other.Issuer = idp.Issuer
	other.Audience = idp.Audience

	v := idp.Validator(t)
	token := other.SignToken(t, "", "", "intruder", nil)

	_, err := v.ValidateToken(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaimsHelpers(t *testing.T) {
	c := &Claims{
		Subject: "user-1",
		Role:    "editor",
		Custom:  map[string]any{"plan": "pro", "seats": 3},
	}

	assert.True(t, c.HasRole("editor"))
	assert.False(t, c.HasRole("admin"))
	assert.True(t, c.HasAnyRole("viewer", "editor"))
	assert.False(t, c.HasAnyRole("viewer", "admin"))

	assert.Equal(t, "pro", c.GetStringClaim("plan"))
	assert.Equal(t, "", c.GetStringClaim("seats"), "non-string claim reads as empty string")
	assert.Equal(t, "", c.GetStringClaim("missing"))

	v, ok := c.GetClaim("seats")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestClaimsContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, ClaimsFromContext(ctx))

	claims := &Claims{Subject: "user-1"}
	ctx = ContextWithClaims(ctx, claims)
	assert.Same(t, claims, ClaimsFromContext(ctx))
}
