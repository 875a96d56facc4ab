package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoSubject is the handler behind the middleware in these tests: it
// writes the authenticated subject so assertions can see which identity
// made it through.
func echoSubject(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r)
		require.NotNil(t, claims, "handler reached without claims in context")
		_, _ = w.Write([]byte(claims.Subject))
	})
}

func TestHTTPMiddleware(t *testing.T) {
	idp := newTestIdentityProvider(t)
	v := idp.Validator(t)
	handler := v.HTTPMiddleware(echoSubject(t))

	do := func(authorization string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/agents/stream", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("valid bearer token", func(t *testing.T) {
		token := idp.SignToken(t, "", "", "user-1", nil)
		rec := do("Bearer " + token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", rec.Body.String())
	})

	t.Run("missing header", func(t *testing.T) {
		rec := do("")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Missing Authorization header")
	})

	t.Run("not bearer scheme", func(t *testing.T) {
		rec := do("Basic dXNlcjpwYXNz")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "expected: Bearer")
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := do("Bearer not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		rec := do("Bearer " + idp.SignExpiredToken(t, "user-1"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	idp := newTestIdentityProvider(t)
	v := idp.Validator(t)
	handler := RequireRole(v, "admin", "operator")(echoSubject(t))

	do := func(role string) *httptest.ResponseRecorder {
		var extra map[string]any
		if role != "" {
			extra = map[string]any{"role": role}
		}
		token := idp.SignToken(t, "", "", "user-1", extra)
		req := httptest.NewRequest(http.MethodPost, "/authorization", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("admin").Code)
	assert.Equal(t, http.StatusOK, do("operator").Code)
	assert.Equal(t, http.StatusForbidden, do("viewer").Code)
	assert.Equal(t, http.StatusForbidden, do("").Code)
}

func TestRequireTenant(t *testing.T) {
	idp := newTestIdentityProvider(t)
	v := idp.Validator(t)
	handler := RequireTenant(v, "acme")(echoSubject(t))

	do := func(tenant string) *httptest.ResponseRecorder {
		var extra map[string]any
		if tenant != "" {
			extra = map[string]any{"tenant_id": tenant}
		}
		token := idp.SignToken(t, "", "", "user-1", extra)
		req := httptest.NewRequest(http.MethodGet, "/authorization/pending", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("acme").Code)
	assert.Equal(t, http.StatusForbidden, do("globex").Code)
	assert.Equal(t, http.StatusForbidden, do("").Code)
}

func TestGetClaimsWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	assert.Nil(t, GetClaims(req))
}
