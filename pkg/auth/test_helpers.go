package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const testKeyID = "test-key-id"

// testIdentityProvider is an in-process stand-in for an external identity
// provider: it holds a signing key and serves the matching JWKS over
// httptest.
type testIdentityProvider struct {
	key      *rsa.PrivateKey
	server   *httptest.Server
	JWKSURL  string
	Issuer   string
	Audience string
}

func newTestIdentityProvider(t testing.TB) *testIdentityProvider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}

	pub, err := jwk.FromRaw(&key.PublicKey)
	if err != nil {
		t.Fatalf("wrap public key: %v", err)
	}
	if err := pub.Set(jwk.KeyIDKey, testKeyID); err != nil {
		t.Fatalf("set kid: %v", err)
	}
	if err := pub.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		t.Fatalf("set alg: %v", err)
	}
	keyset := jwk.NewSet()
	if err := keyset.AddKey(pub); err != nil {
		t.Fatalf("add key: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/jwks.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(keyset)
	}))
	t.Cleanup(server.Close)

	return &testIdentityProvider{
		key:      key,
		server:   server,
		JWKSURL:  server.URL + "/.well-known/jwks.json",
		Issuer:   "https://issuer.test",
		Audience: "agentcore-api",
	}
}

// Validator builds a JWTValidator pointed at this provider.
func (p *testIdentityProvider) Validator(t testing.TB) *JWTValidator {
	t.Helper()
	v, err := NewJWTValidator(JWTValidatorConfig{
		JWKSURL:  p.JWKSURL,
		Issuer:   p.Issuer,
		Audience: p.Audience,
	})
	if err != nil {
		t.Fatalf("build validator: %v", err)
	}
	return v
}

// SignToken issues a token with the provider's key. issuer/audience
// default to the provider's own when empty; extra claims are set as-is.
func (p *testIdentityProvider) SignToken(t testing.TB, issuer, audience, subject string, extra map[string]any) string {
	t.Helper()

	if issuer == "" {
		issuer = p.Issuer
	}
	if audience == "" {
		audience = p.Audience
	}

	token := jwt.New()
	pairs := map[string]any{
		jwt.IssuerKey:     issuer,
		jwt.AudienceKey:   audience,
		jwt.SubjectKey:    subject,
		jwt.IssuedAtKey:   time.Now(),
		jwt.ExpirationKey: time.Now().Add(time.Hour),
	}
	for k, v := range extra {
		pairs[k] = v
	}
	for k, v := range pairs {
		if err := token.Set(k, v); err != nil {
			t.Fatalf("set claim %s: %v", k, err)
		}
	}

	signing, err := jwk.FromRaw(p.key)
	if err != nil {
		t.Fatalf("wrap signing key: %v", err)
	}
	if err := signing.Set(jwk.KeyIDKey, testKeyID); err != nil {
		t.Fatalf("set kid: %v", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, signing))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return string(signed)
}

// SignExpiredToken issues a token whose exp is already in the past.
func (p *testIdentityProvider) SignExpiredToken(t testing.TB, subject string) string {
	t.Helper()

	token := jwt.New()
	for k, v := range map[string]any{
		jwt.IssuerKey:     p.Issuer,
		jwt.AudienceKey:   p.Audience,
		jwt.SubjectKey:    subject,
		jwt.IssuedAtKey:   time.Now().Add(-2 * time.Hour),
		jwt.ExpirationKey: time.Now().Add(-time.Hour),
	} {
		if err := token.Set(k, v); err != nil {
			t.Fatalf("set claim %s: %v", k, err)
		}
	}

	signing, err := jwk.FromRaw(p.key)
	if err != nil {
		t.Fatalf("wrap signing key: %v", err)
	}
	if err := signing.Set(jwk.KeyIDKey, testKeyID); err != nil {
		t.Fatalf("set kid: %v", err)
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, signing))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return string(signed)
}
