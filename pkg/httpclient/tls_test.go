package httpclient

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigureTLSNil(t *testing.T) {
	transport, err := ConfigureTLS(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transport.TLSClientConfig == nil {
		t.Fatal("expected a non-nil TLSClientConfig")
	}
	if transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("expected InsecureSkipVerify=false by default")
	}
}

func TestConfigureTLSInsecureSkipVerify(t *testing.T) {
	transport, err := ConfigureTLS(&TLSConfig{InsecureSkipVerify: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("expected InsecureSkipVerify=true")
	}
}

func TestConfigureTLSCustomCACertificate(t *testing.T) {
	certPath := writeSelfSignedCACert(t)

	transport, err := ConfigureTLS(&TLSConfig{CACertificate: certPath})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transport.TLSClientConfig.RootCAs == nil {
		t.Error("expected RootCAs to be set from the custom CA certificate")
	}
}

func TestConfigureTLSMissingCACertificate(t *testing.T) {
	_, err := ConfigureTLS(&TLSConfig{CACertificate: "/nonexistent/ca.pem"})
	if err == nil {
		t.Fatal("expected an error for a missing CA certificate file")
	}
}

func TestConfigureTLSMalformedCACertificate(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "ca.pem")
	if err := os.WriteFile(certPath, []byte("not a certificate"), 0o600); err != nil {
		t.Fatalf("write test cert: %v", err)
	}

	_, err := ConfigureTLS(&TLSConfig{CACertificate: certPath})
	if err == nil {
		t.Fatal("expected an error for a malformed CA certificate")
	}
}

func TestWithTLSConfigNilIsNoop(t *testing.T) {
	c := New()
	before := c.client
	WithTLSConfig(nil)(c)
	if c.client != before {
		t.Error("expected WithTLSConfig(nil) to leave the http.Client untouched")
	}
}

func TestWithTLSConfigSetsTransportOnExistingClient(t *testing.T) {
	c := New()
	WithTLSConfig(&TLSConfig{InsecureSkipVerify: true})(c)

	transport, ok := c.client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", c.client.Transport)
	}
	if !transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("expected InsecureSkipVerify to propagate to the client's transport")
	}
}

func TestWithTLSConfigCreatesClientWhenNoneSet(t *testing.T) {
	c := &Client{strategyFunc: DefaultStrategy}
	WithTLSConfig(&TLSConfig{InsecureSkipVerify: true})(c)

	if c.client == nil {
		t.Fatal("expected WithTLSConfig to create an http.Client when none was set")
	}
	if c.client.Timeout != 120*time.Second {
		t.Errorf("expected default timeout=120s, got %v", c.client.Timeout)
	}
}

// writeSelfSignedCACert generates a throwaway self-signed certificate and
// writes it as PEM to a temp file, returning the path.
func writeSelfSignedCACert(t *testing.T) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "httpclient test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "ca.pem")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create cert file: %v", err)
	}
	defer f.Close()

	if err := pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		t.Fatalf("encode cert: %v", err)
	}

	return path
}
