package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// TLSConfig configures the transport's TLS behavior, for model endpoints
// fronted by a corporate proxy or a self-signed certificate.
type TLSConfig struct {
	// InsecureSkipVerify disables certificate verification. Dev/test only.
	InsecureSkipVerify bool

	// CACertificate is a path to a PEM-encoded CA certificate to trust in
	// addition to the system pool.
	CACertificate string
}

// ConfigureTLS builds an http.Transport from config.
func ConfigureTLS(config *TLSConfig) (*http.Transport, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{},
	}

	if config == nil {
		return transport, nil
	}

	if config.CACertificate != "" {
		caCert, err := os.ReadFile(config.CACertificate)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate %s: %w", config.CACertificate, err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("parse CA certificate %s", config.CACertificate)
		}

		transport.TLSClientConfig.RootCAs = pool
	}

	if config.InsecureSkipVerify {
		transport.TLSClientConfig.InsecureSkipVerify = true
		slog.Warn("TLS certificate verification disabled, do not use in production")
	}

	return transport, nil
}

// WithTLSConfig applies a TLS transport to the Client. Call it after
// WithHTTPClient if both are used, since it overwrites the transport on
// whatever http.Client is already on the Client struct.
func WithTLSConfig(config *TLSConfig) Option {
	return func(c *Client) {
		if config == nil {
			return
		}

		transport, err := ConfigureTLS(config)
		if err != nil {
			slog.Warn("failed to configure TLS, using default transport", "error", err)
			return
		}

		if c.client != nil {
			c.client.Transport = transport
			return
		}

		c.client = &http.Client{
			Transport: transport,
			Timeout:   120 * time.Second,
		}
	}
}
