// Package tlsutil builds client TLS configurations for outbound connections
// such as the NATS index store.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/comploplo/canopy-sub003/errors"
)

// ClientConfig describes how to verify a server and, optionally, which
// certificate to present for mutual TLS.
type ClientConfig struct {
	Enabled            bool     `json:"enabled"`
	CAFiles            []string `json:"ca_files,omitempty"`
	CertFile           string   `json:"cert_file,omitempty"`
	KeyFile            string   `json:"key_file,omitempty"`
	MinVersion         string   `json:"min_version,omitempty"` // "1.2" or "1.3"
	ServerName         string   `json:"server_name,omitempty"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify,omitempty"`
}

// Validate checks the fields without touching the filesystem.
func (c ClientConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "tlsutil", "Validate",
			"cert_file and key_file must be set together")
	}
	switch c.MinVersion {
	case "", "1.2", "1.3":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "tlsutil", "Validate",
			fmt.Sprintf("unsupported min_version %q", c.MinVersion))
	}
	return nil
}

// MutualTLS reports whether a client certificate is configured.
func (c ClientConfig) MutualTLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// LoadClientConfig creates a tls.Config from cfg. It returns nil when TLS
// is disabled. The system CA bundle is always trusted; CAFiles add to it.
func LoadClientConfig(cfg ClientConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}
	for _, caFile := range cfg.CAFiles {
		if err := appendCAFile(rootCAs, caFile); err != nil {
			return nil, err
		}
	}

	tlsConfig := &tls.Config{
		RootCAs:            rootCAs,
		MinVersion:         parseTLSVersion(cfg.MinVersion),
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // operator opt-in
	}

	if cfg.MutualTLS() {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

func appendCAFile(pool *x509.CertPool, path string) error {
	caPEM, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapFatal(err, "tlsutil", "LoadClientConfig", fmt.Sprintf("read CA file %s", path))
	}
	if !pool.AppendCertsFromPEM(caPEM) {
		return errors.WrapFatal(fmt.Errorf("invalid PEM data"), "tlsutil", "LoadClientConfig",
			fmt.Sprintf("parse CA certificate from %s", path))
	}
	return nil
}

// parseTLSVersion maps "1.3" to TLS 1.3 and anything else to TLS 1.2.
func parseTLSVersion(version string) uint16 {
	if version == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}
