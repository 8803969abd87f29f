// FILE: synctrack/src/internal/tls/client.go
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"synctrack/src/internal/config"

	"github.com/lixenwraith/log"
)

// NewClientConfig builds the TLS configuration used to reach the sync backend.
// Returns nil when TLS customisation is disabled, leaving the transport on system defaults.
func NewClientConfig(cfg *config.TLSClientConfig, logger *log.Logger) (*tls.Config, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		MinVersion:         parseTLSVersion(cfg.MinVersion, tls.VersionTLS12),
		MaxVersion:         parseTLSVersion(cfg.MaxVersion, tls.VersionTLS13),
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		ServerName:         cfg.ServerName,
	}

	if cfg.CipherSuites != "" {
		tlsConfig.CipherSuites = parseCipherSuites(cfg.CipherSuites)
	}

	// Client certificate for mTLS
	if cfg.ClientCertFile != "" && cfg.ClientKeyFile != "" {
		clientCert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert/key: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{clientCert}
	} else if cfg.ClientCertFile != "" || cfg.ClientKeyFile != "" {
		return nil, fmt.Errorf("both client_cert_file and client_key_file must be provided for mTLS")
	}

	if cfg.ServerCAFile != "" {
		caCert, err := os.ReadFile(cfg.ServerCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read server CA file: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse server CA certificate")
		}
		tlsConfig.RootCAs = caCertPool
	}

	if logger != nil {
		logger.Info("msg", "Backend TLS configured",
			"component", "tls",
			"min_version", tlsVersionString(tlsConfig.MinVersion),
			"max_version", tlsVersionString(tlsConfig.MaxVersion),
			"has_client_cert", cfg.ClientCertFile != "",
			"has_server_ca", cfg.ServerCAFile != "",
			"insecure_skip_verify", cfg.InsecureSkipVerify)
	}

	return tlsConfig, nil
}
