// FILE: synctrack/src/internal/tls/tls_test.go
package tls

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"synctrack/src/internal/config"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientConfig(t *testing.T) {
	logger := log.NewLogger()

	t.Run("DisabledIsNil", func(t *testing.T) {
		cfg, err := NewClientConfig(&config.TLSClientConfig{Enabled: false}, logger)
		require.NoError(t, err)
		assert.Nil(t, cfg)

		cfg, err = NewClientConfig(nil, logger)
		require.NoError(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("Versions", func(t *testing.T) {
		cfg, err := NewClientConfig(&config.TLSClientConfig{
			Enabled:    true,
			MinVersion: "TLS1.3",
			ServerName: "sync.internal",
		}, logger)
		require.NoError(t, err)
		assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)
		assert.Equal(t, uint16(tls.VersionTLS13), cfg.MaxVersion)
		assert.Equal(t, "sync.internal", cfg.ServerName)
	})

	t.Run("HalfKeyPair", func(t *testing.T) {
		_, err := NewClientConfig(&config.TLSClientConfig{Enabled: true, ClientKeyFile: "key.pem"}, logger)
		assert.Error(t, err)
	})

	t.Run("BadCA", func(t *testing.T) {
		caFile := filepath.Join(t.TempDir(), "ca.pem")
		require.NoError(t, os.WriteFile(caFile, []byte("not a certificate"), 0600))

		_, err := NewClientConfig(&config.TLSClientConfig{Enabled: true, ServerCAFile: caFile}, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse server CA")
	})
}

func TestParseCipherSuites(t *testing.T) {
	suites := parseCipherSuites("TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256, bogus ,TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384")
	assert.Equal(t, []uint16{
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	}, suites)
}

func TestParseTLSVersion(t *testing.T) {
	assert.Equal(t, uint16(tls.VersionTLS12), parseTLSVersion("tls1.2", tls.VersionTLS13))
	assert.Equal(t, uint16(tls.VersionTLS13), parseTLSVersion("", tls.VersionTLS13))
	assert.Equal(t, "TLS1.3", tlsVersionString(tls.VersionTLS13))
}
