// FILE: synctrack/src/internal/config/config.go
package config

// Config is the resolved configuration of a synctrack run
type Config struct {
	// Target application whose synced data is tracked
	App AppConfig `toml:"app"`

	// Credentials for the target application user
	Auth CredentialsConfig `toml:"auth"`

	// Sync backend endpoint
	Backend BackendConfig `toml:"backend"`

	// Local synchronized store
	Store StoreConfig `toml:"store"`

	// Remote log shipping to the logging application
	RemoteLog RemoteLogConfig `toml:"remote_log"`

	// Process logging
	Logging *LogConfig `toml:"logging"`

	// Suppress all console output
	Quiet bool `toml:"quiet"`

	// Delay before shutdown so pending sync traffic can settle
	ShutdownDelayMS int64 `toml:"shutdown_delay_ms"`
}

type AppConfig struct {
	// Backend application id (required)
	ID string `toml:"id"`

	// Severity threshold for the app's sync diagnostics that are shipped remotely
	SyncLogLevel string `toml:"sync_log_level"`
}

type CredentialsConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	APIKey   string `toml:"api_key"`
}

type BackendConfig struct {
	// Base URL of the sync backend
	URL string `toml:"url"`

	// Per-request timeout
	TimeoutSeconds int64 `toml:"timeout_seconds"`

	// Client-side request rate limit (0 = unlimited)
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int64   `toml:"burst"`

	TLS *TLSClientConfig `toml:"tls"`
}

type StoreConfig struct {
	// Directory for store files and the user cache
	Directory string `toml:"directory"`

	// Delete the local store and log out the cached user before opening
	Clean bool `toml:"clean"`

	// Compact on open when both file size and free space exceed this
	CompactThresholdMB int64 `toml:"compact_threshold_mb"`
}

type RemoteLogConfig struct {
	// Logging application id; remote logging is disabled when empty
	AppID string `toml:"app_id"`

	// API key of the logging application user
	APIKey string `toml:"api_key"`

	// Backend URL of the logging application (defaults to backend.url)
	URL string `toml:"url"`

	// Events buffered before a write to the logging store
	BatchSize int64 `toml:"batch_size"`

	// Severity threshold for the logging app's own diagnostics, printed locally
	SelfLevel string `toml:"self_level"`

	// Bound on a single flush (0 = no timeout)
	FlushTimeoutMS int64 `toml:"flush_timeout_ms"`

	// Diagnostics must pass every filter to be shipped
	Filters []FilterConfig `toml:"filters"`

	// Rendering of diagnostics printed locally instead of shipped
	LocalFormat *FormatConfig `toml:"local_format"`
}

// Enabled reports whether remote log shipping is configured
func (r RemoteLogConfig) Enabled() bool {
	return r.AppID != "" && r.APIKey != ""
}

// RemoteLogURL returns the logging app's backend, falling back to the target backend
func (c *Config) RemoteLogURL() string {
	if c.RemoteLog.URL != "" {
		return c.RemoteLog.URL
	}
	return c.Backend.URL
}
