// FILE: synctrack/src/internal/config/validation.go
package config

import (
	"fmt"
	"net/url"
	"strings"

	"synctrack/src/internal/core"
)

// validateConfig is the centralized validator for the entire configuration
func validateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if isBlank(cfg.App.ID) {
		return fmt.Errorf("app ID is undefined - pass it on the command line '-appId=xxxx-yyyy'")
	}

	if _, err := core.ParseSeverity(cfg.App.SyncLogLevel); err != nil {
		return fmt.Errorf("app: invalid sync log level: %w", err)
	}

	if err := validateBackendURL("backend", cfg.Backend.URL); err != nil {
		return err
	}
	if cfg.Backend.TimeoutSeconds < 1 {
		return fmt.Errorf("backend: timeout must be positive: %d", cfg.Backend.TimeoutSeconds)
	}
	if cfg.Backend.RequestsPerSecond < 0 {
		return fmt.Errorf("backend: requests_per_second cannot be negative: %g", cfg.Backend.RequestsPerSecond)
	}
	if cfg.Backend.RequestsPerSecond > 0 && cfg.Backend.Burst < 1 {
		return fmt.Errorf("backend: burst must be positive when rate limiting: %d", cfg.Backend.Burst)
	}
	if err := validateTLSClient(cfg.Backend.TLS); err != nil {
		return fmt.Errorf("backend tls: %w", err)
	}

	if isBlank(cfg.Store.Directory) {
		return fmt.Errorf("store: missing directory")
	}
	if cfg.Store.CompactThresholdMB < 0 {
		return fmt.Errorf("store: compact threshold cannot be negative: %d", cfg.Store.CompactThresholdMB)
	}

	if err := validateRemoteLog(cfg); err != nil {
		return err
	}

	if cfg.ShutdownDelayMS < 0 {
		return fmt.Errorf("shutdown delay cannot be negative: %d", cfg.ShutdownDelayMS)
	}

	if err := validateLogConfig(cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateRemoteLog(cfg *Config) error {
	r := cfg.RemoteLog
	if (r.AppID == "") != (r.APIKey == "") {
		return fmt.Errorf("remote_log: app_id and api_key must be set together")
	}
	if r.BatchSize < 1 {
		return fmt.Errorf("remote_log: batch size must be positive: %d", r.BatchSize)
	}
	if _, err := core.ParseSeverity(r.SelfLevel); err != nil {
		return fmt.Errorf("remote_log: invalid self level: %w", err)
	}
	if r.FlushTimeoutMS < 0 {
		return fmt.Errorf("remote_log: flush timeout cannot be negative: %d", r.FlushTimeoutMS)
	}
	if r.URL != "" {
		if err := validateBackendURL("remote_log", r.URL); err != nil {
			return err
		}
	}
	for i := range r.Filters {
		if err := validateFilter(i, &r.Filters[i]); err != nil {
			return err
		}
	}
	if err := validateFormat(r.LocalFormat); err != nil {
		return fmt.Errorf("remote_log: %w", err)
	}
	return nil
}

func validateBackendURL(section, raw string) error {
	if isBlank(raw) {
		return fmt.Errorf("%s: missing url", section)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid url: %w", section, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: url must use http or https: %s", section, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: url has no host: %s", section, raw)
	}
	if strings.TrimSuffix(u.Path, "/") != "" {
		return fmt.Errorf("%s: url must not contain a path: %s", section, raw)
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
