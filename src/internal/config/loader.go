// FILE: synctrack/src/internal/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"synctrack/src/internal/core"

	lconfig "github.com/lixenwraith/config"
)

// CLIOverrides carries command-line values that take precedence over file and env
type CLIOverrides struct {
	AppID     string
	Username  string
	Password  string
	APIKey    string
	LogLevel  string
	BatchSize int64
	Clean     bool
	Quiet     bool
}

func defaults() *Config {
	return &Config{
		App: AppConfig{
			SyncLogLevel: "info",
		},
		Backend: BackendConfig{
			URL:               "https://services.cloud.mongodb.com",
			TimeoutSeconds:    30,
			RequestsPerSecond: 10,
			Burst:             20,
			TLS: &TLSClientConfig{
				Enabled:    false,
				MinVersion: "TLS1.2",
			},
		},
		Store: StoreConfig{
			Directory:          "./synctrack-data",
			CompactThresholdMB: 10,
		},
		RemoteLog: RemoteLogConfig{
			BatchSize:   core.DefaultBatchSize,
			SelfLevel:   "off",
			LocalFormat: DefaultFormatConfig(),
		},
		Logging:         DefaultLogConfig(),
		ShutdownDelayMS: 5000,
	}
}

// LoadWithCLI resolves defaults, config file, environment and CLI overrides, then validates
func LoadWithCLI(cli CLIOverrides) (*Config, error) {
	configPath := GetConfigPath()

	cfg, err := lconfig.NewBuilder().
		WithDefaults(defaults()).
		WithEnvPrefix("SYNCTRACK_").
		WithFile(configPath).
		WithEnvTransform(customEnvTransform).
		WithSources(
			lconfig.SourceEnv,
			lconfig.SourceFile,
			lconfig.SourceDefault,
		).
		Build()

	if err != nil {
		if !strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	finalConfig := &Config{}
	if err := cfg.Scan(finalConfig); err != nil {
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}

	finalConfig.applyCLI(cli)

	return finalConfig, validateConfig(finalConfig)
}

func (c *Config) applyCLI(cli CLIOverrides) {
	if cli.AppID != "" {
		c.App.ID = cli.AppID
	}
	if cli.LogLevel != "" {
		c.App.SyncLogLevel = cli.LogLevel
	}
	if cli.Username != "" {
		c.Auth.Username = cli.Username
	}
	if cli.Password != "" {
		c.Auth.Password = cli.Password
	}
	if cli.APIKey != "" {
		c.Auth.APIKey = cli.APIKey
	}
	if cli.BatchSize > 0 {
		c.RemoteLog.BatchSize = cli.BatchSize
	}
	if cli.Clean {
		c.Store.Clean = true
	}
	if cli.Quiet {
		c.Quiet = true
	}
	if c.Logging == nil {
		c.Logging = DefaultLogConfig()
	}
	if c.RemoteLog.LocalFormat == nil {
		c.RemoteLog.LocalFormat = DefaultFormatConfig()
	}
}

func customEnvTransform(path string) string {
	env := strings.ReplaceAll(path, ".", "_")
	env = strings.ToUpper(env)
	env = "SYNCTRACK_" + env
	return env
}

func GetConfigPath() string {
	if configFile := os.Getenv("SYNCTRACK_CONFIG_FILE"); configFile != "" {
		if filepath.IsAbs(configFile) {
			return configFile
		}
		if configDir := os.Getenv("SYNCTRACK_CONFIG_DIR"); configDir != "" {
			return filepath.Join(configDir, configFile)
		}
		return configFile
	}

	if configDir := os.Getenv("SYNCTRACK_CONFIG_DIR"); configDir != "" {
		return filepath.Join(configDir, "synctrack.toml")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "synctrack.toml")
	}

	return "synctrack.toml"
}
