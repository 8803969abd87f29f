// FILE: synctrack/src/internal/config/saver.go
package config

import (
	"fmt"

	lconfig "github.com/lixenwraith/config"
)

const redacted = "<redacted>"

// Redacted returns a copy of the configuration with secrets masked
func (c *Config) Redacted() *Config {
	out := *c
	if out.Auth.Password != "" {
		out.Auth.Password = redacted
	}
	if out.Auth.APIKey != "" {
		out.Auth.APIKey = redacted
	}
	if out.RemoteLog.APIKey != "" {
		out.RemoteLog.APIKey = redacted
	}
	return &out
}

// SaveToFile writes the configuration, secrets masked, to path as TOML.
func (c *Config) SaveToFile(path string) error {
	if path == "" {
		return fmt.Errorf("cannot save config: path is empty")
	}

	lcfg, err := lconfig.NewBuilder().
		WithFile(path).
		WithTarget(c.Redacted()).
		WithFileFormat("toml").
		Build()
	if err != nil {
		return fmt.Errorf("failed to create config builder: %w", err)
	}

	if err := lcfg.Save(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}
