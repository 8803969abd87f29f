// FILE: synctrack/src/cmd/synctrack/bootstrap.go
package main

import (
	"crypto/tls"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"synctrack/src/internal/auth"
	"synctrack/src/internal/config"
	"synctrack/src/internal/core"
	"synctrack/src/internal/filter"
	"synctrack/src/internal/format"
	"synctrack/src/internal/service"
	"synctrack/src/internal/shipper"
	"synctrack/src/internal/syncclient"
	ltls "synctrack/src/internal/tls"
	"synctrack/src/internal/version"

	"github.com/lixenwraith/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// storeLayout places the target and logging apps' files under the store directory.
// The two apps never share a user cache.
type storeLayout struct {
	UserCache    string
	LogStore     string
	LogUserCache string
}

func newStoreLayout(dir string) storeLayout {
	return storeLayout{
		UserCache:    filepath.Join(dir, "users"),
		LogStore:     filepath.Join(dir, "logs"),
		LogUserCache: filepath.Join(dir, "logs", "users"),
	}
}

// bootstrapService wires the target app, the optional log shipper and the service
func bootstrapService(cfg *config.Config) (*service.Service, error) {
	tlsConfig, err := ltls.NewClientConfig(cfg.Backend.TLS, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure TLS: %w", err)
	}

	dirs := newStoreLayout(cfg.Store.Directory)
	timeout := time.Duration(cfg.Backend.TimeoutSeconds) * time.Second

	target, err := syncclient.NewApp(syncclient.AppOptions{
		ID:                cfg.App.ID,
		BaseURL:           cfg.Backend.URL,
		Timeout:           timeout,
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
		Burst:             int(cfg.Backend.Burst),
		TLSConfig:         tlsConfig,
		CacheDir:          dirs.UserCache,
	}, logger)
	if err != nil {
		return nil, err
	}

	level, err := core.ParseSeverity(cfg.App.SyncLogLevel)
	if err != nil {
		return nil, err
	}

	formatter, err := format.NewFormatter(cfg.RemoteLog.LocalFormat, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create diagnostic formatter: %w", err)
	}

	// Left as a nil interface when remote logging is off
	var session service.LogSession
	if cfg.RemoteLog.Enabled() {
		session, err = newLogShipper(cfg, tlsConfig, dirs, timeout, formatter)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Info("msg", "Remote logging disabled",
			"component", "bootstrap",
			"reason", "remote_log.app_id or remote_log.api_key not set")
	}

	svc := service.New(target, session, service.Options{
		Credential:       auth.Select(cfg.Auth.Username, cfg.Auth.Password, cfg.Auth.APIKey),
		StoreDir:         cfg.Store.Directory,
		Clean:            cfg.Store.Clean,
		CompactThreshold: cfg.Store.CompactThresholdMB << 20,
		BatchSize:        int(cfg.RemoteLog.BatchSize),
		LogLevel:         level,
		Linger:           time.Duration(cfg.ShutdownDelayMS) * time.Millisecond,
		LocalDiagnostics: diagnosticPrinter(cfg.App.ID, formatter),
	}, output, logger)

	logger.Info("msg", "synctrack started",
		"version", version.Short(),
		"app_id", cfg.App.ID,
		"backend", cfg.Backend.URL,
		"remote_log", cfg.RemoteLog.Enabled())

	return svc, nil
}

// newLogShipper connects to the logging app. Its own diagnostics are printed, never shipped.
func newLogShipper(cfg *config.Config, tlsConfig *tls.Config, dirs storeLayout, timeout time.Duration, formatter format.Formatter) (*shipper.Shipper, error) {
	logApp, err := syncclient.NewApp(syncclient.AppOptions{
		ID:                cfg.RemoteLog.AppID,
		BaseURL:           cfg.RemoteLogURL(),
		Timeout:           timeout,
		RequestsPerSecond: cfg.Backend.RequestsPerSecond,
		Burst:             int(cfg.Backend.Burst),
		TLSConfig:         tlsConfig,
		CacheDir:          dirs.LogUserCache,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create logging app: %w", err)
	}

	selfLevel, err := core.ParseSeverity(cfg.RemoteLog.SelfLevel)
	if err != nil {
		return nil, err
	}
	logApp.SetLogLevel(selfLevel)
	logApp.SetLogger(diagnosticPrinter(cfg.RemoteLog.AppID, formatter))

	opts := []shipper.Option{
		shipper.WithFlushTimeout(time.Duration(cfg.RemoteLog.FlushTimeoutMS) * time.Millisecond),
	}
	if len(cfg.RemoteLog.Filters) > 0 {
		chain, err := filter.NewChain(cfg.RemoteLog.Filters, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create diagnostic filters: %w", err)
		}
		opts = append(opts, shipper.WithFilter(chain.Apply))
	}

	return shipper.New(
		shipper.NewAppClient(logApp, dirs.LogStore),
		auth.APIKey(cfg.RemoteLog.APIKey),
		logger,
		opts...,
	), nil
}

// diagnosticPrinter renders diagnostics of appID to stderr
func diagnosticPrinter(appID string, formatter format.Formatter) func(core.Severity, string) {
	return func(level core.Severity, message string) {
		event := core.NewLogEvent(appID, primitive.NilObjectID, level, message, "", time.Now())
		line, err := formatter.Format(event)
		if err != nil {
			Error("%s: %s\n", level, message)
			return
		}
		Error("%s", line)
	}
}

// initializeLogger sets up the process logger based on configuration
func initializeLogger(cfg *config.Config) error {
	logger = log.NewLogger()

	var configArgs []string

	if cfg.Quiet {
		// In quiet mode, disable ALL logging output
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=false",
			"level=255")

		return logger.InitWithDefaults(configArgs...)
	}

	levelValue, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	configArgs = append(configArgs, fmt.Sprintf("level=%d", levelValue))

	switch cfg.Logging.Output {
	case "none":
		configArgs = append(configArgs, "disable_file=true", "enable_stdout=false")

	case "stdout":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stdout")

	case "stderr":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stderr")

	case "file":
		configArgs = append(configArgs, "enable_stdout=false")
		configureFileLogging(&configArgs, cfg)

	case "both":
		configArgs = append(configArgs, "enable_stdout=true")
		configureFileLogging(&configArgs, cfg)
		configureConsoleTarget(&configArgs, cfg)

	default:
		return fmt.Errorf("invalid log output mode: %s", cfg.Logging.Output)
	}

	if cfg.Logging.Console != nil && cfg.Logging.Console.Format != "" {
		configArgs = append(configArgs, fmt.Sprintf("format=%s", cfg.Logging.Console.Format))
	}

	return logger.InitWithDefaults(configArgs...)
}

// configureFileLogging sets up file-based logging parameters
func configureFileLogging(configArgs *[]string, cfg *config.Config) {
	if cfg.Logging.File != nil {
		*configArgs = append(*configArgs,
			fmt.Sprintf("directory=%s", cfg.Logging.File.Directory),
			fmt.Sprintf("name=%s", cfg.Logging.File.Name),
			fmt.Sprintf("max_size_mb=%d", cfg.Logging.File.MaxSizeMB),
			fmt.Sprintf("max_total_size_mb=%d", cfg.Logging.File.MaxTotalSizeMB))

		if cfg.Logging.File.RetentionHours > 0 {
			*configArgs = append(*configArgs,
				fmt.Sprintf("retention_period_hrs=%.1f", cfg.Logging.File.RetentionHours))
		}
	}
}

// configureConsoleTarget sets up console output parameters
func configureConsoleTarget(configArgs *[]string, cfg *config.Config) {
	target := "stderr"

	if cfg.Logging.Console != nil && cfg.Logging.Console.Target != "" {
		target = cfg.Logging.Console.Target
	}

	if target == "split" {
		*configArgs = append(*configArgs, "stdout_split_mode=true")
		*configArgs = append(*configArgs, "stdout_target=split")
	} else {
		*configArgs = append(*configArgs, fmt.Sprintf("stdout_target=%s", target))
	}
}

func parseLogLevel(level string) (int, error) {
	switch strings.ToLower(level) {
	case "debug":
		return int(log.LevelDebug), nil
	case "info":
		return int(log.LevelInfo), nil
	case "warn", "warning":
		return int(log.LevelWarn), nil
	case "error":
		return int(log.LevelError), nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}
