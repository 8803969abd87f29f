// FILE: synctrack/src/cmd/synctrack/flags.go
package main

import (
	"flag"
	"fmt"
	"os"

	"synctrack/src/internal/config"
	"synctrack/src/internal/core"
)

// Command-line flags
var (
	appID     = flag.String("appId", "", "Backend application id (required)")
	user      = flag.String("user", "", "Username (email) of the application user")
	password  = flag.String("password", "", "Password of the application user (prompted when omitted)")
	apiKey    = flag.String("apiKey", "", "API key of the application user")
	logLevel  = flag.String("logLevel", "", "Sync diagnostic level: all, trace, debug, detail, info, warn, error, fatal, off")
	batchSize = flag.Int64("batchSize", 0, "Log events per remote write (overrides config)")
	clean     = flag.Bool("clean", false, "Log out the cached user and delete the local store first")

	configFile  = flag.String("config", "", "Config file path")
	writeConfig = flag.String("write-config", "", "Write the resolved config (secrets masked) to this path and exit")
	quiet       = flag.Bool("quiet", false, "Suppress all console output")
	showVersion = flag.Bool("version", false, "Show version information")
)

// FlagConfig holds the parsed command line
type FlagConfig struct {
	ConfigFile  string
	WriteConfig string
	Quiet       bool
	ShowVersion bool
	Overrides   config.CLIOverrides
}

func init() {
	flag.Usage = customUsage
}

func customUsage() {
	fmt.Fprintf(os.Stderr, "synctrack - track synced object classes and ship sync diagnostics\n\n")
	fmt.Fprintf(os.Stderr, "Usage: %s -appId <id> [options]\n\n", os.Args[0])

	fmt.Fprintf(os.Stderr, "Credentials (first match wins):\n")
	fmt.Fprintf(os.Stderr, "  -user string -password string\n\tUsername and password\n")
	fmt.Fprintf(os.Stderr, "  -apiKey string\n\tAPI key\n")
	fmt.Fprintf(os.Stderr, "  (none)\n\tAnonymous login\n")

	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	fmt.Fprintf(os.Stderr, "  -logLevel string\n\tSync diagnostic level shipped to the logging app (default info)\n")
	fmt.Fprintf(os.Stderr, "  -batchSize int\n\tLog events per remote write (default %d)\n", core.DefaultBatchSize)
	fmt.Fprintf(os.Stderr, "  -clean\n\tLog out the cached user and delete the local store first\n")
	fmt.Fprintf(os.Stderr, "  -config string\n\tConfig file path\n")
	fmt.Fprintf(os.Stderr, "  -write-config string\n\tWrite the resolved config to a file and exit\n")
	fmt.Fprintf(os.Stderr, "  -quiet\n\tSuppress all console output\n")
	fmt.Fprintf(os.Stderr, "  -version\n\tShow version information\n")

	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s -appId application-0-abcde\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s -appId application-0-abcde -user me@example.com -logLevel debug\n\n", os.Args[0])

	fmt.Fprintf(os.Stderr, "Environment Variables:\n")
	fmt.Fprintf(os.Stderr, "  SYNCTRACK_CONFIG_FILE         Config file path\n")
	fmt.Fprintf(os.Stderr, "  SYNCTRACK_CONFIG_DIR          Config directory\n")
	fmt.Fprintf(os.Stderr, "  SYNCTRACK_REMOTE_LOG_APP_ID   Logging application id\n")
	fmt.Fprintf(os.Stderr, "  SYNCTRACK_REMOTE_LOG_API_KEY  Logging application API key\n")
}

// ParseFlags parses and validates the command line
func ParseFlags() (*FlagConfig, error) {
	flag.Parse()

	if flag.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", flag.Args())
	}

	if *logLevel != "" {
		if _, err := core.ParseSeverity(*logLevel); err != nil {
			return nil, fmt.Errorf("invalid logLevel: %s (valid: all, trace, debug, detail, info, warn, error, fatal, off)", *logLevel)
		}
	}

	if *batchSize < 0 {
		return nil, fmt.Errorf("invalid batchSize: %d", *batchSize)
	}

	if *password != "" && *user == "" {
		return nil, fmt.Errorf("-password requires -user")
	}

	return &FlagConfig{
		ConfigFile:  *configFile,
		WriteConfig: *writeConfig,
		Quiet:       *quiet,
		ShowVersion: *showVersion,
		Overrides: config.CLIOverrides{
			AppID:     *appID,
			Username:  *user,
			Password:  *password,
			APIKey:    *apiKey,
			LogLevel:  *logLevel,
			BatchSize: *batchSize,
			Clean:     *clean,
			Quiet:     *quiet,
		},
	}, nil
}
