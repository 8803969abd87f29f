// FILE: synctrack/src/cmd/synctrack/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"synctrack/src/internal/auth"
	"synctrack/src/internal/config"
	"synctrack/src/internal/service"
	"synctrack/src/internal/version"

	"github.com/lixenwraith/log"
)

var logger *log.Logger

func main() {
	os.Exit(run())
}

func run() int {
	// Parse flags first to get quiet mode early
	flagCfg, err := ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	InitOutputHandler(flagCfg.Quiet)

	if flagCfg.ShowVersion {
		fmt.Println(version.String())
		return 0
	}

	if flagCfg.ConfigFile != "" {
		os.Setenv("SYNCTRACK_CONFIG_FILE", flagCfg.ConfigFile)
	}

	overrides := flagCfg.Overrides
	if overrides.Username != "" && overrides.Password == "" && !flagCfg.Quiet {
		pw, err := auth.PromptPassword(fmt.Sprintf("Password for %s: ", overrides.Username), os.Stderr)
		if err != nil && !errors.Is(err, auth.ErrNotTerminal) {
			Error("Failed to read password: %v\n", err)
			return 1
		}
		overrides.Password = pw
	}

	cfg, err := config.LoadWithCLI(overrides)
	if err != nil {
		if flagCfg.ConfigFile != "" && strings.Contains(err.Error(), "not found") {
			Error("Config file not found: %s\n", flagCfg.ConfigFile)
			return 2
		}
		Error("Failed to load config: %v\n", err)
		return 1
	}

	if flagCfg.WriteConfig != "" {
		if err := cfg.SaveToFile(flagCfg.WriteConfig); err != nil {
			Error("%v\n", err)
			return 1
		}
		Print("Config written to %s\n", flagCfg.WriteConfig)
		return 0
	}

	if err := initializeLogger(cfg); err != nil {
		Error("Failed to initialize logger: %v\n", err)
		return 1
	}
	defer shutdownLogger()

	logger.Info("msg", "synctrack starting",
		"version", version.String(),
		"config_file", config.GetConfigPath(),
		"log_output", cfg.Logging.Output)

	svc, err := bootstrapService(cfg)
	if err != nil {
		logger.Error("msg", "Failed to bootstrap service", "error", err)
		Error("Error: %v\n", err)
		return 1
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	lingerCtx, stopLinger := context.WithCancel(context.Background())
	defer stopLinger()

	runDone := make(chan struct{})
	sigHandler := NewSignalHandler(logger)
	defer sigHandler.Stop()
	go sigHandler.Handle(lingerCtx, runDone, stopRun, stopLinger)

	exitCode := 0
	if err := svc.Run(runCtx); err != nil {
		exitCode = 1
		if errors.Is(err, context.Canceled) {
			exitCode = 130
		}
		logger.Error("msg", "Run failed", "error", err)
		Error("Error: %s\n", service.DescribeError(err))
	}
	close(runDone)

	// Shutdown runs on every path so the last log batch is delivered
	if err := svc.Shutdown(lingerCtx); err != nil {
		logger.Error("msg", "Shutdown incomplete", "error", err)
		Error("Shutdown: %s\n", service.DescribeError(err))
		if exitCode == 0 {
			exitCode = 1
		}
	}

	return exitCode
}

func shutdownLogger() {
	if logger != nil {
		if err := logger.Shutdown(2 * time.Second); err != nil {
			// Best effort - can't log the shutdown error
			Error("Logger shutdown error: %v\n", err)
		}
	}
}
