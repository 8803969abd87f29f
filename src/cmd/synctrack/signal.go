// FILE: synctrack/src/cmd/synctrack/signal.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lixenwraith/log"
)

// Manages OS signals. A termination signal stops the run; once the run is over,
// or on a second signal, it cuts the shutdown linger short.
type SignalHandler struct {
	logger  *log.Logger
	sigChan chan os.Signal
}

// Creates a signal handler
func NewSignalHandler(logger *log.Logger) *SignalHandler {
	sh := &SignalHandler{
		logger:  logger,
		sigChan: make(chan os.Signal, 2),
	}

	signal.Notify(sh.sigChan, syscall.SIGINT, syscall.SIGTERM)

	return sh
}

// Handle blocks until ctx is done or the linger has been cut
func (sh *SignalHandler) Handle(ctx context.Context, runDone <-chan struct{}, stopRun, stopLinger context.CancelFunc) {
	count := 0
	for {
		select {
		case sig := <-sh.sigChan:
			count++
			select {
			case <-runDone:
				count++
			default:
			}
			if count == 1 {
				sh.logger.Info("msg", "Shutdown signal received",
					"signal", sig.String())
				Print("\nInterrupted, shutting down (signal again to skip waiting)\n")
				stopRun()
				continue
			}
			sh.logger.Info("msg", "Skipping shutdown linger",
				"signal", sig.String())
			stopLinger()
			return
		case <-ctx.Done():
			return
		}
	}
}

// Cleans up signal handling
func (sh *SignalHandler) Stop() {
	signal.Stop(sh.sigChan)
}
