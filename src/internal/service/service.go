// FILE: synctrack/src/internal/service/service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"synctrack/src/internal/auth"
	"synctrack/src/internal/core"
	"synctrack/src/internal/shipper"
	"synctrack/src/internal/syncclient"

	"github.com/lixenwraith/log"
)

// Printer receives user-facing status lines
type Printer interface {
	Print(format string, args ...any)
	Error(format string, args ...any)
}

// LogSession is the log shipper as driven by the service
type LogSession interface {
	StartSession(ctx context.Context, host shipper.HostApp, batchSize int, level core.Severity) error
	StopSession(ctx context.Context) error
	GetStats() shipper.Stats
}

// Options controls one tracking run
type Options struct {
	Credential       auth.Credential
	StoreDir         string
	Clean            bool
	CompactThreshold int64
	BatchSize        int
	LogLevel         core.Severity
	Linger           time.Duration

	// LocalDiagnostics receives the app's diagnostics when there is no log session.
	// Nil sends them to the process logger.
	LocalDiagnostics syncclient.DiagnosticFunc
}

// Service logs in to the target app, opens its store, subscribes to every class and reports counts
type Service struct {
	app    *syncclient.App
	ship   LogSession
	opts   Options
	out    Printer
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	store   *syncclient.Store
	user    *auth.User
	counts  map[string]int
	started bool
}

// New creates a service for app. ship may be nil when remote logging is disabled.
func New(app *syncclient.App, ship LogSession, opts Options, out Printer, logger *log.Logger) *Service {
	if opts.BatchSize < 1 {
		opts.BatchSize = core.DefaultBatchSize
	}
	return &Service{
		app:    app,
		ship:   ship,
		opts:   opts,
		out:    out,
		logger: logger,
		now:    time.Now,
		counts: make(map[string]int),
	}
}

// Run performs the login, open, subscribe and track sequence.
// Shutdown must be called afterwards whatever Run returns.
func (s *Service) Run(ctx context.Context) error {
	if err := s.attachDiagnostics(ctx); err != nil {
		return err
	}

	if s.opts.Clean {
		if cached := s.app.CurrentUser(); cached != nil {
			if err := s.app.LogOut(ctx); err != nil {
				s.logger.Warn("msg", "Logout of cached user failed",
					"component", "service",
					"user_id", cached.ID,
					"error", err)
			}
			s.out.Print("Logged out cached user %s\n", cached.ID)
		}
	}

	user, err := s.login(ctx)
	if err != nil {
		return err
	}

	store, err := s.app.OpenStore(ctx, user, syncclient.StoreOptions{
		Path:             syncclient.DefaultStorePath(s.opts.StoreDir, s.app.ID(), user.ID),
		Clean:            s.opts.Clean,
		CompactThreshold: s.opts.CompactThreshold,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	s.mu.Lock()
	s.store = store
	s.mu.Unlock()
	s.out.Print("Opened store %s\n", store.Path())

	classes := subscribable(store.Schema())
	if err := store.UpdateSubscriptions(ctx, func(subs *syncclient.MutableSubscriptions) {
		for _, class := range classes {
			subs.Add(class, "All "+class)
		}
	}); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	s.logger.Info("msg", "Subscribed to classes",
		"component", "service",
		"classes", len(classes))

	if err := store.DownloadAllServerChanges(ctx); err != nil {
		return fmt.Errorf("failed to download objects: %w", err)
	}

	for _, class := range classes {
		if err := s.trackClass(ctx, store, class); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) attachDiagnostics(ctx context.Context) error {
	if s.ship == nil {
		// Remote logging disabled: diagnostics stay local
		hook := s.opts.LocalDiagnostics
		if hook == nil {
			hook = func(level core.Severity, message string) {
				s.logger.Debug("msg", message,
					"component", "sync_client",
					"level", level.String())
			}
		}
		s.app.SetLogLevel(s.opts.LogLevel)
		s.app.SetLogger(hook)
		return nil
	}

	if err := s.ship.StartSession(ctx, s.app, s.opts.BatchSize, s.opts.LogLevel); err != nil {
		return fmt.Errorf("failed to start log session: %w", err)
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

// login reuses a logged-in host user whose refresh token is still valid
func (s *Service) login(ctx context.Context) (*auth.User, error) {
	user := s.app.CurrentUser()
	if user.Usable(s.now()) {
		s.out.Print("Using cached user %s\n", user.ID)
	} else {
		var err error
		user, err = s.app.LogIn(ctx, s.opts.Credential)
		if err != nil {
			return nil, fmt.Errorf("failed to log in with %s: %w", s.opts.Credential, err)
		}
		s.out.Print("Logged in as %s\n", user.ID)
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return user, nil
}

func (s *Service) trackClass(ctx context.Context, store *syncclient.Store, class string) error {
	n, err := store.Count(ctx, class)
	if err != nil {
		return fmt.Errorf("failed to count %s objects: %w", class, err)
	}

	s.mu.Lock()
	s.counts[class] = n
	s.mu.Unlock()

	s.out.Print("Got %d %s objects\n", n, class)
	s.logger.Info("msg", "Tracking class",
		"component", "service",
		"class", class,
		"objects", n)
	return nil
}

// subscribable returns the names of classes that can be subscribed to, in schema order
func subscribable(schema []syncclient.ClassSchema) []string {
	classes := make([]string, 0, len(schema))
	for _, c := range schema {
		if c.Embedded || c.Asymmetric {
			continue
		}
		classes = append(classes, c.Name)
	}
	return classes
}

// Counts returns the object count reported for each tracked class
func (s *Service) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Shutdown lingers, closes the store and stops the log session.
// Cancelling ctx cuts the linger short; the log session is stopped regardless.
func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Info("msg", "Service shutdown initiated",
		"component", "service",
		"linger", s.opts.Linger)

	if s.opts.Linger > 0 {
		timer := time.NewTimer(s.opts.Linger)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("msg", "Linger interrupted",
				"component", "service")
		}
	}

	var errs []error

	s.mu.Lock()
	store := s.store
	s.store = nil
	started := s.started
	s.started = false
	s.mu.Unlock()

	if store != nil {
		if err := store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.out.Print("Done\n")

	stopCtx := context.WithoutCancel(ctx)
	if started {
		if err := s.ship.StopSession(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop log session: %w", err))
		}
		stats := s.ship.GetStats()
		s.logger.Info("msg", "Log session summary",
			"component", "service",
			"events", stats.TotalEvents,
			"flushes", stats.TotalFlushes,
			"failed_flushes", stats.FailedFlushes)
	} else if s.ship == nil {
		s.app.SetLogger(nil)
	}

	err := errors.Join(errs...)
	s.logger.Info("msg", "Service shutdown complete",
		"component", "service",
		"clean", err == nil)
	return err
}
