// FILE: synctrack/src/internal/shipper/shipper.go
package shipper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"synctrack/src/internal/auth"
	"synctrack/src/internal/core"
	"synctrack/src/internal/syncclient"

	"github.com/lixenwraith/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Client authenticates against the logging app and opens its store
type Client interface {
	CurrentUser() *auth.User
	LogIn(ctx context.Context, cred auth.Credential) (*auth.User, error)
	OpenStore(ctx context.Context, user *auth.User) (Store, error)
}

// Store receives flushed events
type Store interface {
	// WriteBatch writes events as one unit, in order
	WriteBatch(ctx context.Context, events []core.LogEvent) error
	UploadAllLocalChanges(ctx context.Context) error
	Close() error
}

// HostApp is the application whose diagnostics are shipped
type HostApp interface {
	ID() string
	CurrentUser() *auth.User
	SetLogLevel(level core.Severity)
	SetLogger(fn syncclient.DiagnosticFunc)
}

// Stats is a snapshot of shipper counters
type Stats struct {
	Active        bool
	SessionID     string
	TargetAppID   string
	BatchSize     int
	Pending       int
	TotalEvents   uint64
	TotalFlushes  uint64
	FailedFlushes uint64
	Filtered      uint64
	LastFlush     time.Time
}

// FilterFunc decides whether a host diagnostic is shipped
type FilterFunc func(level core.Severity, message string) bool

// Option configures a Shipper
type Option func(*Shipper)

// WithClock replaces the time source used to stamp events
func WithClock(now func() time.Time) Option {
	return func(s *Shipper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithFlushTimeout bounds each store write started by a flush; zero waits indefinitely
func WithFlushTimeout(d time.Duration) Option {
	return func(s *Shipper) {
		if d > 0 {
			s.flushTimeout = d
		}
	}
}

// WithFilter drops host diagnostics for which accept returns false.
// Events added directly through AddEvent are not filtered.
func WithFilter(accept FilterFunc) Option {
	return func(s *Shipper) {
		s.filter = accept
	}
}

// Shipper batches diagnostic events of a host app and writes them to the logging app's store.
// One mutex serializes appends, flushes and stop, so no two flushes ever overlap.
type Shipper struct {
	client       Client
	cred         auth.Credential
	logger       *log.Logger
	now          func() time.Time
	flushTimeout time.Duration
	filter       FilterFunc

	mu          sync.Mutex
	store       Store
	host        HostApp
	sessionID   primitive.ObjectID
	targetAppID string
	batchSize   int
	pending     []core.LogEvent
	active      bool
	stopping    bool

	totalEvents   atomic.Uint64
	totalFlushes  atomic.Uint64
	failedFlushes atomic.Uint64
	filtered      atomic.Uint64
	lastFlush     atomic.Value // time.Time
}

// New creates an idle shipper that logs in to the logging app with cred
func New(client Client, cred auth.Credential, logger *log.Logger, opts ...Option) *Shipper {
	s := &Shipper{
		client: client,
		cred:   cred,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastFlush.Store(time.Time{})
	return s
}

// StartSession authenticates, opens the log store and attaches to host's diagnostics at level
func (s *Shipper) StartSession(ctx context.Context, host HostApp, batchSize int, level core.Severity) error {
	if batchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", batchSize)
	}
	if host == nil {
		return fmt.Errorf("host app cannot be nil")
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return ErrSessionActive
	}

	user, err := s.authenticate(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	store, err := s.client.OpenStore(ctx, user)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
	if store == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: no store returned", ErrSessionUnavailable)
	}

	s.store = store
	s.host = host
	s.sessionID = primitive.NewObjectID()
	s.targetAppID = host.ID()
	s.batchSize = batchSize
	s.pending = make([]core.LogEvent, 0, batchSize)
	s.active = true
	s.stopping = false
	sessionID := s.sessionID.Hex()
	s.mu.Unlock()

	host.SetLogLevel(level)
	host.SetLogger(s.handleDiagnostic)

	s.logger.Info("msg", "Log session started",
		"component", "shipper",
		"session_id", sessionID,
		"target_app_id", host.ID(),
		"log_user_id", user.ID,
		"batch_size", batchSize,
		"level", level.String())
	return nil
}

// authenticate reuses the logging app's current user unless it is logged out or its
// refresh token has expired. The expiry check decodes the token locally and is only a hint.
func (s *Shipper) authenticate(ctx context.Context) (*auth.User, error) {
	user := s.client.CurrentUser()
	if user.Usable(s.now()) {
		return user, nil
	}

	if user.IsLoggedIn() {
		s.logger.Debug("msg", "Cached log user expired, logging in again",
			"component", "shipper",
			"log_user_id", user.ID)
	}

	user, err := s.client.LogIn(ctx, s.cred)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthUnavailable, err)
	}
	if !user.IsLoggedIn() {
		return nil, fmt.Errorf("%w: login returned no user", ErrAuthUnavailable)
	}
	return user, nil
}

// handleDiagnostic is installed as the host app's diagnostic hook
func (s *Shipper) handleDiagnostic(level core.Severity, message string) {
	if s.filter != nil && !s.filter(level, message) {
		s.filtered.Add(1)
		return
	}
	err := s.AddEvent(level, message)
	if err == nil || errors.Is(err, ErrSessionClosed) {
		return
	}
	s.logger.Warn("msg", "Log batch write failed, events kept for next flush",
		"component", "shipper",
		"error", err)
}

// AddEvent records one event; reaching the batch size flushes synchronously before returning.
// A returned *WriteError leaves the event and its batch pending.
func (s *Shipper) AddEvent(level core.Severity, message string) error {
	s.mu.Lock()
	host := s.host
	open := s.active && !s.stopping
	s.mu.Unlock()
	if !open {
		return ErrSessionClosed
	}

	// Read outside the lock; the host may emit diagnostics from CurrentUser
	var userID string
	if user := host.CurrentUser(); user.IsLoggedIn() {
		userID = user.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.stopping {
		return ErrSessionClosed
	}

	event := core.NewLogEvent(s.targetAppID, s.sessionID, level, message, userID, s.now())
	s.pending = append(s.pending, event)
	s.totalEvents.Add(1)

	if len(s.pending) >= s.batchSize {
		return s.flushLocked(context.Background())
	}
	return nil
}

// Flush writes every pending event as one unit
func (s *Shipper) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ErrSessionClosed
	}
	return s.flushLocked(ctx)
}

// flushLocked must be called with s.mu held
func (s *Shipper) flushLocked(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	if s.flushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.flushTimeout)
		defer cancel()
	}

	batch := s.pending
	if err := s.store.WriteBatch(ctx, batch); err != nil {
		s.failedFlushes.Add(1)
		return &WriteError{Events: len(batch), Err: err}
	}

	s.pending = make([]core.LogEvent, 0, s.batchSize)
	s.totalFlushes.Add(1)
	s.lastFlush.Store(s.now())

	s.logger.Debug("msg", "Log batch flushed",
		"component", "shipper",
		"session_id", s.sessionID.Hex(),
		"events", len(batch))
	return nil
}

// StopSession flushes remaining events, uploads local writes, closes the store and detaches
// from the host. The store is closed even when flush or upload fail; all failures are returned
// joined. Without an active session it does nothing.
func (s *Shipper) StopSession(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true

	var errs []error
	if err := s.flushLocked(ctx); err != nil {
		errs = append(errs, err)
		s.logger.Error("msg", "Final log flush failed, pending events dropped",
			"component", "shipper",
			"session_id", s.sessionID.Hex(),
			"dropped", len(s.pending),
			"error", err)
	}

	if err := s.store.UploadAllLocalChanges(ctx); err != nil {
		errs = append(errs, &SyncError{Err: err})
	}

	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close log store: %w", err))
	}

	host := s.host
	sessionID := s.sessionID.Hex()
	s.store = nil
	s.host = nil
	s.pending = nil
	s.active = false
	s.stopping = false
	s.mu.Unlock()

	host.SetLogger(nil)

	err := errors.Join(errs...)
	s.logger.Info("msg", "Log session stopped",
		"component", "shipper",
		"session_id", sessionID,
		"total_events", s.totalEvents.Load(),
		"total_flushes", s.totalFlushes.Load(),
		"failed_flushes", s.failedFlushes.Load(),
		"clean", err == nil)
	return err
}

// GetStats returns a snapshot of the shipper's state
func (s *Shipper) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Active:        s.active,
		TargetAppID:   s.targetAppID,
		BatchSize:     s.batchSize,
		Pending:       len(s.pending),
		TotalEvents:   s.totalEvents.Load(),
		TotalFlushes:  s.totalFlushes.Load(),
		FailedFlushes: s.failedFlushes.Load(),
		Filtered:      s.filtered.Load(),
		LastFlush:     s.lastFlush.Load().(time.Time),
	}
	if !s.sessionID.IsZero() {
		st.SessionID = s.sessionID.Hex()
	}
	return st
}
