// FILE: synctrack/src/internal/syncclient/app.go
package syncclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"synctrack/src/internal/auth"
	"synctrack/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/valyala/fasthttp"
)

// DiagnosticFunc receives the sync client's internal diagnostics.
// It may be called from any goroutine and must not block for long.
type DiagnosticFunc func(level core.Severity, message string)

// AppOptions configures a backend application handle
type AppOptions struct {
	ID                string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	TLSConfig         *tls.Config

	// Directory of the encrypted user cache; empty disables caching
	CacheDir string

	Dial fasthttp.DialFunc
	Now  func() time.Time
}

// App is a handle to one backend application: its users, diagnostics and stores
type App struct {
	id        string
	transport *Transport
	cache     *auth.Cache
	logger    *log.Logger
	now       func() time.Time

	// Current user
	mu         sync.Mutex
	user       *auth.User
	userLoaded bool

	// Diagnostics hook
	diagMu    sync.RWMutex
	diagLevel core.Severity
	diagFn    DiagnosticFunc
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
}

// NewApp creates a handle for the application opts.ID
func NewApp(opts AppOptions, logger *log.Logger) (*App, error) {
	if opts.ID == "" {
		return nil, fmt.Errorf("app id cannot be empty")
	}

	transport, err := NewTransport(TransportOptions{
		BaseURL:           opts.BaseURL,
		Timeout:           opts.Timeout,
		RequestsPerSecond: opts.RequestsPerSecond,
		Burst:             opts.Burst,
		TLSConfig:         opts.TLSConfig,
		Dial:              opts.Dial,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transport for app %s: %w", opts.ID, err)
	}

	a := &App{
		id:        opts.ID,
		transport: transport,
		logger:    logger,
		now:       opts.Now,
		diagLevel: core.SeverityOff,
	}
	if a.now == nil {
		a.now = time.Now
	}
	if opts.CacheDir != "" {
		a.cache = auth.NewCache(opts.CacheDir)
	}

	return a, nil
}

// ID returns the backend application id
func (a *App) ID() string {
	return a.id
}

// CurrentUser returns a snapshot of the current user, consulting the on-disk cache once.
// It returns nil when no user has logged in.
func (a *App) CurrentUser() *auth.User {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.userLoaded {
		a.userLoaded = true
		if a.cache != nil {
			user, err := a.cache.Load(a.id)
			if err != nil {
				a.logger.Warn("msg", "Ignoring unreadable cached user",
					"component", "sync_app",
					"app_id", a.id,
					"error", err)
			} else {
				a.user = user
			}
		}
	}

	if a.user == nil {
		return nil
	}
	u := *a.user
	return &u
}

// LogIn authenticates cred against the backend and makes the result the current user
func (a *App) LogIn(ctx context.Context, cred auth.Credential) (*auth.User, error) {
	if err := cred.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}

	a.emit(core.SeverityDetail, "Logging in to %s with %s", a.id, cred)

	path := fmt.Sprintf("/api/client/v2.0/app/%s/auth/providers/%s/login",
		url.PathEscape(a.id), url.PathEscape(string(cred.Provider)))

	var resp loginResponse
	if err := a.transport.DoJSON(ctx, http.MethodPost, path, "", cred.Payload(), &resp); err != nil {
		a.emit(core.SeverityError, "Login to %s failed: %v", a.id, err)
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if resp.UserID == "" || resp.RefreshToken == "" {
		a.emit(core.SeverityError, "Login to %s returned an incomplete session", a.id)
		return nil, fmt.Errorf("%w: incomplete login response", ErrAuth)
	}

	user := &auth.User{
		ID:           resp.UserID,
		AppID:        a.id,
		Provider:     cred.Provider,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		LoggedIn:     true,
	}
	a.setUser(user)

	a.logger.Info("msg", "User logged in",
		"component", "sync_app",
		"app_id", a.id,
		"user_id", user.ID,
		"provider", string(cred.Provider))
	a.emit(core.SeverityInfo, "Logged in user %s to %s", user.ID, a.id)

	u := *user
	return &u, nil
}

// LogOut revokes the current user's session and forgets it locally.
// The local state is cleared even when the backend call fails.
func (a *App) LogOut(ctx context.Context) error {
	user := a.CurrentUser()
	if user == nil {
		return nil
	}

	var remoteErr error
	if user.LoggedIn && user.RefreshToken != "" {
		err := a.transport.DoJSON(ctx, http.MethodDelete, "/api/client/v2.0/auth/session", user.RefreshToken, nil, nil)
		if err != nil && !IsStatus(err, http.StatusUnauthorized) {
			remoteErr = fmt.Errorf("failed to revoke session: %w", err)
		}
	}

	a.setUser(nil)
	a.emit(core.SeverityInfo, "Logged out user %s from %s", user.ID, a.id)

	return remoteErr
}

func (a *App) setUser(user *auth.User) {
	a.mu.Lock()
	a.user = user
	a.userLoaded = true
	a.mu.Unlock()

	if a.cache == nil {
		return
	}

	var err error
	if user == nil {
		err = a.cache.Remove(a.id)
	} else {
		err = a.cache.Save(a.id, user)
	}
	if err != nil {
		a.logger.Warn("msg", "Failed to update user cache",
			"component", "sync_app",
			"app_id", a.id,
			"error", err)
	}
}

// SetLogLevel sets the threshold for diagnostics delivered to the logger hook
func (a *App) SetLogLevel(level core.Severity) {
	a.diagMu.Lock()
	defer a.diagMu.Unlock()
	a.diagLevel = level
}

// SetLogger installs the diagnostics hook; nil removes it
func (a *App) SetLogger(fn DiagnosticFunc) {
	a.diagMu.Lock()
	defer a.diagMu.Unlock()
	a.diagFn = fn
}

// emit delivers a diagnostic outside of any App lock
func (a *App) emit(level core.Severity, format string, args ...any) {
	a.diagMu.RLock()
	fn, threshold := a.diagFn, a.diagLevel
	a.diagMu.RUnlock()

	if fn == nil || !level.Enabled(threshold) {
		return
	}
	fn(level, fmt.Sprintf(format, args...))
}

func (a *App) syncPath(op string) string {
	return fmt.Sprintf("/api/client/v2.0/app/%s/sync/%s", url.PathEscape(a.id), op)
}

func usableUser(user *auth.User) error {
	if !user.IsLoggedIn() {
		return errors.New("user is not logged in")
	}
	return nil
}
