package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrSessionExpired is returned by every operation once the session is
// invalid. The state is terminal; the only recovery is re-authentication.
var ErrSessionExpired = errors.New("session expired")

// TokenValidator checks a session token and returns its expiry.
// auth.Jwt satisfies this.
type TokenValidator interface {
	Validate(tokenStr string) (bool, time.Time, error)
}

// Config holds the guard's timing knobs.
type Config struct {
	// IdleTimeout is how long the session may sit idle before the guard
	// asks the refresh hook for a fresh validity signal.
	IdleTimeout time.Duration

	// RefreshTimeout bounds the refresh call.
	RefreshTimeout time.Duration
}

// DefaultConfig returns a ten-minute idle timeout.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:    10 * time.Minute,
		RefreshTimeout: 5 * time.Second,
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %s", c.IdleTimeout)
	}
	if c.RefreshTimeout <= 0 {
		return fmt.Errorf("refresh timeout must be positive, got %s", c.RefreshTimeout)
	}
	return nil
}

// Guard gates access to the authenticated change flow for one session. It
// validates the session token up front, arms a single idle timer, and fires
// the logout callback exactly once when the session is invalidated for any
// reason. Once expired the guard is terminal and must be replaced after
// re-authentication.
type Guard struct {
	config    Config
	validator TokenValidator
	refresh   func(ctx context.Context) (bool, error)
	onLogout  func()

	logoutOnce sync.Once
	stateMu    sync.Mutex
	active     bool
	terminal   bool
	timer      *time.Timer
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithRefresh registers the hook the idle timer asks for a fresh validity
// signal. Without it, the session is invalidated on the first idle timeout.
func WithRefresh(refresh func(ctx context.Context) (bool, error)) GuardOption {
	return func(g *Guard) {
		g.refresh = refresh
	}
}

// WithLogoutCallback registers the callback fired exactly once when the
// session is invalidated.
func WithLogoutCallback(fn func()) GuardOption {
	return func(g *Guard) {
		g.onLogout = fn
	}
}

// NewGuard creates an unstarted session guard.
func NewGuard(config Config, validator TokenValidator, opts ...GuardOption) (*Guard, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	g := &Guard{
		config:    config,
		validator: validator,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Start validates the session token and arms the idle timer. An invalid
// token leaves the guard in its terminal expired state without firing the
// logout callback; there was never a session to end.
func (g *Guard) Start(tokenStr string) error {
	valid, _, err := g.validator.Validate(tokenStr)
	if err != nil || !valid {
		g.stateMu.Lock()
		g.terminal = true
		g.stateMu.Unlock()
		if err != nil {
			slog.Warn("Session token rejected", "err", err)
		}
		return ErrSessionExpired
	}

	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	if g.terminal {
		return ErrSessionExpired
	}
	g.active = true
	g.timer = time.AfterFunc(g.config.IdleTimeout, g.onIdle)
	return nil
}

// Allow reports whether the guarded flow may execute.
func (g *Guard) Allow() error {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	if !g.active {
		return ErrSessionExpired
	}
	return nil
}

// Touch resets the idle timer on user activity.
func (g *Guard) Touch() {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	if g.active && g.timer != nil {
		g.timer.Reset(g.config.IdleTimeout)
	}
}

// Logout invalidates the session. The logout callback fires exactly once no
// matter how many paths invalidate the session.
func (g *Guard) Logout() {
	g.invalidate()
}

func (g *Guard) onIdle() {
	g.stateMu.Lock()
	if !g.active {
		g.stateMu.Unlock()
		return
	}
	refresh := g.refresh
	g.stateMu.Unlock()

	ok := false
	if refresh != nil {
		ctx, cancel := context.WithTimeout(context.Background(), g.config.RefreshTimeout)
		defer cancel()
		var err error
		ok, err = refresh(ctx)
		if err != nil {
			slog.Warn("Session refresh failed", "err", err)
			ok = false
		}
	}

	if !ok {
		// Refresh unavailable or declined: the session ends here and the
		// timer is never re-armed.
		g.invalidate()
		return
	}

	g.stateMu.Lock()
	if g.active && g.timer != nil {
		g.timer.Reset(g.config.IdleTimeout)
	}
	g.stateMu.Unlock()
}

func (g *Guard) invalidate() {
	g.stateMu.Lock()
	wasActive := g.active
	g.active = false
	g.terminal = true
	if g.timer != nil {
		g.timer.Stop()
	}
	g.stateMu.Unlock()

	if wasActive {
		g.logoutOnce.Do(func() {
			if g.onLogout != nil {
				g.onLogout()
			}
		})
	}
}
