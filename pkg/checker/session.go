package checker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/tendant/simple-cred/pkg/breach"
	"github.com/tendant/simple-cred/pkg/policy"
)

// BreachChecker reports whether a candidate password appears in known
// breach corpuses.
type BreachChecker interface {
	IsCompromised(ctx context.Context, password string) (bool, error)
}

// ReuseChecker reports whether a candidate password matches any entry in a
// hashed password history.
type ReuseChecker interface {
	WasRecentlyUsed(ctx context.Context, password string, history []string) (bool, error)
}

// Session merges synchronous policy validation with asynchronous breach and
// reuse results for a single candidate-password input stream. Every async
// result is stamped with the input it was computed for and is discarded when
// that input is no longer current, so a response that was in flight for an
// older input can never clobber state computed for a newer one.
type Session struct {
	policyChecker *policy.Checker
	breachChecker BreachChecker
	reuseChecker  ReuseChecker
	history       []string
	onUpdate      func(Snapshot)

	mu                 sync.Mutex
	input              string
	reused             *bool
	breachStatus       breach.Status
	breachAcknowledged bool
	result             policy.ValidationResult
	cancelBreach       context.CancelFunc
	cancelReuse        context.CancelFunc
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithBreachChecker enables asynchronous breach checking on each update.
func WithBreachChecker(checker BreachChecker) SessionOption {
	return func(s *Session) {
		s.breachChecker = checker
	}
}

// WithReuseChecker enables asynchronous reuse checking against the session's
// password history on each update.
func WithReuseChecker(checker ReuseChecker) SessionOption {
	return func(s *Session) {
		s.reuseChecker = checker
	}
}

// WithHistory supplies the hashed password history handed to the reuse checker.
func WithHistory(history []string) SessionOption {
	return func(s *Session) {
		s.history = history
	}
}

// WithOnUpdate registers a callback invoked each time an asynchronous result
// merges into the session state. The callback receives a snapshot copy and
// must not call back into the session.
func WithOnUpdate(fn func(Snapshot)) SessionOption {
	return func(s *Session) {
		s.onUpdate = fn
	}
}

// NewSession creates a validation session for one user's candidate-password
// input. Sessions are not shared across users.
func NewSession(policyChecker *policy.Checker, opts ...SessionOption) *Session {
	s := &Session{
		policyChecker: policyChecker,
		breachStatus:  breach.StatusUnknown,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update records a new candidate password, runs policy validation
// synchronously, cancels any in-flight checks for the previous input, and
// dispatches fresh breach and reuse checks. The returned snapshot reflects
// the synchronous validation only; async results arrive through OnUpdate
// merges and later Result calls.
func (s *Session) Update(ctx context.Context, password string) Snapshot {
	s.mu.Lock()

	s.input = password
	s.reused = nil
	s.breachAcknowledged = false
	if s.cancelBreach != nil {
		s.cancelBreach()
		s.cancelBreach = nil
	}
	if s.cancelReuse != nil {
		s.cancelReuse()
		s.cancelReuse = nil
	}

	var breachCtx, reuseCtx context.Context
	if s.breachChecker != nil && password != "" {
		s.breachStatus = breach.StatusChecking
		breachCtx, s.cancelBreach = context.WithCancel(ctx)
	} else {
		s.breachStatus = breach.StatusUnknown
	}
	if s.reuseChecker != nil && password != "" && len(s.history) > 0 {
		reuseCtx, s.cancelReuse = context.WithCancel(ctx)
	}

	s.recomputeLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if breachCtx != nil {
		go s.runBreachCheck(breachCtx, password)
	}
	if reuseCtx != nil {
		go s.runReuseCheck(reuseCtx, password)
	}
	return snap
}

// AcknowledgeBreach records the user's decision to proceed despite a breach
// warning. The override marks the current input clean and dominates any
// breach response still in flight.
func (s *Session) AcknowledgeBreach() Snapshot {
	s.mu.Lock()
	s.breachAcknowledged = true
	s.breachStatus = breach.StatusClean
	if s.cancelBreach != nil {
		s.cancelBreach()
		s.cancelBreach = nil
	}
	s.recomputeLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return snap
}

// Result returns a snapshot of the current merged validation state.
func (s *Session) Result() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close cancels any in-flight checks. The session must not be updated after
// Close.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelBreach != nil {
		s.cancelBreach()
		s.cancelBreach = nil
	}
	if s.cancelReuse != nil {
		s.cancelReuse()
		s.cancelReuse = nil
	}
}

func (s *Session) runBreachCheck(ctx context.Context, input string) {
	compromised, err := s.breachChecker.IsCompromised(ctx, input)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		// Fail open: an unreachable breach service must not block the user.
		slog.Warn("Breach check failed, treating password as not compromised", "err", err)
		compromised = false
	}

	s.mu.Lock()
	if input != s.input || s.breachAcknowledged {
		s.mu.Unlock()
		return
	}
	if compromised {
		s.breachStatus = breach.StatusCompromised
	} else {
		s.breachStatus = breach.StatusClean
	}
	s.recomputeLocked()
	snap := s.snapshotLocked()
	onUpdate := s.onUpdate
	s.mu.Unlock()

	if onUpdate != nil {
		onUpdate(snap)
	}
}

func (s *Session) runReuseCheck(ctx context.Context, input string) {
	reused, err := s.reuseChecker.WasRecentlyUsed(ctx, input, s.history)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Warn("Reuse check failed", "err", err)
		return
	}

	s.mu.Lock()
	if input != s.input {
		s.mu.Unlock()
		return
	}
	s.reused = &reused
	s.recomputeLocked()
	snap := s.snapshotLocked()
	onUpdate := s.onUpdate
	s.mu.Unlock()

	if onUpdate != nil {
		onUpdate(snap)
	}
}

// recomputeLocked rebuilds the merged validation result from the latest
// known per-field state: the current input, the last reuse answer for that
// input, and the breach status. Callers must hold s.mu.
func (s *Session) recomputeLocked() {
	result := s.policyChecker.Validate(s.input, s.reused)
	if s.breachStatus == breach.StatusCompromised {
		result.Requirements.NotCompromised = false
		result.IsValid = result.Requirements.Satisfied() >= policy.MinSatisfied && result.Score >= policy.MinScore
		result.Suggestions = append(result.Suggestions,
			"This password has appeared in a known data breach; choose a different one")
	}
	s.result = result
}
