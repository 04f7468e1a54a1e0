package change

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Outcome classifies a submission's result for the caller.
type Outcome int

const (
	// OutcomeSuccess means the credential change was accepted.
	OutcomeSuccess Outcome = iota
	// OutcomeValidationFailed means a local precondition failed; FieldErrors
	// names the offending inputs. Nothing was dispatched.
	OutcomeValidationFailed
	// OutcomeRateLimited means the local telemetry ceiling or the remote
	// service rejected the attempt as too frequent.
	OutcomeRateLimited
	// OutcomeSessionInvalid means the session is no longer valid; the
	// session-invalid callback has fired.
	OutcomeSessionInvalid
	// OutcomePolicyViolation means the remote service rejected the new
	// password on policy grounds.
	OutcomePolicyViolation
	// OutcomeFailed covers every other failure.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeValidationFailed:
		return "validation-failed"
	case OutcomeRateLimited:
		return "rate-limited"
	case OutcomeSessionInvalid:
		return "session-invalid"
	case OutcomePolicyViolation:
		return "policy-violation"
	case OutcomeFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Result is what a submission reports back to the caller.
type Result struct {
	Outcome     Outcome
	Message     string
	FieldErrors map[string]string
}

// Orchestrator coordinates an authenticated password change for one session:
// local precondition checks, attempt telemetry, the two-factor challenge
// lifecycle, and the dispatch to the credential-change endpoint. All
// telemetry is owned by this orchestrator alone and resets on success.
type Orchestrator struct {
	config           Config
	client           Client
	twoFactor        TwoFactorClient
	sessionValid     func() bool
	onSessionInvalid func()
	now              func() time.Time

	mu               sync.Mutex
	attempts         []time.Time
	lockoutUntil     time.Time
	challenge        ChallengeState
	verifying        bool
	submitGeneration int
	cancelSubmit     context.CancelFunc
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithTwoFactorClient wires the challenge send/verify endpoint.
func WithTwoFactorClient(client TwoFactorClient) OrchestratorOption {
	return func(o *Orchestrator) {
		o.twoFactor = client
	}
}

// WithSessionValidator supplies the session validity check run before any
// operation.
func WithSessionValidator(valid func() bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.sessionValid = valid
	}
}

// WithSessionInvalidCallback registers the callback fired when a submission
// finds the session invalid, locally or via an unauthorized response.
func WithSessionInvalidCallback(fn func()) OrchestratorOption {
	return func(o *Orchestrator) {
		o.onSessionInvalid = fn
	}
}

// WithClock overrides the orchestrator's time source, for tests.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates a change orchestrator for one authenticated session.
func NewOrchestrator(config Config, client Client, opts ...OrchestratorOption) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		config:       config,
		client:       client,
		sessionValid: func() bool { return true },
		now:          time.Now,
		challenge:    ChallengeNotSent,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Challenge returns the current two-factor challenge state.
func (o *Orchestrator) Challenge() ChallengeState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.challenge
}

// SendChallenge dispatches a two-factor code to the user. A challenge may be
// re-sent while no verification is outstanding.
func (o *Orchestrator) SendChallenge(ctx context.Context, userID string) error {
	o.mu.Lock()
	if o.verifying {
		o.mu.Unlock()
		return ErrVerifyInFlight
	}
	o.mu.Unlock()

	if err := o.twoFactor.SendCode(ctx, userID); err != nil {
		slog.Error("Failed to send two-factor challenge", "err", err)
		return err
	}

	o.mu.Lock()
	o.challenge = ChallengeSent
	o.mu.Unlock()
	return nil
}

// VerifyChallenge checks a submitted two-factor code. Verifications are
// serialized: a call made while one is outstanding is rejected with
// ErrVerifyInFlight rather than run concurrently.
func (o *Orchestrator) VerifyChallenge(ctx context.Context, userID, code string) (bool, error) {
	o.mu.Lock()
	if o.verifying {
		o.mu.Unlock()
		return false, ErrVerifyInFlight
	}
	if o.challenge == ChallengeNotSent {
		o.mu.Unlock()
		return false, ErrChallengeNotSent
	}
	o.verifying = true
	o.challenge = ChallengeVerifying
	o.mu.Unlock()

	ok, err := o.twoFactor.VerifyCode(ctx, userID, code)

	o.mu.Lock()
	o.verifying = false
	switch {
	case err != nil:
		o.challenge = ChallengeSent
	case ok:
		o.challenge = ChallengeVerified
	default:
		o.challenge = ChallengeFailed
	}
	o.mu.Unlock()

	if err != nil {
		return false, err
	}
	return ok, nil
}

// Submit runs one authenticated change attempt. Every precondition is
// checked before any network call; a request is dispatched only when all of
// them hold, and a newer submit cancels any stale in-flight one.
func (o *Orchestrator) Submit(ctx context.Context, req ChangeRequest) (Result, error) {
	if !o.sessionValid() {
		o.fireSessionInvalid()
		return Result{Outcome: OutcomeSessionInvalid, Message: "Your session has expired. Please sign in again."}, nil
	}

	o.mu.Lock()
	now := o.now()
	o.pruneTelemetryLocked(now)

	if (!o.lockoutUntil.IsZero() && now.Before(o.lockoutUntil)) || len(o.attempts) >= o.config.AttemptCeiling {
		o.mu.Unlock()
		return Result{Outcome: OutcomeRateLimited, Message: "Too many change attempts. Please wait and try again."}, nil
	}

	if fieldErrors := o.validate(req); len(fieldErrors) > 0 {
		o.mu.Unlock()
		return Result{Outcome: OutcomeValidationFailed, FieldErrors: fieldErrors}, nil
	}

	o.attempts = append(o.attempts, now)
	o.submitGeneration++
	generation := o.submitGeneration
	if o.cancelSubmit != nil {
		o.cancelSubmit()
	}
	submitCtx, cancel := context.WithCancel(ctx)
	o.cancelSubmit = cancel
	o.mu.Unlock()

	requestCtx, cancelTimeout := context.WithTimeout(submitCtx, o.config.SubmitTimeout)
	defer cancelTimeout()

	resp, err := o.client.ChangePassword(requestCtx, req)

	o.mu.Lock()
	defer o.mu.Unlock()

	if generation != o.submitGeneration {
		return Result{}, ErrSuperseded
	}
	o.cancelSubmit = nil

	if err != nil {
		if submitCtx.Err() != nil {
			return Result{}, ErrSuperseded
		}
		slog.Error("Change submission failed", "err", err)
		return Result{Outcome: OutcomeFailed, Message: GenericFailureMessage}, nil
	}

	return o.mapResponseLocked(resp), nil
}

// Close cancels any in-flight submission.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancelSubmit != nil {
		o.cancelSubmit()
		o.cancelSubmit = nil
	}
}

// validate runs the local field checks. It returns a map of field name to
// message; an empty map means every precondition holds.
func (o *Orchestrator) validate(req ChangeRequest) map[string]string {
	fieldErrors := make(map[string]string)
	if o.config.RequireCurrentPassword && req.CurrentPassword == "" {
		fieldErrors["current_password"] = "Current password is required"
	}
	if req.NewPassword == "" {
		fieldErrors["new_password"] = "New password is required"
	}
	if req.NewPassword != req.ConfirmPassword {
		fieldErrors["confirm_password"] = "Passwords do not match"
	}
	if o.config.RequireTwoFactor && req.TwoFactorCode == "" {
		fieldErrors["two_factor_code"] = "Verification code is required"
	}
	return fieldErrors
}

func (o *Orchestrator) mapResponseLocked(resp ChangeResponse) Result {
	switch {
	case isSuccessStatus(resp.StatusCode):
		// Telemetry resets only on success.
		o.attempts = nil
		o.lockoutUntil = time.Time{}
		o.challenge = ChallengeNotSent
		return Result{Outcome: OutcomeSuccess, Message: resp.Message}

	case resp.StatusCode == 429:
		o.attempts = append(o.attempts, o.now())
		if o.lockoutUntil.IsZero() {
			o.lockoutUntil = o.now().Add(o.config.TelemetryWindow)
		}
		return Result{Outcome: OutcomeRateLimited, Message: "Too many change attempts. Please wait and try again."}

	case resp.StatusCode == 401:
		o.fireSessionInvalid()
		return Result{Outcome: OutcomeSessionInvalid, Message: "Your session has expired. Please sign in again."}

	case resp.StatusCode == 412:
		message := resp.Message
		if message == "" {
			message = "The new password does not meet the password policy."
		}
		return Result{Outcome: OutcomePolicyViolation, Message: message}

	default:
		message := resp.Message
		if message == "" {
			message = GenericFailureMessage
		}
		return Result{Outcome: OutcomeFailed, Message: message}
	}
}

func (o *Orchestrator) pruneTelemetryLocked(now time.Time) {
	cutoff := now.Add(-o.config.TelemetryWindow)
	kept := o.attempts[:0]
	for _, at := range o.attempts {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	o.attempts = kept
	if !o.lockoutUntil.IsZero() && !now.Before(o.lockoutUntil) {
		o.lockoutUntil = time.Time{}
	}
}

func (o *Orchestrator) fireSessionInvalid() {
	if o.onSessionInvalid != nil {
		o.onSessionInvalid()
	}
}
