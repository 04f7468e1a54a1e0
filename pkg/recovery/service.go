package recovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"github.com/tendant/simple-cred/pkg/utils"
)

// Result is what a submission attempt reports back to the caller.
type Result struct {
	State             State
	Message           string
	CaptchaRequired   bool
	CooldownUntil     time.Time
	AttemptsRemaining int
	Delivery          DeliveryState
	MaskedEmail       string
}

// Service gates unauthenticated recovery submissions for one user session.
// It owns the attempt window, cooldown, and delivery progression exclusively;
// nothing here is shared across sessions or persisted.
type Service struct {
	config   Config
	sender   Sender
	metadata map[string]string
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	mu               sync.Mutex
	state            State
	windowStart      time.Time
	attempts         int
	cooldownUntil    time.Time
	lastEmail        string
	delivery         DeliveryState
	submitGeneration int
	cancelSubmit     context.CancelFunc
	cancelDelivery   context.CancelFunc
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the service's time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithMetadata attaches client metadata (user agent, locale, and the like)
// to every outbound submission.
func WithMetadata(metadata map[string]string) ServiceOption {
	return func(s *Service) {
		s.metadata = metadata
	}
}

// WithSleep overrides how progressive delays and delivery steps wait, for
// tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ServiceOption {
	return func(s *Service) {
		s.sleep = sleep
	}
}

// NewService creates a recovery submission service for one session.
func NewService(config Config, sender Sender, opts ...ServiceOption) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		config: config,
		sender: sender,
		now:    time.Now,
		sleep:  sleepContext,
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit runs one recovery attempt for the given email. honeypot is the
// hidden bot-trap field; a non-empty value rejects the submission without
// consuming an attempt or contacting the recovery service.
func (s *Service) Submit(ctx context.Context, email, honeypot string) (Result, error) {
	s.mu.Lock()

	if honeypot != "" {
		s.state = StateFailed
		result := s.resultLocked(GenericFailureMessage)
		s.mu.Unlock()
		slog.Warn("Recovery submission rejected by honeypot gate")
		return result, nil
	}

	now := s.now()

	if !s.cooldownUntil.IsZero() {
		if now.Before(s.cooldownUntil) {
			s.state = StateBlocked
			result := s.resultLocked(cooldownMessage(s.cooldownUntil.Sub(now)))
			s.mu.Unlock()
			return result, nil
		}
		// The cooldown has been served. It is cleared here, at the gate,
		// so a stale stamp can never vouch for a later window. Only when
		// it covered an exhausted window does serving it discard that
		// window too.
		if s.attempts >= s.config.AttemptCeiling {
			s.windowStart = now
			s.attempts = 0
		}
		s.cooldownUntil = time.Time{}
	}

	// A window older than its fixed duration is discarded before the
	// attempt count is read.
	if s.windowStart.IsZero() || now.Sub(s.windowStart) > s.config.WindowDuration {
		s.windowStart = now
		s.attempts = 0
	}

	if s.attempts >= s.config.AttemptCeiling {
		s.cooldownUntil = now.Add(s.config.CooldownPeriod)
		s.state = StateBlocked
		result := s.resultLocked(cooldownMessage(s.config.CooldownPeriod))
		s.mu.Unlock()
		return result, nil
	}

	s.attempts++
	attemptIndex := s.attempts
	s.state = StateSubmitting
	s.lastEmail = email
	s.submitGeneration++
	generation := s.submitGeneration

	// A newer submit cancels any stale in-flight request.
	if s.cancelSubmit != nil {
		s.cancelSubmit()
	}
	submitCtx, cancel := context.WithCancel(ctx)
	s.cancelSubmit = cancel
	s.mu.Unlock()

	if delay := s.progressiveDelay(attemptIndex); delay > 0 {
		if err := s.sleep(submitCtx, delay); err != nil {
			return Result{}, ErrSuperseded
		}
	}

	requestCtx, cancelTimeout := context.WithTimeout(submitCtx, s.config.SubmitTimeout)
	defer cancelTimeout()

	resp, err := s.sender.SendRecovery(requestCtx, SubmitRequest{
		RequestID: uuid.New(),
		Email:     email,
		Timestamp: s.now(),
		Metadata:  s.metadata,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.submitGeneration {
		// A newer submit took over while this one was in flight; its
		// response must not mutate state.
		return Result{}, ErrSuperseded
	}
	s.cancelSubmit = nil

	if err != nil {
		if submitCtx.Err() != nil {
			return Result{}, ErrSuperseded
		}
		slog.Error("Recovery submission failed", "email", utils.MaskEmail(email), "err", err)
		s.state = StateFailed
		s.delivery = DeliveryUnknown
		return s.resultLocked(GenericFailureMessage), nil
	}

	// Remote rate-limit info wins, but a cooldown never silently shortens
	// and a reset time already in the past imposes nothing.
	if resp.ResetTime != nil && resp.ResetTime.After(s.now()) && resp.ResetTime.After(s.cooldownUntil) {
		s.cooldownUntil = *resp.ResetTime
	}

	if !resp.Success {
		s.state = StateFailed
		s.delivery = DeliveryUnknown
		message := resp.Message
		if message == "" {
			message = GenericFailureMessage
		}
		return s.resultLocked(message), nil
	}

	s.state = StateSuccess
	s.startDeliveryProgressionLocked(resp.EstimatedDeliveryMinutes)

	message := resp.Message
	if message == "" {
		message = NeutralSuccessMessage
	}
	return s.resultLocked(message), nil
}

// Resend repeats the last submission for the same email. It passes through
// the same honeypot, cooldown, and window gates as a fresh submit.
func (s *Service) Resend(ctx context.Context) (Result, error) {
	s.mu.Lock()
	email := s.lastEmail
	s.mu.Unlock()

	if email == "" {
		return Result{}, ErrNoPreviousSubmission
	}
	return s.Submit(ctx, email, "")
}

// CaptchaRequired reports whether the caller should demand a captcha before
// the next submission. The flag is derived from the live window, never
// stored, and is independent of cooldown state.
func (s *Service) CaptchaRequired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captchaRequiredLocked()
}

// State returns the current submission state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Delivery returns the current simulated delivery state.
func (s *Service) Delivery() DeliveryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivery
}

// Close cancels any in-flight submission and delivery progression.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelSubmit != nil {
		s.cancelSubmit()
		s.cancelSubmit = nil
	}
	if s.cancelDelivery != nil {
		s.cancelDelivery()
		s.cancelDelivery = nil
	}
}

func (s *Service) captchaRequiredLocked() bool {
	if s.windowStart.IsZero() || s.now().Sub(s.windowStart) > s.config.WindowDuration {
		return false
	}
	threshold := 3
	if s.config.AttemptCeiling-1 > threshold {
		threshold = s.config.AttemptCeiling - 1
	}
	return s.attempts >= threshold
}

// progressiveDelay throttles rapid repeated tries under the ceiling. The
// first attempt in a window dispatches immediately.
func (s *Service) progressiveDelay(attemptIndex int) time.Duration {
	if attemptIndex <= 1 {
		return 0
	}
	multiplier := attemptIndex - 1
	if multiplier > 5 {
		multiplier = 5
	}
	return s.config.BaseDelay * time.Duration(multiplier)
}

func (s *Service) resultLocked(message string) Result {
	remaining := s.config.AttemptCeiling - s.attempts
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		State:             s.state,
		Message:           message,
		CaptchaRequired:   s.captchaRequiredLocked(),
		CooldownUntil:     s.cooldownUntil,
		AttemptsRemaining: remaining,
		Delivery:          s.delivery,
		MaskedEmail:       utils.MaskEmail(s.lastEmail),
	}
}

// startDeliveryProgressionLocked begins the queued → sent →
// delivered/delayed feedback sequence. A failure anywhere drops the status
// back to unknown; delivery state never gates attempts.
func (s *Service) startDeliveryProgressionLocked(estimatedMinutes *int) {
	if s.cancelDelivery != nil {
		s.cancelDelivery()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelDelivery = cancel
	s.delivery = DeliveryQueued

	final := DeliveryDelivered
	if estimatedMinutes != nil && *estimatedMinutes > s.config.DelayedThresholdMinutes {
		final = DeliveryDelayed
	}

	go func() {
		if err := s.sleep(ctx, s.config.DeliveryStep); err != nil {
			return
		}
		s.setDelivery(ctx, DeliverySent)
		if err := s.sleep(ctx, s.config.DeliveryStep); err != nil {
			return
		}
		s.setDelivery(ctx, final)
	}()
}

func (s *Service) setDelivery(ctx context.Context, state DeliveryState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	s.delivery = state
}

func cooldownMessage(remaining time.Duration) string {
	minutes := int(remaining.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("Too many attempts. Please wait about %d minute(s) and try again.", minutes)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
