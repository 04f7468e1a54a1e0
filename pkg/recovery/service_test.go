package recovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type mockSender struct {
	mu         sync.Mutex
	requests   []SubmitRequest
	resp       SubmitResponse
	err        error
	blockFirst chan struct{}
	blocked    bool
}

func (m *mockSender) SendRecovery(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	m.mu.Lock()
	block := m.blockFirst != nil && !m.blocked
	if block {
		m.blocked = true
	}
	m.mu.Unlock()
	if block {
		select {
		case <-m.blockFirst:
		case <-ctx.Done():
			return SubmitResponse{}, ctx.Err()
		}
	}
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.err != nil {
		return SubmitResponse{}, m.err
	}
	return m.resp, nil
}

func (m *mockSender) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func instantSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestService(t *testing.T, sender Sender, clock *fakeClock) *Service {
	t.Helper()
	service, err := NewService(DefaultConfig(), sender,
		WithClock(clock.Now), WithSleep(instantSleep))
	require.NoError(t, err)
	return service
}

func TestSubmitSuccess(t *testing.T) {
	sender := &mockSender{resp: SubmitResponse{Success: true}}
	service := newTestService(t, sender, newFakeClock())

	result, err := service.Submit(context.Background(), "user@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, result.State)
	assert.Equal(t, NeutralSuccessMessage, result.Message)
	assert.Equal(t, 4, result.AttemptsRemaining)
	assert.Equal(t, "u***r@example.com", result.MaskedEmail)
	assert.Equal(t, 1, sender.calls())
}

func TestAttemptCeilingBlocksAndCooldownClears(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	sender := &mockSender{resp: SubmitResponse{Success: true}}
	service := newTestService(t, sender, clock)

	for i := 0; i < 5; i++ {
		result, err := service.Submit(ctx, "user@example.com", "")
		require.NoError(t, err)
		require.Equal(t, StateSuccess, result.State, "attempt %d within ceiling", i+1)
	}
	require.Equal(t, 5, sender.calls())

	// Sixth submit trips the ceiling: blocked, cooldown computed, no dispatch.
	result, err := service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, StateBlocked, result.State)
	assert.Equal(t, clock.Now().Add(15*time.Minute), result.CooldownUntil)
	assert.Equal(t, 5, sender.calls())

	// Still blocked while the cooldown is active.
	clock.Advance(5 * time.Minute)
	result, err = service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, StateBlocked, result.State)
	assert.Equal(t, 5, sender.calls())

	// After the cooldown elapses the seventh submit starts a fresh window
	// at count 1.
	clock.Advance(11 * time.Minute)
	result, err = service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, result.State)
	assert.Equal(t, 4, result.AttemptsRemaining)
	assert.Equal(t, 6, sender.calls())
}

func TestCeilingHoldsAfterWindowRollsOverPastCooldown(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	sender := &mockSender{resp: SubmitResponse{Success: true}}
	service := newTestService(t, sender, clock)

	for i := 0; i < 5; i++ {
		_, err := service.Submit(ctx, "user@example.com", "")
		require.NoError(t, err)
	}
	result, err := service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)
	require.Equal(t, StateBlocked, result.State)
	require.Equal(t, 5, sender.calls())

	// Both the cooldown and the window age out before anyone comes back.
	clock.Advance(61 * time.Minute)

	for i := 0; i < 5; i++ {
		result, err = service.Submit(ctx, "user@example.com", "")
		require.NoError(t, err)
		require.Equal(t, StateSuccess, result.State, "attempt %d of the fresh window", i+1)
	}
	require.Equal(t, 10, sender.calls())

	// The old cooldown stamp must not vouch for this window: its sixth
	// submit is blocked with a newly computed cooldown, not dispatched.
	result, err = service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, StateBlocked, result.State)
	assert.Equal(t, clock.Now().Add(15*time.Minute), result.CooldownUntil)
	assert.Equal(t, 10, sender.calls())
}

func TestCeilingHoldsAfterRemoteResetExpiresMidWindow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	reset := clock.Now().Add(time.Minute)
	sender := &mockSender{resp: SubmitResponse{Success: true, ResetTime: &reset}}
	service := newTestService(t, sender, clock)

	result, err := service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)
	require.Equal(t, StateSuccess, result.State)
	require.Equal(t, reset, result.CooldownUntil)

	// The remote cooldown lapses with the window still open; later
	// responses carry no rate-limit info.
	sender.mu.Lock()
	sender.resp = SubmitResponse{Success: true}
	sender.mu.Unlock()
	clock.Advance(2 * time.Minute)

	for i := 0; i < 4; i++ {
		result, err = service.Submit(ctx, "user@example.com", "")
		require.NoError(t, err)
		require.Equal(t, StateSuccess, result.State, "attempt %d within the ceiling", i+2)
	}
	require.Equal(t, 5, sender.calls())

	// The expired remote stamp must not excuse the sixth attempt of the
	// same window.
	result, err = service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, StateBlocked, result.State)
	assert.Equal(t, clock.Now().Add(15*time.Minute), result.CooldownUntil)
	assert.Equal(t, 5, sender.calls())
}

func TestWindowExpiryResetsAttemptCount(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	sender := &mockSender{resp: SubmitResponse{Success: true}}
	service := newTestService(t, sender, clock)

	for i := 0; i < 4; i++ {
		_, err := service.Submit(ctx, "user@example.com", "")
		require.NoError(t, err)
	}
	assert.True(t, service.CaptchaRequired())

	clock.Advance(61 * time.Minute)
	result, err := service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, result.State)
	assert.Equal(t, 4, result.AttemptsRemaining)
}

func TestProgressiveDelay(t *testing.T) {
	service := &Service{config: DefaultConfig()}

	tests := []struct {
		attemptIndex int
		want         time.Duration
	}{
		{1, 0},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 8 * time.Second},
		{6, 10 * time.Second},
		{9, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, service.progressiveDelay(tt.attemptIndex), "attempt index %d", tt.attemptIndex)
	}
}

func TestProgressiveDelayAppliedBeforeDispatch(t *testing.T) {
	ctx := context.Background()
	recorder := &sleepRecorder{}
	sender := &mockSender{resp: SubmitResponse{Success: false, Message: "no"}}
	service, err := NewService(DefaultConfig(), sender,
		WithClock(newFakeClock().Now), WithSleep(recorder.sleep))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := service.Submit(ctx, "user@example.com", "")
		require.NoError(t, err)
	}

	// First attempt dispatches with no delay; the second waits one base
	// delay and the third two.
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, recorder.delays)
}

func TestHoneypotRejectsWithoutConsumingAttempt(t *testing.T) {
	ctx := context.Background()
	sender := &mockSender{resp: SubmitResponse{Success: true}}
	service := newTestService(t, sender, newFakeClock())

	result, err := service.Submit(ctx, "bot@example.com", "gotcha")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, GenericFailureMessage, result.Message)
	assert.Equal(t, 0, sender.calls(), "honeypot submissions never reach the sender")
	assert.False(t, service.CaptchaRequired())

	// The window was not consumed: five real submits still fit.
	for i := 0; i < 5; i++ {
		result, err := service.Submit(ctx, "user@example.com", "")
		require.NoError(t, err)
		require.Equal(t, StateSuccess, result.State)
	}
}

func TestRemoteResetTimeExtendsCooldown(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	reset := clock.Now().Add(30 * time.Minute)
	sender := &mockSender{resp: SubmitResponse{Success: false, Message: "slow down", ResetTime: &reset}}
	service := newTestService(t, sender, clock)

	result, err := service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, "slow down", result.Message)
	assert.Equal(t, reset, result.CooldownUntil)

	// The next submit is gated by the remote cooldown.
	result, err = service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, StateBlocked, result.State)
	assert.Equal(t, 1, sender.calls())
}

func TestRemoteResetTimeNeverShortensCooldown(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	earlier := clock.Now().Add(1 * time.Minute)
	sender := &mockSender{resp: SubmitResponse{Success: true, ResetTime: &earlier}}
	service := newTestService(t, sender, clock)

	service.mu.Lock()
	service.cooldownUntil = clock.Now().Add(-1 * time.Minute)
	service.mu.Unlock()

	_, err := service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)

	service.mu.Lock()
	cooldown := service.cooldownUntil
	service.mu.Unlock()
	assert.Equal(t, earlier, cooldown, "a later remote reset extends the cooldown")

	// Once the cooldown in effect has elapsed it is cleared, and a remote
	// reset time that is already in the past imposes nothing new.
	stillEarlier := clock.Now().Add(30 * time.Second)
	sender.mu.Lock()
	sender.resp = SubmitResponse{Success: true, ResetTime: &stillEarlier}
	sender.mu.Unlock()

	clock.Advance(2 * time.Minute)
	_, err = service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)

	service.mu.Lock()
	cooldown = service.cooldownUntil
	service.mu.Unlock()
	assert.True(t, cooldown.IsZero())
}

func TestCaptchaRequiredDerivation(t *testing.T) {
	ctx := context.Background()
	sender := &mockSender{resp: SubmitResponse{Success: true}}
	service := newTestService(t, sender, newFakeClock())

	for i := 0; i < 3; i++ {
		_, err := service.Submit(ctx, "user@example.com", "")
		require.NoError(t, err)
	}
	assert.False(t, service.CaptchaRequired(), "three attempts stay under max(3, ceiling-1)=4")

	_, err := service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)
	assert.True(t, service.CaptchaRequired())
}

func TestResend(t *testing.T) {
	ctx := context.Background()
	sender := &mockSender{resp: SubmitResponse{Success: true}}
	service := newTestService(t, sender, newFakeClock())

	_, err := service.Resend(ctx)
	assert.ErrorIs(t, err, ErrNoPreviousSubmission)

	_, err = service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)

	result, err := service.Resend(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, result.State)

	sender.mu.Lock()
	require.Len(t, sender.requests, 2)
	assert.Equal(t, "user@example.com", sender.requests[1].Email)
	sender.mu.Unlock()
}

func TestResendPassesThroughCooldownGate(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	sender := &mockSender{resp: SubmitResponse{Success: true}}
	service := newTestService(t, sender, clock)

	_, err := service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)

	service.mu.Lock()
	service.cooldownUntil = clock.Now().Add(10 * time.Minute)
	service.mu.Unlock()

	result, err := service.Resend(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateBlocked, result.State)
	assert.Equal(t, 1, sender.calls())
}

func TestNewerSubmitSupersedesInFlightOne(t *testing.T) {
	ctx := context.Background()
	sender := &mockSender{resp: SubmitResponse{Success: true}, blockFirst: make(chan struct{})}
	service := newTestService(t, sender, newFakeClock())

	firstDone := make(chan error, 1)
	go func() {
		_, err := service.Submit(ctx, "user@example.com", "")
		firstDone <- err
	}()

	// Wait for the first submit to be in flight.
	require.Eventually(t, func() bool {
		return service.State() == StateSubmitting
	}, 2*time.Second, 5*time.Millisecond)

	result, err := service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, result.State)

	assert.ErrorIs(t, <-firstDone, ErrSuperseded)
	assert.Equal(t, StateSuccess, service.State(), "the superseded submit mutated nothing")
}

func TestDeliveryProgression(t *testing.T) {
	ctx := context.Background()
	sender := &mockSender{resp: SubmitResponse{Success: true}}
	service := newTestService(t, sender, newFakeClock())

	result, err := service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, DeliveryQueued, result.Delivery)

	require.Eventually(t, func() bool {
		return service.Delivery() == DeliveryDelivered
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDeliveryDelayedWhenEstimateExceedsThreshold(t *testing.T) {
	ctx := context.Background()
	estimated := 10
	sender := &mockSender{resp: SubmitResponse{Success: true, EstimatedDeliveryMinutes: &estimated}}
	service := newTestService(t, sender, newFakeClock())

	_, err := service.Submit(ctx, "user@example.com", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return service.Delivery() == DeliveryDelayed
	}, 2*time.Second, 5*time.Millisecond)
}

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig()
	require.NoError(t, valid.Validate())

	bad := DefaultConfig()
	bad.AttemptCeiling = 0
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.WindowDuration = 0
	assert.Error(t, bad.Validate())
}
