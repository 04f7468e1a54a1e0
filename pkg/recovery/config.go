package recovery

import (
	"fmt"
	"time"
)

// Config holds the rate-limiting knobs for the recovery flow.
type Config struct {
	// WindowDuration is the fixed attempt window. A window older than this
	// is discarded before the next attempt count is read.
	WindowDuration time.Duration

	// AttemptCeiling is the maximum number of submissions per window.
	AttemptCeiling int

	// CooldownPeriod is added to the current time when the ceiling is
	// exceeded.
	CooldownPeriod time.Duration

	// BaseDelay is the unit of progressive delay. Attempt index n waits
	// BaseDelay × min(n−1, 5) before dispatch.
	BaseDelay time.Duration

	// SubmitTimeout bounds how long a dispatched submission may wait for
	// the recovery service.
	SubmitTimeout time.Duration

	// DeliveryStep is the interval between simulated delivery-status
	// transitions.
	DeliveryStep time.Duration

	// DelayedThresholdMinutes marks a delivery as delayed when the
	// service's estimated delivery time exceeds it.
	DelayedThresholdMinutes int
}

// DefaultConfig returns the recovery limiter defaults: five attempts per
// hour with a fifteen-minute cooldown.
func DefaultConfig() Config {
	return Config{
		WindowDuration:          time.Hour,
		AttemptCeiling:          5,
		CooldownPeriod:          15 * time.Minute,
		BaseDelay:               2 * time.Second,
		SubmitTimeout:           30 * time.Second,
		DeliveryStep:            3 * time.Second,
		DelayedThresholdMinutes: 5,
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.WindowDuration <= 0 {
		return fmt.Errorf("window duration must be positive, got %s", c.WindowDuration)
	}
	if c.AttemptCeiling <= 0 {
		return fmt.Errorf("attempt ceiling must be positive, got %d", c.AttemptCeiling)
	}
	if c.CooldownPeriod <= 0 {
		return fmt.Errorf("cooldown period must be positive, got %s", c.CooldownPeriod)
	}
	if c.BaseDelay < 0 {
		return fmt.Errorf("base delay must not be negative, got %s", c.BaseDelay)
	}
	if c.SubmitTimeout <= 0 {
		return fmt.Errorf("submit timeout must be positive, got %s", c.SubmitTimeout)
	}
	return nil
}
