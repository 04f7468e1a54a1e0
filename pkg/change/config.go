package change

import (
	"fmt"
	"time"
)

// Config holds the authenticated change flow's policy knobs. The telemetry
// window is deliberately narrower than the recovery window; the two limiters
// are independent.
type Config struct {
	// TelemetryWindow is the trailing window over which attempts count
	// toward the local rate limit.
	TelemetryWindow time.Duration

	// AttemptCeiling is the number of attempts within the window at which
	// further submissions are rejected locally.
	AttemptCeiling int

	// RequireCurrentPassword demands the current password before dispatch.
	RequireCurrentPassword bool

	// RequireTwoFactor demands a verification code before dispatch.
	RequireTwoFactor bool

	// SubmitTimeout bounds how long a dispatched change may wait.
	SubmitTimeout time.Duration
}

// DefaultConfig returns the authenticated change defaults: five attempts per
// fifteen minutes, current password and two-factor both required.
func DefaultConfig() Config {
	return Config{
		TelemetryWindow:        15 * time.Minute,
		AttemptCeiling:         5,
		RequireCurrentPassword: true,
		RequireTwoFactor:       true,
		SubmitTimeout:          30 * time.Second,
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.TelemetryWindow <= 0 {
		return fmt.Errorf("telemetry window must be positive, got %s", c.TelemetryWindow)
	}
	if c.AttemptCeiling <= 0 {
		return fmt.Errorf("attempt ceiling must be positive, got %d", c.AttemptCeiling)
	}
	if c.SubmitTimeout <= 0 {
		return fmt.Errorf("submit timeout must be positive, got %s", c.SubmitTimeout)
	}
	return nil
}
