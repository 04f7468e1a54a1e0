package change

import "errors"

var (
	// ErrVerifyInFlight is returned when a verification is requested while
	// a prior one is still outstanding.
	ErrVerifyInFlight = errors.New("a verification is already in progress")

	// ErrChallengeNotSent is returned when verification is requested before
	// any challenge was sent.
	ErrChallengeNotSent = errors.New("no two-factor challenge has been sent")

	// ErrSuperseded is returned to a submit whose in-flight request was
	// cancelled by a newer submit. A superseded submit mutates no state.
	ErrSuperseded = errors.New("submission superseded by a newer one")
)

// GenericFailureMessage is the fallback when a failure carries no server
// message.
const GenericFailureMessage = "Unable to change password right now. Please try again later."
