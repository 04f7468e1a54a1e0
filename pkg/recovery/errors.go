package recovery

import "errors"

var (
	// ErrNoPreviousSubmission is returned by Resend when nothing has been
	// submitted yet in this session.
	ErrNoPreviousSubmission = errors.New("no previous submission to resend")

	// ErrSuperseded is returned to a submit whose in-flight request was
	// cancelled by a newer submit. A superseded submit mutates no state.
	ErrSuperseded = errors.New("submission superseded by a newer one")
)

// GenericFailureMessage is shown for failures that carry no server message.
// Recovery messaging never confirms or denies that an account exists.
const GenericFailureMessage = "Unable to process the request right now. Please try again later."

// NeutralSuccessMessage is the account-existence-neutral success text.
const NeutralSuccessMessage = "If an account exists for that address, a recovery email is on its way."
